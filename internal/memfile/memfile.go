// Copyright 2024 The Tmpfscore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memfile implements the shared memory object that backs a tmpfs
// regular file: a page-granular, kernel-managed region that can be resized,
// mapped in-process, and duplicated for a client to map directly.
//
// This is the realization of spec.md §3's "Regular (memory) node" backing
// store and §4.3's resize algorithm, grounded on the teacher's pervasive use
// of golang.org/x/sys/unix for kernel primitives and of
// github.com/edsrzf/mmap-go (as used by cubefs-cubefs for its own
// memory-mapped data files) for the in-process view.
package memfile

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// PageSize is the page granularity that every Region's size is rounded up
// to, per spec.md §3 ("area_size... always a multiple of the page size
// 4096").
const PageSize = 4096

// RoundUpToPage rounds n up to the next multiple of PageSize.
func RoundUpToPage(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// Region is a resizable shared memory object plus an in-process mapping
// covering it. It implements spec.md §3's "memory"/"mapping" pair and
// §4.3's resize algorithm.
//
// A zero-value Region has no backing object (areaBytes == 0), matching the
// invariant that memory is present iff area_size > 0.
type Region struct {
	file      *os.File
	mapping   mmap.MMap
	areaBytes uint64
}

// Size returns the current area size in bytes.
func (r *Region) Size() uint64 {
	return r.areaBytes
}

// Grow ensures the region is at least aligned bytes long, allocating or
// resizing the backing object as needed. aligned must already be a
// multiple of PageSize. This is steps 4-5 of spec.md §4.3's resize
// algorithm.
func (r *Region) Grow(aligned uint64) error {
	if aligned <= r.areaBytes {
		return nil
	}
	if r.file == nil {
		fd, err := unix.MemfdCreate("tmpfs-regular", 0)
		if err != nil {
			return fmt.Errorf("memfile: allocate shared memory: %w", err)
		}
		r.file = os.NewFile(uintptr(fd), "tmpfs-regular")
	}
	if err := r.file.Truncate(int64(aligned)); err != nil {
		return fmt.Errorf("memfile: resize shared memory to %d: %w", aligned, err)
	}
	if r.mapping != nil {
		if err := r.mapping.Unmap(); err != nil {
			return fmt.Errorf("memfile: unmap stale view: %w", err)
		}
	}
	m, err := mmap.MapRegion(r.file, int(aligned), mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("memfile: map view of shared memory: %w", err)
	}
	r.mapping = m
	r.areaBytes = aligned
	return nil
}

// Bytes returns the current in-process mapping, covering [0, Size()).
// It is nil iff Size() == 0.
func (r *Region) Bytes() []byte {
	if r.mapping == nil {
		return nil
	}
	return r.mapping
}

// Dup returns a duplicated handle to the region's backing shared memory
// object, suitable for a client to map directly (spec.md §4.3's
// access_memory). It returns nil if the region has never been grown.
func (r *Region) Dup() (*os.File, error) {
	if r.file == nil {
		return nil, nil
	}
	newFD, err := unix.Dup(int(r.file.Fd()))
	if err != nil {
		return nil, fmt.Errorf("memfile: duplicate handle: %w", err)
	}
	return os.NewFile(uintptr(newFD), r.file.Name()), nil
}

// Close releases the mapping and the backing object. It is safe to call on
// a zero-value Region.
func (r *Region) Close() error {
	var err error
	if r.mapping != nil {
		err = r.mapping.Unmap()
		r.mapping = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
		r.file = nil
	}
	r.areaBytes = 0
	return err
}
