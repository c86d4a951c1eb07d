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

package tmpfs

import (
	"context"
	"fmt"
	"os"

	"gvisor.dev/gvisor/pkg/errors/linuxerr"
	"gvisor.dev/gvisor/pkg/sync"

	"github.com/tmpfscore/tmpfs/internal/ipc"
	"github.com/tmpfscore/tmpfs/internal/memfile"
)

// RegularNode is the Regular (memory) node of spec.md §3: file_size is
// the logical end-of-file, area_size (tracked inside region) is the
// actual backing-memory size, always a multiple of the page size and
// always >= file_size.
type RegularNode struct {
	nodeInfo

	// mu protects fileSize and region together, mirroring the teacher's
	// split inode.mu/dataMu in fsimpl/tmpfs/regular_file.go collapsed
	// into one lock since this core has no separate mapping-tracking
	// concern to serialize independently.
	mu       sync.RWMutex
	fileSize uint64
	region   memfile.Region
}

// Stat implements Node.
func (n *RegularNode) Stat() Stat {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Stat{InodeNumber: n.ino, Type: TypeRegular, FileSize: n.fileSize}
}

// AreaSize returns the current backing-memory size, for tests and
// diagnostics.
func (n *RegularNode) AreaSize() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.region.Size()
}

// resizeLocked implements spec.md §4.3's resize algorithm. Callers must
// hold n.mu for writing.
func (n *RegularNode) resizeLocked(newFileSize uint64) error {
	n.fileSize = newFileSize
	aligned := memfile.RoundUpToPage(newFileSize)
	if aligned <= n.region.Size() {
		return nil
	}
	return n.region.Grow(aligned)
}

// Open implements the RegularFile side of spec.md §4.7: creates a lane
// pair, spawns the serve task, and returns the handle.
func (n *RegularNode) Open(ctx context.Context, link *Link, flags OpenFlags) *RegularFile {
	rf := &RegularFile{link: link, node: n}
	client, server := ipc.NewLanePair()
	rf.lane = client
	serveCtx, cancel := context.WithCancel(ctx)
	rf.cancel = cancel
	go ipc.Serve(serveCtx, server, rf)
	return rf
}

// Whence selects the reference point for RegularFile.Seek, per spec.md
// §4.3.
type Whence int

const (
	Absolute Whence = iota
	Relative
	End
)

// RegularFile is the open handle type of spec.md §3/§4.3: per-open
// offset, bound to a Link naming a Regular node.
type RegularFile struct {
	link *Link
	node *RegularNode

	// offMu serializes operations that mutate offset, mirroring the
	// teacher's regularFileFD.offMu in fsimpl/tmpfs/regular_file.go.
	offMu  sync.Mutex
	offset uint64

	lane   *ipc.Lane
	cancel context.CancelFunc
}

// Link returns the Link this handle was opened through.
func (f *RegularFile) Link() *Link { return f.link }

// Lane returns the client-facing IPC lane for this open handle.
func (f *RegularFile) Lane() *ipc.Lane { return f.lane }

// Close implements spec.md §4.7.
func (f *RegularFile) Close() {
	f.cancel()
}

// Seek implements spec.md §4.3: Absolute sets offset := delta, Relative
// adds delta to offset, End adds delta + file_size to offset. There is no
// bounds check — offset may exceed file_size.
func (f *RegularFile) Seek(delta int64, whence Whence) uint64 {
	f.offMu.Lock()
	defer f.offMu.Unlock()
	switch whence {
	case Absolute:
		f.offset = uint64(delta)
	case Relative:
		f.offset = uint64(int64(f.offset) + delta)
	case End:
		size := f.node.Stat().FileSize
		f.offset = uint64(int64(f.offset) + delta + int64(size))
	default:
		panic(fmt.Sprintf("tmpfs: Seek: invalid whence %v", whence))
	}
	return f.offset
}

// ReadSome implements spec.md §4.3: n := min(file_size - offset,
// len(buf)); copies n bytes from the mapping at offset; advances offset;
// returns n. n == 0 signals EOF.
//
// There is no precondition on offset. spec.md §9 flags this as an open
// question — what should happen after seeking past EOF? This
// implementation answers it by treating offset >= file_size as an
// immediate EOF (n == 0) rather than panicking, which is
// the more liberal of the two documented options and matches ordinary
// POSIX read() semantics after a seek past end-of-file; see DESIGN.md.
func (f *RegularFile) ReadSome(buf []byte) int {
	f.offMu.Lock()
	defer f.offMu.Unlock()

	f.node.mu.RLock()
	defer f.node.mu.RUnlock()

	if f.offset >= f.node.fileSize {
		return 0
	}
	avail := f.node.fileSize - f.offset
	n := uint64(len(buf))
	if avail < n {
		n = avail
	}
	copy(buf[:n], f.node.region.Bytes()[f.offset:f.offset+n])
	f.offset += n
	return int(n)
}

// WriteAll implements spec.md §4.3: if offset+len(buf) > file_size,
// resizes to offset+len(buf); copies buf into the mapping at offset;
// advances offset.
func (f *RegularFile) WriteAll(buf []byte) error {
	f.offMu.Lock()
	defer f.offMu.Unlock()

	f.node.mu.Lock()
	defer f.node.mu.Unlock()

	end := f.offset + uint64(len(buf))
	if end > f.node.fileSize {
		if err := f.node.resizeLocked(end); err != nil {
			return err
		}
	}
	copy(f.node.region.Bytes()[f.offset:end], buf)
	f.offset = end
	return nil
}

// Truncate implements spec.md §4.3: resizes the node to size (may grow or
// shrink the logical size).
func (f *RegularFile) Truncate(size uint64) error {
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	return f.node.resizeLocked(size)
}

// Allocate implements spec.md §4.3: if size <= file_size, no-op; else
// resizes to size. Non-zero offset is not supported by the core and
// surfaces linuxerr.EOPNOTSUPP, per spec.md §9's open question (this
// implementation chooses the "surface an explicit not-supported error"
// option over silently asserting).
func (f *RegularFile) Allocate(offset, size uint64) error {
	if offset != 0 {
		return linuxerr.EOPNOTSUPP
	}
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	if size <= f.node.fileSize {
		return nil
	}
	return f.node.resizeLocked(size)
}

// AccessMemory implements spec.md §4.3: returns a duplicated handle to
// the node's shared memory object, or nil if the file has never been
// grown.
func (f *RegularFile) AccessMemory() (*os.File, error) {
	f.node.mu.RLock()
	defer f.node.mu.RUnlock()
	return f.node.region.Dup()
}

// seekArgs/allocateArgs are the concrete argument types RegularFile agrees
// on with callers of Dispatch for ops whose arguments don't fit in a bare
// scalar.
type seekArgs struct {
	Delta  int64
	Whence Whence
}

type allocateArgs struct {
	Offset, Size uint64
}

// Dispatch implements ipc.FileOps, translating wire requests into
// RegularFile method calls, per spec.md §4.7.
func (f *RegularFile) Dispatch(_ context.Context, op ipc.Op, args any) (any, error) {
	switch op {
	case ipc.OpSeek:
		a := args.(seekArgs)
		return f.Seek(a.Delta, a.Whence), nil
	case ipc.OpReadSome:
		buf := args.([]byte)
		n := f.ReadSome(buf)
		return buf[:n], nil
	case ipc.OpWriteAll:
		return nil, f.WriteAll(args.([]byte))
	case ipc.OpTruncate:
		return nil, f.Truncate(args.(uint64))
	case ipc.OpAllocate:
		a := args.(allocateArgs)
		return nil, f.Allocate(a.Offset, a.Size)
	case ipc.OpAccessMemory:
		return f.AccessMemory()
	default:
		return nil, fmt.Errorf("tmpfs: RegularFile: unsupported op %v", op)
	}
}
