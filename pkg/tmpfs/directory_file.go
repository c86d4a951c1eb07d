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

	"github.com/tmpfscore/tmpfs/internal/ipc"
)

// DirectoryFile is the open handle type of spec.md §3/§4.4: per-open
// state bound to a Link naming a Directory, with a cursor into that
// directory's entries and the IPC lane the open() caller was handed.
type DirectoryFile struct {
	link      *Link
	directory *DirectoryNode

	// lastName is the name last returned by ReadEntries, or "" before the
	// first call. See linkSet.ascendFrom for why this, rather than a live
	// B-tree iterator, is the cursor: it avoids a dangling iterator across
	// suspension points at the cost of the stability guarantee spec.md
	// §4.4/§9 explicitly disclaims anyway.
	lastName string
	atEnd    bool

	lane   *ipc.Lane
	cancel context.CancelFunc
}

// Link returns the Link this handle was opened through.
func (f *DirectoryFile) Link() *Link { return f.link }

// Lane returns the client-facing IPC lane for this open handle.
func (f *DirectoryFile) Lane() *ipc.Lane { return f.lane }

// ReadEntries implements spec.md §4.4: if the cursor is at the end,
// returns ("", false) (signalling end of listing); otherwise returns the
// current entry's name and advances. "." and ".." are not materialized
// here — the VFS layer synthesizes them, per spec.md §4.4.
func (f *DirectoryFile) ReadEntries() (string, bool) {
	if f.atEnd {
		return "", false
	}
	var name string
	found := false
	f.directory.entries.ascendFrom(f.lastName, func(l *Link) bool {
		name = l.Name()
		found = true
		return false
	})
	if !found {
		f.atEnd = true
		return "", false
	}
	f.lastName = name
	return name, true
}

// Close implements spec.md §4.7: signals the handle's cancellation
// handle, which terminates its serve task at its next await point.
func (f *DirectoryFile) Close() {
	f.cancel()
}

// Dispatch implements ipc.FileOps, translating wire requests (spec.md
// §4.7's "the serve task... dispatching into the handle's operations")
// into DirectoryFile method calls.
func (f *DirectoryFile) Dispatch(_ context.Context, op ipc.Op, _ any) (any, error) {
	switch op {
	case ipc.OpReadEntries:
		name, ok := f.ReadEntries()
		if !ok {
			return nil, nil
		}
		return name, nil
	default:
		return nil, fmt.Errorf("tmpfs: DirectoryFile: unsupported op %v", op)
	}
}
