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
	"bytes"
	"context"
	"os"
	"testing"

	"gvisor.dev/gvisor/pkg/errors/linuxerr"

	"github.com/tmpfscore/tmpfs/internal/ipc"
	"github.com/tmpfscore/tmpfs/internal/memfile"
)

func newTestRegularFile(t *testing.T) *RegularFile {
	t.Helper()
	sb := NewSuperblock(DefaultOptions())
	node := sb.CreateRegular()
	return node.Open(context.Background(), NewUnlinkedLink(node), OpenFlags{Read: true, Write: true})
}

// TestSimpleWriteRead mirrors scenario S2: write some data, seek back to the
// start, and read it all back.
func TestSimpleWriteRead(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	data := []byte("foobarbaz")
	if err := rf.WriteAll(data); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	rf.Seek(0, Absolute)
	got := make([]byte, len(data))
	n := rf.ReadSome(got)
	if n != len(data) {
		t.Fatalf("ReadSome returned %d bytes, want %d", n, len(data))
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("ReadSome = %q, want %q", got, data)
	}

	if stat := rf.node.Stat(); stat.FileSize != uint64(len(data)) {
		t.Fatalf("file_size = %d, want %d", stat.FileSize, len(data))
	}
}

func TestWriteGrowsAreaToPageMultiple(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.WriteAll([]byte("x")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if area := rf.node.AreaSize(); area != memfile.PageSize {
		t.Fatalf("area_size after a 1 byte write = %d, want %d", area, memfile.PageSize)
	}

	big := bytes.Repeat([]byte("y"), memfile.PageSize+10)
	rf.Seek(0, Absolute)
	if err := rf.WriteAll(big); err != nil {
		t.Fatalf("WriteAll(big): %v", err)
	}
	want := 2 * memfile.PageSize
	if area := rf.node.AreaSize(); area != uint64(want) {
		t.Fatalf("area_size after a %d byte write = %d, want %d", len(big), area, want)
	}
}

// TestReadPastEndOfFileReturnsZero documents the resolution chosen for the
// offset > file_size open question: it is treated as ordinary EOF.
func TestReadPastEndOfFileReturnsZero(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.WriteAll([]byte("abc")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	rf.Seek(1000, Absolute)

	buf := make([]byte, 16)
	if n := rf.ReadSome(buf); n != 0 {
		t.Fatalf("ReadSome past EOF returned %d, want 0", n)
	}
}

func TestSeekWhenceVariants(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.WriteAll([]byte("0123456789")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if got := rf.Seek(3, Absolute); got != 3 {
		t.Fatalf("Seek(3, Absolute) = %d, want 3", got)
	}
	if got := rf.Seek(2, Relative); got != 5 {
		t.Fatalf("Seek(2, Relative) = %d, want 5", got)
	}
	// End adds delta + file_size to the current offset: 5 + (-5) + 10.
	if got := rf.Seek(-5, End); got != 10 {
		t.Fatalf("Seek(-5, End) = %d, want 10", got)
	}
}

func TestSeekInvalidWhencePanics(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()
	defer func() {
		if recover() == nil {
			t.Fatalf("Seek with an invalid whence did not panic")
		}
	}()
	rf.Seek(0, Whence(99))
}

func TestTruncateShrinksFileSizeWithoutShrinkingArea(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	big := bytes.Repeat([]byte("z"), memfile.PageSize+5)
	if err := rf.WriteAll(big); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	areaBefore := rf.node.AreaSize()

	if err := rf.Truncate(3); err != nil {
		t.Fatalf("Truncate(3): %v", err)
	}
	if stat := rf.node.Stat(); stat.FileSize != 3 {
		t.Fatalf("file_size after Truncate(3) = %d, want 3", stat.FileSize)
	}
	if area := rf.node.AreaSize(); area != areaBefore {
		t.Fatalf("area_size after shrinking = %d, want unchanged %d", area, areaBefore)
	}
}

func TestAllocateGrowsWithoutChangingContent(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.WriteAll([]byte("hi")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := rf.Allocate(0, 100); err != nil {
		t.Fatalf("Allocate(0, 100): %v", err)
	}
	if stat := rf.node.Stat(); stat.FileSize != 100 {
		t.Fatalf("file_size after Allocate = %d, want 100", stat.FileSize)
	}
	rf.Seek(0, Absolute)
	head := make([]byte, 2)
	if n := rf.ReadSome(head); n != 2 || string(head) != "hi" {
		t.Fatalf("contents after Allocate = %q (%d bytes), want %q", head[:n], n, "hi")
	}

	// Allocate with a smaller size than the current file is a no-op.
	if err := rf.Allocate(0, 1); err != nil {
		t.Fatalf("Allocate(0, 1): %v", err)
	}
	if stat := rf.node.Stat(); stat.FileSize != 100 {
		t.Fatalf("file_size after a shrinking Allocate = %d, want unchanged 100", stat.FileSize)
	}
}

// TestAllocateNonZeroOffsetUnsupported documents the resolution chosen for
// the Allocate-with-nonzero-offset open question: it surfaces
// linuxerr.EOPNOTSUPP rather than asserting.
func TestAllocateNonZeroOffsetUnsupported(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.Allocate(1, 100); err != linuxerr.EOPNOTSUPP {
		t.Fatalf("Allocate(1, 100) err = %v, want linuxerr.EOPNOTSUPP", err)
	}
}

func TestAccessMemoryNilBeforeAnyGrowth(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	f, err := rf.AccessMemory()
	if err != nil {
		t.Fatalf("AccessMemory on an empty file: %v", err)
	}
	if f != nil {
		t.Fatalf("AccessMemory on an empty file returned a non-nil handle")
	}
}

// TestDispatchRoutesEveryOp exercises the IPC Dispatch adapter for every
// Op a RegularFile handles, confirming the passthrough glue doesn't drop
// arguments on the way to the underlying method.
func TestDispatchRoutesEveryOp(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()
	ctx := context.Background()

	if _, err := rf.Dispatch(ctx, ipc.OpWriteAll, []byte("abcdef")); err != nil {
		t.Fatalf("Dispatch(write_all): %v", err)
	}
	v, err := rf.Dispatch(ctx, ipc.OpSeek, seekArgs{Delta: 0, Whence: Absolute})
	if err != nil {
		t.Fatalf("Dispatch(seek): %v", err)
	}
	if v.(uint64) != 0 {
		t.Fatalf("Dispatch(seek) = %v, want 0", v)
	}

	v, err = rf.Dispatch(ctx, ipc.OpReadSome, make([]byte, 6))
	if err != nil {
		t.Fatalf("Dispatch(read_some): %v", err)
	}
	if string(v.([]byte)) != "abcdef" {
		t.Fatalf("Dispatch(read_some) = %q, want %q", v, "abcdef")
	}

	if _, err := rf.Dispatch(ctx, ipc.OpTruncate, uint64(3)); err != nil {
		t.Fatalf("Dispatch(truncate): %v", err)
	}
	if stat := rf.node.Stat(); stat.FileSize != 3 {
		t.Fatalf("file_size after Dispatch(truncate, 3) = %d, want 3", stat.FileSize)
	}
	if _, err := rf.Dispatch(ctx, ipc.OpAllocate, allocateArgs{Offset: 0, Size: 10}); err != nil {
		t.Fatalf("Dispatch(allocate): %v", err)
	}
	if stat := rf.node.Stat(); stat.FileSize != 10 {
		t.Fatalf("file_size after Dispatch(allocate, 10) = %d, want 10", stat.FileSize)
	}
	v, err = rf.Dispatch(ctx, ipc.OpAccessMemory, nil)
	if err != nil {
		t.Fatalf("Dispatch(access_memory): %v", err)
	}
	f, ok := v.(*os.File)
	if !ok || f == nil {
		t.Fatalf("Dispatch(access_memory) = %v, want a non-nil *os.File", v)
	}
	f.Close()
}
