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
	"testing"

	"github.com/tmpfscore/tmpfs/internal/device"
	"github.com/tmpfscore/tmpfs/internal/memfile"
)

// TestScenarioEmptyRootMkdirAndLookup is end-to-end scenario S1.
func TestScenarioEmptyRootMkdirAndLookup(t *testing.T) {
	_, root := newTestRoot(t)

	link, err := root.Mkdir("a")
	if err != nil {
		t.Fatalf("Mkdir(a): %v", err)
	}
	got, ok := root.GetLink("a")
	if !ok {
		t.Fatalf("GetLink(a) = _, false, want a link")
	}
	if got != link {
		t.Fatalf("GetLink(a) returned a different link than Mkdir produced")
	}
	if _, ok := got.Target().(*DirectoryNode); !ok {
		t.Fatalf("GetLink(a)'s target is a %T, want *DirectoryNode", got.Target())
	}
	if _, ok := root.GetLink("b"); ok {
		t.Fatalf("GetLink(b) on an empty root found an entry")
	}
}

// TestScenarioWriteReadThenEOF is end-to-end scenario S2.
func TestScenarioWriteReadThenEOF(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.WriteAll([]byte("hello world")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	rf.Seek(0, Absolute)

	buf := make([]byte, 16)
	n := rf.ReadSome(buf)
	if n != 11 || string(buf[:n]) != "hello world" {
		t.Fatalf("first ReadSome = %q (%d bytes), want %q (11 bytes)", buf[:n], n, "hello world")
	}

	n = rf.ReadSome(buf)
	if n != 0 {
		t.Fatalf("second ReadSome = %d bytes, want 0 (EOF)", n)
	}
}

// TestScenarioWriteAtOffsetGrowsAreaByPage is end-to-end scenario S3.
func TestScenarioWriteAtOffsetGrowsAreaByPage(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	rf.Seek(5000, Absolute)
	if err := rf.WriteAll([]byte("X")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	stat := rf.node.Stat()
	if stat.FileSize != 5001 {
		t.Fatalf("file_size = %d, want 5001", stat.FileSize)
	}
	if area := rf.node.AreaSize(); area != 8192 {
		t.Fatalf("area_size = %d, want 8192", area)
	}

	f, err := rf.AccessMemory()
	if err != nil {
		t.Fatalf("AccessMemory: %v", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat on the access_memory handle: %v", err)
	}
	if fi.Size() != 8192 {
		t.Fatalf("access_memory handle size = %d, want 8192", fi.Size())
	}
}

// TestScenarioDirectoryListingOrder is end-to-end scenario S4.
func TestScenarioDirectoryListingOrder(t *testing.T) {
	_, root := newTestRoot(t)

	if _, err := root.Mkdir("a"); err != nil {
		t.Fatalf("Mkdir(a): %v", err)
	}
	if _, err := root.Mkdir("b"); err != nil {
		t.Fatalf("Mkdir(b): %v", err)
	}
	root.Symlink("c", "/tmp")

	df := root.Open(context.Background(), root.TreeLink(), OpenFlags{Read: true})
	defer df.Close()

	want := []string{"a", "b", "c"}
	for _, w := range want {
		name, ok := df.ReadEntries()
		if !ok || name != w {
			t.Fatalf("ReadEntries() = (%q, %v), want (%q, true)", name, ok, w)
		}
	}
	if name, ok := df.ReadEntries(); ok {
		t.Fatalf("ReadEntries() past the end = (%q, true), want (_, false)", name)
	}
}

// TestScenarioRenameOverSiblingReplacesDestination is end-to-end scenario S5.
func TestScenarioRenameOverSiblingReplacesDestination(t *testing.T) {
	sb, root := newTestRoot(t)

	linkA, err := root.Mkdir("a")
	if err != nil {
		t.Fatalf("Mkdir(a): %v", err)
	}
	linkB, err := root.Mkdir("b")
	if err != nil {
		t.Fatalf("Mkdir(b): %v", err)
	}
	aTarget := linkA.Target()
	bTarget := linkB.Target()

	sb.Rename(linkA, root, "b")

	if root.entries.len() != 1 {
		t.Fatalf("root has %d entries after rename, want 1", root.entries.len())
	}
	got, ok := root.GetLink("b")
	if !ok {
		t.Fatalf("GetLink(b) after rename found nothing")
	}
	if got.Target() != aTarget {
		t.Fatalf("root's \"b\" entry targets %v, want the original a-directory %v", got.Target(), aTarget)
	}
	if got.Target() == bTarget {
		t.Fatalf("root's \"b\" entry still targets the original b-directory")
	}
}

// TestScenarioTruncateThenRewrite is end-to-end scenario S6.
func TestScenarioTruncateThenRewrite(t *testing.T) {
	rf := newTestRegularFile(t)
	defer rf.Close()

	if err := rf.WriteAll([]byte("abcdef")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := rf.Truncate(0); err != nil {
		t.Fatalf("Truncate(0): %v", err)
	}
	rf.Seek(0, Absolute)
	buf := make([]byte, 16)
	if n := rf.ReadSome(buf); n != 0 {
		t.Fatalf("ReadSome after Truncate(0) = %d bytes, want 0", n)
	}

	rf.Seek(0, Absolute)
	if err := rf.WriteAll([]byte("Z")); err != nil {
		t.Fatalf("WriteAll(Z): %v", err)
	}

	stat := rf.node.Stat()
	if stat.FileSize != 1 {
		t.Fatalf("file_size = %d, want 1", stat.FileSize)
	}
	if area := rf.node.AreaSize(); area != memfile.PageSize {
		t.Fatalf("area_size = %d, want %d", area, memfile.PageSize)
	}

	rf.Seek(0, Absolute)
	n := rf.ReadSome(buf)
	if n != 1 || buf[0] != 'Z' {
		t.Fatalf("contents after truncate+rewrite = %q, want %q", buf[:n], "Z")
	}
}

// TestInodesAreUniqueAcrossNodeKinds checks property 1 across every node
// constructor this package exposes, not just Mkdir.
func TestInodesAreUniqueAcrossNodeKinds(t *testing.T) {
	sb, root := newTestRoot(t)

	seen := map[uint64]bool{root.Inode(): true}
	record := func(n Node) {
		if seen[n.Inode()] {
			t.Fatalf("duplicate inode %d", n.Inode())
		}
		seen[n.Inode()] = true
	}

	record(sb.CreateRegular())
	record(sb.CreateSocket())
	dirLink, err := root.Mkdir("d")
	if err != nil {
		t.Fatalf("Mkdir(d): %v", err)
	}
	record(dirLink.Target())
	record(root.Symlink("s", "/x").Target())
	record(root.Mkdev("dev", device.Char, device.ID{Major: 1, Minor: 3}).Target())
	record(root.Mkfifo("fifo", 0o644).Target())
}
