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
	"github.com/google/btree"
)

// Link is a named directed edge from a directory to any node, per spec.md
// §3. The root link has no owner and no name.
type Link struct {
	// owner is the parent Directory, absent only for the root link.
	owner *DirectoryNode
	// name is non-empty when owner is present.
	name string
	// target is the node this link points to.
	target Node
}

// Owner returns the parent directory, or nil for the root link.
func (l *Link) Owner() *DirectoryNode { return l.owner }

// Name returns the link's name. It panics on the root link, mirroring
// the teacher's assert(_owner) in Link::getName().
func (l *Link) Name() string {
	if l.owner == nil {
		panic("tmpfs: Name: the root link has no name")
	}
	return l.name
}

// Target returns the node this link points to.
func (l *Link) Target() Node { return l.target }

// NewUnlinkedLink wraps target in a nameless, ownerless Link, for opening
// a freshly-created node before it has been linked into any directory
// (spec.md §4.7's RegularFile.Open takes a Link, but a node created via
// Superblock.CreateRegular has none yet until a caller links it).
func NewUnlinkedLink(target Node) *Link {
	return &Link{target: target}
}

// linkItem adapts a *Link to github.com/google/btree's classic Item
// interface, ordering entries lexicographically (byte-wise) by name, per
// spec.md §4.2. This is the same library the teacher itself depends on,
// and the one cubefs-cubefs's metanode package reaches for to keep an
// ordered index of named filesystem entries (metanode/btree.go) — the
// direct precedent for using it as a directory's entry set here.
type linkItem struct {
	name string
	link *Link
}

func (a linkItem) Less(than btree.Item) bool {
	return a.name < than.(linkItem).name
}

// linkSet is a Directory's entries: an ordered set of Links keyed by
// name, per spec.md §3/§4.2.
type linkSet struct {
	tree *btree.BTree
}

// btreeDegree matches the teacher's own defaultBTreeDegree in
// cubefs-cubefs/metanode/btree.go; directory fan-out in a tmpfs tree is
// comparable to a metadata-node's child count.
const btreeDegree = 32

func newLinkSet() *linkSet {
	return &linkSet{tree: btree.New(btreeDegree)}
}

func (s *linkSet) get(name string) (*Link, bool) {
	item := s.tree.Get(linkItem{name: name})
	if item == nil {
		return nil, false
	}
	return item.(linkItem).link, true
}

// insert adds link under its own name. Preconditions: no entry with that
// name exists yet (enforced by callers per spec.md §4.2's "all mutation
// methods assume an already-validated absence/presence of the name").
func (s *linkSet) insert(link *Link) {
	if s.tree.Has(linkItem{name: link.name}) {
		panic("tmpfs: directory entry already exists: " + link.name)
	}
	s.tree.ReplaceOrInsert(linkItem{name: link.name, link: link})
}

// delete removes the entry named name. Preconditions: it exists.
func (s *linkSet) delete(name string) {
	if s.tree.Delete(linkItem{name: name}) == nil {
		panic("tmpfs: directory entry does not exist: " + name)
	}
}

func (s *linkSet) len() int {
	return s.tree.Len()
}

// ascendFrom walks entries in lexicographic order starting at the first
// name strictly greater than after (or from the beginning, if after ==
// ""), calling fn for each until it returns false. This is the basis for
// DirectoryFile's cursor (spec.md §4.4): rather than holding a live
// iterator into the tree across suspension points, the cursor remembers
// only the last name it returned and re-seeks on every call, which is
// why spec.md §4.4/§9 is explicit that the design offers no stability
// guarantee under concurrent mutation of the same entry set — re-seeking
// by name sidesteps dangling iterators but can still skip or repeat
// entries renamed across the cursor's position.
func (s *linkSet) ascendFrom(after string, fn func(*Link) bool) {
	visit := func(item btree.Item) bool {
		li := item.(linkItem)
		if li.name <= after {
			return true
		}
		return fn(li.link)
	}
	if after == "" {
		s.tree.Ascend(visit)
		return
	}
	s.tree.AscendGreaterOrEqual(linkItem{name: after}, visit)
}
