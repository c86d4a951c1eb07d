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

// SymlinkNode is the Symlink node of spec.md §3: immutable after
// construction.
type SymlinkNode struct {
	nodeInfo
	target string // link_text; immutable
}

// Target returns the symlink's link_text.
func (n *SymlinkNode) Target() string { return n.target }

// Stat implements Node.
func (n *SymlinkNode) Stat() Stat {
	return Stat{InodeNumber: n.ino, Type: TypeSymlink}
}
