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

// Package tmpfs implements the core of an in-memory filesystem: the
// node/link graph, the open-file handles, and the memory-backed regular
// file described in spec.md. It is grounded on
// gvisor.dev/gvisor/pkg/sentry/fsimpl/tmpfs, adapted from that teacher's
// VFS2/Dentry model to the simpler Node/Link graph that
// original_source/posix/subsystem/src/tmp_fs.cpp (the system this spec was
// distilled from) actually uses.
package tmpfs

import (
	"fmt"
)

// Type is the kind of filesystem object a Node represents, per spec.md
// §3's five concrete variants plus Socket and Fifo.
type Type int

const (
	TypeRegular Type = iota
	TypeDirectory
	TypeSymlink
	TypeCharDevice
	TypeBlockDevice
	TypeSocket
	TypeFifo
)

func (t Type) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	case TypeCharDevice:
		return "char"
	case TypeBlockDevice:
		return "block"
	case TypeSocket:
		return "socket"
	case TypeFifo:
		return "fifo"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Stat is the subset of node metadata the VFS-facing contract (spec.md §6)
// requires this core to expose: at least the inode number, and for
// regular files, the current logical size.
type Stat struct {
	InodeNumber uint64
	Type        Type
	FileSize    uint64 // meaningful only for TypeRegular
}

// Node is the abstract filesystem object spec.md §3 describes: it has no
// intrinsic name (names live on Links), just an inode number, a type, and
// a superblock it belongs to.
//
// A node refers to its Superblock through a plain Go pointer, although
// spec.md calls this a "weak reference"; this is harmless since the
// superblock always outlives every node it allocated an inode for.
type Node interface {
	// Type returns this node's concrete kind.
	Type() Type
	// Inode returns the node's unique-within-superblock inode number.
	Inode() uint64
	// Stat returns the node's metadata.
	Stat() Stat
	// superblock returns the owning Superblock, for operations (like
	// Directory.Mkdir) that need to allocate further nodes.
	superblock() *Superblock
}

// nodeInfo is embedded by every concrete node type and implements the
// common parts of Node, following the teacher's inode.init() pattern in
// fsimpl/tmpfs (a shared base struct that every concrete inode type
// embeds instead of reimplementing bookkeeping).
type nodeInfo struct {
	sb    *Superblock
	ino   uint64
	typ   Type
	flags NodeFlags
}

// NodeFlags carries optional feature flags, per spec.md §3 ("optional
// feature flags (e.g., supports-observers for directories)").
type NodeFlags struct {
	SupportsObservers bool
}

func (n *nodeInfo) Inode() uint64        { return n.ino }
func (n *nodeInfo) Type() Type           { return n.typ }
func (n *nodeInfo) superblock() *Superblock { return n.sb }

func (n *nodeInfo) init(sb *Superblock, typ Type, flags NodeFlags) {
	n.sb = sb
	n.ino = sb.allocateInode()
	n.typ = typ
	n.flags = flags
}
