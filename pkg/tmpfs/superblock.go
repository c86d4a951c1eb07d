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
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gvisor.dev/gvisor/pkg/errors/linuxerr"

	"github.com/tmpfscore/tmpfs/internal/device"
	"github.com/tmpfscore/tmpfs/internal/fifochan"
)

// Options carries mount-time configuration for a Superblock. The core
// layer takes no CLI flags or environment variables (spec.md §6); this
// struct is the programmatic equivalent.
type Options struct {
	// DirectoriesSupportObservers controls whether newly created
	// directories accept unlink observers (spec.md §3's
	// "supports-observers for directories" flag).
	DirectoriesSupportObservers bool

	// DeviceOpener answers DeviceNode.Open calls (spec.md §6's
	// "external device open dispatch"). Nil means no device subsystem is
	// wired in; opening a device node then panics as a contract
	// violation, since nothing registered to answer it.
	DeviceOpener device.Opener

	// FifoRegistry answers Fifo node registration/open (spec.md §6's
	// "external FIFO" collaborator). Nil means Fifo nodes are created
	// but never registered anywhere.
	FifoRegistry fifochan.Registry
}

// DefaultOptions matches the teacher's behavior: directories support
// delete observers (fsimpl/tmpfs registers FsObserver-style notifications
// on every directory).
func DefaultOptions() Options {
	return Options{DirectoriesSupportObservers: true}
}

// Superblock is the filesystem-wide service described in spec.md §3/§4.5:
// inode allocation, the Regular/Socket node factories, and the
// cross-directory rename primitive. Per spec.md §9's design note, a
// proper redesign scopes one Superblock per mount rather than using a
// single process-wide instance; this type is that redesign — callers
// construct one Superblock per mount via NewSuperblock.
type Superblock struct {
	opts Options

	// inodeCounter is the next inode number to hand out. Starts at 1 and
	// is only ever incremented, per spec.md §4.1.
	inodeCounter atomic.Uint64
}

// NewSuperblock constructs a fresh, empty Superblock. Per spec.md §3,
// its lifetime runs from mount to unmount and outlives every node it
// owns.
func NewSuperblock(opts Options) *Superblock {
	sb := &Superblock{opts: opts}
	sb.inodeCounter.Store(1)
	return sb
}

// allocateInode implements spec.md §4.1: returns the current counter
// value and increments it. Never returns zero.
func (sb *Superblock) allocateInode() uint64 {
	return sb.inodeCounter.Add(1) - 1
}

// CreateRegular implements spec.md §4.5: constructs a fresh Regular node
// with file_size=0, area_size=0.
func (sb *Superblock) CreateRegular() *RegularNode {
	n := &RegularNode{}
	n.init(sb, TypeRegular, NodeFlags{})
	return n
}

// CreateSocket implements spec.md §4.5: constructs a fresh Socket node.
func (sb *Superblock) CreateSocket() *SocketNode {
	n := &SocketNode{}
	n.init(sb, TypeSocket, NodeFlags{})
	return n
}

// CreateRoot implements spec.md §4.6: creates a fresh Directory node and
// wraps it in a nameless, ownerless Link stored as that directory's
// tree_link.
func (sb *Superblock) CreateRoot() *Link {
	dir := &DirectoryNode{
		entries:      newLinkSet(),
		deviceOpener: sb.opts.DeviceOpener,
		fifoRegistry: sb.opts.FifoRegistry,
	}
	dir.init(sb, TypeDirectory, NodeFlags{SupportsObservers: sb.opts.DirectoriesSupportObservers})
	root := &Link{target: dir}
	dir.treeLink = root
	return root
}

// Rename implements spec.md §4.5's rename contract:
//
//  1. Locate the source directory via src.owner.
//  2. Find the source entry by name in that directory's entry set; assert
//     it refers to src.
//  3. If destDir already contains a link named destName, remove it first
//     (no delete notification — the existing-destination removal is
//     unconditional and silent, unlike Unlink).
//  4. Construct a new Link with owner=destDir, name=destName,
//     target=src.target.
//  5. Remove the source link, insert the new one.
//  6. Return the new link.
func (sb *Superblock) Rename(src *Link, destDir *DirectoryNode, destName string) *Link {
	if src.owner == nil {
		panic("tmpfs: Rename: src is the root link, which has no owner")
	}
	srcDir := src.owner

	found, ok := srcDir.entries.get(src.name)
	if !ok || found != src {
		panic("tmpfs: Rename: src is not present in its owner's entry set")
	}

	if existing, ok := destDir.entries.get(destName); ok {
		destDir.entries.delete(destName)
		logrus.WithFields(logrus.Fields{
			"dir":  destDir.Inode(),
			"name": destName,
			"ino":  existing.target.Inode(),
		}).Debug("rename: silently replaced existing destination")
	}

	newLink := &Link{owner: destDir, name: destName, target: src.target}
	srcDir.entries.delete(src.name)
	destDir.entries.insert(newLink)

	logrus.WithFields(logrus.Fields{
		"from": src.name,
		"to":   destName,
		"ino":  newLink.target.Inode(),
	}).Debug("rename")
	return newLink
}

// errAlreadyExists is the recoverable error spec.md §7 calls out: "Mkdir
// surfaces an already-exists variant to accommodate races the VFS layer
// may not filter." It is linuxerr.EEXIST, the teacher's own error value
// for this condition.
var errAlreadyExists = linuxerr.EEXIST
