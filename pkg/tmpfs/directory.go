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

	"golang.org/x/sync/errgroup"

	"github.com/tmpfscore/tmpfs/internal/device"
	"github.com/tmpfscore/tmpfs/internal/fifochan"
	"github.com/tmpfscore/tmpfs/internal/ipc"
)

// OpenFlags is the subset of POSIX-like open modes spec.md's GLOSSARY
// recognizes at this layer.
type OpenFlags struct {
	Read, Write, NonBlock bool
}

// Observer receives directory change notifications, per spec.md §3's
// "supports-observers" flag and §4.2's "emits a delete notification to
// observers."
type Observer interface {
	OnDelete(name string, cookie uint64)
}

// DirectoryNode is the Directory node of spec.md §3: it owns an ordered
// set of Links keyed by name, and holds the Link through which it is
// itself reachable from its parent (tree_link).
type DirectoryNode struct {
	nodeInfo

	// treeLink is the Link that names this directory in its parent; for
	// the root, it is that directory's own nameless root link. This is
	// the deliberate Directory<->tree_link cycle spec.md §9 calls out —
	// in Go it needs no special handling, since the garbage collector
	// reclaims reference cycles that nothing outside them still points
	// to; see DESIGN.md.
	treeLink *Link

	entries   *linkSet
	observers []Observer

	deviceOpener device.Opener
	fifoRegistry fifochan.Registry
}

// TreeLink returns the Link through which this directory is reached from
// its parent (or, for the root, its own nameless link).
func (d *DirectoryNode) TreeLink() *Link { return d.treeLink }

// Stat implements Node.
func (d *DirectoryNode) Stat() Stat {
	return Stat{InodeNumber: d.ino, Type: TypeDirectory}
}

// AddObserver registers an observer for this directory's delete
// notifications. A no-op if the directory was not created with
// SupportsObservers.
func (d *DirectoryNode) AddObserver(o Observer) {
	if !d.flags.SupportsObservers {
		return
	}
	d.observers = append(d.observers, o)
}

// GetLink implements spec.md §4.2: returns the link with matching name,
// else (nil, false). No error path.
func (d *DirectoryNode) GetLink(name string) (*Link, bool) {
	return d.entries.get(name)
}

// Link implements spec.md §4.2: creates a new Link owned by this
// directory targeting target, inserts it, and returns it.
//
// Precondition: no entry named name exists yet. Violating this is a
// contract bug (spec.md §7), not a recoverable error.
func (d *DirectoryNode) Link(name string, target Node) *Link {
	link := &Link{owner: d, name: name, target: target}
	d.entries.insert(link)
	return link
}

// Mkdir implements spec.md §4.2: creates a new Directory node with a
// fresh inode, links it under name, and sets the new directory's
// tree_link to that link. Returns errAlreadyExists if name is already
// taken — the one mutation spec.md §7 widens to a recoverable error "to
// accommodate races the VFS layer may not filter."
func (d *DirectoryNode) Mkdir(name string) (*Link, error) {
	if _, ok := d.entries.get(name); ok {
		return nil, errAlreadyExists
	}
	child := &DirectoryNode{entries: newLinkSet(), deviceOpener: d.deviceOpener, fifoRegistry: d.fifoRegistry}
	child.init(d.sb, TypeDirectory, NodeFlags{SupportsObservers: d.flags.SupportsObservers})
	link := &Link{owner: d, name: name, target: child}
	child.treeLink = link
	d.entries.insert(link)
	return link, nil
}

// Symlink implements spec.md §4.2: creates a Symlink node with
// link_text=path and links it under name.
func (d *DirectoryNode) Symlink(name, path string) *Link {
	n := &SymlinkNode{target: path}
	n.init(d.sb, TypeSymlink, NodeFlags{})
	return d.Link(name, n)
}

// Mkdev implements spec.md §4.2: creates a Device node and links it
// under name. kind must be char or block.
func (d *DirectoryNode) Mkdev(name string, kind device.Kind, id device.ID) *Link {
	if kind != device.Char && kind != device.Block {
		panic(fmt.Sprintf("tmpfs: Mkdev: invalid device kind %v", kind))
	}
	n := &DeviceNode{kind: kind, id: id, opener: d.deviceOpener}
	typ := TypeCharDevice
	if kind == device.Block {
		typ = TypeBlockDevice
	}
	n.init(d.sb, typ, NodeFlags{})
	return d.Link(name, n)
}

// Mkfifo implements spec.md §4.2: creates a Fifo node (which registers an
// external channel) and links it under name.
func (d *DirectoryNode) Mkfifo(name string, mode uint32) *Link {
	n := &FifoNode{mode: mode, registry: d.fifoRegistry}
	n.init(d.sb, TypeFifo, NodeFlags{})
	if n.registry != nil {
		n.registry.Register(n.ino)
	}
	return d.Link(name, n)
}

// Unlink implements spec.md §4.2: removes the entry named name and emits
// a delete notification to every registered observer. Precondition: the
// entry exists.
func (d *DirectoryNode) Unlink(ctx context.Context, name string) {
	if _, ok := d.entries.get(name); !ok {
		panic("tmpfs: Unlink: no such entry: " + name)
	}
	d.entries.delete(name)
	d.notifyDelete(ctx, name)
}

// notifyDelete fans the delete event out to every observer concurrently,
// using golang.org/x/sync/errgroup the way the teacher's go.mod pulls it
// in: a bounded group of goroutines joined with a single Wait, rather than
// a hand-rolled sync.WaitGroup plus error channel.
func (d *DirectoryNode) notifyDelete(ctx context.Context, name string) {
	if len(d.observers) == 0 {
		return
	}
	g, _ := errgroup.WithContext(ctx)
	for _, obs := range d.observers {
		obs := obs
		g.Go(func() error {
			obs.OnDelete(name, 0)
			return nil
		})
	}
	_ = g.Wait()
}

// Open implements spec.md §4.2: allocates a DirectoryFile bound to this
// directory's entries, creates a new IPC lane pair, spawns the serve
// task, and returns the handle (whose Lane method exposes the
// client-facing side).
//
// Precondition: flags is a subset of {Read, Write}; anything else (e.g.
// NonBlock, which is meaningless for a directory) is a contract
// violation, per spec.md §4.2.
func (d *DirectoryNode) Open(ctx context.Context, link *Link, flags OpenFlags) *DirectoryFile {
	if flags.NonBlock {
		panic("tmpfs: Directory.Open: NonBlock is not a valid directory open flag")
	}
	df := &DirectoryFile{link: link, directory: d}
	client, server := ipc.NewLanePair()
	df.lane = client
	serveCtx, cancel := context.WithCancel(ctx)
	df.cancel = cancel
	go ipc.Serve(serveCtx, server, df)
	return df
}
