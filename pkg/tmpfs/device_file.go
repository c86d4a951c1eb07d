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

	"github.com/tmpfscore/tmpfs/internal/device"
	"github.com/tmpfscore/tmpfs/internal/fifochan"
)

// DeviceNode is the Device node of spec.md §3: immutable; Open delegates
// to the external device collaborator (spec.md §4.2/§6), exactly as
// original_source/posix/subsystem/src/tmp_fs.cpp's DeviceNode::open
// delegates to openDevice().
type DeviceNode struct {
	nodeInfo
	kind   device.Kind
	id     device.ID
	opener device.Opener
}

// Stat implements Node.
func (n *DeviceNode) Stat() Stat {
	return Stat{InodeNumber: n.ino, Type: n.typ}
}

// Kind returns whether this is a character or block device.
func (n *DeviceNode) Kind() device.Kind { return n.kind }

// DeviceID returns the (major, minor) device number pair.
func (n *DeviceNode) DeviceID() device.ID { return n.id }

// Open delegates to the external device-open dispatcher. flags must be a
// subset of {Read, Write}.
func (n *DeviceNode) Open(ctx context.Context, flags OpenFlags) (device.Handle, error) {
	opener := n.opener
	if opener == nil {
		opener = device.NoOpener{}
	}
	return opener.Open(ctx, n.kind, n.id, device.OpenFlags{Read: flags.Read, Write: flags.Write})
}

// SocketNode is the Socket node of spec.md §3. It carries no additional
// state at this layer — bind(2)-style endpoint wiring is out of scope
// per spec.md's Non-goals.
type SocketNode struct {
	nodeInfo
}

// Stat implements Node.
func (n *SocketNode) Stat() Stat {
	return Stat{InodeNumber: n.ino, Type: TypeSocket}
}

// FifoNode is the Fifo node of spec.md §3: on creation it registers a
// named-channel endpoint with the external FIFO collaborator; it is
// unregistered only when Release is called, the counterpart of
// original_source/posix/subsystem/src/tmp_fs.cpp's FifoNode ctor/dtor.
type FifoNode struct {
	nodeInfo
	mode     uint32
	registry fifochan.Registry
}

// Mode returns the fifo's file-mode bits.
func (n *FifoNode) Mode() uint32 { return n.mode }

// Stat implements Node.
func (n *FifoNode) Stat() Stat {
	return Stat{InodeNumber: n.ino, Type: TypeFifo}
}

// Release unregisters this fifo's named-channel endpoint. The core has
// no destructor hook (spec.md's Non-goals exclude lifetime tracking
// beyond what Go's GC already gives us); callers that know a FifoNode
// has become unreachable should call Release explicitly, mirroring the
// teacher's ~FifoNode() -> fifo::unlinkNamedChannel(this).
func (n *FifoNode) Release() {
	if n.registry != nil {
		n.registry.Unregister(n.ino)
	}
}
