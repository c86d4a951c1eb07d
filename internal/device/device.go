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

// Package device models the external device-open dispatch collaborator
// that spec.md §1/§6 places out of scope ("Character/block device open
// dispatch (openDevice)... external collaborators"). The tmpfs core only
// needs something to hand a (kind, id, flags) tuple to; what answers it is
// not this filesystem's concern.
package device

import (
	"context"
	"fmt"
)

// Kind distinguishes character from block devices, per spec.md §3's
// Device node.
type Kind int

const (
	Char Kind = iota
	Block
)

func (k Kind) String() string {
	if k == Block {
		return "block"
	}
	return "char"
}

// ID is a (major, minor) device number pair.
type ID struct {
	Major, Minor uint32
}

// OpenFlags mirrors the semantic flags subset spec.md's GLOSSARY defines
// for opens (Read, Write; NonBlock is regular-file-only and not passed
// here).
type OpenFlags struct {
	Read, Write bool
}

// Handle is whatever the external device-open dispatcher hands back; the
// tmpfs core never looks inside it.
type Handle any

// Opener is implemented by the external device subsystem. A tmpfs
// DeviceNode.Open delegates to one, exactly as
// tmp_fs.cpp's DeviceNode::open delegates to openDevice().
type Opener interface {
	Open(ctx context.Context, kind Kind, id ID, flags OpenFlags) (Handle, error)
}

// NoOpener is the default Opener: no device subsystem is wired into this
// module, so opening a device node is a contract violation by the caller
// (there was never a driver registered to answer it), matching spec.md
// §7's "contract violation... indicates a VFS-layer bug."
type NoOpener struct{}

func (NoOpener) Open(context.Context, Kind, ID, OpenFlags) (Handle, error) {
	panic(fmt.Sprintf("device: no device opener registered; device nodes are an external collaborator surface"))
}
