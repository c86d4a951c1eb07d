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

// Package fifochan models the external named-channel (FIFO) collaborator
// from spec.md §1/§6 ("FIFO channel creation (openNamedChannel)... external
// collaborators"). A tmpfs Fifo node registers an endpoint with a Registry
// at construction and unregisters it when its Release method is called,
// after original_source/posix/subsystem/src/tmp_fs.cpp's FifoNode
// ctor/dtor; the
// registry itself — and what opening a channel actually connects to — is
// owned outside this filesystem.
package fifochan

import (
	"context"
	"sync"
)

// Endpoint identifies the node that registered a named channel; the tmpfs
// core passes itself (by inode number) so the registry can correlate
// registrations without importing the tmpfs package.
type Endpoint any

// Handle is whatever opening a named channel hands back.
type Handle any

// OpenFlags mirrors spec.md's semantic-flags subset for opens.
type OpenFlags struct {
	Read, Write, NonBlock bool
}

// Registry is implemented by the external FIFO subsystem.
type Registry interface {
	Register(endpoint Endpoint)
	Unregister(endpoint Endpoint)
	Open(ctx context.Context, endpoint Endpoint, flags OpenFlags) (Handle, error)
}

// LocalRegistry is a minimal in-process Registry good enough to make Fifo
// nodes testable without a real channel transport wired in: Open returns
// the endpoint itself if it is currently registered and panics otherwise.
// A real deployment
// replaces this with the platform's named-pipe subsystem.
type LocalRegistry struct {
	mu        sync.Mutex
	endpoints map[Endpoint]struct{}
}

// NewLocalRegistry returns an empty LocalRegistry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{endpoints: make(map[Endpoint]struct{})}
}

func (r *LocalRegistry) Register(endpoint Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[endpoint] = struct{}{}
}

func (r *LocalRegistry) Unregister(endpoint Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, endpoint)
}

func (r *LocalRegistry) Open(_ context.Context, endpoint Endpoint, _ OpenFlags) (Handle, error) {
	r.mu.Lock()
	_, ok := r.endpoints[endpoint]
	r.mu.Unlock()
	if !ok {
		panic("fifochan: open on an unregistered endpoint")
	}
	return endpoint, nil
}
