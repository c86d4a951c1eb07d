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

// Package ipc provides the hand-off point between an open tmpfs handle and
// the external "file-protocol server" that spec.md §1/§6 places out of
// scope: the core only needs to create a lane pair, keep the client-facing
// side, and run a cooperative task against the server-facing side until the
// handle is closed or the task is cancelled (spec.md §4.7, §5).
//
// The wire format itself is an external concern (the generic
// passthrough/file-protocol server in spec.md's terms). What lives here is
// the lifecycle glue: lane pairing, request dispatch onto a FileOps, and
// cancellation.
package ipc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Op identifies a request dispatched over a Lane.
type Op int

const (
	OpSeek Op = iota
	OpReadSome
	OpWriteAll
	OpTruncate
	OpAllocate
	OpAccessMemory
	OpReadEntries
)

func (o Op) String() string {
	switch o {
	case OpSeek:
		return "seek"
	case OpReadSome:
		return "read_some"
	case OpWriteAll:
		return "write_all"
	case OpTruncate:
		return "truncate"
	case OpAllocate:
		return "allocate"
	case OpAccessMemory:
		return "access_memory"
	case OpReadEntries:
		return "read_entries"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Request is one message sent down a Lane by a client of the passthrough
// protocol. Args/Reply are left as interface{} because the wire encoding
// of the external file-protocol server is out of scope; FileOps
// implementations agree on concrete types per Op.
type Request struct {
	Op   Op
	Args any

	reply chan Reply
}

// Reply carries the result of dispatching a Request to a FileOps.
type Reply struct {
	Value any
	Err   error
}

// FileOps is implemented by the open-handle types (RegularFile,
// DirectoryFile) that a serve loop dispatches requests into.
type FileOps interface {
	Dispatch(ctx context.Context, op Op, args any) (any, error)
}

// Lane is one side of an IPC lane pair: the client-facing endpoint used to
// issue requests, or the server-facing endpoint a serve loop reads from.
// It is the Go realization of spec.md's "passthrough lane."
type Lane struct {
	id  uuid.UUID
	ch  chan *Request
	out chan<- *Request
}

// NewLanePair creates a connected pair of lanes, mirroring the teacher's
// pattern of handing the server-facing half to a detached serve task and
// the client-facing half back to the caller of open().
func NewLanePair() (client, server *Lane) {
	ch := make(chan *Request)
	id := uuid.New()
	client = &Lane{id: id, out: ch}
	server = &Lane{id: id, ch: ch}
	return client, server
}

// ID returns the correlation ID shared by both halves of a lane pair, used
// to tie serve-loop log lines to the handle that owns them.
func (l *Lane) ID() uuid.UUID { return l.id }

// Call sends a request down the client-facing lane and blocks for the
// reply, or until ctx is done.
func (l *Lane) Call(ctx context.Context, op Op, args any) (any, error) {
	req := &Request{Op: op, Args: args, reply: make(chan Reply, 1)}
	select {
	case l.out <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.Value, rep.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve runs the cooperative dispatch loop described in spec.md §4.7: pull
// the next request off the server-facing lane, dispatch it into ops, and
// reply, until ctx is cancelled (the handle was closed). Cancellation is
// the only way the loop ends. Serve is meant to be run in its own goroutine, detached from its
// caller, exactly as the teacher's passthrough server tasks are spawned
// with async::detach.
func Serve(ctx context.Context, lane *Lane, ops FileOps) {
	log := logrus.WithField("lane", lane.id)
	log.Debug("serve loop started")
	defer log.Debug("serve loop exited")
	for {
		select {
		case req := <-lane.ch:
			value, err := ops.Dispatch(ctx, req.Op, req.Args)
			req.reply <- Reply{Value: value, Err: err}
		case <-ctx.Done():
			return
		}
	}
}
