// Copyright 2025 AUTHORS
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

// Package ipc implements the typed request/reply envelope and the local
// transport (Unix domain sockets, with file descriptor passing) that every
// other service in the daemon rides on top of.
package ipc

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/containervm/hostd/pkg/apierr"
)

// reserved field keys.
const (
	keyRoute = "route"
	keyError = "error"
)

// valueKind discriminates the typed union stored per field. There is no
// implicit coercion between kinds: Message.GetString on an int64 field
// returns ("", false).
type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt64
	kindUint64
	kindBytes
	kindFD
	kindFDs
	kindEndpoint
)

type value struct {
	kind     valueKind
	s        string
	b        bool
	i        int64
	u        uint64
	bytes    []byte
	fd       int
	fds      []int
	endpoint string
}

// Message is an immutable-by-convention typed envelope. Treat a Message
// handed to you by the transport as read-only except through Reply, Set*,
// and the FD accessors, which document their own mutation rules.
type Message struct {
	route string

	mu     sync.Mutex
	fields map[string]*value

	err      *apierr.Error
	isError  bool
	replied  atomic.Bool
	request  *Message // set on a reply, points back at the message it answers
	released atomic.Bool
}

// New creates an empty request message for route.
func New(route string) *Message {
	return &Message{route: route, fields: make(map[string]*value)}
}

func (m *Message) Route() string { return m.route }

// Reply creates a new message bound to m as its request. It may be called
// at most once per request message; subsequent calls fail with
// InvalidState.
func (m *Message) Reply() (*Message, error) {
	if !m.replied.CompareAndSwap(false, true) {
		return nil, apierr.InvalidStatef("message for route %q already replied to", m.route)
	}
	return &Message{route: m.route, fields: make(map[string]*value), request: m}, nil
}

// Release marks the message as no longer in scope. Borrowed views obtained
// through GetDataNoCopy must not be used after Release; it does not close
// any FDs that the caller has already taken ownership of via GetFD.
func (m *Message) Release() {
	m.released.Store(true)
}

func (m *Message) set(key string, v *value) {
	if key == keyRoute || key == keyError {
		panic("ipc: " + key + " is a reserved field key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[key] = v
}

func (m *Message) get(key string) (*value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.fields[key]
	return v, ok
}

func (m *Message) SetString(key, v string)  { m.set(key, &value{kind: kindString, s: v}) }
func (m *Message) SetBool(key string, v bool) { m.set(key, &value{kind: kindBool, b: v}) }
func (m *Message) SetInt64(key string, v int64)   { m.set(key, &value{kind: kindInt64, i: v}) }
func (m *Message) SetUint64(key string, v uint64) { m.set(key, &value{kind: kindUint64, u: v}) }
func (m *Message) SetBytes(key string, v []byte)  { m.set(key, &value{kind: kindBytes, bytes: v}) }
func (m *Message) SetEndpoint(key, name string)   { m.set(key, &value{kind: kindEndpoint, endpoint: name}) }

// SetJSON marshals v as JSON and stores it as a byte blob, the convention
// every harness adapter uses for complex payloads (container configs,
// volume labels, kernel specs, ...).
func (m *Message) SetJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return apierr.InternalErrorf("marshal %s: %v", key, err)
	}
	m.SetBytes(key, b)
	return nil
}

// SetFD transfers ownership of fd into the message: after this call the
// caller's copy is considered moved and must not be closed or used again by
// the caller. The message closes it once the frame carrying it has been
// written (ownership moves to the kernel's SCM_RIGHTS transfer). A message
// that is never written does not close it.
func (m *Message) SetFD(key string, fd int) { m.set(key, &value{kind: kindFD, fd: fd}) }

func (m *Message) SetFDs(key string, fds []int) { m.set(key, &value{kind: kindFDs, fds: fds}) }

func (m *Message) GetString(key string) (string, bool) {
	v, ok := m.get(key)
	if !ok || v.kind != kindString {
		return "", false
	}
	return v.s, true
}

func (m *Message) GetBool(key string) bool {
	v, ok := m.get(key)
	if !ok || v.kind != kindBool {
		return false
	}
	return v.b
}

// GetInt64 returns 0 if the key is absent; callers must treat numeric keys
// as optional, per the message envelope's invariants.
func (m *Message) GetInt64(key string) int64 {
	v, ok := m.get(key)
	if !ok || v.kind != kindInt64 {
		return 0
	}
	return v.i
}

func (m *Message) GetUint64(key string) uint64 {
	v, ok := m.get(key)
	if !ok || v.kind != kindUint64 {
		return 0
	}
	return v.u
}

// GetDataNoCopy returns a borrowed view of a byte field valid only until
// Release is called on the message. Callers that need to retain the data
// past the message's lifetime must use GetData instead.
func (m *Message) GetDataNoCopy(key string) ([]byte, bool) {
	v, ok := m.get(key)
	if !ok || v.kind != kindBytes {
		return nil, false
	}
	return v.bytes, true
}

// GetData returns an owned copy of a byte field.
func (m *Message) GetData(key string) ([]byte, bool) {
	b, ok := m.GetDataNoCopy(key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// GetJSON decodes a byte field set with SetJSON into out.
func (m *Message) GetJSON(key string, out any) error {
	b, ok := m.GetDataNoCopy(key)
	if !ok {
		return apierr.InvalidArgumentf("missing required field %q", key)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return apierr.InvalidArgumentf("decode %s: %v", key, err)
	}
	return nil
}

func (m *Message) GetEndpoint(key string) (string, bool) {
	v, ok := m.get(key)
	if !ok || v.kind != kindEndpoint {
		return "", false
	}
	return v.endpoint, true
}

// GetFD returns a fresh duplicate of the descriptor stored under key. The
// caller owns the duplicate and must close it; the message retains its own
// copy until it is discarded.
func (m *Message) GetFD(key string) (int, bool) {
	v, ok := m.get(key)
	if !ok || v.kind != kindFD {
		return -1, false
	}
	dup, err := unix.Dup(v.fd)
	if err != nil {
		return -1, false
	}
	return dup, true
}

func (m *Message) GetFDs(key string) ([]int, bool) {
	v, ok := m.get(key)
	if !ok || v.kind != kindFDs {
		return nil, false
	}
	out := make([]int, 0, len(v.fds))
	for _, fd := range v.fds {
		dup, err := unix.Dup(fd)
		if err != nil {
			for _, d := range out {
				unix.Close(d)
			}
			return nil, false
		}
		out = append(out, dup)
	}
	return out, true
}

// fds returns the raw (non-duplicated) descriptors carried by the message,
// for the transport layer's SCM_RIGHTS encoding. Ownership stays with the
// message until the frame is written.
func (m *Message) fds() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, v := range m.fields {
		switch v.kind {
		case kindFD:
			out = append(out, v.fd)
		case kindFDs:
			out = append(out, v.fds...)
		}
	}
	return out
}

// closeOwnedFDs closes every fd the message still owns. It is called once
// the frame carrying them has been written (ownership moved to the
// kernel); nothing calls it for a message that is never sent.
func (m *Message) closeOwnedFDs() {
	for _, fd := range m.fds() {
		unix.Close(fd)
	}
}

// Error decodes the reserved error field, if present, and returns it. A
// Message with no error field returns nil.
func (m *Message) Error() error {
	if !m.isError || m.err == nil {
		return nil
	}
	return m.err
}

// IsError reports whether the reserved error slot is set.
func (m *Message) IsError() bool { return m.isError }

// SetError encodes err into the reserved error slot.
func (m *Message) SetError(err error) {
	m.err = apierr.From(err)
	m.isError = true
}
