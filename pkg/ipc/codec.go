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

package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"

	"github.com/containervm/hostd/pkg/apierr"
)

// maxFDsPerFrame bounds the ancillary-data buffer allocated per read; the
// daemon never hands more descriptors than this across one message.
const maxFDsPerFrame = 32

// wireField is the on-the-wire shape of a single typed field. FD/FDs
// reference descriptors carried as SCM_RIGHTS ancillary data alongside the
// frame, indexed into the order they were appended in.
type wireField struct {
	Type     string `json:"t"`
	String   string `json:"s,omitempty"`
	Bool     bool   `json:"b,omitempty"`
	Int64    int64  `json:"i,omitempty"`
	Uint64   uint64 `json:"u,omitempty"`
	Bytes    []byte `json:"d,omitempty"`
	Endpoint string `json:"e,omitempty"`
	FDIndex  int    `json:"fd,omitempty"`
	FDCount  int    `json:"fdn,omitempty"`
}

type wireMessage struct {
	ReqID   uint64               `json:"id"`
	Route   string               `json:"route,omitempty"`
	Error   *apierr.Error        `json:"error,omitempty"`
	IsError bool                 `json:"isError,omitempty"`
	Fields  map[string]wireField `json:"fields,omitempty"`
}

// encode serializes m for the wire. id is the transport-level correlation
// number used to match a reply to its request on a shared connection; it is
// not part of the Message envelope and is never visible through Message's
// Get*/Set* accessors.
func encode(m *Message, id uint64) (payload []byte, fds []int, err error) {
	wm := wireMessage{ReqID: id, Route: m.route, Error: m.err, IsError: m.isError, Fields: map[string]wireField{}}

	m.mu.Lock()
	for k, v := range m.fields {
		switch v.kind {
		case kindString:
			wm.Fields[k] = wireField{Type: "s", String: v.s}
		case kindBool:
			wm.Fields[k] = wireField{Type: "b", Bool: v.b}
		case kindInt64:
			wm.Fields[k] = wireField{Type: "i", Int64: v.i}
		case kindUint64:
			wm.Fields[k] = wireField{Type: "u", Uint64: v.u}
		case kindBytes:
			wm.Fields[k] = wireField{Type: "d", Bytes: v.bytes}
		case kindEndpoint:
			wm.Fields[k] = wireField{Type: "e", Endpoint: v.endpoint}
		case kindFD:
			wm.Fields[k] = wireField{Type: "fd", FDIndex: len(fds)}
			fds = append(fds, v.fd)
		case kindFDs:
			wm.Fields[k] = wireField{Type: "fds", FDIndex: len(fds), FDCount: len(v.fds)}
			fds = append(fds, v.fds...)
		}
	}
	m.mu.Unlock()

	payload, err = json.Marshal(wm)
	if err != nil {
		return nil, nil, fmt.Errorf("ipc: encode message: %w", err)
	}
	return payload, fds, nil
}

func decode(payload []byte, fds []int) (*Message, uint64, error) {
	var wm wireMessage
	if err := json.Unmarshal(payload, &wm); err != nil {
		return nil, 0, fmt.Errorf("ipc: decode message: %w", err)
	}
	m := &Message{route: wm.Route, fields: make(map[string]*value), err: wm.Error, isError: wm.IsError}
	for k, wf := range wm.Fields {
		switch wf.Type {
		case "s":
			m.fields[k] = &value{kind: kindString, s: wf.String}
		case "b":
			m.fields[k] = &value{kind: kindBool, b: wf.Bool}
		case "i":
			m.fields[k] = &value{kind: kindInt64, i: wf.Int64}
		case "u":
			m.fields[k] = &value{kind: kindUint64, u: wf.Uint64}
		case "d":
			m.fields[k] = &value{kind: kindBytes, bytes: wf.Bytes}
		case "e":
			m.fields[k] = &value{kind: kindEndpoint, endpoint: wf.Endpoint}
		case "fd":
			if wf.FDIndex >= len(fds) {
				return nil, 0, fmt.Errorf("ipc: field %q references missing fd", k)
			}
			m.fields[k] = &value{kind: kindFD, fd: fds[wf.FDIndex]}
		case "fds":
			if wf.FDIndex+wf.FDCount > len(fds) {
				return nil, 0, fmt.Errorf("ipc: field %q references missing fds", k)
			}
			m.fields[k] = &value{kind: kindFDs, fds: append([]int(nil), fds[wf.FDIndex:wf.FDIndex+wf.FDCount]...)}
		default:
			return nil, 0, fmt.Errorf("ipc: field %q has unknown wire type %q", k, wf.Type)
		}
	}
	return m, wm.ReqID, nil
}

// writeFrame writes one length-prefixed frame, passing fds as SCM_RIGHTS
// ancillary data on the payload write. The length prefix and the payload
// are two separate writes on the underlying stream socket. A payload with
// fds is sent in a single WriteMsgUnix call so the kernel attaches the
// ancillary data to it atomically; a payload without fds is a plain Write.
func writeFrame(conn *net.UnixConn, payload []byte, fds []int) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("ipc: write frame length: %w", err)
	}
	if len(fds) == 0 {
		_, err := conn.Write(payload)
		if err != nil {
			return fmt.Errorf("ipc: write frame payload: %w", err)
		}
		return nil
	}
	oob := unix.UnixRights(fds...)
	n, oobn, err := conn.WriteMsgUnix(payload, oob, nil)
	if err != nil {
		return fmt.Errorf("ipc: write frame payload with fds: %w", err)
	}
	if n != len(payload) || oobn != len(oob) {
		return fmt.Errorf("ipc: short write sending fds")
	}
	return nil
}

// readFrame reads one length-prefixed frame, collecting any SCM_RIGHTS
// ancillary data attached to its payload. This assumes the sender attached
// any fds to a single payload write (writeFrame's contract); the common
// case where a frame is delivered in a single ReadMsgUnix call is handled
// exactly, larger frames are reassembled across reads and still recover
// any fds attached to the first chunk.
func readFrame(conn *net.UnixConn) (payload []byte, fds []int, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload = make([]byte, n)
	oob := make([]byte, unix.CmsgSpace(maxFDsPerFrame*4))

	var got uint32
	for got < n {
		rn, oobn, _, _, rerr := conn.ReadMsgUnix(payload[got:], oob)
		if rerr != nil {
			return nil, nil, rerr
		}
		if oobn > 0 {
			scms, perr := unix.ParseSocketControlMessage(oob[:oobn])
			if perr == nil {
				for _, scm := range scms {
					gotFDs, ferr := unix.ParseUnixRights(&scm)
					if ferr == nil {
						fds = append(fds, gotFDs...)
					}
				}
			}
		}
		got += uint32(rn)
	}
	return payload, fds, nil
}
