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
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tailscale.com/syncs"

	"github.com/containervm/hostd/pkg/apierr"
)

// Handler answers one request Message with a reply Message, or an error
// which the server encodes into the reply's error slot.
type Handler func(ctx context.Context, req *Message) (*Message, error)

// Server binds a listening endpoint identified by a service name and
// dispatches inbound messages to a static routing table.
type Server struct {
	name   string
	routes map[string]Handler
	log    *logrus.Entry

	mu       sync.Mutex
	listener *net.UnixListener
	wg       syncs.WaitGroup
	cancel   context.CancelFunc
}

// NewServer constructs a server for name with the given route table. The
// table is immutable after construction.
func NewServer(name string, routes map[string]Handler) *Server {
	return &Server{
		name:   name,
		routes: routes,
		log:    logrus.WithField("component", "ipc.server").WithField("endpoint", name),
	}
}

// ListenAndServe binds socketPath and serves until ctx is canceled or Close
// is called. It blocks until shutdown completes: outstanding connection and
// message tasks are canceled and awaited before the listener socket itself
// is torn down.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	_ = os.Remove(socketPath)
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return apierr.InternalErrorf("resolve socket path %s: %v", socketPath, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return apierr.InternalErrorf("listen on %s: %v", socketPath, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Go(func() {
		<-ctx.Done()
		// Wake the blocked accept; the listener is closed after the
		// connection tasks have drained.
		ln.SetDeadline(time.Now())
	})

	s.log.WithField("socket", socketPath).Info("listening")
	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				ln.Close()
				return nil
			default:
				return apierr.InternalErrorf("accept on %s: %v", socketPath, err)
			}
		}
		s.wg.Go(func() {
			s.serveConn(ctx, conn)
		})
	}
}

// Close stops the server; ListenAndServe returns once in-flight work has
// drained.
func (s *Server) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Server) serveConn(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()
	// Closing the connection on cancellation unblocks readFrame.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var writeMu sync.Mutex
	var connWG syncs.WaitGroup

	for {
		payload, fds, err := readFrame(conn)
		if err != nil {
			break
		}
		req, id, err := decode(payload, fds)
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed frame")
			continue
		}

		handler, ok := s.routes[req.route]
		if !ok {
			s.log.WithField("route", req.route).Warn("unknown route, dropping message")
			continue
		}

		connWG.Go(func() {
			reply := s.dispatch(ctx, req, handler)
			rp, rfds, err := encode(reply, id)
			if err != nil {
				s.log.WithError(err).Error("encode reply")
				return
			}
			writeMu.Lock()
			werr := writeFrame(conn, rp, rfds)
			writeMu.Unlock()
			reply.closeOwnedFDs()
			if werr != nil {
				s.log.WithError(werr).Warn("write reply")
			}
		})
	}
	connWG.Wait()
}

// dispatch invokes handler and always produces a reply message: handler
// errors that are already structured are encoded as-is, anything else
// becomes Unknown with the failure stringified.
func (s *Server) dispatch(ctx context.Context, req *Message, handler Handler) *Message {
	reply, err := func() (reply *Message, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apierr.Unknownf("handler panicked: %v", r)
			}
		}()
		return handler(ctx, req)
	}()

	if err != nil {
		r, rerr := req.Reply()
		if rerr != nil {
			// The handler already replied (shouldn't happen via the
			// Handler contract); synthesize a standalone error message.
			r = New(req.route)
		}
		r.SetError(apierr.From(err))
		return r
	}
	if reply == nil {
		r, _ := req.Reply()
		if r == nil {
			r = New(req.route)
		}
		return r
	}
	return reply
}
