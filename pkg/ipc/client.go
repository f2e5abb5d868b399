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
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
)

// Client opens a connection to a named endpoint and round-trips Messages
// against it. A Client is safe for concurrent use: Send may be called from
// multiple goroutines at once, each outstanding call is independent.
type Client struct {
	endpoint string
	log      *logrus.Entry

	mu   sync.Mutex
	conn *net.UnixConn

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan result
}

type result struct {
	msg *Message
	err error
}

// NewClient returns a Client bound to a Unix domain socket path. It does
// not dial until the first Send; a broken connection is redialed lazily on
// the next Send.
func NewClient(socketPath string) *Client {
	return &Client{
		endpoint: socketPath,
		log:      logrus.WithField("component", "ipc.client").WithField("endpoint", socketPath),
		pending:  make(map[uint64]chan result),
	}
}

func (c *Client) getConn() (*net.UnixConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	addr, err := net.ResolveUnixAddr("unix", c.endpoint)
	if err != nil {
		return nil, apierr.InternalErrorf("resolve endpoint %s: %v", c.endpoint, err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, apierr.InternalErrorf("dial endpoint %s: %v", c.endpoint, err)
	}
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

func (c *Client) dropConn(broken *net.UnixConn, cause error) {
	c.mu.Lock()
	if c.conn == broken {
		c.conn = nil
	}
	c.mu.Unlock()
	broken.Close()

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan result)
	c.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- result{err: apierr.Interruptedf("connection to %s lost: %v", c.endpoint, cause)}
	}
}

func (c *Client) readLoop(conn *net.UnixConn) {
	for {
		payload, fds, err := readFrame(conn)
		if err != nil {
			c.dropConn(conn, err)
			return
		}
		msg, id, err := decode(payload, fds)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed reply frame")
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
		if !ok {
			c.log.WithField("reqID", id).Warn("reply for unknown request, dropping")
			continue
		}
		ch <- result{msg: msg}
	}
}

// Send submits msg and awaits its reply. If timeout is positive and elapses
// before a reply arrives, Send fails with InternalError naming the route
// and endpoint. If the connection breaks mid-call, Send fails with
// Interrupted. If the reply carries a structured error, Send returns it as
// the error; otherwise it returns the reply message.
func (c *Client) Send(ctx context.Context, msg *Message, timeout time.Duration) (*Message, error) {
	conn, err := c.getConn()
	if err != nil {
		return nil, err
	}

	id := c.nextID.Add(1)
	ch := make(chan result, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	payload, fds, err := encode(msg, id)
	if err != nil {
		cleanup()
		return nil, apierr.From(err)
	}
	if err := writeFrame(conn, payload, fds); err != nil {
		cleanup()
		c.dropConn(conn, err)
		return nil, apierr.Interruptedf("send on %s: %v", c.endpoint, err)
	}
	msg.closeOwnedFDs()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if err := r.msg.Error(); err != nil {
			return nil, err
		}
		return r.msg, nil
	case <-timeoutCh:
		cleanup()
		return nil, apierr.InternalErrorf("timed out waiting for reply to route %q on endpoint %q", msg.Route(), c.endpoint)
	case <-ctx.Done():
		cleanup()
		return nil, apierr.InternalErrorf("send to route %q on endpoint %q canceled: %v", msg.Route(), c.endpoint, ctx.Err())
	}
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
