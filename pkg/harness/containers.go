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

package harness

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/containervm/hostd/pkg/containers"
	"github.com/containervm/hostd/pkg/eventbus"
	"github.com/containervm/hostd/pkg/ipc"
)

// Containers adapts the `containers.*` route namespace to a
// containers.Service. Bus is optional; when set, it backs the `event`
// route's long-poll.
type Containers struct {
	Service containers.Service
	Bus     *eventbus.Bus
}

// Routes returns this adapter's route table, keyed by the fully qualified
// route name (`containers.<op>`).
func (h *Containers) Routes() map[string]ipc.Handler {
	return map[string]ipc.Handler{
		"containers.list":   h.list,
		"containers.create": h.create,
		"containers.delete": h.delete,
		"containers.logs":   h.logs,
		"containers.event":  h.event,
	}
}

// event long-polls the event bus for the next container event, bounded by
// an optional `timeoutMs` field (default 30s). A timed-out poll replies
// with no `event` field set rather than an error, so callers can loop.
func (h *Containers) event(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	if h.Bus == nil {
		return nil, nil // unconfigured: the server sends an empty reply
	}
	timeout := 30 * time.Second
	if ms := req.GetInt64("timeoutMs"); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	ch := make(chan eventbus.Event, 1)
	handle := h.Bus.Subscribe(ch, func(ev eventbus.Event) bool { return ev.Source == "containers" })
	defer h.Bus.Unsubscribe(handle)

	select {
	case ev := <-ch:
		return replyWithJSON(req, "event", ev)
	case <-time.After(timeout):
		return req.Reply()
	case <-ctx.Done():
		return req.Reply()
	}
}

func (h *Containers) list(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	return replyWithJSON(req, "containers", h.Service.List())
}

func (h *Containers) create(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}
	var cfg containers.Configuration
	if err := req.GetJSON("containerConfig", &cfg); err != nil {
		return nil, err
	}
	c, err := h.Service.Create(id, cfg)
	if err != nil {
		return nil, err
	}
	return replyWithJSON(req, "container", c)
}

func (h *Containers) delete(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}
	if err := h.Service.Delete(id); err != nil {
		return nil, err
	}
	return replyEmpty(req)
}

// logs streams the container's log output back as a file descriptor: a
// pipe whose write end is fed from the service's io.ReadCloser and whose
// read end is handed to the caller via the message's native
// handle-passing facility.
func (h *Containers) logs(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}
	rc, err := h.Service.Logs(id)
	if err != nil {
		return nil, err
	}

	fds, err := unix.Pipe()
	if err != nil {
		rc.Close()
		return nil, err
	}
	readFD, writeFD := fds[0], fds[1]

	go func() {
		defer rc.Close()
		w := os.NewFile(uintptr(writeFD), "container-logs-write")
		defer w.Close()
		io.Copy(w, rc)
	}()

	reply, err := req.Reply()
	if err != nil {
		unix.Close(readFD)
		return nil, err
	}
	reply.SetFD("logs", readFD)
	return reply, nil
}
