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
	"path/filepath"
	"time"

	"github.com/containervm/hostd/pkg/apierr"
	"github.com/containervm/hostd/pkg/ipc"
	"github.com/containervm/hostd/pkg/plugins"
)

// sandboxRoutes is the route set this adapter decodes and forwards; the VM
// lifecycle itself (ClientKernel, Containerization framework) is out of
// scope — only the routing is implemented here.
var sandboxRoutes = []string{
	"bootstrap", "createProcess", "state", "stop", "kill", "resize", "wait", "start", "dial",
}

// ClientFactory dials the nested IPC endpoint addressing one sandbox
// instance, `<machService>.<instanceId>`.
type ClientFactory func(endpoint string) *ipc.Client

// Sandbox decodes `sandbox.*` routes, resolves the addressed instance via
// plugins' per-instance addressing, and forwards the request as a nested
// IPC call to that instance's mach endpoint.
type Sandbox struct {
	Plugins    *plugins.Service
	SocketDir  string // directory holding "<machService>.<instanceId>.sock"
	NewClient  ClientFactory
	SendTimeout time.Duration // defaults to 30s when zero
}

// Routes returns this adapter's route table, keyed `sandbox.<op>`.
func (h *Sandbox) Routes() map[string]ipc.Handler {
	out := make(map[string]ipc.Handler, len(sandboxRoutes))
	for _, op := range sandboxRoutes {
		op := op
		out["sandbox."+op] = func(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
			return h.forward(ctx, op, req)
		}
	}
	return out
}

func (h *Sandbox) timeout() time.Duration {
	if h.SendTimeout == 0 {
		return 30 * time.Second
	}
	return h.SendTimeout
}

// forward resolves the addressed plugin instance and relays req to it. For
// createProcess/resize, the `pty`/`cols`/`rows` hints are passed through
// unchanged: pty allocation and the interactive-session bridge are owned by
// the addressed sandbox instance, not by this harness, which never holds a
// terminal of its own to bridge to.
func (h *Sandbox) forward(ctx context.Context, op string, req *ipc.Message) (*ipc.Message, error) {
	pluginName, err := requiredString(req, "plugin")
	if err != nil {
		return nil, err
	}
	instanceID, _ := req.GetString("instanceId")

	p, err := h.Plugins.Get(pluginName)
	if err != nil {
		return nil, err
	}
	machServices := p.MachServices(instanceID)
	if len(machServices) == 0 {
		return nil, apierr.InvalidStatef("plugin %q declares no mach services", pluginName)
	}
	endpoint := filepath.Join(h.SocketDir, machServices[0]+".sock")

	client := h.NewClient(endpoint)

	forwarded := ipc.New("sandbox." + op)
	if req.GetBool("pty") && (op == "createProcess" || op == "resize") {
		forwarded.SetBool("pty", true)
		if cols := req.GetInt64("cols"); cols > 0 {
			forwarded.SetInt64("cols", cols)
		}
		if rows := req.GetInt64("rows"); rows > 0 {
			forwarded.SetInt64("rows", rows)
		}
	}
	forwarded.SetString("instanceId", instanceID)

	if blob, ok := req.GetDataNoCopy("payload"); ok {
		forwarded.SetBytes("payload", blob)
	}

	resp, err := client.Send(ctx, forwarded, h.timeout())
	if err != nil {
		return nil, err
	}

	reply, err := req.Reply()
	if err != nil {
		return nil, err
	}
	if blob, ok := resp.GetDataNoCopy("payload"); ok {
		reply.SetBytes("payload", blob)
	}
	return reply, nil
}
