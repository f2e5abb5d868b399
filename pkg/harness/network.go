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

	"github.com/containervm/hostd/pkg/ipc"
	"github.com/containervm/hostd/pkg/network"
)

// Network adapts the `network.*` route namespace to a *network.Service.
type Network struct {
	Service *network.Service
}

func (h *Network) Routes() map[string]ipc.Handler {
	return map[string]ipc.Handler{
		"network.state":           h.state,
		"network.allocate":        h.allocate,
		"network.deallocate":      h.deallocate,
		"network.lookup":          h.lookup,
		"network.disableAllocator": h.disableAllocator,
	}
}

func (h *Network) state(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	return replyWithJSON(req, "state", h.Service.State())
}

func (h *Network) allocate(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	containerID, err := requiredString(req, "containerId")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	alloc, err := h.Service.Allocate(containerID, name)
	if err != nil {
		return nil, err
	}
	return replyWithJSON(req, "allocation", alloc)
}

func (h *Network) deallocate(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	containerID, err := requiredString(req, "containerId")
	if err != nil {
		return nil, err
	}
	if err := h.Service.Deallocate(containerID); err != nil {
		return nil, err
	}
	return replyEmpty(req)
}

func (h *Network) lookup(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	addr, ok := h.Service.Lookup(name)
	if !ok {
		return replyEmpty(req)
	}
	return replyWithJSON(req, "allocation", network.IPAllocation{Address: addr})
}

func (h *Network) disableAllocator(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	h.Service.DisableAllocator()
	return replyEmpty(req)
}
