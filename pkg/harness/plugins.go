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
	"github.com/containervm/hostd/pkg/plugins"
)

// Plugins adapts the `plugins.*` route namespace to a *plugins.Service.
type Plugins struct {
	Service *plugins.Service
}

func (h *Plugins) Routes() map[string]ipc.Handler {
	return map[string]ipc.Handler{
		"plugins.list":    h.list,
		"plugins.load":    h.load,
		"plugins.get":     h.get,
		"plugins.restart": h.restart,
		"plugins.unload":  h.unload,
	}
}

func (h *Plugins) list(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	return replyWithJSON(req, "plugins", h.Service.List())
}

func (h *Plugins) load(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	p, err := h.Service.Load(name)
	if err != nil {
		return nil, err
	}
	return replyWithJSON(req, "plugin", p)
}

func (h *Plugins) get(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	p, err := h.Service.Get(name)
	if err != nil {
		return nil, err
	}
	return replyWithJSON(req, "plugin", p)
}

func (h *Plugins) restart(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	if err := h.Service.Restart(name); err != nil {
		return nil, err
	}
	return replyEmpty(req)
}

func (h *Plugins) unload(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	if err := h.Service.Unload(name); err != nil {
		return nil, err
	}
	return replyEmpty(req)
}
