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
	"github.com/containervm/hostd/pkg/volumes"
)

// Volumes adapts the `volumes.*` route namespace to a *volumes.Service.
type Volumes struct {
	Service *volumes.Service
}

func (h *Volumes) Routes() map[string]ipc.Handler {
	return map[string]ipc.Handler{
		"volumes.list":    h.list,
		"volumes.create":  h.create,
		"volumes.delete":  h.delete,
		"volumes.inspect": h.inspect,
	}
}

func (h *Volumes) list(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	return replyWithJSON(req, "volumes", h.Service.List())
}

func (h *Volumes) create(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	driver, _ := req.GetString("driver")

	var driverOpts map[string]string
	if _, ok := req.GetDataNoCopy("volumeDriverOpts"); ok {
		if err := req.GetJSON("volumeDriverOpts", &driverOpts); err != nil {
			return nil, err
		}
	}
	var labels map[string]string
	if _, ok := req.GetDataNoCopy("volumeLabels"); ok {
		if err := req.GetJSON("volumeLabels", &labels); err != nil {
			return nil, err
		}
	}

	v, err := h.Service.Create(name, driver, driverOpts, labels)
	if err != nil {
		return nil, err
	}
	return replyWithJSON(req, "volume", v)
}

func (h *Volumes) delete(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	if err := h.Service.Delete(name); err != nil {
		return nil, err
	}
	return replyEmpty(req)
}

func (h *Volumes) inspect(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	v, err := h.Service.Inspect(name)
	if err != nil {
		return nil, err
	}
	return replyWithJSON(req, "volume", v)
}
