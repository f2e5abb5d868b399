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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containervm/hostd/pkg/containers"
	"github.com/containervm/hostd/pkg/ipc"
)

func TestContainersCreateAndList(t *testing.T) {
	h := &Containers{Service: containers.NewDefaultService(nil)}

	req := ipc.New("containers.create")
	req.SetString("id", "c1")
	require.NoError(t, req.SetJSON("containerConfig", containers.Configuration{Image: "alpine"}))

	reply, err := h.create(context.Background(), req)
	require.NoError(t, err)
	var c containers.Container
	require.NoError(t, reply.GetJSON("container", &c))
	require.Equal(t, "c1", c.ID)
	require.Equal(t, "alpine", c.Configuration.Image)

	listReply, err := h.list(context.Background(), ipc.New("containers.list"))
	require.NoError(t, err)
	var containersList []containers.Container
	require.NoError(t, listReply.GetJSON("containers", &containersList))
	require.Len(t, containersList, 1)
}

func TestContainersCreateMissingID(t *testing.T) {
	h := &Containers{Service: containers.NewDefaultService(nil)}
	_, err := h.create(context.Background(), ipc.New("containers.create"))
	require.Error(t, err)
}

func TestContainersDeleteNotFound(t *testing.T) {
	h := &Containers{Service: containers.NewDefaultService(nil)}
	req := ipc.New("containers.delete")
	req.SetString("id", "ghost")
	_, err := h.delete(context.Background(), req)
	require.Error(t, err)
}
