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
	"github.com/vishvananda/netns"

	"github.com/containervm/hostd/pkg/ipc"
	"github.com/containervm/hostd/pkg/network"
)

func TestNetworkAllocateAndLookup(t *testing.T) {
	svc, err := network.New("10.0.0.0/24", func() (netns.NsHandle, error) { return netns.None(), nil })
	require.NoError(t, err)
	h := &Network{Service: svc}

	req := ipc.New("network.allocate")
	req.SetString("containerId", "c1")
	req.SetString("name", "foo")
	reply, err := h.allocate(context.Background(), req)
	require.NoError(t, err)
	var alloc network.IPAllocation
	require.NoError(t, reply.GetJSON("allocation", &alloc))
	require.Equal(t, "10.0.0.2/24", alloc.Address)

	lookupReq := ipc.New("network.lookup")
	lookupReq.SetString("name", "foo")
	lookupReply, err := h.lookup(context.Background(), lookupReq)
	require.NoError(t, err)
	var got network.IPAllocation
	require.NoError(t, lookupReply.GetJSON("allocation", &got))
	require.Equal(t, alloc, got)
}

func TestNetworkLookupMiss(t *testing.T) {
	svc, err := network.New("10.0.0.0/24", func() (netns.NsHandle, error) { return netns.None(), nil })
	require.NoError(t, err)
	h := &Network{Service: svc}

	req := ipc.New("network.lookup")
	req.SetString("name", "ghost")
	reply, err := h.lookup(context.Background(), req)
	require.NoError(t, err)
	_, ok := reply.GetDataNoCopy("allocation")
	require.False(t, ok)
}
