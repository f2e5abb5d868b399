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

package network

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netns"
)

func fakeNS() (netns.NsHandle, error) {
	return netns.None(), nil
}

func TestAllocateLookupDeallocate(t *testing.T) {
	svc, err := New("10.0.0.0/24", fakeNS)
	require.NoError(t, err)

	alloc, err := svc.Allocate("c1", "foo")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2/24", alloc.Address)

	addr, ok := svc.Lookup("foo")
	require.True(t, ok)
	require.Equal(t, alloc.Address, addr)

	again, err := svc.Allocate("c1", "foo")
	require.NoError(t, err)
	require.Equal(t, alloc, again, "re-allocating the same name for the same container returns the existing lease")

	require.NoError(t, svc.Deallocate("c1"))
	_, ok = svc.Lookup("foo")
	require.False(t, ok)

	err = svc.Deallocate("c1")
	require.Error(t, err)
}

func TestAllocateNameConflict(t *testing.T) {
	svc, err := New("10.0.0.0/24", fakeNS)
	require.NoError(t, err)

	_, err = svc.Allocate("c1", "foo")
	require.NoError(t, err)
	_, err = svc.Allocate("c2", "foo")
	require.Error(t, err)
}

func TestDisableAllocator(t *testing.T) {
	svc, err := New("10.0.0.0/24", fakeNS)
	require.NoError(t, err)
	svc.DisableAllocator()
	_, err = svc.Allocate("c1", "foo")
	require.Error(t, err)
}

func TestLookupFeedsDNSContainerLookup(t *testing.T) {
	svc, err := New("10.0.0.0/24", fakeNS)
	require.NoError(t, err)
	_, err = svc.Allocate("c1", "srv1")
	require.NoError(t, err)

	addr, ok := svc.Lookup("srv1")
	require.True(t, ok)
	require.Equal(t, "10.0.0.2/24", addr)
}
