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

// Package network implements the Network Service: per-container IP
// allocation backed by a real network namespace handle, consulted
// synchronously by the DNS resolver chain while it serves a UDP query.
package network

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netns"

	"github.com/containervm/hostd/pkg/apierr"
)

// IPAllocation is the address handed out to a container, in CIDR form.
type IPAllocation struct {
	Address string // "A.B.C.D/prefix"
}

// NetworkState summarizes the allocator for inspection routes.
type NetworkState struct {
	Disabled    bool
	Allocations map[string]IPAllocation
}

// NamespaceFactory creates the per-container network namespace handle.
// Overridable in tests, since vishvananda/netns.New() requires real kernel
// namespace support unavailable in most test sandboxes.
type NamespaceFactory func() (netns.NsHandle, error)

type allocation struct {
	containerID string
	ip          IPAllocation
	ns          netns.NsHandle
}

// Service is the Network Service singleton: allocate/deallocate/lookup
// container IP addresses, one per network-visible hostname.
type Service struct {
	mu sync.Mutex

	cidr       *net.IPNet
	nextHost   uint32
	byName     map[string]*allocation
	byID       map[string]*allocation
	disabled   bool
	newNS      NamespaceFactory
	log        *logrus.Entry
}

// New constructs a Network Service allocating addresses out of subnet
// (e.g. "10.0.0.0/24"). newNS is called once per Allocate to produce the
// container's network namespace handle; pass nil to use the real
// vishvananda/netns.New in production.
func New(subnet string, newNS NamespaceFactory) (*Service, error) {
	_, ipnet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, apierr.InvalidArgumentf("invalid network subnet %q: %v", subnet, err)
	}
	if newNS == nil {
		newNS = netns.New
	}
	return &Service{
		cidr:     ipnet,
		nextHost: 2, // .0 is network, .1 is reserved for the host side
		byName:   make(map[string]*allocation),
		byID:     make(map[string]*allocation),
		newNS:    newNS,
		log:      logrus.WithField("component", "network"),
	}, nil
}

// Allocate assigns name the next free address on this subnet and brings up
// a network namespace for containerID. Calling Allocate again for a name
// already allocated to the same containerID returns the existing lease.
func (s *Service) Allocate(containerID, name string) (IPAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return IPAllocation{}, apierr.Unsupportedf("network allocator is disabled")
	}
	if existing, ok := s.byName[name]; ok {
		if existing.containerID != containerID {
			return IPAllocation{}, apierr.Existsf("name %q already allocated to a different container", name)
		}
		return existing.ip, nil
	}

	ip, err := s.nextAddress()
	if err != nil {
		return IPAllocation{}, err
	}
	ns, err := s.newNS()
	if err != nil {
		return IPAllocation{}, apierr.InternalErrorf("create network namespace for %s: %v", containerID, err)
	}

	a := &allocation{containerID: containerID, ip: ip, ns: ns}
	s.byName[name] = a
	s.byID[containerID] = a
	s.log.WithFields(logrus.Fields{"container": containerID, "name": name, "address": ip.Address}).Info("allocated network address")
	return ip, nil
}

// Deallocate releases containerID's address and tears down its namespace.
func (s *Service) Deallocate(containerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[containerID]
	if !ok {
		return apierr.NotFoundf("no allocation for container %q", containerID)
	}
	delete(s.byID, containerID)
	for name, candidate := range s.byName {
		if candidate == a {
			delete(s.byName, name)
		}
	}
	if a.ns.IsOpen() {
		if err := a.ns.Close(); err != nil {
			s.log.WithError(err).Warn("closing network namespace handle")
		}
	}
	return nil
}

// Lookup implements dns.IPResolver: resolve name to its current
// allocation, for the DNS ContainerLookup leaf.
func (s *Service) Lookup(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byName[name]
	if !ok {
		return "", false
	}
	return a.ip.Address, true
}

// State returns a snapshot of the allocator for inspection routes.
func (s *Service) State() NetworkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := NetworkState{Disabled: s.disabled, Allocations: make(map[string]IPAllocation, len(s.byName))}
	for name, a := range s.byName {
		out.Allocations[name] = a.ip
	}
	return out
}

// DisableAllocator stops new allocations; existing leases are untouched.
func (s *Service) DisableAllocator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

func (s *Service) nextAddress() (IPAllocation, error) {
	ones, bits := s.cidr.Mask.Size()
	maxHosts := uint32(1)<<uint(bits-ones) - 2 // exclude network and broadcast
	if s.nextHost > maxHosts {
		return IPAllocation{}, apierr.Unsupportedf("network subnet exhausted")
	}
	base := s.cidr.IP.To4()
	if base == nil {
		return IPAllocation{}, apierr.InternalErrorf("only IPv4 subnets are supported")
	}
	ip := make(net.IP, 4)
	copy(ip, base)
	addHost(ip, s.nextHost)
	s.nextHost++
	return IPAllocation{Address: fmt.Sprintf("%s/%d", ip.String(), ones)}, nil
}

func addHost(ip net.IP, host uint32) {
	v := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	v += host
	ip[0] = byte(v >> 24)
	ip[1] = byte(v >> 16)
	ip[2] = byte(v >> 8)
	ip[3] = byte(v)
}
