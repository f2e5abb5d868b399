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

package dns

import "net"

// lookupA asks resolver for name and strips the allocation's prefix length
// from its "A.B.C.D/prefix" CIDR form.
func lookupA(resolver IPResolver, name string) (net.IP, bool) {
	cidr, ok := resolver.Lookup(name)
	if !ok {
		return nil, false
	}
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		ip = parseIPv4(cidr)
		if ip == nil {
			return nil, false
		}
		return ip, true
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, false
	}
	return v4, true
}

func parseIPv4(addr string) net.IP {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	return ip.To4()
}
