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

import "github.com/containervm/hostd/pkg/ipc"

// Adapter is anything that contributes a slice of the route table.
type Adapter interface {
	Routes() map[string]ipc.Handler
}

// Merge combines every adapter's routes into one table for ipc.NewServer.
// Adapters are expected to use disjoint, namespace-prefixed keys
// ("containers.list", "volumes.create", ...); a later adapter silently
// overrides an earlier one on a key collision.
func Merge(adapters ...Adapter) map[string]ipc.Handler {
	routes := make(map[string]ipc.Handler)
	for _, a := range adapters {
		for route, handler := range a.Routes() {
			routes[route] = handler
		}
	}
	return routes
}
