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

package containers

import "sync"

// BuildkitSpec is the subset of a container's configuration that
// determines whether its buildkit singleton can be reused.
type BuildkitSpec struct {
	Image     string
	CPUs      int
	MemoryMiB int64
}

func (a BuildkitSpec) equal(b BuildkitSpec) bool {
	return a.Image == b.Image && a.CPUs == b.CPUs && a.MemoryMiB == b.MemoryMiB
}

// BuildkitManager owns the single buildkit sandbox instance a Containers
// Service hands out for Dockerfile builds. The instance is recreated
// whenever the requested image, cpu, or memory differs from the one
// already running.
type BuildkitManager struct {
	mu       sync.Mutex
	spec     BuildkitSpec
	instance any
	have     bool
}

// Get returns the current buildkit instance for spec, creating (or
// recreating) it via newInstance when spec differs from what is running.
func (m *BuildkitManager) Get(spec BuildkitSpec, newInstance func(BuildkitSpec) (any, error)) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.have && m.spec.equal(spec) {
		return m.instance, nil
	}
	inst, err := newInstance(spec)
	if err != nil {
		return nil, err
	}
	m.instance = inst
	m.spec = spec
	m.have = true
	return inst, nil
}

// Reset drops the current instance, forcing the next Get to recreate it.
func (m *BuildkitManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.have = false
	m.instance = nil
}
