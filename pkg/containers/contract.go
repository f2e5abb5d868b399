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

// Package containers is opaque to the rest of the control plane: it owns
// the container-id to configuration mapping and the withContainerList
// critical section Volumes depends on for its in-use invariant.
// create/delete/logs/event handling are real here (so the contract is
// actually exercised in tests) but deliberately minimal; sandbox VM
// lifecycle itself stays out of scope.
package containers

import (
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/containervm/hostd/pkg/volumes"
)

// Mount describes one container mount. IsVolume/VolumeName identify mounts
// backed by a named Volumes-service volume, which is what the Volumes
// service's delete-in-use check scans for.
type Mount struct {
	Type        string   `json:"type"`
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Options     []string `json:"options,omitempty"`
	VolumeName  string   `json:"volumeName,omitempty"`
	IsVolume    bool     `json:"isVolume"`
}

// Configuration is a container's full, persisted configuration.
type Configuration struct {
	Image     string             `json:"image"`
	Platform  *ocispec.Platform  `json:"platform,omitempty"`
	CPUs      int                `json:"cpus"`
	MemoryMiB int64              `json:"memoryMiB"`
	Mounts    []Mount            `json:"mounts,omitempty"`
	Env       map[string]string  `json:"env,omitempty"`
}

// Container pairs a stable id with its configuration.
type Container struct {
	ID            string        `json:"id"`
	Configuration Configuration `json:"configuration"`
}

// EntityID implements entitystore.Entity.
func (c Container) EntityID() string { return c.ID }

// asVolumeMounts narrows a Configuration's mounts to the shape the Volumes
// service's in-use check consumes, so containers and volumes stay
// decoupled at the package level instead of sharing a type.
func asVolumeMounts(mounts []Mount) []volumes.Mount {
	out := make([]volumes.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, volumes.Mount{
			Type:        m.Type,
			Source:      m.Source,
			Destination: m.Destination,
			Options:     m.Options,
			VolumeName:  m.VolumeName,
			IsVolume:    m.IsVolume,
		})
	}
	return out
}

// Service is the surface the core consumes from the Containers Service.
// create/delete/logs/handleContainerEvents are opaque; List and
// WithContainerList are the contract this core actually calls.
type Service interface {
	List() []Container
	WithContainerList(body func(containers []Container) error) error
	Create(id string, cfg Configuration) (Container, error)
	Delete(id string) error
	Logs(id string) (io.ReadCloser, error)
	HandleContainerEvents(fn func(Event))
}

// Event is the minimal container lifecycle event shape forwarded to the
// eventbus; see pkg/eventbus.
type Event struct {
	ContainerID string `json:"containerId"`
	Type        string `json:"type"`
}

// VolumesView adapts a Service into the narrow interface the Volumes
// service depends on for its withContainerList callback.
func VolumesView(s Service) volumes.ContainersService {
	return volumesView{s}
}

type volumesView struct{ s Service }

func (v volumesView) WithContainerList(body func([]volumes.Container) error) error {
	return v.s.WithContainerList(func(containers []Container) error {
		vcs := make([]volumes.Container, 0, len(containers))
		for _, c := range containers {
			vcs = append(vcs, volumes.Container{ID: c.ID, Mounts: asVolumeMounts(c.Configuration.Mounts)})
		}
		return body(vcs)
	})
}
