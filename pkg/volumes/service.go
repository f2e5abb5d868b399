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

package volumes

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
	"github.com/containervm/hostd/pkg/entitystore"
)

// Mount is the shape of a container mount the Containers service exposes,
// narrowed to what the in-use check needs.
type Mount struct {
	Type        string
	Source      string
	Destination string
	Options     []string
	VolumeName  string
	IsVolume    bool
}

// Container is the shape of a container the Containers service exposes,
// narrowed to what the in-use check needs.
type Container struct {
	ID     string
	Mounts []Mount
}

// ContainersService is the slice of the Containers Service contract (spec
// §4.8) that Volumes depends on: a critical section that runs body while
// holding the Containers Service's exclusive lock.
type ContainersService interface {
	WithContainerList(body func(containers []Container) error) error
}

// Service is the Volumes singleton: create/list/inspect/delete named
// volumes backed by an EXT4 block file.
type Service struct {
	store       *entitystore.Store[Volume]
	containers  ContainersService
	formatter   Formatter
	defaultSize int64
	log         *logrus.Entry

	mu sync.Mutex
}

// New constructs the Volumes service rooted at root, persisting its entity
// store there. containers is consulted for the in-use invariant on delete.
func New(root string, containers ContainersService, formatter Formatter) (*Service, error) {
	store, err := entitystore.Open[Volume](root)
	if err != nil {
		return nil, err
	}
	if formatter == nil {
		formatter = NewExecFormatter()
	}
	return &Service{
		store:       store,
		containers:  containers,
		formatter:   formatter,
		defaultSize: DefaultSize,
		log:         logrus.WithField("component", "volumes"),
	}, nil
}

// Create makes a new named volume. driver defaults to "local" when empty.
func (s *Service) Create(name, driver string, driverOpts, labels map[string]string) (Volume, error) {
	if !ValidName(name) {
		return Volume{}, apierr.InvalidArgumentf("invalid volume name %q", name)
	}
	if driver == "" {
		driver = "local"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Retrieve(name); ok {
		return Volume{}, apierr.Existsf("volume %q already exists", name)
	}

	size, err := ParseSize(driverOpts["size"], s.defaultSize)
	if err != nil {
		return Volume{}, err
	}

	dir := s.store.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Volume{}, apierr.InternalErrorf("create volume directory %s: %v", dir, err)
	}
	imgPath := filepath.Join(dir, "volume.img")
	if err := s.formatter.Format(imgPath, size); err != nil {
		os.RemoveAll(dir)
		return Volume{}, apierr.InternalErrorf("format volume %q: %v", name, err)
	}

	vol := Volume{
		Name:    name,
		Driver:  driver,
		Format:  "ext4",
		Source:  imgPath,
		Labels:  copyMap(labels),
		Options: copyMap(driverOpts),
	}
	if err := s.store.Create(vol); err != nil {
		os.RemoveAll(dir)
		return Volume{}, err
	}
	s.log.WithField("name", name).Info("created volume")
	return vol, nil
}

// Delete removes a volume, refusing if any container mounts it. The check
// and the removal happen inside the same Containers Service critical
// section, so the three steps (check, store delete, directory delete) are
// atomic with respect to container creation.
func (s *Service) Delete(name string) error {
	if !ValidName(name) {
		return apierr.InvalidArgumentf("invalid volume name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Retrieve(name); !ok {
		return apierr.NotFoundf("volume %q not found", name)
	}

	err := s.containers.WithContainerList(func(containers []Container) error {
		for _, c := range containers {
			for _, m := range c.Mounts {
				if m.IsVolume && m.VolumeName == name {
					return apierr.VolumeInUse(name)
				}
			}
		}
		if err := s.store.Delete(name); err != nil {
			return err
		}
		return os.RemoveAll(s.store.Dir(name))
	})
	if err != nil {
		return err
	}
	s.log.WithField("name", name).Info("deleted volume")
	return nil
}

// List returns every volume. Unlike Create/Delete it does not take the
// service lock; it relies on the entity store's own serialization.
func (s *Service) List() []Volume {
	return s.store.List()
}

// Inspect returns a single volume by name.
func (s *Service) Inspect(name string) (Volume, error) {
	if !ValidName(name) {
		return Volume{}, apierr.InvalidArgumentf("invalid volume name %q", name)
	}
	v, ok := s.store.Retrieve(name)
	if !ok {
		return Volume{}, apierr.NotFoundf("volume %q not found", name)
	}
	return v, nil
}
