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

import (
	"context"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
)

// dockerLogOptions is the set of flags used when following container logs.
func dockerLogOptions() container.LogsOptions {
	return container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true}
}

// DefaultService is the core's reference Containers Service: an in-memory
// container-id to configuration map guarded by one exclusive lock. Its
// create/delete/logs are deliberately minimal, but real enough to exercise
// withContainerList and the cross-service volume-in-use invariant end to
// end.
type DefaultService struct {
	log *logrus.Entry

	mu         sync.Mutex
	containers map[string]Container

	listeners   []func(Event)
	listenersMu sync.Mutex

	buildkit *BuildkitManager

	// docker, if non-nil, backs Logs with a real docker daemon connection.
	docker *client.Client
}

// NewDefaultService constructs the reference Containers Service. Passing a
// non-nil docker client lets Logs stream from the docker container whose
// id matches the requested container id; it is never required
// for the in-memory mount bookkeeping Volumes depends on.
func NewDefaultService(docker *client.Client) *DefaultService {
	return &DefaultService{
		log:        logrus.WithField("component", "containers"),
		containers: make(map[string]Container),
		buildkit:   &BuildkitManager{},
		docker:     docker,
	}
}

func (s *DefaultService) List() []Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Container, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, c)
	}
	return out
}

// WithContainerList runs body while holding the service's exclusive lock,
// handing it a snapshot of the current containers. This is the one place
// two service locks interact (Volumes calls in); Containers itself must
// never call back into Volumes while holding this lock.
func (s *DefaultService) WithContainerList(body func(containers []Container) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Container, 0, len(s.containers))
	for _, c := range s.containers {
		snapshot = append(snapshot, c)
	}
	return body(snapshot)
}

func (s *DefaultService) Create(id string, cfg Configuration) (Container, error) {
	if id == "" {
		return Container{}, apierr.InvalidArgumentf("container id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[id]; ok {
		return Container{}, apierr.Existsf("container %q already exists", id)
	}
	c := Container{ID: id, Configuration: cfg}
	s.containers[id] = c
	s.publish(Event{ContainerID: id, Type: "created"})
	return c, nil
}

func (s *DefaultService) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.containers[id]
	if ok {
		delete(s.containers, id)
	}
	s.mu.Unlock()
	if !ok {
		return apierr.NotFoundf("container %q not found", id)
	}
	s.publish(Event{ContainerID: id, Type: "deleted"})
	return nil
}

func (s *DefaultService) Logs(id string) (io.ReadCloser, error) {
	s.mu.Lock()
	_, ok := s.containers[id]
	s.mu.Unlock()
	if !ok {
		return nil, apierr.NotFoundf("container %q not found", id)
	}
	if s.docker == nil {
		return io.NopCloser(nopReader{}), nil
	}
	rc, err := s.docker.ContainerLogs(context.Background(), id, dockerLogOptions())
	if err != nil {
		return nil, apierr.InternalErrorf("fetch logs for %s: %v", id, err)
	}
	return rc, nil
}

// HandleContainerEvents registers fn to be called for every lifecycle
// event this service publishes (create/delete, and whatever the opaque
// sandbox-event plumbing forwards in a fuller implementation).
func (s *DefaultService) HandleContainerEvents(fn func(Event)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *DefaultService) publish(ev Event) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for _, fn := range s.listeners {
		fn(ev)
	}
}

// Buildkit returns the container's buildkit sandbox, recreating it via
// newInstance when image/cpu/memory has changed since the last call.
func (s *DefaultService) Buildkit(spec BuildkitSpec, newInstance func(BuildkitSpec) (any, error)) (any, error) {
	return s.buildkit.Get(spec, newInstance)
}

type nopReader struct{}

func (nopReader) Read([]byte) (int, error) { return 0, io.EOF }
