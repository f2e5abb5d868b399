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

package plugins

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
)

// Supervisor is the host process supervisor a Plugins Service registers
// loaded plugins with — `launchctl` on the real host. See pkg/launchd.
type Supervisor interface {
	Register(label string, binaryPath string, args []string, machServices []string, runAtLoad bool) error
	Deregister(label string) error
	Restart(label string) error
}

// Service is the Plugins Service singleton: the process-wide loaded map,
// owned by a single Plugins Service instance per process and never shared
// across processes.
type Service struct {
	searchDirs []string
	factories  []Factory
	supervisor Supervisor
	log        *logrus.Entry

	mu     sync.Mutex
	loaded map[string]Plugin
}

// New constructs a Plugins Service scanning searchDirs with the default
// recognizers, registering loaded plugins with supervisor.
func New(searchDirs []string, supervisor Supervisor) *Service {
	return &Service{
		searchDirs: searchDirs,
		factories:  DefaultFactories(),
		supervisor: supervisor,
		log:        logrus.WithField("component", "plugins"),
		loaded:     make(map[string]Plugin),
	}
}

// Load registers a discovered plugin with the host supervisor. Loading an
// already-loaded plugin is a no-op.
func (s *Service) Load(name string) (Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.loaded[name]; ok {
		return p, nil
	}

	p, err := FindPlugin(name, s.searchDirs, s.factories)
	if err != nil {
		return Plugin{}, err
	}
	if p == nil {
		return Plugin{}, apierr.PluginNotFound(name)
	}

	runAtLoad := p.Config.ServicesConfig != nil && p.Config.ServicesConfig.RunAtLoad
	if err := s.supervisor.Register(p.LaunchdLabel(), p.BinaryPath, p.DefaultArguments(), p.MachServices(""), runAtLoad); err != nil {
		return Plugin{}, apierr.InternalErrorf("register plugin %q: %v", name, err)
	}

	s.loaded[name] = *p
	s.log.WithField("name", name).Info("loaded plugin")
	return *p, nil
}

// Unload deregisters and forgets a loaded plugin.
func (s *Service) Unload(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.loaded[name]
	if !ok {
		return apierr.PluginNotLoaded(name)
	}
	if err := s.supervisor.Deregister(p.LaunchdLabel()); err != nil {
		return apierr.InternalErrorf("deregister plugin %q: %v", name, err)
	}
	delete(s.loaded, name)
	s.log.WithField("name", name).Info("unloaded plugin")
	return nil
}

// Restart kicks a loaded plugin's supervised service in place without
// deregistering it.
func (s *Service) Restart(name string) error {
	s.mu.Lock()
	p, ok := s.loaded[name]
	s.mu.Unlock()
	if !ok {
		return apierr.PluginNotLoaded(name)
	}
	if err := s.supervisor.Restart(p.LaunchdLabel()); err != nil {
		return apierr.InternalErrorf("restart plugin %q: %v", name, err)
	}
	return nil
}

// Get returns a loaded plugin by name.
func (s *Service) Get(name string) (Plugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.loaded[name]
	if !ok {
		return Plugin{}, apierr.PluginNotLoaded(name)
	}
	return p, nil
}

// List returns every currently loaded plugin.
func (s *Service) List() []Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Plugin, 0, len(s.loaded))
	for _, p := range s.loaded {
		out = append(out, p)
	}
	return out
}
