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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containervm/hostd/pkg/apierr"
)

type fakeSupervisor struct {
	registered     map[string]bool
	registeredArgs map[string][]string
	restartCount   map[string]int
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{
		registered:     make(map[string]bool),
		registeredArgs: make(map[string][]string),
		restartCount:   make(map[string]int),
	}
}

func (f *fakeSupervisor) Register(label, binaryPath string, args []string, machServices []string, runAtLoad bool) error {
	f.registered[label] = true
	f.registeredArgs[label] = args
	return nil
}

func (f *fakeSupervisor) Deregister(label string) error {
	if !f.registered[label] {
		return apierr.NotFoundf("not registered: %s", label)
	}
	delete(f.registered, label)
	return nil
}

func (f *fakeSupervisor) Restart(label string) error {
	f.restartCount[label]++
	return nil
}

func TestPluginRoundTrip(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "net", `{"abstract":"net","servicesConfig":{"services":[{"type":"network"}]}}`)

	sup := newFakeSupervisor()
	svc := New([]string{root}, sup)

	p, err := svc.Load("net")
	require.NoError(t, err)
	require.Equal(t, "com.apple.container.net", p.LaunchdLabel())
	require.True(t, sup.registered["com.apple.container.net"])

	// Loading again is a no-op.
	_, err = svc.Load("net")
	require.NoError(t, err)

	got, err := svc.Get("net")
	require.NoError(t, err)
	require.Equal(t, "net", got.Name)

	require.NoError(t, svc.Unload("net"))
	require.False(t, sup.registered["com.apple.container.net"])

	_, err = svc.Get("net")
	require.ErrorIs(t, err, apierr.PluginNotLoaded("net"))
}

func TestLoadThreadsDefaultArgumentsToSupervisor(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "net", `{"abstract":"net","servicesConfig":{"services":[{"type":"network"}],"defaultArguments":["--foreground","--verbose"]}}`)

	sup := newFakeSupervisor()
	svc := New([]string{root}, sup)

	_, err := svc.Load("net")
	require.NoError(t, err)
	require.Equal(t, []string{"--foreground", "--verbose"}, sup.registeredArgs["com.apple.container.net"])
}

func TestLoadMissingPlugin(t *testing.T) {
	root := t.TempDir()
	svc := New([]string{root}, newFakeSupervisor())
	_, err := svc.Load("ghost")
	require.ErrorIs(t, err, apierr.PluginNotFound("ghost"))
}

func TestRestartRequiresLoaded(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "net", `{"abstract":"net"}`)
	sup := newFakeSupervisor()
	svc := New([]string{root}, sup)

	err := svc.Restart("net")
	require.ErrorIs(t, err, apierr.PluginNotLoaded("net"))

	_, err = svc.Load("net")
	require.NoError(t, err)
	require.NoError(t, svc.Restart("net"))
	require.Equal(t, 1, sup.restartCount["com.apple.container.net"])
}
