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

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/containervm/hostd/pkg/ipc"
	"github.com/containervm/hostd/pkg/plugins"
)

type fakeSupervisor struct{}

func (fakeSupervisor) Register(label, binaryPath string, args []string, machServices []string, runAtLoad bool) error {
	return nil
}
func (fakeSupervisor) Deregister(label string) error { return nil }
func (fakeSupervisor) Restart(label string) error    { return nil }

func writeTestPlugin(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"abstract":"test","author":"t","servicesConfig":{"services":[{"type":"runtime"}]}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", name), []byte("#!/bin/sh\n"), 0o755))
}

func TestSandboxForwardsToAddressedInstance(t *testing.T) {
	root := t.TempDir()
	writeTestPlugin(t, root, "hydra")

	pluginsSvc := plugins.New([]string{root}, fakeSupervisor{})
	_, err := pluginsSvc.Load("hydra")
	require.NoError(t, err)

	socketDir := t.TempDir()
	p, err := pluginsSvc.Get("hydra")
	require.NoError(t, err)
	machService := p.MachServices("")[0]
	socketPath := filepath.Join(socketDir, machService+".sock")

	downstream := ipc.NewServer("hydra", map[string]ipc.Handler{
		"sandbox.state": func(ctx context.Context, req *ipc.Message) (*ipc.Message, error) {
			reply, err := req.Reply()
			require.NoError(t, err)
			reply.SetBytes("payload", []byte("running"))
			return reply, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go downstream.ListenAndServe(ctx, socketPath)
	t.Cleanup(downstream.Close)

	require.Eventually(t, func() bool {
		c := ipc.NewClient(socketPath)
		defer c.Close()
		_, err := c.Send(context.Background(), ipc.New("sandbox.state"), 200*time.Millisecond)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	h := &Sandbox{Plugins: pluginsSvc, SocketDir: socketDir, NewClient: ipc.NewClient}

	req := ipc.New("sandbox.state")
	req.SetString("plugin", "hydra")
	reply, err := h.forward(context.Background(), "state", req)
	require.NoError(t, err)
	payload, ok := reply.GetDataNoCopy("payload")
	require.True(t, ok)
	require.Equal(t, "running", string(payload))
}

func TestSandboxForwardMissingPluginField(t *testing.T) {
	h := &Sandbox{Plugins: plugins.New(nil, fakeSupervisor{}), SocketDir: t.TempDir(), NewClient: ipc.NewClient}
	_, err := h.forward(context.Background(), "state", ipc.New("sandbox.state"))
	require.Error(t, err)
}

func TestSandboxForwardUnknownPlugin(t *testing.T) {
	h := &Sandbox{Plugins: plugins.New(nil, fakeSupervisor{}), SocketDir: t.TempDir(), NewClient: ipc.NewClient}
	req := ipc.New("sandbox.state")
	req.SetString("plugin", "ghost")
	_, err := h.forward(context.Background(), "state", req)
	require.Error(t, err)
}
