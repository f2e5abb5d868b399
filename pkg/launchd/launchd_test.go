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

package launchd

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingCmd captures every invocation instead of touching a real
// launchctl.
func recordingCmd(calls *[][]string) func(name string, arg ...string) *exec.Cmd {
	return func(name string, arg ...string) *exec.Cmd {
		*calls = append(*calls, append([]string{name}, arg...))
		return exec.Command("true")
	}
}

func TestSupervisorRegisterWritesPlistAndLoads(t *testing.T) {
	dir := t.TempDir()
	var calls [][]string
	s := New(dir)
	s.NewCmd = recordingCmd(&calls)

	err := s.Register("com.apple.container.net", "/opt/net/bin/net", []string{"--foreground"}, []string{"com.apple.container.network.net"}, true)
	require.NoError(t, err)

	plist := s.plistPath("com.apple.container.net")
	data, err := os.ReadFile(plist)
	require.NoError(t, err)
	require.Contains(t, string(data), "com.apple.container.net")
	require.Contains(t, string(data), "/opt/net/bin/net")
	require.Contains(t, string(data), "--foreground")

	require.Len(t, calls, 1)
	require.Equal(t, []string{"launchctl", "load", "-w", plist}, calls[0])
}

func TestSupervisorDeregisterRemovesPlist(t *testing.T) {
	dir := t.TempDir()
	var calls [][]string
	s := New(dir)
	s.NewCmd = recordingCmd(&calls)

	require.NoError(t, s.Register("com.apple.container.net", "/bin/net", nil, nil, false))
	require.NoError(t, s.Deregister("com.apple.container.net"))

	_, err := os.Stat(s.plistPath("com.apple.container.net"))
	require.True(t, os.IsNotExist(err))
}

func TestSupervisorRestart(t *testing.T) {
	dir := t.TempDir()
	var calls [][]string
	s := New(dir)
	s.NewCmd = recordingCmd(&calls)

	require.NoError(t, s.Restart("com.apple.container.net"))
	require.Len(t, calls, 1)
	require.Equal(t, []string{"launchctl", "kickstart", "-k", "system/com.apple.container.net"}, calls[0])
}
