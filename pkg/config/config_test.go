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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sock"), cfg.SocketDir)
	require.Equal(t, 5*time.Second, cfg.DNS.ContainerTTL)
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("socketDir: /custom/sock\ndns:\n  listenAddr: 0.0.0.0:5353\n"), 0o644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	require.Equal(t, "/custom/sock", cfg.SocketDir)
	require.Equal(t, "0.0.0.0:5353", cfg.DNS.ListenAddr)
	// Unset fields keep their defaults.
	require.Equal(t, filepath.Join(dir, "volumes"), cfg.VolumesRoot)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	_, err := Load(path, dir)
	require.Error(t, err)
}
