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

// Package config loads the daemon's on-disk configuration: socket
// directory, Volumes/Plugins roots, and DNS listener settings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/containervm/hostd/pkg/apierr"
)

// Config is the daemon's full configuration, loaded from YAML with
// defaults filled in for anything left unset.
type Config struct {
	SocketDir       string   `yaml:"socketDir"`
	VolumesRoot     string   `yaml:"volumesRoot"`
	ContainersRoot  string   `yaml:"containersRoot"`
	PluginSearchDir []string `yaml:"pluginSearchDirs"`
	LaunchdDir      string   `yaml:"launchdDir"`

	DNS DNSConfig `yaml:"dns"`

	NetworkSubnet string `yaml:"networkSubnet"`
}

// DNSConfig configures the embedded resolver's listener and per-leaf TTLs.
type DNSConfig struct {
	ListenAddr   string            `yaml:"listenAddr"`
	ContainerTTL time.Duration     `yaml:"containerTTL"`
	HostTableTTL time.Duration     `yaml:"hostTableTTL"`
	NxDomainTTL  time.Duration     `yaml:"nxDomainTTL"`
	HostTable    map[string]string `yaml:"hostTable"`
}

// Default returns the configuration used when no file is present, rooted
// under dir (typically the user's state directory).
func Default(dir string) Config {
	return Config{
		SocketDir:       filepath.Join(dir, "sock"),
		VolumesRoot:     filepath.Join(dir, "volumes"),
		ContainersRoot:  filepath.Join(dir, "containers"),
		PluginSearchDir: []string{filepath.Join(dir, "plugins")},
		LaunchdDir:      filepath.Join(dir, "launchd"),
		DNS: DNSConfig{
			ListenAddr:   "127.0.0.1:53",
			ContainerTTL: 5 * time.Second,
			HostTableTTL: 300 * time.Second,
			NxDomainTTL:  300 * time.Second,
		},
		NetworkSubnet: "10.0.0.0/24",
	}
}

// Load reads a YAML configuration file at path, overlaying it onto the
// defaults rooted at stateDir. A missing file is not an error: the
// defaults are returned unmodified.
func Load(path, stateDir string) (Config, error) {
	cfg := Default(stateDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, apierr.InternalErrorf("read config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, apierr.InvalidArgumentf("parse config %s: %v", path, err)
	}
	return cfg, nil
}
