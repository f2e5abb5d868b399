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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
)

// Factory recognizes one on-disk plugin layout. dir is the top-level entry
// (e.g. "hydra" or "hydra.app"); name is its plugin name with any layout
// suffix stripped. A Factory returns (nil, nil) when dir does not match its
// layout, a non-nil Plugin on a match, and a non-nil error if reading a
// structurally-matching candidate fails outright: a factory may fail, and
// that failure is surfaced as an error rather than treated as "not a
// plugin".
type Factory interface {
	Recognize(root, dir string) (*Plugin, error)
}

// defaultLayoutFactory recognizes `<root>/<name>/config.json` plus
// `<root>/<name>/bin/<name>`.
type defaultLayoutFactory struct{}

func (defaultLayoutFactory) Recognize(root, dir string) (*Plugin, error) {
	name := dir
	base := filepath.Join(root, dir)
	configPath := filepath.Join(base, "config.json")
	binPath := filepath.Join(base, "bin", name)
	return loadIfPresent(name, configPath, binPath)
}

// appBundleLayoutFactory recognizes `<root>/<name>.app/Contents/Resources/config.json`
// plus `<root>/<name>.app/Contents/MacOS/<name>`.
type appBundleLayoutFactory struct{}

func (appBundleLayoutFactory) Recognize(root, dir string) (*Plugin, error) {
	if !strings.HasSuffix(dir, ".app") {
		return nil, nil
	}
	name := strings.TrimSuffix(dir, ".app")
	base := filepath.Join(root, dir, "Contents")
	configPath := filepath.Join(base, "Resources", "config.json")
	binPath := filepath.Join(base, "MacOS", name)
	return loadIfPresent(name, configPath, binPath)
}

// DefaultFactories is the built-in recognizer order: default layout first,
// then the app-bundle layout.
func DefaultFactories() []Factory {
	return []Factory{defaultLayoutFactory{}, appBundleLayoutFactory{}}
}

func loadIfPresent(name, configPath, binPath string) (*Plugin, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.InternalErrorf("read %s: %v", configPath, err)
	}
	if _, err := os.Stat(binPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.InternalErrorf("stat %s: %v", binPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, apierr.InvalidArgumentf("parse %s: %v", configPath, err)
	}
	return &Plugin{Name: name, BinaryPath: binPath, Config: cfg}, nil
}

// FindPlugins scans every top-level entry of each search directory, trying
// each factory in order; the first factory to recognize an entry wins.
//
// A recognizer error on one entry is logged and that entry is skipped
// rather than failing the whole scan — the same best-effort tolerance the
// entity store applies to a corrupt sibling. FindPlugin, by contrast,
// propagates a recognizer error for the specific name it was asked about.
func FindPlugins(searchDirs []string, factories []Factory) (map[string]Plugin, error) {
	found := make(map[string]Plugin)
	for _, dir := range searchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apierr.InternalErrorf("read plugin directory %s: %v", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			p, err := recognize(dir, entry.Name(), factories)
			if err != nil {
				logrus.WithField("entry", entry.Name()).WithError(err).Warn("plugins: recognizer failed, skipping")
				continue
			}
			if p != nil {
				found[p.Name] = *p
			}
		}
	}
	return found, nil
}

// FindPlugin locates a single named plugin across searchDirs, or returns
// (nil, nil) if none of the factories recognize it anywhere.
func FindPlugin(name string, searchDirs []string, factories []Factory) (*Plugin, error) {
	for _, dir := range searchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apierr.InternalErrorf("read plugin directory %s: %v", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidateName := strings.TrimSuffix(entry.Name(), ".app")
			if candidateName != name {
				continue
			}
			p, err := recognize(dir, entry.Name(), factories)
			if err != nil {
				return nil, err
			}
			if p != nil {
				return p, nil
			}
		}
	}
	return nil, nil
}

func recognize(root, dir string, factories []Factory) (*Plugin, error) {
	for _, f := range factories {
		p, err := f.Recognize(root, dir)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}
