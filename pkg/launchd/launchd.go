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

// Package launchd adapts the Plugins Service's Supervisor contract to the
// host's launchd: generate a unit description, shell out to the control
// binary, and track nothing beyond what the supervisor itself remembers.
package launchd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
)

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
	{{range .Args}}	<string>{{.}}</string>
	{{end}}</array>
	<key>RunAtLoad</key>
	<{{if .RunAtLoad}}true{{else}}false{{end}}/>
	<key>MachServices</key>
	<dict>
	{{range .MachServices}}	<key>{{.}}</key>
		<true/>
	{{end}}</dict>
</dict>
</plist>
`

var tmpl = template.Must(template.New("plist").Parse(plistTemplate))

// Supervisor shells out to launchctl against plist files rooted at Dir,
// implementing plugins.Supervisor.
type Supervisor struct {
	Dir string
	// NewCmd is overridable in tests so launchctl never actually runs.
	NewCmd func(name string, arg ...string) *exec.Cmd
	log    *logrus.Entry
}

// New constructs a Supervisor writing plists under dir.
func New(dir string) *Supervisor {
	return &Supervisor{Dir: dir, NewCmd: exec.Command, log: logrus.WithField("component", "launchd")}
}

func (s *Supervisor) plistPath(label string) string {
	return filepath.Join(s.Dir, label+".plist")
}

// Register writes label's plist and loads it via `launchctl load`. args is
// appended to binaryPath in the generated ProgramArguments array.
func (s *Supervisor) Register(label, binaryPath string, args []string, machServices []string, runAtLoad bool) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return apierr.InternalErrorf("create launchd directory %s: %v", s.Dir, err)
	}
	data := struct {
		Label        string
		BinaryPath   string
		Args         []string
		RunAtLoad    bool
		MachServices []string
	}{label, binaryPath, args, runAtLoad, machServices}

	path := s.plistPath(label)
	f, err := os.Create(path)
	if err != nil {
		return apierr.InternalErrorf("create plist %s: %v", path, err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		return apierr.InternalErrorf("render plist %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return apierr.InternalErrorf("close plist %s: %v", path, err)
	}

	if out, err := s.NewCmd("launchctl", "load", "-w", path).CombinedOutput(); err != nil {
		return apierr.InternalErrorf("launchctl load %s: %v: %s", label, err, out)
	}
	s.log.WithField("label", label).Info("registered plugin with launchd")
	return nil
}

// Deregister unloads label and removes its plist.
func (s *Supervisor) Deregister(label string) error {
	path := s.plistPath(label)
	if out, err := s.NewCmd("launchctl", "unload", "-w", path).CombinedOutput(); err != nil {
		return apierr.InternalErrorf("launchctl unload %s: %v: %s", label, err, out)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apierr.InternalErrorf("remove plist %s: %v", path, err)
	}
	return nil
}

// Restart kicks label in place via `launchctl kickstart`.
func (s *Supervisor) Restart(label string) error {
	target := fmt.Sprintf("system/%s", label)
	if out, err := s.NewCmd("launchctl", "kickstart", "-k", target).CombinedOutput(); err != nil {
		return apierr.InternalErrorf("launchctl kickstart %s: %v: %s", label, err, out)
	}
	return nil
}
