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

// Package plugins implements plugin discovery and the Plugins Service:
// loading, unloading, and restarting host-supervised helper processes, and
// addressing their per-instance mach service endpoints.
package plugins

import "fmt"

// launchdLabelPrefix mirrors Apple's container daemon reverse-DNS label
// convention; every discovered plugin gets "com.apple.container.<name>".
const launchdLabelPrefix = "com.apple.container"

// ServiceType names one mach service a plugin's config.json declares.
type ServiceType string

// ServicesConfig is the `servicesConfig` object from config.json.
type ServicesConfig struct {
	LoadAtBoot bool          `json:"loadAtBoot"`
	RunAtLoad  bool          `json:"runAtLoad"`
	Services   []ServiceSpec `json:"services"`

	// DefaultArguments is appended to the binary path in the supervised
	// unit's launch command, e.g. launchd's ProgramArguments.
	DefaultArguments []string `json:"defaultArguments,omitempty"`
}

// ServiceSpec is one entry of ServicesConfig.Services.
type ServiceSpec struct {
	Type        ServiceType `json:"type"`
	Description string      `json:"description,omitempty"`
}

// Config is the decoded contents of a plugin's config.json.
type Config struct {
	Abstract       string          `json:"abstract"`
	Author         string          `json:"author"`
	ServicesConfig *ServicesConfig `json:"servicesConfig,omitempty"`
}

// Plugin describes one discovered, but not necessarily loaded, plugin.
type Plugin struct {
	Name       string
	BinaryPath string
	Config     Config
}

// LaunchdLabel is the label this plugin registers under with the host
// supervisor.
func (p Plugin) LaunchdLabel() string {
	return fmt.Sprintf("%s.%s", launchdLabelPrefix, p.Name)
}

// MachServices lists the mach service names this plugin declares, one per
// ServicesConfig entry, in `com.apple.container.<type>.<name>` form. When
// instanceID is non-empty, every entry is suffixed `.<instanceId>` for
// per-instance addressing (InstanceLabel does the same for the label).
func (p Plugin) MachServices(instanceID string) []string {
	if p.Config.ServicesConfig == nil {
		return nil
	}
	out := make([]string, 0, len(p.Config.ServicesConfig.Services))
	for _, svc := range p.Config.ServicesConfig.Services {
		name := fmt.Sprintf("%s.%s.%s", launchdLabelPrefix, svc.Type, p.Name)
		if instanceID != "" {
			name = name + "." + instanceID
		}
		out = append(out, name)
	}
	return out
}

// DefaultArguments returns the launch arguments this plugin declares for
// its supervised process, or nil if it declares none.
func (p Plugin) DefaultArguments() []string {
	if p.Config.ServicesConfig == nil {
		return nil
	}
	return p.Config.ServicesConfig.DefaultArguments
}

// InstanceLabel returns the per-instance launchd label, `<label>.<id>`.
func (p Plugin) InstanceLabel(instanceID string) string {
	if instanceID == "" {
		return p.LaunchdLabel()
	}
	return p.LaunchdLabel() + "." + instanceID
}
