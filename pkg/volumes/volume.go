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

// Package volumes implements the Volumes service: named volumes backed by
// an EXT4 block file, with the cross-service "not in use" invariant
// enforced against the Containers service's mount list.
package volumes

import (
	"regexp"

	"github.com/docker/go-units"

	"github.com/containervm/hostd/pkg/apierr"
)

const (
	// MinSize is the minimum accepted block image size, 1 MiB.
	MinSize = 1 << 20
	// DefaultSize is used when driverOpts carries no "size" option, 512 GiB.
	DefaultSize = 512 * (1 << 30)
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,254}$`)

// ValidName reports whether name satisfies the volume naming grammar.
func ValidName(name string) bool {
	return nameRE.MatchString(name)
}

// Volume is the persisted, immutable-after-create record for a named
// volume.
type Volume struct {
	Name    string            `json:"name"`
	Driver  string            `json:"driver"`
	Format  string            `json:"format"`
	Source  string            `json:"source"`
	Labels  map[string]string `json:"labels,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// EntityID implements entitystore.Entity.
func (v Volume) EntityID() string { return v.Name }

// ParseSize parses a driverOpts["size"] value using a K|M|G|T binary unit
// grammar. An empty string returns def unchanged.
func ParseSize(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	n, err := units.RAMInBytes(raw)
	if err != nil {
		return 0, apierr.InvalidArgumentf("invalid size %q: %v", raw, err)
	}
	if n < MinSize {
		return 0, apierr.InvalidArgumentf("size %q is below the 1 MiB minimum", raw)
	}
	return n, nil
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
