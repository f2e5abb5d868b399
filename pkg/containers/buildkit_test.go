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

package containers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildkitManagerReusesInstanceForSameSpec(t *testing.T) {
	m := &BuildkitManager{}
	calls := 0
	newInstance := func(spec BuildkitSpec) (any, error) {
		calls++
		return spec, nil
	}

	spec := BuildkitSpec{Image: "buildkit:latest", CPUs: 2, MemoryMiB: 2048}
	first, err := m.Get(spec, newInstance)
	require.NoError(t, err)
	second, err := m.Get(spec, newInstance)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
}

func TestBuildkitManagerRecreatesOnSpecChange(t *testing.T) {
	m := &BuildkitManager{}
	calls := 0
	newInstance := func(spec BuildkitSpec) (any, error) {
		calls++
		return spec, nil
	}

	_, err := m.Get(BuildkitSpec{Image: "a", CPUs: 1}, newInstance)
	require.NoError(t, err)
	_, err = m.Get(BuildkitSpec{Image: "b", CPUs: 1}, newInstance)
	require.NoError(t, err)

	require.Equal(t, 2, calls)
}

func TestBuildkitManagerResetForcesRecreate(t *testing.T) {
	m := &BuildkitManager{}
	calls := 0
	newInstance := func(spec BuildkitSpec) (any, error) {
		calls++
		return spec, nil
	}

	spec := BuildkitSpec{Image: "a"}
	_, err := m.Get(spec, newInstance)
	require.NoError(t, err)
	m.Reset()
	_, err = m.Get(spec, newInstance)
	require.NoError(t, err)

	require.Equal(t, 2, calls)
}
