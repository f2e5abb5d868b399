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

package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesOnCodeWhenMessageEmpty(t *testing.T) {
	err := NotFoundf("volume %q missing", "data")
	require.True(t, errors.Is(err, NotFoundf("")))
	require.False(t, errors.Is(err, Existsf("")))
}

func TestIsRequiresExactMessageWhenSet(t *testing.T) {
	err := NotFoundf("volume %q missing", "data")
	require.True(t, errors.Is(err, NotFoundf("volume %q missing", "data")))
	require.False(t, errors.Is(err, NotFoundf("volume %q missing", "other")))
}

func TestFromPassesThroughStructuredError(t *testing.T) {
	orig := InvalidArgumentf("bad")
	require.Same(t, orig, From(orig))
}

func TestFromClassifiesUnknown(t *testing.T) {
	err := From(errors.New("boom"))
	require.Equal(t, Unknown, err.Code)
	require.Equal(t, "boom", err.Message)
}

func TestFromNil(t *testing.T) {
	require.Nil(t, From(nil))
}

func TestErrorString(t *testing.T) {
	err := InvalidStatef("volume %q is in use", "data")
	require.Equal(t, `invalidState: volume "data" is in use`, err.Error())
}

func TestVolumeInUseAndPluginHelpers(t *testing.T) {
	require.Equal(t, InvalidState, VolumeInUse("data").Code)
	require.Equal(t, NotFound, PluginNotFound("cli").Code)
	require.Equal(t, InvalidState, PluginNotLoaded("cli").Code)
}
