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

package volumes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"data":        true,
		"data-1":      true,
		"data.v2":     true,
		"":            false,
		".hidden":     false,
		"-leading":    false,
		"has space":   false,
		"has/slash":   false,
	}
	for name, want := range cases {
		require.Equal(t, want, ValidName(name), "name=%q", name)
	}
}

func TestValidNameLengthBoundary(t *testing.T) {
	ok := make([]byte, 255)
	for i := range ok {
		ok[i] = 'a'
	}
	require.True(t, ValidName(string(ok)))

	tooLong := make([]byte, 256)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	require.False(t, ValidName(string(tooLong)))
}

func TestParseSizeDefault(t *testing.T) {
	n, err := ParseSize("", 42)
	require.NoError(t, err)
	require.EqualValues(t, 42, n)
}

func TestParseSizeBelowMinimum(t *testing.T) {
	_, err := ParseSize("1", DefaultSize)
	require.Error(t, err)
}

func TestParseSizeValid(t *testing.T) {
	n, err := ParseSize("10M", DefaultSize)
	require.NoError(t, err)
	require.EqualValues(t, 10<<20, n)
}

func TestParseSizeInvalidUnit(t *testing.T) {
	_, err := ParseSize("not-a-size", DefaultSize)
	require.Error(t, err)
}
