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
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecFormatterTruncatesAndInvokesMkfs(t *testing.T) {
	var recordedArgs []string
	f := &execFormatter{NewCmd: func(name string, arg ...string) *exec.Cmd {
		recordedArgs = append([]string{name}, arg...)
		return exec.Command("true")
	}}

	path := filepath.Join(t.TempDir(), "volume.img")
	require.NoError(t, f.Format(path, 4<<20))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 4<<20, info.Size())

	require.Equal(t, []string{"mkfs.ext4", "-q", "-F", "-b", "4096", path}, recordedArgs)
}

func TestExecFormatterPropagatesMkfsFailure(t *testing.T) {
	f := &execFormatter{NewCmd: func(name string, arg ...string) *exec.Cmd {
		return exec.Command("false")
	}}

	path := filepath.Join(t.TempDir(), "volume.img")
	err := f.Format(path, 1<<20)
	require.Error(t, err)
}
