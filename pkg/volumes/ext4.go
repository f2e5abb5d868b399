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

	"github.com/containervm/hostd/pkg/apierr"
)

// Formatter creates a filesystem image of the given size at path. The
// spec treats the actual EXT4 formatter as an external collaborator; the
// default implementation shells out to mkfs.ext4, mirroring the way the
// teacher's svc package drives docker-compose as a subprocess rather than
// linking against it.
type Formatter interface {
	Format(path string, sizeBytes int64) error
}

// execFormatter is the production Formatter: truncate a sparse file to the
// requested size, then hand it to mkfs.ext4.
type execFormatter struct {
	// NewCmd is overridable in tests so mkfs never actually runs.
	NewCmd func(name string, arg ...string) *exec.Cmd
}

// NewExecFormatter returns the default mkfs.ext4-backed Formatter.
func NewExecFormatter() Formatter {
	return &execFormatter{NewCmd: exec.Command}
}

func (f *execFormatter) Format(path string, sizeBytes int64) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return apierr.InternalErrorf("create block image %s: %v", path, err)
	}
	if err := file.Truncate(sizeBytes); err != nil {
		file.Close()
		return apierr.InternalErrorf("truncate block image %s to %d bytes: %v", path, sizeBytes, err)
	}
	if err := file.Close(); err != nil {
		return apierr.InternalErrorf("close block image %s: %v", path, err)
	}

	cmd := f.NewCmd("mkfs.ext4", "-q", "-F", "-b", "4096", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return apierr.InternalErrorf("mkfs.ext4 %s: %v: %s", path, err, out)
	}
	return nil
}
