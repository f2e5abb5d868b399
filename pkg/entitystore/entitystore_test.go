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

package entitystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/containervm/hostd/pkg/apierr"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r record) EntityID() string { return r.ID }

func TestCreateRetrieveDelete(t *testing.T) {
	store, err := Open[record](t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Create(record{ID: "data", Name: "first"}))

	got, ok := store.Retrieve("data")
	require.True(t, ok)
	require.Equal(t, "first", got.Name)

	require.Len(t, store.List(), 1)

	require.NoError(t, store.Delete("data"))
	_, ok = store.Retrieve("data")
	require.False(t, ok)
}

func TestCreateExistingFails(t *testing.T) {
	store, err := Open[record](t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Create(record{ID: "data"}))
	err = store.Create(record{ID: "data"})
	require.Error(t, err)
	require.Equal(t, apierr.Exists, err.(*apierr.Error).Code)
}

func TestUpdateMissingFails(t *testing.T) {
	store, err := Open[record](t.TempDir())
	require.NoError(t, err)

	err = store.Update(record{ID: "ghost"})
	require.Error(t, err)
	require.Equal(t, apierr.NotFound, err.(*apierr.Error).Code)
}

func TestUpsertCreatesDirectoryOnDemand(t *testing.T) {
	store, err := Open[record](t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Upsert(record{ID: "data", Name: "v1"}))
	got, ok := store.Retrieve("data")
	require.True(t, ok)
	require.Equal(t, "v1", got.Name)

	require.NoError(t, store.Upsert(record{ID: "data", Name: "v2"}))
	got, ok = store.Retrieve("data")
	require.True(t, ok)
	require.Equal(t, "v2", got.Name)
}

func TestDeleteMissingFails(t *testing.T) {
	store, err := Open[record](t.TempDir())
	require.NoError(t, err)

	err = store.Delete("ghost")
	require.Error(t, err)
	require.Equal(t, apierr.NotFound, err.(*apierr.Error).Code)
}

func TestOpenRecoversAndSkipsCorruptEntities(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "good"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "good", metadataFile), []byte(`{"id":"good","name":"ok"}`), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken", metadataFile), []byte(`not json`), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	store, err := Open[record](root)
	require.NoError(t, err)

	all := store.List()
	require.Len(t, all, 1)
	require.Equal(t, "good", all[0].ID)

	_, ok := store.Retrieve("broken")
	require.False(t, ok)
}

func TestListReflectsAllCreatedEntities(t *testing.T) {
	store, err := Open[record](t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Create(record{ID: "a", Name: "alpha"}))
	require.NoError(t, store.Create(record{ID: "b", Name: "beta"}))

	want := []record{{ID: "a", Name: "alpha"}, {ID: "b", Name: "beta"}}
	got := store.List()
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(x, y record) bool { return x.ID < y.ID })); diff != "" {
		t.Fatalf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestDirReturnsEntitySubdirectory(t *testing.T) {
	root := t.TempDir()
	store, err := Open[record](root)
	require.NoError(t, err)
	require.NoError(t, store.Create(record{ID: "data"}))

	require.Equal(t, filepath.Join(root, "data"), store.Dir("data"))
}
