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

// Package entitystore implements a durable map from entity id to a JSON
// document on disk, with an in-memory index for fast reads. It is the
// persistence layer the Volumes (and, by contract, Plugins and Containers)
// services are built on.
package entitystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/containervm/hostd/pkg/apierr"
)

// Entity is any value with a stable id, JSON-encodable as the canonical
// on-disk representation.
type Entity interface {
	EntityID() string
}

const metadataFile = "entity.json"

// Store is a durable map[string]T rooted at a directory, one subdirectory
// per entity:
//
//	<root>/<id>/entity.json
//	<root>/<id>/<auxiliary files...>
//
// All mutating operations are serialized through a single mutex: the store
// is internally single-threaded. Reads observe the committed index.
type Store[T Entity] struct {
	root string
	log  *logrus.Entry

	mu    sync.Mutex
	index map[string]T
}

// Open constructs a store rooted at root, creating it if necessary, and
// performs a best-effort recovery walk: every entity.json under root is
// decoded; malformed entries are logged as a warning and ignored rather
// than failing the open.
func Open[T Entity](root string) (*Store[T], error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apierr.InternalErrorf("create entity store root %s: %v", root, err)
	}
	s := &Store[T]{
		root:  root,
		log:   logrus.WithField("component", "entitystore").WithField("root", root),
		index: make(map[string]T),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apierr.InternalErrorf("read entity store root %s: %v", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		var v T
		b, err := os.ReadFile(filepath.Join(root, id, metadataFile))
		if err != nil {
			if !os.IsNotExist(err) {
				s.log.WithError(err).WithField("id", id).Warn("ignoring unreadable entity")
			}
			continue
		}
		if err := json.Unmarshal(b, &v); err != nil {
			s.log.WithError(err).WithField("id", id).Warn("ignoring malformed entity")
			continue
		}
		s.index[id] = v
	}
	return s, nil
}

func (s *Store[T]) dir(id string) string  { return filepath.Join(s.root, id) }
func (s *Store[T]) path(id string) string { return filepath.Join(s.dir(id), metadataFile) }

// List returns every indexed entity in unspecified order.
func (s *Store[T]) List() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.index))
	for _, v := range s.index {
		out = append(out, v)
	}
	return out
}

// Retrieve returns the entity with the given id, if indexed.
func (s *Store[T]) Retrieve(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.index[id]
	return v, ok
}

// Create persists v, failing with Exists if its metadata file is already
// present. It creates the entity's subdirectory.
func (s *Store[T]) Create(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := v.EntityID()
	if _, err := os.Stat(s.path(id)); err == nil {
		return apierr.Existsf("entity %q already exists", id)
	}
	if err := os.MkdirAll(s.dir(id), 0o755); err != nil {
		return apierr.InternalErrorf("create entity dir for %s: %v", id, err)
	}
	if err := s.write(id, v); err != nil {
		return err
	}
	s.index[id] = v
	return nil
}

// Update persists v, failing with NotFound if its metadata file is absent.
func (s *Store[T]) Update(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := v.EntityID()
	if _, err := os.Stat(s.path(id)); err != nil {
		return apierr.NotFoundf("entity %q not found", id)
	}
	if err := s.write(id, v); err != nil {
		return err
	}
	s.index[id] = v
	return nil
}

// Upsert writes v unconditionally, creating the entity's directory on
// demand rather than requiring a prior Create.
func (s *Store[T]) Upsert(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := v.EntityID()
	if err := os.MkdirAll(s.dir(id), 0o755); err != nil {
		return apierr.InternalErrorf("create entity dir for %s: %v", id, err)
	}
	if err := s.write(id, v); err != nil {
		return err
	}
	s.index[id] = v
	return nil
}

// Delete removes the entity's subdirectory recursively, failing with
// NotFound if it was never indexed.
func (s *Store[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return apierr.NotFoundf("entity %q not found", id)
	}
	if err := os.RemoveAll(s.dir(id)); err != nil {
		return apierr.InternalErrorf("remove entity dir for %s: %v", id, err)
	}
	delete(s.index, id)
	return nil
}

// Dir returns the on-disk directory for an entity id, for callers that
// store sibling files alongside entity.json (e.g. the Volumes service's
// block image).
func (s *Store[T]) Dir(id string) string { return s.dir(id) }

func (s *Store[T]) write(id string, v T) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apierr.InternalErrorf("marshal entity %s: %v", id, err)
	}
	if err := os.WriteFile(s.path(id), b, 0o644); err != nil {
		return apierr.InternalErrorf("write entity %s: %v", id, err)
	}
	return nil
}
