// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package memstore is the Form A (in-memory variant, spec §6) backend for
// the Persistent Node Store: a process-local map with no external
// dependency, for use when no store-url is given on the command line.
package memstore

import (
	"context"
	"sync"

	"github.com/hierfs-io/hierfs/internal/store"
)

type Store struct {
	mu      sync.Mutex
	records map[string]map[string][]byte
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{records: make(map[string]map[string][]byte)}
}

func (s *Store) Put(_ context.Context, path, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.records[path]
	if !ok {
		fields = make(map[string][]byte)
		s.records[path] = fields
	}
	// Copy so the caller can't mutate our stored bytes behind our back.
	cp := make([]byte, len(value))
	copy(cp, value)
	fields[field] = cp
	return nil
}

func (s *Store) Get(_ context.Context, path, field string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.records[path]
	if !ok {
		return nil, false, nil
	}
	value, ok := fields[field]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, true, nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, path)
	return nil
}
