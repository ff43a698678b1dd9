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

package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetMissingIsNotError(t *testing.T) {
	s := New()
	value, ok, err := s.Get(context.Background(), "/missing", "meta")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/a", "meta", []byte("hello")))

	value, ok, err := s.Get(ctx, "/a", "meta")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), value)
}

func TestStore_PutIsUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/a", "meta", []byte("first")))
	require.NoError(t, s.Put(ctx, "/a", "meta", []byte("second")))

	value, ok, err := s.Get(ctx, "/a", "meta")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), value)
}

func TestStore_FieldsAreIndependent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/a", "meta", []byte("m")))
	require.NoError(t, s.Put(ctx, "/a", "data", []byte("d")))

	_, ok, err := s.Get(ctx, "/a", "children")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := s.Get(ctx, "/a", "data")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("d"), value)
}

func TestStore_DeleteRemovesEveryField(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/a", "meta", []byte("m")))
	require.NoError(t, s.Put(ctx, "/a", "data", []byte("d")))
	require.NoError(t, s.Delete(ctx, "/a"))

	_, ok, err := s.Get(ctx, "/a", "meta")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Get(ctx, "/a", "data")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetReturnsACopyNotSharedBacking(t *testing.T) {
	s := New()
	ctx := context.Background()
	original := []byte("mutate me")

	require.NoError(t, s.Put(ctx, "/a", "data", original))
	original[0] = 'X'

	value, ok, err := s.Get(ctx, "/a", "data")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("mutate me"), value)

	value[0] = 'Y'
	again, ok, err := s.Get(ctx, "/a", "data")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("mutate me"), again)
}
