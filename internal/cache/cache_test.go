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

package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/hierfs-io/hierfs/internal/fsnode"
	"github.com/hierfs-io/hierfs/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissIsNotError(t *testing.T) {
	c := New(4, memstore.New())
	value, ok, err := c.Get(context.Background(), "/missing", fsnode.FieldMeta)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestCache_PutReachesStoreBeforeReturning(t *testing.T) {
	backing := memstore.New()
	c := New(4, backing)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "/a", fsnode.FieldData, []byte("payload")))

	value, ok, err := backing.Get(ctx, "/a", fsnode.FieldData)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)
}

func TestCache_GetAfterPutHitsWithoutTouchingStoreAgain(t *testing.T) {
	backing := memstore.New()
	c := New(4, backing)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "/a", fsnode.FieldMeta, []byte("m")))
	// Remove the durable copy behind the cache's back: a hit must not
	// need it.
	require.NoError(t, backing.Delete(ctx, "/a"))

	value, ok, err := c.Get(ctx, "/a", fsnode.FieldMeta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("m"), value)
}

func TestCache_ColdMissMaterializesFromStore(t *testing.T) {
	backing := memstore.New()
	ctx := context.Background()
	require.NoError(t, backing.Put(ctx, "/a", fsnode.FieldMeta, []byte("m")))

	c := New(4, backing)
	assert.False(t, c.Contains("/a"))

	value, ok, err := c.Get(ctx, "/a", fsnode.FieldMeta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("m"), value)
	assert.True(t, c.Contains("/a"))
}

func TestCache_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := New(2, memstore.New())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "/a", fsnode.FieldMeta, []byte("a")))
	require.NoError(t, c.Put(ctx, "/b", fsnode.FieldMeta, []byte("b")))
	// Touch /a so /b becomes the least recently used entry.
	_, _, err := c.Get(ctx, "/a", fsnode.FieldMeta)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "/c", fsnode.FieldMeta, []byte("c")))

	assert.True(t, c.Contains("/a"))
	assert.True(t, c.Contains("/c"))
	assert.LessOrEqual(t, c.Len(), 2)
}

func TestCache_EvictionIsAPureDropNotWriteBack(t *testing.T) {
	backing := memstore.New()
	c := New(1, backing)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "/a", fsnode.FieldMeta, []byte("a")))
	require.NoError(t, c.Put(ctx, "/b", fsnode.FieldMeta, []byte("b")))
	assert.False(t, c.Contains("/a"))

	// /a's record is still durable: eviction from the LRU never deletes
	// from the store, since the write-through already landed it there.
	value, ok, err := backing.Get(ctx, "/a", fsnode.FieldMeta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), value)
}

func TestCache_DeletePurgesBothLayers(t *testing.T) {
	backing := memstore.New()
	c := New(4, backing)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "/a", fsnode.FieldMeta, []byte("a")))
	require.NoError(t, c.Delete(ctx, "/a"))

	assert.False(t, c.Contains("/a"))
	_, ok, err := backing.Get(ctx, "/a", fsnode.FieldMeta)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_ContainsPromotesRecency(t *testing.T) {
	c := New(2, memstore.New())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "/a", fsnode.FieldMeta, []byte("a")))
	require.NoError(t, c.Put(ctx, "/b", fsnode.FieldMeta, []byte("b")))
	assert.True(t, c.Contains("/a"))

	require.NoError(t, c.Put(ctx, "/c", fsnode.FieldMeta, []byte("c")))

	assert.True(t, c.Contains("/a"))
	assert.False(t, c.Contains("/b"))
}

func TestCache_ZeroCapacityFallsBackToDefault(t *testing.T) {
	c := New(0, memstore.New())
	ctx := context.Background()
	for i := 0; i < DefaultCapacity+1; i++ {
		require.NoError(t, c.Put(ctx, fmt.Sprintf("/n%d", i), fsnode.FieldMeta, []byte("x")))
	}
	assert.Equal(t, DefaultCapacity, c.Len())
}
