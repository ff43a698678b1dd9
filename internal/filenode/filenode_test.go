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

package filenode

import (
	"context"
	"testing"
	"time"

	"github.com/hierfs-io/hierfs/internal/cache"
	"github.com/hierfs-io/hierfs/internal/fsnode"
	"github.com/hierfs-io/hierfs/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestCache() *cache.Cache {
	return cache.New(8, memstore.New())
}

func TestNode_GetMetaOnUnsetNodeIsNotFound(t *testing.T) {
	n := New("/a", newTestCache())
	_, ok, err := n.GetMeta(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNode_SetMetaThenGetMetaRoundTrips(t *testing.T) {
	n := New("/a", newTestCache())
	ctx := context.Background()
	now := time.Now()

	want := fsnode.Meta{Mode: unix.S_IFREG | 0o644, Nlink: 1, Size: 42, Ctime: now, Mtime: now, Atime: now}
	require.NoError(t, n.SetMeta(ctx, want))

	got, ok, err := n.GetMeta(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, fsnode.File, got.Kind())
}

func TestNode_SetDataThenGetDataRoundTrips(t *testing.T) {
	n := New("/a", newTestCache())
	ctx := context.Background()

	require.NoError(t, n.SetData(ctx, []byte("payload")))

	data, err := n.GetData(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestNode_GetDataOnUnsetNodeIsEmptyNotError(t *testing.T) {
	n := New("/a", newTestCache())
	data, err := n.GetData(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestNode_ContainsChildFalseForNonDirectory(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	n := New("/a", c)
	require.NoError(t, n.SetMeta(ctx, fsnode.Meta{Mode: unix.S_IFREG | 0o644}))

	_, ok, err := n.ContainsChild(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNode_AddChildThenContainsChild(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	dir := New("/dir", c)
	require.NoError(t, dir.SetMeta(ctx, fsnode.Meta{Mode: unix.S_IFDIR | 0o755, Nlink: 2}))

	ref := fsnode.ChildRef{Name: "child", Path: "/dir/child", Kind: fsnode.File}
	require.NoError(t, dir.AddChild(ctx, ref))

	got, ok, err := dir.ContainsChild(ctx, "child")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ref, got)
}

func TestNode_RemoveChildDropsIt(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	dir := New("/dir", c)
	require.NoError(t, dir.SetMeta(ctx, fsnode.Meta{Mode: unix.S_IFDIR | 0o755, Nlink: 2}))
	require.NoError(t, dir.AddChild(ctx, fsnode.ChildRef{Name: "child", Path: "/dir/child", Kind: fsnode.File}))

	require.NoError(t, dir.RemoveChild(ctx, "child"))

	_, ok, err := dir.ContainsChild(ctx, "child")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNode_ListChildrenEmptyForFreshDirectory(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	dir := New("/dir", c)
	require.NoError(t, dir.SetMeta(ctx, fsnode.Meta{Mode: unix.S_IFDIR | 0o755, Nlink: 2}))

	kids, err := dir.ListChildren(ctx)
	require.NoError(t, err)
	assert.Empty(t, kids)
}
