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

// Package namespace implements the Namespace Manager (component D): path
// resolution, parent/child linkage, and the create/rename/unlink/mkdir/
// rmdir/symlink/file-I/O surface.
package namespace

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hierfs-io/hierfs/internal/cache"
	"github.com/hierfs-io/hierfs/internal/fserrors"
	"github.com/hierfs-io/hierfs/internal/filenode"
	"github.com/hierfs-io/hierfs/internal/fsnode"
	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"
)

// Manager owns the root node and every operation that mutates the
// namespace. mu serializes the mutating methods and the fd counter; the
// read-only methods (Resolve, ParentOf, ReadFile, ReadLink, ReadDir) do
// not take it. See design note 9.e.
type Manager struct {
	mu    sync.Mutex
	cache *cache.Cache
	clock timeutil.Clock
	fd    uint64
}

// New creates a Manager with a freshly-initialized root directory, mode
// S_IFDIR|0o755, nlink 2, timestamps set to now.
func New(c *cache.Cache, clock timeutil.Clock) *Manager {
	m := &Manager{cache: c, clock: clock}
	now := clock.Now()
	root := filenode.New("/", c)
	_ = root.SetMeta(context.Background(), fsnode.Meta{
		Mode:  unix.S_IFDIR | fsnode.DefaultDirPerm,
		Nlink: 2,
		Ctime: now,
		Mtime: now,
		Atime: now,
	})
	return m
}

func dirname(p string) string {
	if p == "/" {
		return "/"
	}
	d := path.Dir(p)
	return d
}

func basename(p string) string {
	return path.Base(p)
}

// splitPath returns the path's components, discarding the leading empty
// segment from splitting on "/".
func splitPath(p string) []string {
	if p == "/" {
		return nil
	}
	trimmed := strings.TrimPrefix(p, "/")
	return strings.Split(trimmed, "/")
}

// Resolve walks from root one component at a time via ContainsChild,
// returning not-found the first time a component is missing — unlike
// the original's read_metdat, which raised a map-lookup error on an
// intermediate miss.
func (m *Manager) Resolve(ctx context.Context, p string) (*filenode.Node, error) {
	if p == "/" {
		return filenode.New("/", m.cache), nil
	}

	components := splitPath(p)
	cur := filenode.New("/", m.cache)
	for _, name := range components {
		ref, ok, err := cur.ContainsChild(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fserrors.NotFoundf("resolve %s", p)
		}
		cur = filenode.New(ref.Path, m.cache)
	}
	return cur, nil
}

// ParentOf resolves dirname(p).
func (m *Manager) ParentOf(ctx context.Context, p string) (*filenode.Node, error) {
	return m.Resolve(ctx, dirname(p))
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// link attaches a newly-created node to its parent's children and, for
// directories, bumps the parent's nlink.
func (m *Manager) link(ctx context.Context, parent *filenode.Node, ref fsnode.ChildRef) error {
	if err := parent.AddChild(ctx, ref); err != nil {
		return err
	}
	if ref.Kind != fsnode.Directory {
		return nil
	}
	meta, ok, err := parent.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fserrors.NotFoundf("link: parent %s vanished", parent.Path)
	}
	meta.Nlink++
	return parent.SetMeta(ctx, meta)
}

// AddDir creates a directory node and links it into its parent.
func (m *Manager) AddDir(ctx context.Context, p string, mode uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.ParentOf(ctx, p)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	n := filenode.New(p, m.cache)
	if err := n.SetMeta(ctx, fsnode.Meta{
		Mode:  unix.S_IFDIR | mode,
		Nlink: 2,
		Size:  0,
		Ctime: now,
		Mtime: now,
		Atime: now,
	}); err != nil {
		return err
	}

	return m.link(ctx, parent, fsnode.ChildRef{Name: basename(p), Path: p, Kind: fsnode.Directory})
}

// AddFile creates a file node and links it into its parent, returning
// the monotone fd counter shared with Open.
func (m *Manager) AddFile(ctx context.Context, p string, mode uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.ParentOf(ctx, p)
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	n := filenode.New(p, m.cache)
	if err := n.SetMeta(ctx, fsnode.Meta{
		Mode:  unix.S_IFREG | mode,
		Nlink: 1,
		Size:  0,
		Ctime: now,
		Mtime: now,
		Atime: now,
	}); err != nil {
		return 0, err
	}

	if err := m.link(ctx, parent, fsnode.ChildRef{Name: basename(p), Path: p, Kind: fsnode.File}); err != nil {
		return 0, err
	}

	m.fd++
	return m.fd, nil
}

// Open mints a new file descriptor for an existing path. It carries no
// per-fd state.
func (m *Manager) Open(_ context.Context, _ string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fd++
	return m.fd
}

// Symlink creates a symlink node pointing at source and links it into
// its parent.
func (m *Manager) Symlink(ctx context.Context, target, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.ParentOf(ctx, target)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	n := filenode.New(target, m.cache)
	if err := n.SetMeta(ctx, fsnode.Meta{
		Mode:  unix.S_IFLNK | fsnode.SymlinkPerm,
		Nlink: 1,
		Size:  int64(len(source)),
		Ctime: now,
		Mtime: now,
		Atime: now,
	}); err != nil {
		return err
	}
	if err := n.SetData(ctx, []byte(source)); err != nil {
		return err
	}

	return m.link(ctx, parent, fsnode.ChildRef{Name: basename(target), Path: target, Kind: fsnode.Symlink})
}

// writeAt applies the overwrite-from-offset rule: new = old[:offset] +
// data. The original Python's "in" precedence bug that made the
// overwrite branch unreachable is not reproduced here.
func writeAt(old []byte, offset int64, data []byte) []byte {
	if offset < 0 {
		offset = 0
	}
	if int(offset) > len(old) {
		padded := make([]byte, offset)
		copy(padded, old)
		old = padded
	}
	out := make([]byte, offset, int(offset)+len(data))
	copy(out, old[:offset])
	out = append(out, data...)
	return out
}

// WriteFile overwrites file content starting at offset, extending the
// file and zero-padding any gap if offset is past the current end.
func (m *Manager) WriteFile(ctx context.Context, p string, data []byte, offset int64) (int64, error) {
	if offset < 0 {
		return 0, fserrors.InvalidArgumentf("write %s: negative offset %d", p, offset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.Resolve(ctx, p)
	if err != nil {
		return 0, err
	}
	old, err := n.GetData(ctx)
	if err != nil {
		return 0, err
	}
	newData := writeAt(old, offset, data)
	if err := n.SetData(ctx, newData); err != nil {
		return 0, err
	}

	meta, ok, err := n.GetMeta(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fserrors.NotFoundf("write %s", p)
	}
	meta.Size = int64(len(newData))
	meta.Mtime = m.clock.Now()
	if err := n.SetMeta(ctx, meta); err != nil {
		return 0, err
	}

	return int64(len(data)), nil
}

// Truncate resizes file content to size, zero-padding if size grows
// the file and discarding the tail if it shrinks it.
func (m *Manager) Truncate(ctx context.Context, p string, size int64) error {
	if size < 0 {
		return fserrors.InvalidArgumentf("truncate %s: negative size %d", p, size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.Resolve(ctx, p)
	if err != nil {
		return err
	}
	old, err := n.GetData(ctx)
	if err != nil {
		return err
	}

	var newData []byte
	if int(size) <= len(old) {
		newData = old[:size]
	} else {
		newData = make([]byte, size)
		copy(newData, old)
	}
	if err := n.SetData(ctx, newData); err != nil {
		return err
	}

	meta, ok, err := n.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fserrors.NotFoundf("truncate %s", p)
	}
	meta.Size = size
	meta.Mtime = m.clock.Now()
	return n.SetMeta(ctx, meta)
}

// ReadFile returns up to size bytes of file content starting at offset.
func (m *Manager) ReadFile(ctx context.Context, p string, offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, fserrors.InvalidArgumentf("read %s: offset=%d size=%d", p, offset, size)
	}

	n, err := m.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	data, err := n.GetData(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(data)) {
		return []byte{}, nil
	}
	end := offset + size
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

// ReadLink returns a symlink's target.
func (m *Manager) ReadLink(ctx context.Context, p string) ([]byte, error) {
	n, err := m.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return n.GetData(ctx)
}

// ReadDir returns '.', '..', followed by the child names, in any stable
// order.
func (m *Manager) ReadDir(ctx context.Context, p string) ([]string, error) {
	n, err := m.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	kids, err := n.ListChildren(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(kids)+2)
	out = append(out, ".", "..")
	for _, k := range kids {
		out = append(out, k.Name)
	}
	return out, nil
}

// renamePair is one pending (old path, new path) move in the rename-subtree
// walk.
type renamePair struct {
	oldPath, newPath string
}

// renameSubtree rewrites the durable/cache keys of every descendant of a
// renamed node, by walking the live tree breadth-first and recreating each
// record under its new path before deleting the old one. This is strategy
// (i) from design note 9.b: a stable node-id with a separate path→id index
// would avoid the rewrite, but would also mean every other operation
// needs to go through an id-indirection layer; for a single-threaded,
// path-keyed store, rewriting descendant keys at rename time is the
// smaller change and keeps every other component ignorant of ids.
func (m *Manager) renameSubtree(ctx context.Context, oldPath, newPath string) error {
	var q queue[renamePair]
	q.push(renamePair{oldPath, newPath})

	var moved []string
	for !q.isEmpty() {
		pair := q.pop()

		oldNode := filenode.New(pair.oldPath, m.cache)
		meta, ok, err := oldNode.GetMeta(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fserrors.NotFoundf("rename: %s vanished mid-move", pair.oldPath)
		}
		data, err := oldNode.GetData(ctx)
		if err != nil {
			return err
		}
		children, err := oldNode.ListChildren(ctx)
		if err != nil {
			return err
		}

		newNode := filenode.New(pair.newPath, m.cache)
		if err := newNode.SetMeta(ctx, meta); err != nil {
			return err
		}
		if err := newNode.SetData(ctx, data); err != nil {
			return err
		}

		for _, child := range children {
			childNewPath := joinPath(pair.newPath, child.Name)
			if err := newNode.AddChild(ctx, fsnode.ChildRef{
				Name: child.Name,
				Path: childNewPath,
				Kind: child.Kind,
			}); err != nil {
				return err
			}
			q.push(renamePair{child.Path, childNewPath})
		}

		moved = append(moved, pair.oldPath)
	}

	for _, p := range moved {
		if err := m.cache.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Rename moves a node (and, for a directory, its whole subtree) to a
// new path.
func (m *Manager) Rename(ctx context.Context, oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newParent, err := m.ParentOf(ctx, newPath)
	if err != nil {
		return err
	}

	oldParent, err := m.ParentOf(ctx, oldPath)
	if err != nil {
		return err
	}
	name := basename(oldPath)
	ref, ok, err := oldParent.ContainsChild(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fserrors.NotFoundf("rename: %s not found", oldPath)
	}

	if err := oldParent.RemoveChild(ctx, name); err != nil {
		return err
	}
	if ref.Kind == fsnode.Directory {
		parentMeta, ok, err := oldParent.GetMeta(ctx)
		if err != nil {
			return err
		}
		if ok {
			parentMeta.Nlink--
			if err := oldParent.SetMeta(ctx, parentMeta); err != nil {
				return err
			}
		}
	}

	if err := m.renameSubtree(ctx, oldPath, newPath); err != nil {
		return err
	}

	return m.link(ctx, newParent, fsnode.ChildRef{
		Name: basename(newPath),
		Path: newPath,
		Kind: ref.Kind,
	})
}

// Utimens sets atime/mtime. A nil pointer for either timestamp means
// "use now" for that field, matching the original's
// `times if times else (now, now)`.
func (m *Manager) Utimens(ctx context.Context, p string, atime, mtime *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.Resolve(ctx, p)
	if err != nil {
		return err
	}
	meta, ok, err := n.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fserrors.NotFoundf("utimens %s", p)
	}

	now := m.clock.Now()
	if atime != nil {
		meta.Atime = *atime
	} else {
		meta.Atime = now
	}
	if mtime != nil {
		meta.Mtime = *mtime
	} else {
		meta.Mtime = now
	}
	return n.SetMeta(ctx, meta)
}

// DeleteNode removes a node from its parent and purges its record,
// used by both unlink and rmdir.
func (m *Manager) DeleteNode(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.ParentOf(ctx, p)
	if err != nil {
		return err
	}
	n, err := m.Resolve(ctx, p)
	if err != nil {
		return err
	}
	meta, ok, err := n.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fserrors.NotFoundf("delete %s", p)
	}

	if err := parent.RemoveChild(ctx, basename(p)); err != nil {
		return err
	}
	if meta.Kind() == fsnode.Directory {
		parentMeta, ok, err := parent.GetMeta(ctx)
		if err != nil {
			return err
		}
		if ok {
			parentMeta.Nlink--
			if err := parent.SetMeta(ctx, parentMeta); err != nil {
				return err
			}
		}
	}

	return m.cache.Delete(ctx, p)
}

// UpdateMeta chmods when mode is non-nil and chowns when uid/gid are
// non-nil. The mask 0o770000 below is carried unchanged from the
// original's chmod branch; it is not the POSIX S_IFMT mask, but it is
// the original's own documented behavior, kept rather than silently
// corrected.
func (m *Manager) UpdateMeta(ctx context.Context, p string, mode *uint32, uid, gid *uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.Resolve(ctx, p)
	if err != nil {
		return err
	}
	meta, ok, err := n.GetMeta(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fserrors.NotFoundf("update_meta %s", p)
	}

	if mode != nil {
		meta.Mode = (meta.Mode & 0o770000) | *mode
	}
	if uid != nil {
		meta.Uid = uid
	}
	if gid != nil {
		meta.Gid = gid
	}
	return n.SetMeta(ctx, meta)
}
