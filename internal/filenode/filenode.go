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

// Package filenode implements the File Node (component C): a lightweight,
// stateless handle identified by an absolute path. Every accessor routes
// through the Node Cache; a Node keeps no independent copy of meta, data
// or children, so two Node values for the same path are always
// interchangeable.
package filenode

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/hierfs-io/hierfs/internal/cache"
	"github.com/hierfs-io/hierfs/internal/fsnode"
)

// Node is a handle onto the record at Path. It holds no state of its own.
type Node struct {
	Path  string
	cache *cache.Cache
}

// New returns a handle for path, backed by c.
func New(path string, c *cache.Cache) *Node {
	return &Node{Path: path, cache: c}
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(raw []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// GetMeta returns the node's metadata, or ok == false if it has never
// been set (e.g. the node doesn't exist).
func (n *Node) GetMeta(ctx context.Context) (fsnode.Meta, bool, error) {
	raw, ok, err := n.cache.Get(ctx, n.Path, fsnode.FieldMeta)
	if err != nil || !ok {
		return fsnode.Meta{}, ok, err
	}
	var m fsnode.Meta
	if err := decode(raw, &m); err != nil {
		return fsnode.Meta{}, false, err
	}
	return m, true, nil
}

// SetMeta writes m through the cache to the store.
func (n *Node) SetMeta(ctx context.Context, m fsnode.Meta) error {
	raw, err := encode(m)
	if err != nil {
		return err
	}
	return n.cache.Put(ctx, n.Path, fsnode.FieldMeta, raw)
}

// GetData returns the node's content bytes: file contents, symlink
// target, or empty for a directory.
func (n *Node) GetData(ctx context.Context) ([]byte, error) {
	raw, ok, err := n.cache.Get(ctx, n.Path, fsnode.FieldData)
	if err != nil || !ok {
		return nil, err
	}
	return raw, nil
}

// SetData writes data through the cache to the store.
func (n *Node) SetData(ctx context.Context, data []byte) error {
	return n.cache.Put(ctx, n.Path, fsnode.FieldData, data)
}

func (n *Node) getChildren(ctx context.Context) (map[string]fsnode.ChildRef, error) {
	raw, ok, err := n.cache.Get(ctx, n.Path, fsnode.FieldChildren)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]fsnode.ChildRef{}, nil
	}
	var kids map[string]fsnode.ChildRef
	if err := decode(raw, &kids); err != nil {
		return nil, err
	}
	if kids == nil {
		kids = map[string]fsnode.ChildRef{}
	}
	return kids, nil
}

func (n *Node) putChildren(ctx context.Context, kids map[string]fsnode.ChildRef) error {
	raw, err := encode(kids)
	if err != nil {
		return err
	}
	return n.cache.Put(ctx, n.Path, fsnode.FieldChildren, raw)
}

// ListChildren returns the directory entries of n, empty for a
// non-directory.
func (n *Node) ListChildren(ctx context.Context) ([]fsnode.ChildRef, error) {
	kids, err := n.getChildren(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]fsnode.ChildRef, 0, len(kids))
	for _, c := range kids {
		out = append(out, c)
	}
	return out, nil
}

// ContainsChild returns the ChildRef for name, or ok == false if absent.
// A file node (as opposed to a directory) always reports not-found.
func (n *Node) ContainsChild(ctx context.Context, name string) (fsnode.ChildRef, bool, error) {
	meta, ok, err := n.GetMeta(ctx)
	if err != nil {
		return fsnode.ChildRef{}, false, err
	}
	if !ok || meta.Kind() != fsnode.Directory {
		return fsnode.ChildRef{}, false, nil
	}
	kids, err := n.getChildren(ctx)
	if err != nil {
		return fsnode.ChildRef{}, false, err
	}
	ref, ok := kids[name]
	return ref, ok, nil
}

// AddChild reads the current children, inserts ref, and writes the
// updated mapping back through the cache.
func (n *Node) AddChild(ctx context.Context, ref fsnode.ChildRef) error {
	kids, err := n.getChildren(ctx)
	if err != nil {
		return err
	}
	kids[ref.Name] = ref
	return n.putChildren(ctx, kids)
}

// RemoveChild deletes name from the current children and writes the
// updated mapping back through the cache.
func (n *Node) RemoveChild(ctx context.Context, name string) error {
	kids, err := n.getChildren(ctx)
	if err != nil {
		return err
	}
	delete(kids, name)
	return n.putChildren(ctx, kids)
}
