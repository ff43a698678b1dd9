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

// Package fsnode holds the data model shared by the store, cache and
// namespace layers: the recognized node fields (meta, data, children) and
// the POSIX mode bits that classify a node as a file, directory or
// symlink.
package fsnode

import (
	"time"

	"golang.org/x/sys/unix"
)

// Kind classifies a node. It is derived from Meta.Mode, never stored
// independently.
type Kind int

const (
	File Kind = iota
	Directory
	Symlink
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// KindOf derives the Kind from a raw st_mode value.
func KindOf(mode uint32) Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return Directory
	case unix.S_IFLNK:
		return Symlink
	default:
		return File
	}
}

// Meta is the recognized metadata mapping: st_mode, st_nlink, st_size,
// the three timestamps, and optional ownership.
type Meta struct {
	Mode  uint32
	Nlink uint32
	Size  int64
	Ctime time.Time
	Mtime time.Time
	Atime time.Time
	Uid   *uint32
	Gid   *uint32
}

// Kind reports the Kind implied by Mode.
func (m Meta) Kind() Kind { return KindOf(m.Mode) }

// ChildRef is a directory entry: a lightweight pointer from a child name to
// the child's path and kind. The durable "children" field for a directory
// is a map of these, not a nested copy of the child's own record, and no
// record carries a back-pointer to its parent: the parent is found from
// the path string.
type ChildRef struct {
	Name string
	Path string
	Kind Kind
}

const (
	FieldMeta     = "meta"
	FieldData     = "data"
	FieldChildren = "children"
)

// DefaultFilePerm and DefaultDirPerm mirror the permission bits the
// original Memory filesystem used when it had no caller-supplied mode
// (e.g. the implicit root directory).
const (
	DefaultDirPerm  = 0o755
	DefaultFilePerm = 0o644
	SymlinkPerm     = 0o777
)
