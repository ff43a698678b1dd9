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

// Package fs is the Operation Surface (component E): a thin
// fuseops.FileSystem adapter that translates kernel requests into calls
// against the Namespace Manager and converts its errors to errno values.
// It owns nothing about meta/data/children beyond the inode-ID <-> path
// index the kernel's API requires; every other piece of state lives in
// the layers below.
package fs

import (
	"errors"
	"fmt"
	"os"

	"github.com/hierfs-io/hierfs/internal/fserrors"
	"github.com/hierfs-io/hierfs/internal/fsmetrics"
	"github.com/hierfs-io/hierfs/internal/fsnode"
	"github.com/hierfs-io/hierfs/internal/logger"
	"github.com/hierfs-io/hierfs/internal/namespace"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
)

// ServerConfig bundles everything NewServer needs to build a mountable
// fuse.Server, the way gcsfuse's ServerConfig configures its fileSystem.
type ServerConfig struct {
	Manager *namespace.Manager
	Uid     uint32
	Gid     uint32
}

// NewServer wraps a namespace.Manager in a fuseops.FileSystem and returns
// the fuse.Server that drives it.
func NewServer(cfg *ServerConfig) (server fuse.Server, err error) {
	fs := &fileSystem{
		mgr:         cfg.Manager,
		uid:         cfg.Uid,
		gid:         cfg.Gid,
		paths:       map[string]fuseops.InodeID{"/": fuseops.RootInodeID},
		inodes:      map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
		lookupCount: map[fuseops.InodeID]uint64{fuseops.RootInodeID: 1},
		nextInodeID: fuseops.RootInodeID + 1,
		handles:     map[fuseops.HandleID]uint64{},
	}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	server = fuseutil.NewFileSystemServer(fs)
	return
}

// fileSystem bridges fuseops' inode-ID addressing to the Namespace
// Manager's path addressing. A single coarse lock protects the index;
// every actual mutation is delegated to mgr, which does its own locking.
//
// LOCKS_EXCLUDED(mgr)
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	mgr *namespace.Manager
	uid uint32
	gid uint32

	// GUARDED_BY(mu)
	mu syncutil.InvariantMutex

	// paths maps an absolute path to the inode ID the kernel knows it by,
	// and inodes is its inverse. A path only appears here while the
	// kernel holds a non-zero lookup count on it.
	//
	// INVARIANT: For all keys k in inodes, fuseops.RootInodeID <= k < nextInodeID
	// INVARIANT: For all k, v in paths, inodes[v] == k
	// INVARIANT: For all k, v in inodes, paths[v] == k
	// INVARIANT: dom(lookupCount) == dom(inodes)
	//
	// GUARDED_BY(mu)
	paths       map[string]fuseops.InodeID
	inodes      map[fuseops.InodeID]string
	lookupCount map[fuseops.InodeID]uint64
	nextInodeID fuseops.InodeID

	// handles maps a directory or file handle to the fd the Namespace
	// Manager minted for it (namespace.Open, or namespace.AddFile for a
	// handle returned by CreateFile). The value is never consulted again; the Namespace
	// Manager keeps no per-handle state beyond the counter itself, so the
	// map's only purpose is remembering which handles are currently live.
	//
	// INVARIANT: For all keys k in handles, k <= nextHandle
	//
	// GUARDED_BY(mu)
	handles    map[fuseops.HandleID]uint64
	nextHandle fuseops.HandleID
}

// checkInvariants is run by fs.mu right after each Lock and right before
// each Unlock when syncutil's invariant checking is enabled, the way
// gcsfuse's fileSystem.checkInvariants runs under its own
// syncutil.InvariantMutex.
// It panics on the first violation rather than letting a corrupted index
// silently misroute later kernel requests.
func (fs *fileSystem) checkInvariants() {
	for id := range fs.inodes {
		if id < fuseops.RootInodeID || id >= fs.nextInodeID {
			panic(fmt.Sprintf("illegal inode ID: %v", id))
		}
	}

	for path, id := range fs.paths {
		if fs.inodes[id] != path {
			panic(fmt.Sprintf("paths/inodes mismatch: paths[%q] = %v, inodes[%v] = %q", path, id, id, fs.inodes[id]))
		}
	}
	for id, path := range fs.inodes {
		if fs.paths[path] != id {
			panic(fmt.Sprintf("inodes/paths mismatch: inodes[%v] = %q, paths[%q] = %v", id, path, path, fs.paths[path]))
		}
	}

	if len(fs.lookupCount) != len(fs.inodes) {
		panic(fmt.Sprintf("lookupCount/inodes cardinality mismatch: %d vs %d", len(fs.lookupCount), len(fs.inodes)))
	}
	for id := range fs.lookupCount {
		if _, ok := fs.inodes[id]; !ok {
			panic(fmt.Sprintf("lookupCount has no matching inode: %v", id))
		}
	}

	for id := range fs.handles {
		if id > fs.nextHandle {
			panic(fmt.Sprintf("illegal handle ID: %v", id))
		}
	}
}

func errKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fserrors.NotFound):
		return "not_found"
	case errors.Is(err, fserrors.StoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, fserrors.InvalidArgument):
		return "invalid_argument"
	default:
		return "other"
	}
}

// dispatch logs and counts one operation, then converts its result to the
// errno fuseops expects.
func dispatch(op, path string, err error) error {
	fsmetrics.OperationsTotal.WithLabelValues(op).Inc()
	converted := fserrors.ToErrno(err)
	if converted != nil {
		fsmetrics.OperationErrorsTotal.WithLabelValues(op, errKind(err)).Inc()
		logger.Op(op, path, "error", converted)
	} else {
		logger.Op(op, path)
	}
	return converted
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) pathFor(id fuseops.InodeID) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, ok := fs.inodes[id]
	return p, ok
}

// internInode returns the inode ID for path, minting a fresh one and
// bumping its lookup count if the kernel has not seen it before.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) internInode(path string) fuseops.InodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if id, ok := fs.paths[path]; ok {
		fs.lookupCount[id]++
		return id
	}

	id := fs.nextInodeID
	fs.nextInodeID++
	fs.paths[path] = id
	fs.inodes[id] = path
	fs.lookupCount[id] = 1
	return id
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) mintHandle(fd uint64) fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextHandle++
	fs.handles[fs.nextHandle] = fd
	return fs.nextHandle
}

func kindToFileMode(k fsnode.Kind) os.FileMode {
	switch k {
	case fsnode.Directory:
		return os.ModeDir
	case fsnode.Symlink:
		return os.ModeSymlink
	default:
		return 0
	}
}

func (fs *fileSystem) toAttrs(m fsnode.Meta) fuseops.InodeAttributes {
	uid, gid := fs.uid, fs.gid
	if m.Uid != nil {
		uid = *m.Uid
	}
	if m.Gid != nil {
		gid = *m.Gid
	}
	return fuseops.InodeAttributes{
		Size:  uint64(m.Size),
		Nlink: uint64(m.Nlink),
		Mode:  os.FileMode(m.Mode&^0o170000) | kindToFileMode(m.Kind()),
		Atime: m.Atime,
		Mtime: m.Mtime,
		Ctime: m.Ctime,
		Uid:   uid,
		Gid:   gid,
	}
}

func (fs *fileSystem) Init(
	op *fuseops.InitOp) (err error) {
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(
	op *fuseops.LookUpInodeOp) (err error) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		err = dispatch("LookUpInode", "", fserrors.NotFound)
		return
	}

	childPath := joinPath(parentPath, op.Name)
	n, err := fs.mgr.Resolve(op.Context(), childPath)
	if err != nil {
		err = dispatch("LookUpInode", childPath, err)
		return
	}
	meta, found, err := n.GetMeta(op.Context())
	if err != nil {
		err = dispatch("LookUpInode", childPath, err)
		return
	}
	if !found {
		err = dispatch("LookUpInode", childPath, fserrors.NotFound)
		return
	}

	op.Entry.Child = fs.internInode(childPath)
	op.Entry.Attributes = fs.toAttrs(meta)

	err = dispatch("LookUpInode", childPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(
	op *fuseops.GetInodeAttributesOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("GetInodeAttributes", "", fserrors.NotFound)
		return
	}

	n, err := fs.mgr.Resolve(op.Context(), p)
	if err != nil {
		err = dispatch("GetInodeAttributes", p, err)
		return
	}
	meta, found, err := n.GetMeta(op.Context())
	if err != nil {
		err = dispatch("GetInodeAttributes", p, err)
		return
	}
	if !found {
		err = dispatch("GetInodeAttributes", p, fserrors.NotFound)
		return
	}

	op.Attributes = fs.toAttrs(meta)
	err = dispatch("GetInodeAttributes", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SetInodeAttributes(
	op *fuseops.SetInodeAttributesOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("SetInodeAttributes", "", fserrors.NotFound)
		return
	}

	if op.Size != nil {
		if err = fs.mgr.Truncate(op.Context(), p, int64(*op.Size)); err != nil {
			err = dispatch("SetInodeAttributes", p, err)
			return
		}
	}
	if op.Mode != nil {
		mode := uint32(op.Mode.Perm())
		if err = fs.mgr.UpdateMeta(op.Context(), p, &mode, nil, nil); err != nil {
			err = dispatch("SetInodeAttributes", p, err)
			return
		}
	}
	if op.Atime != nil || op.Mtime != nil {
		if err = fs.mgr.Utimens(op.Context(), p, op.Atime, op.Mtime); err != nil {
			err = dispatch("SetInodeAttributes", p, err)
			return
		}
	}

	n, err := fs.mgr.Resolve(op.Context(), p)
	if err != nil {
		err = dispatch("SetInodeAttributes", p, err)
		return
	}
	meta, found, err := n.GetMeta(op.Context())
	if err != nil {
		err = dispatch("SetInodeAttributes", p, err)
		return
	}
	if !found {
		err = dispatch("SetInodeAttributes", p, fserrors.NotFound)
		return
	}

	op.Attributes = fs.toAttrs(meta)
	err = dispatch("SetInodeAttributes", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ForgetInode(
	op *fuseops.ForgetInodeOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.inodes[op.Inode]
	if !ok {
		err = dispatch("ForgetInode", "", nil)
		return
	}

	if fs.lookupCount[op.Inode] <= op.N {
		delete(fs.lookupCount, op.Inode)
		delete(fs.inodes, op.Inode)
		delete(fs.paths, p)
	} else {
		fs.lookupCount[op.Inode] -= op.N
	}

	err = dispatch("ForgetInode", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) MkDir(
	op *fuseops.MkDirOp) (err error) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		err = dispatch("MkDir", "", fserrors.NotFound)
		return
	}

	childPath := joinPath(parentPath, op.Name)
	if err = fs.mgr.AddDir(op.Context(), childPath, uint32(op.Mode.Perm())); err != nil {
		err = dispatch("MkDir", childPath, err)
		return
	}

	n, err := fs.mgr.Resolve(op.Context(), childPath)
	if err != nil {
		err = dispatch("MkDir", childPath, err)
		return
	}
	meta, _, err := n.GetMeta(op.Context())
	if err != nil {
		err = dispatch("MkDir", childPath, err)
		return
	}

	op.Entry.Child = fs.internInode(childPath)
	op.Entry.Attributes = fs.toAttrs(meta)

	err = dispatch("MkDir", childPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateFile(
	op *fuseops.CreateFileOp) (err error) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		err = dispatch("CreateFile", "", fserrors.NotFound)
		return
	}

	childPath := joinPath(parentPath, op.Name)
	fd, err := fs.mgr.AddFile(op.Context(), childPath, uint32(op.Mode.Perm()))
	if err != nil {
		err = dispatch("CreateFile", childPath, err)
		return
	}

	n, err := fs.mgr.Resolve(op.Context(), childPath)
	if err != nil {
		err = dispatch("CreateFile", childPath, err)
		return
	}
	meta, _, err := n.GetMeta(op.Context())
	if err != nil {
		err = dispatch("CreateFile", childPath, err)
		return
	}

	op.Entry.Child = fs.internInode(childPath)
	op.Entry.Attributes = fs.toAttrs(meta)
	op.Handle = fs.mintHandle(fd)

	err = dispatch("CreateFile", childPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateSymlink(
	op *fuseops.CreateSymlinkOp) (err error) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		err = dispatch("CreateSymlink", "", fserrors.NotFound)
		return
	}

	childPath := joinPath(parentPath, op.Name)
	if err = fs.mgr.Symlink(op.Context(), childPath, op.Target); err != nil {
		err = dispatch("CreateSymlink", childPath, err)
		return
	}

	n, err := fs.mgr.Resolve(op.Context(), childPath)
	if err != nil {
		err = dispatch("CreateSymlink", childPath, err)
		return
	}
	meta, _, err := n.GetMeta(op.Context())
	if err != nil {
		err = dispatch("CreateSymlink", childPath, err)
		return
	}

	op.Entry.Child = fs.internInode(childPath)
	op.Entry.Attributes = fs.toAttrs(meta)

	err = dispatch("CreateSymlink", childPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Rename(
	op *fuseops.RenameOp) (err error) {
	oldParent, ok1 := fs.pathFor(op.OldParent)
	newParent, ok2 := fs.pathFor(op.NewParent)
	if !ok1 || !ok2 {
		err = dispatch("Rename", "", fserrors.NotFound)
		return
	}

	oldPath := joinPath(oldParent, op.OldName)
	newPath := joinPath(newParent, op.NewName)
	if err = fs.mgr.Rename(op.Context(), oldPath, newPath); err != nil {
		err = dispatch("Rename", oldPath, err)
		return
	}

	fs.mu.Lock()
	if id, ok := fs.paths[oldPath]; ok {
		delete(fs.paths, oldPath)
		fs.paths[newPath] = id
		fs.inodes[id] = newPath
	}
	fs.mu.Unlock()

	err = dispatch("Rename", newPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) RmDir(
	op *fuseops.RmDirOp) (err error) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		err = dispatch("RmDir", "", fserrors.NotFound)
		return
	}

	childPath := joinPath(parentPath, op.Name)
	if err = fs.mgr.DeleteNode(op.Context(), childPath); err != nil {
		err = dispatch("RmDir", childPath, err)
		return
	}

	err = dispatch("RmDir", childPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Unlink(
	op *fuseops.UnlinkOp) (err error) {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		err = dispatch("Unlink", "", fserrors.NotFound)
		return
	}

	childPath := joinPath(parentPath, op.Name)
	if err = fs.mgr.DeleteNode(op.Context(), childPath); err != nil {
		err = dispatch("Unlink", childPath, err)
		return
	}

	err = dispatch("Unlink", childPath, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(
	op *fuseops.OpenDirOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("OpenDir", "", fserrors.NotFound)
		return
	}

	fd := fs.mgr.Open(op.Context(), p)
	op.Handle = fs.mintHandle(fd)

	err = dispatch("OpenDir", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadDir(
	op *fuseops.ReadDirOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("ReadDir", "", fserrors.NotFound)
		return
	}

	names, err := fs.mgr.ReadDir(op.Context(), p)
	if err != nil {
		err = dispatch("ReadDir", p, err)
		return
	}

	offset := int(op.Offset)
	for i := offset; i < len(names); i++ {
		entry := fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.RootInodeID,
			Name:   names[i],
			Type:   fuseutil.DT_Unknown,
		}
		newData := fuseutil.AppendDirent(op.Data, entry)
		if len(newData) > op.Size {
			break
		}
		op.Data = newData
	}

	err = dispatch("ReadDir", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(
	op *fuseops.ReleaseDirHandleOp) (err error) {
	fs.mu.Lock()
	delete(fs.handles, op.Handle)
	fs.mu.Unlock()

	err = dispatch("ReleaseDirHandle", "", nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenFile(
	op *fuseops.OpenFileOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("OpenFile", "", fserrors.NotFound)
		return
	}

	fd := fs.mgr.Open(op.Context(), p)
	op.Handle = fs.mintHandle(fd)

	err = dispatch("OpenFile", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadFile(
	op *fuseops.ReadFileOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("ReadFile", "", fserrors.NotFound)
		return
	}

	op.Data, err = fs.mgr.ReadFile(op.Context(), p, op.Offset, int64(op.Size))
	if err != nil {
		err = dispatch("ReadFile", p, err)
		return
	}

	err = dispatch("ReadFile", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadSymlink(
	op *fuseops.ReadSymlinkOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("ReadSymlink", "", fserrors.NotFound)
		return
	}

	target, err := fs.mgr.ReadLink(op.Context(), p)
	if err != nil {
		err = dispatch("ReadSymlink", p, err)
		return
	}

	op.Target = string(target)
	err = dispatch("ReadSymlink", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) WriteFile(
	op *fuseops.WriteFileOp) (err error) {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		err = dispatch("WriteFile", "", fserrors.NotFound)
		return
	}

	if _, err = fs.mgr.WriteFile(op.Context(), p, op.Data, op.Offset); err != nil {
		err = dispatch("WriteFile", p, err)
		return
	}

	err = dispatch("WriteFile", p, nil)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseFileHandle(
	op *fuseops.ReleaseFileHandleOp) (err error) {
	fs.mu.Lock()
	delete(fs.handles, op.Handle)
	fs.mu.Unlock()

	err = dispatch("ReleaseFileHandle", "", nil)
	return
}

func (fs *fileSystem) FlushFile(
	op *fuseops.FlushFileOp) (err error) {
	err = dispatch("FlushFile", "", nil)
	return
}

func (fs *fileSystem) SyncFile(
	op *fuseops.SyncFileOp) (err error) {
	err = dispatch("SyncFile", "", nil)
	return
}
