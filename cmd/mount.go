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

package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hierfs-io/hierfs/cfg"
	"github.com/hierfs-io/hierfs/internal/cache"
	"github.com/hierfs-io/hierfs/internal/fs"
	"github.com/hierfs-io/hierfs/internal/logger"
	"github.com/hierfs-io/hierfs/internal/namespace"
	"github.com/hierfs-io/hierfs/internal/store"
	"github.com/hierfs-io/hierfs/internal/store/memstore"
	"github.com/hierfs-io/hierfs/internal/store/mongostore"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// mountWithConfig builds the store/cache/namespace stack described by cfg
// and mounts it at mountPoint, the way gcsfuse's mountWithStorageHandle
// assembles a gcsx.BucketConfig and fs.ServerConfig before calling
// fuse.Mount.
func mountWithConfig(mountPoint string, newConfig *cfg.Config) error {
	logger.Init(newConfig.Logging.File, newConfig.Logging.Format, logger.ParseLevel(newConfig.Logging.Severity))

	backing, closeStore, err := buildStore(newConfig.Store.URL)
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	if newConfig.Metrics.Addr != "" {
		serveMetrics(newConfig.Metrics.Addr)
	}

	var opts []cache.Option
	if newConfig.Cache.MemcacheAddress != "" {
		opts = append(opts, cache.WithMemcache(newConfig.Cache.MemcacheAddress, newConfig.Cache.TTL))
	}
	c := cache.New(newConfig.Cache.Capacity, backing, opts...)

	mgr := namespace.New(c, timeutil.RealClock())

	uid, gid := resolveOwnership(newConfig.FileSystem.Uid, newConfig.FileSystem.Gid)

	server, err := fs.NewServer(&fs.ServerConfig{
		Manager: mgr,
		Uid:     uid,
		Gid:     gid,
	})
	if err != nil {
		return fmt.Errorf("fs.NewServer: %w", err)
	}

	mountCfg := &fuse.MountConfig{
		FSName:     "hierfs",
		Subtype:    "hierfs",
		VolumeName: "hierfs",
	}
	if newConfig.FileSystem.Foreground {
		mountCfg.ErrorLogger = log.New(os.Stderr, "fuse_errors: ", 0)
	}

	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	logger.Infof("mounted hierfs at %s", mountPoint)

	if err := mfs.Join(); err != nil {
		return fmt.Errorf("MountedFileSystem.Join: %w", err)
	}
	return nil
}

// serveMetrics starts a background HTTP listener exposing /metrics for
// the lifetime of the process. A listener failure is logged, not fatal:
// the mount itself doesn't depend on metrics being reachable.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warnf("metrics listener on %s stopped: %v", addr, err)
		}
	}()
}

// buildStore selects Form A (in-memory) or Form B (durable, Mongo-backed),
// keyed on whether a store URL was supplied.
func buildStore(url string) (s store.Store, closeFn func(), err error) {
	if url == "" {
		return memstore.New(), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ms, err := mongostore.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return ms, func() {
		_ = ms.Close(context.Background())
	}, nil
}

// resolveOwnership defaults to the current process's uid/gid when the
// config leaves either at its -1 sentinel.
func resolveOwnership(cfgUid, cfgGid int) (uid, gid uint32) {
	uid, gid = uint32(os.Getuid()), uint32(os.Getgid())
	if cfgUid >= 0 {
		uid = uint32(cfgUid)
	}
	if cfgGid >= 0 {
		gid = uint32(cfgGid)
	}
	return
}
