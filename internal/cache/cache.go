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

// Package cache implements the Node Cache (component B): a bounded,
// write-through LRU keyed by path. Eviction is a pure drop because every
// put has already reached the durable store by the time it returns.
//
// The recency list itself is github.com/golang/groupcache/lru, a small
// doubly-linked-list-backed LRU; this package adds the write-through
// discipline, field-level partial entries, and the optional memcache
// mirror that groupcache's lru.Cache doesn't know about.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/golang/groupcache/lru"
	"github.com/hierfs-io/hierfs/internal/fsmetrics"
	"github.com/hierfs-io/hierfs/internal/fsnode"
	"github.com/hierfs-io/hierfs/internal/logger"
	"github.com/hierfs-io/hierfs/internal/store"
)

// DefaultCapacity is the fallback LRU size used when a caller passes a
// non-positive capacity.
const DefaultCapacity = 10

// DefaultTTL is the recommended cache entry lifetime.
const DefaultTTL = 900 * time.Second

// entry is the in-process cache record for one path: whichever of the
// three recognized fields have been observed so far.
type entry struct {
	meta     []byte
	hasMeta  bool
	data     []byte
	hasData  bool
	children []byte
	hasKids  bool
}

func (e *entry) get(field string) ([]byte, bool) {
	switch field {
	case fsnode.FieldMeta:
		return e.meta, e.hasMeta
	case fsnode.FieldData:
		return e.data, e.hasData
	case fsnode.FieldChildren:
		return e.children, e.hasKids
	default:
		return nil, false
	}
}

func (e *entry) set(field string, value []byte) {
	switch field {
	case fsnode.FieldMeta:
		e.meta, e.hasMeta = value, true
	case fsnode.FieldData:
		e.data, e.hasData = value, true
	case fsnode.FieldChildren:
		e.children, e.hasKids = value, true
	}
}

// Cache is the Node Cache. It is safe for concurrent use, though
// correctness only needs to hold under the single-threaded FUSE dispatch
// model.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	store store.Store

	// mc, if non-nil, mirrors every write to a remote memcache service
	// and is consulted ahead of the store on a local miss. TTL expiry
	// there is indistinguishable from a cold miss.
	mc  *memcache.Client
	ttl time.Duration
}

// Option configures optional behavior of a Cache.
type Option func(*Cache)

// WithMemcache mirrors writes to a memcache service at addr ("host:port",
// e.g. "127.0.0.1:11211") with the given TTL. Both values are used as
// given; no default is filled in here.
func WithMemcache(addr string, ttl time.Duration) Option {
	return func(c *Cache) {
		c.mc = memcache.New(addr)
		c.ttl = ttl
	}
}

// New builds a Cache of the given capacity, write-through to backing.
func New(capacity int, backing store.Store, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{store: backing, ttl: DefaultTTL}
	c.lru = &lru.Cache{
		MaxEntries: capacity,
		OnEvicted: func(_ lru.Key, _ interface{}) {
			// No write-back: the store already holds the authoritative
			// copy. Just count it.
			fsmetrics.CacheEvictionsTotal.Inc()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func memcacheKey(path, field string) string {
	return path + "\x00" + field
}

// mcGetEntry fetches whatever fields memcache has cached for path. It
// degrades silently (CacheUnavailable, never fatal) on any transport
// error other than a clean cache miss.
func (c *Cache) mcGetEntry(path string) *entry {
	if c.mc == nil {
		return nil
	}
	e := &entry{}
	found := false
	for _, field := range []string{fsnode.FieldMeta, fsnode.FieldData, fsnode.FieldChildren} {
		item, err := c.mc.Get(memcacheKey(path, field))
		if err != nil {
			if err != memcache.ErrCacheMiss {
				logger.Warnf("memcache get degraded to store-only: %v", err)
			}
			continue
		}
		e.set(field, item.Value)
		found = true
	}
	if !found {
		return nil
	}
	return e
}

func (c *Cache) mcPut(path, field string, value []byte) {
	if c.mc == nil {
		return
	}
	err := c.mc.Set(&memcache.Item{
		Key:        memcacheKey(path, field),
		Value:      value,
		Expiration: int32(c.ttl.Seconds()),
	})
	if err != nil {
		logger.Warnf("memcache set degraded to store-only: %v", err)
	}
}

func (c *Cache) mcDelete(path string) {
	if c.mc == nil {
		return
	}
	for _, field := range []string{fsnode.FieldMeta, fsnode.FieldData, fsnode.FieldChildren} {
		_ = c.mc.Delete(memcacheKey(path, field))
	}
}

// Put updates or inserts the local entry, promotes path to the head of
// the recency order, and forwards the write to the store (and, if
// configured, to memcache) before returning.
func (c *Cache) Put(ctx context.Context, path, field string, value []byte) error {
	c.mu.Lock()
	if v, ok := c.lru.Get(path); ok {
		v.(*entry).set(field, value)
	} else {
		e := &entry{}
		e.set(field, value)
		c.lru.Add(path, e)
	}
	c.mu.Unlock()

	c.mcPut(path, field, value)

	if err := c.store.Put(ctx, path, field, value); err != nil {
		fsmetrics.StoreErrorsTotal.Inc()
		return err
	}
	return nil
}

// Get reports a local hit by promoting path to the head of the recency
// order and returning the field if it was ever set; a local miss
// consults memcache, then the store, materializing a cache entry with
// every field found before returning the requested one.
func (c *Cache) Get(ctx context.Context, path, field string) ([]byte, bool, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(path); ok {
		e := v.(*entry)
		c.mu.Unlock()
		fsmetrics.CacheHitsTotal.Inc()
		value, ok := e.get(field)
		return value, ok, nil
	}
	c.mu.Unlock()

	fsmetrics.CacheMissesTotal.Inc()

	if e := c.mcGetEntry(path); e != nil {
		c.mu.Lock()
		c.lru.Add(path, e)
		c.mu.Unlock()
		value, ok := e.get(field)
		return value, ok, nil
	}

	found := false
	e := &entry{}
	for _, f := range []string{fsnode.FieldMeta, fsnode.FieldData, fsnode.FieldChildren} {
		value, ok, err := c.store.Get(ctx, path, f)
		if err != nil {
			fsmetrics.StoreErrorsTotal.Inc()
			return nil, false, err
		}
		if ok {
			e.set(f, value)
			found = true
		}
	}
	if !found {
		return nil, false, nil
	}

	c.mu.Lock()
	c.lru.Add(path, e)
	c.mu.Unlock()

	value, ok := e.get(field)
	return value, ok, nil
}

// Delete purges path from the in-process LRU, memcache, and the durable
// store.
func (c *Cache) Delete(ctx context.Context, path string) error {
	c.mu.Lock()
	c.lru.Remove(path)
	c.mu.Unlock()

	c.mcDelete(path)

	if err := c.store.Delete(ctx, path); err != nil {
		fsmetrics.StoreErrorsTotal.Inc()
		return err
	}
	return nil
}

// Len reports the number of paths currently resident in the in-process
// LRU.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Contains reports whether path is currently resident in the in-process
// LRU. Like any other hit, this promotes path to the head of the
// recency order — it is not a peek.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lru.Get(path)
	return ok
}
