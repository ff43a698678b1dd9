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

// Package fsmetrics exposes Prometheus counters for the operation surface
// and the node cache. It is the structured replacement for the original
// filesystem's global "count"/"Cache_cnt" debug counters.
package fsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierfs",
		Name:      "operations_total",
		Help:      "Number of operation-surface calls dispatched, by FUSE op name.",
	}, []string{"op"})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierfs",
		Name:      "operation_errors_total",
		Help:      "Number of operation-surface calls that returned an error, by op and errno class.",
	}, []string{"op", "kind"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hierfs",
		Name:      "cache_hits_total",
		Help:      "Number of node cache gets served from the in-process LRU.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hierfs",
		Name:      "cache_misses_total",
		Help:      "Number of node cache gets that fell through to the durable store.",
	})

	CacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hierfs",
		Name:      "cache_evictions_total",
		Help:      "Number of LRU entries dropped because the cache was at capacity.",
	})

	StoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hierfs",
		Name:      "store_errors_total",
		Help:      "Number of durable store operations that failed.",
	})
)
