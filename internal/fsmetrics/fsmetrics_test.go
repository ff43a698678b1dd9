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

package fsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOperationsTotal_IncrementsByOpLabel(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("lookup"))
	OperationsTotal.WithLabelValues("lookup").Inc()
	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("lookup"))
	assert.Equal(t, before+1, after)
}

func TestOperationErrorsTotal_IncrementsByOpAndKind(t *testing.T) {
	before := testutil.ToFloat64(OperationErrorsTotal.WithLabelValues("write", "ENOENT"))
	OperationErrorsTotal.WithLabelValues("write", "ENOENT").Inc()
	after := testutil.ToFloat64(OperationErrorsTotal.WithLabelValues("write", "ENOENT"))
	assert.Equal(t, before+1, after)
}

func TestCacheCounters_Increment(t *testing.T) {
	beforeHits := testutil.ToFloat64(CacheHitsTotal)
	beforeMisses := testutil.ToFloat64(CacheMissesTotal)
	beforeEvictions := testutil.ToFloat64(CacheEvictionsTotal)

	CacheHitsTotal.Inc()
	CacheMissesTotal.Inc()
	CacheEvictionsTotal.Inc()

	assert.Equal(t, beforeHits+1, testutil.ToFloat64(CacheHitsTotal))
	assert.Equal(t, beforeMisses+1, testutil.ToFloat64(CacheMissesTotal))
	assert.Equal(t, beforeEvictions+1, testutil.ToFloat64(CacheEvictionsTotal))
}

func TestStoreErrorsTotal_Increments(t *testing.T) {
	before := testutil.ToFloat64(StoreErrorsTotal)
	StoreErrorsTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StoreErrorsTotal))
}
