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

// Package store defines the Persistent Node Store (component A): a
// durable mapping from (path, field) to an opaque serialized blob.
package store

import "context"

// Store is the durable backing map. Implementations must make Put
// idempotent (an upsert) and Get distinguish a missing key from a stored
// nil/empty value via the bool return.
type Store interface {
	// Put idempotently upserts the record keyed by (path, field). It
	// returns a StoreUnavailable-wrapped error on I/O failure.
	Put(ctx context.Context, path, field string, value []byte) error

	// Get returns the value for (path, field), or ok == false if no such
	// record exists. A missing key is not an error.
	Get(ctx context.Context, path, field string) (value []byte, ok bool, err error)

	// Delete removes every record whose key's path component equals
	// path, across all fields.
	Delete(ctx context.Context, path string) error
}
