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

// Package fserrors defines the recognized error kinds and their mapping
// to POSIX errno values at the operation surface boundary.
package fserrors

import (
	"errors"
	"fmt"

	"github.com/jacobsa/fuse"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", ErrX) so
// callers can recover the kind with errors.Is while still getting a
// specific message.
var (
	// NotFound means path resolution failed. Surfaces as ENOENT.
	NotFound = errors.New("not found")

	// StoreUnavailable means the durable store failed an I/O operation.
	// Surfaces as EIO.
	StoreUnavailable = errors.New("store unavailable")

	// CacheUnavailable means the cache service could not be reached. It
	// never reaches ToErrno: callers degrade to the store and keep going.
	CacheUnavailable = errors.New("cache unavailable")

	// InvalidArgument means a malformed path or an out-of-range
	// offset/length. Surfaces as EINVAL.
	InvalidArgument = errors.New("invalid argument")
)

// NotFoundf builds a NotFound error carrying additional context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), NotFound)
}

// StoreUnavailablef builds a StoreUnavailable error carrying additional
// context.
func StoreUnavailablef(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), StoreUnavailable)
}

// InvalidArgumentf builds an InvalidArgument error carrying additional
// context.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), InvalidArgument)
}

// ToErrno converts an error produced anywhere below the operation surface
// into the POSIX errno FUSE expects. No partial mutation may have escaped
// by the time this is called.
func ToErrno(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, NotFound):
		return fuse.ENOENT
	case errors.Is(err, StoreUnavailable):
		return fuse.EIO
	case errors.Is(err, InvalidArgument):
		return fuse.EINVAL
	default:
		return err
	}
}
