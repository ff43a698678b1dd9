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

package fserrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/stretchr/testify/assert"
)

func TestNotFoundf_WrapsSentinel(t *testing.T) {
	err := NotFoundf("resolve %s", "/a")
	assert.ErrorIs(t, err, NotFound)
	assert.Contains(t, err.Error(), "/a")
}

func TestStoreUnavailablef_WrapsSentinel(t *testing.T) {
	err := StoreUnavailablef("put %s", "/a")
	assert.ErrorIs(t, err, StoreUnavailable)
}

func TestInvalidArgumentf_WrapsSentinel(t *testing.T) {
	err := InvalidArgumentf("write %s: offset=%d", "/a", -1)
	assert.ErrorIs(t, err, InvalidArgument)
}

func TestToErrno_NilIsNil(t *testing.T) {
	assert.NoError(t, ToErrno(nil))
}

func TestToErrno_MapsEachKind(t *testing.T) {
	assert.Equal(t, fuse.ENOENT, ToErrno(NotFoundf("x")))
	assert.Equal(t, fuse.EIO, ToErrno(StoreUnavailablef("x")))
	assert.Equal(t, fuse.EINVAL, ToErrno(InvalidArgumentf("x")))
}

func TestToErrno_UnknownErrorPassesThrough(t *testing.T) {
	plain := errors.New("something else")
	assert.Equal(t, plain, ToErrno(plain))
}

func TestToErrno_WrappedSentinelStillMaps(t *testing.T) {
	assert.Equal(t, fuse.ENOENT, ToErrno(fmt.Errorf("context: %w", NotFoundf("resolve %s", "/x"))))

	wrapped := errors.New("context: " + NotFoundf("resolve %s", "/x").Error())
	// A plain fmt-wrapped string (not %w) loses errors.Is — confirm the
	// boundary only recognizes errors wrapped with %w, not string concatenation.
	assert.NotErrorIs(t, wrapped, NotFound)
}
