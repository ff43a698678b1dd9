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

package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_FIFOOrder(t *testing.T) {
	var q queue[int]
	q.push(1)
	q.push(2)
	q.push(3)

	assert.Equal(t, 1, q.pop())
	assert.Equal(t, 2, q.pop())
	assert.Equal(t, 3, q.pop())
	assert.True(t, q.isEmpty())
}

func TestQueue_EmptyInitially(t *testing.T) {
	var q queue[string]
	assert.True(t, q.isEmpty())
}

func TestQueue_InterleavedPushPop(t *testing.T) {
	var q queue[int]
	q.push(1)
	assert.Equal(t, 1, q.pop())
	assert.True(t, q.isEmpty())

	q.push(2)
	q.push(3)
	assert.Equal(t, 2, q.pop())
	q.push(4)
	assert.Equal(t, 3, q.pop())
	assert.Equal(t, 4, q.pop())
	assert.True(t, q.isEmpty())
}
