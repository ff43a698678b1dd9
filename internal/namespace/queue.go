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

// queue is a generic FIFO used to walk a renamed subtree breadth-first
// instead of recursively, so a deep directory tree can't blow the stack.
type queue[T any] struct {
	start, end *queueNode[T]
	size       int
}

type queueNode[T any] struct {
	value T
	next  *queueNode[T]
}

func (q *queue[T]) push(value T) {
	n := &queueNode[T]{value: value}
	if q.size == 0 {
		q.start = n
		q.end = n
	} else {
		q.end.next = n
		q.end = n
	}
	q.size++
}

func (q *queue[T]) pop() T {
	n := q.start
	if q.size == 1 {
		q.start = nil
		q.end = nil
	} else {
		q.start = q.start.next
	}
	q.size--
	return n.value
}

func (q *queue[T]) isEmpty() bool {
	return q.size == 0
}
