/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package malloc provides allocators that manage a fixed, caller-owned
// byte arena: a binary buddy allocator, a bump allocator and a first-fit
// free-list allocator. All of them hand out sub-slices of the arena and
// never allocate from the Go heap on the alloc/free path.
//
// None of the allocators is safe for concurrent use; callers that share
// one across goroutines must serialize access themselves.
package malloc

// Allocator is the capability shared by all arena allocators.
//
// Alloc returns a block of at least size bytes whose first byte is
// aligned to align (a power of two). len(block) == size and cap(block)
// is the actual number of usable bytes, which may be larger than size.
// Alloc returns nil when no block can satisfy the request; exhaustion is
// an ordinary return value, not an error.
//
// Free returns a block to the allocator. block must be the exact slice
// returned by a prior Alloc on the same allocator; reslicing the front
// of it before Free corrupts the bookkeeping.
type Allocator interface {
	Alloc(size, align int) []byte
	Free(block []byte)
}
