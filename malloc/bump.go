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

package malloc

import "unsafe"

// BumpAllocator hands out successive aligned sub-slices of an arena by
// advancing a cursor. Free rewinds the cursor to the freed block, which is
// only correct for strictly LIFO release; freeing out of order lets later
// allocations overwrite live data. Intended for arena-style scratch space,
// e.g. per-frame staging, where everything is released together.
type BumpAllocator struct {
	arena      []byte
	arenaStart unsafe.Pointer

	// next is the arena offset of the first unallocated byte.
	next int
}

var _ Allocator = (*BumpAllocator)(nil)

// NewBumpAllocator creates a bump allocator over the caller-owned arena.
// The arena must outlive the allocator.
func NewBumpAllocator(arena []byte) *BumpAllocator {
	return &BumpAllocator{
		arena:      arena,
		arenaStart: unsafe.Pointer(unsafe.SliceData(arena)),
	}
}

// Alloc returns the next size bytes at an align-byte boundary, or nil when
// the arena is exhausted. Alignment is of the absolute address, not the
// arena offset.
func (a *BumpAllocator) Alloc(size, align int) []byte {
	if align <= 0 || align&(align-1) != 0 {
		panic("bump: align must be a power of two")
	}
	if size <= 0 {
		size = 1
	}
	p := AlignPointerUp(unsafe.Add(a.arenaStart, a.next), align)
	off := int(uintptr(p) - uintptr(a.arenaStart))
	if off+size > len(a.arena) {
		return nil
	}
	a.next = off + size
	return a.arena[off : off+size : off+size]
}

// Free rewinds the cursor to the start of block. block must be the most
// recently allocated live block; see the type comment.
func (a *BumpAllocator) Free(block []byte) {
	off := int(uintptr(unsafe.Pointer(unsafe.SliceData(block))) - uintptr(a.arenaStart))
	if off < 0 || off > len(a.arena) {
		panic("bump: block not in arena")
	}
	a.next = off
}

// Available returns the bytes left before the cursor hits the arena end.
func (a *BumpAllocator) Available() int {
	return len(a.arena) - a.next
}

// Reset releases everything by rewinding the cursor to the arena start.
func (a *BumpAllocator) Reset() {
	a.next = 0
}
