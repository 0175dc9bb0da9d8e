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

import (
	"fmt"
	"unsafe"
)

// flHeaderSize precedes every allocation: two uint32 words recording the
// carved span's arena offset and size, so Free can return the exact span
// even when a head remainder too small to hold a span node was absorbed
// into the allocation.
const flHeaderSize = 8

// freeSpan is embedded at the start of every free span. The list is kept
// in ascending address order so Free can merge adjacent neighbors.
type freeSpan struct {
	size int // total span size, header and node space included
	next int // arena offset of the next free span, nilOffset if none
	prev int
}

var freeSpanSize = int(unsafe.Sizeof(freeSpan{}))

// FreeListAllocator is a first-fit variable-size allocator over a fixed
// arena. Allocations carve from the tail of the first span that fits, so
// a surviving head remainder only shrinks in place. Freed spans are
// reinserted in address order and merged with immediate neighbors.
//
// Unlike BuddyAllocator it serves arbitrary sizes without rounding to a
// power of two, at the cost of O(spans) search and merge-only
// defragmentation.
type FreeListAllocator struct {
	arena      []byte
	arenaStart unsafe.Pointer
	heapSize   int // usable bytes, len(arena) rounded down to word size

	// head is the arena offset of the lowest-addressed free span.
	head int
}

var _ Allocator = (*FreeListAllocator)(nil)

// NewFreeListAllocator creates a free-list allocator over the caller-owned
// arena. The arena must be large enough to hold one span node and must
// outlive the allocator.
func NewFreeListAllocator(arena []byte) (*FreeListAllocator, error) {
	heapSize := AlignDown(len(arena), 8)
	if heapSize < freeSpanSize {
		return nil, fmt.Errorf("freelist: arena of %d bytes cannot hold a span node (%d bytes)",
			len(arena), freeSpanSize)
	}
	a := &FreeListAllocator{
		arena:      arena,
		arenaStart: unsafe.Pointer(unsafe.SliceData(arena)),
		heapSize:   heapSize,
		head:       0,
	}
	*a.span(0) = freeSpan{size: heapSize, next: nilOffset, prev: nilOffset}
	return a, nil
}

// Alloc implements Allocator: first-fit in address order, carving from the
// tail of the chosen span.
func (a *FreeListAllocator) Alloc(size, align int) []byte {
	if align <= 0 || align&(align-1) != 0 {
		panic("freelist: align must be a power of two")
	}
	if size <= 0 {
		size = 1
	}
	for off := a.head; off != nilOffset; off = a.span(off).next {
		s := a.span(off)
		if s.size < size+flHeaderSize {
			continue
		}
		spanEnd := off + s.size

		// place data at the highest aligned address inside the span
		endAddr := uintptr(a.arenaStart) + uintptr(spanEnd)
		dataAddr := (endAddr - uintptr(size)) &^ uintptr(align-1)
		hdrOff := int(dataAddr-uintptr(a.arenaStart)) - flHeaderSize
		if hdrOff < off {
			continue
		}

		// the carved region must be able to hold a span node once freed
		carveStart := hdrOff
		if spanEnd-carveStart < freeSpanSize {
			carveStart = spanEnd - freeSpanSize
		}
		// a head remainder that cannot hold a node is absorbed
		if carveStart-off < freeSpanSize {
			carveStart = off
		}

		if carveStart == off {
			a.unlinkSpan(off)
		} else {
			s.size = carveStart - off
		}

		hdr := unsafe.Add(a.arenaStart, hdrOff)
		*(*uint32)(hdr) = uint32(carveStart)
		*(*uint32)(unsafe.Add(hdr, 4)) = uint32(spanEnd - carveStart)

		dataOff := hdrOff + flHeaderSize
		return a.arena[dataOff : dataOff+size : dataOff+size]
	}
	return nil
}

// Free implements Allocator. block must be the exact slice returned by a
// prior Alloc; violations panic.
func (a *FreeListAllocator) Free(block []byte) {
	dataOff := int(uintptr(unsafe.Pointer(unsafe.SliceData(block))) - uintptr(a.arenaStart))
	hdrOff := dataOff - flHeaderSize
	if hdrOff < 0 || dataOff >= a.heapSize {
		panic("freelist: block not in arena")
	}
	hdr := unsafe.Add(a.arenaStart, hdrOff)
	spanOff := int(*(*uint32)(hdr))
	spanSize := int(*(*uint32)(unsafe.Add(hdr, 4)))
	if spanOff > hdrOff || spanSize < freeSpanSize || spanOff+spanSize > a.heapSize {
		panic("freelist: corrupted header or invalid block")
	}

	// find the neighbors in address order
	prev, next := nilOffset, a.head
	for next != nilOffset && next < spanOff {
		prev = next
		next = a.span(next).next
	}

	if prev != nilOffset && prev+a.span(prev).size == spanOff {
		// merge into the left neighbor
		a.span(prev).size += spanSize
		if next != nilOffset && prev+a.span(prev).size == next {
			n := a.span(next)
			a.span(prev).size += n.size
			a.span(prev).next = n.next
			if n.next != nilOffset {
				a.span(n.next).prev = prev
			}
		}
		return
	}

	if next != nilOffset && spanOff+spanSize == next {
		// merge the right neighbor into the new span
		n := *a.span(next)
		*a.span(spanOff) = freeSpan{size: spanSize + n.size, next: n.next, prev: n.prev}
		if n.prev != nilOffset {
			a.span(n.prev).next = spanOff
		} else {
			a.head = spanOff
		}
		if n.next != nilOffset {
			a.span(n.next).prev = spanOff
		}
		return
	}

	// plain insert between prev and next
	*a.span(spanOff) = freeSpan{size: spanSize, next: next, prev: prev}
	if prev != nilOffset {
		a.span(prev).next = spanOff
	} else {
		a.head = spanOff
	}
	if next != nilOffset {
		a.span(next).prev = spanOff
	}
}

// Available returns the total bytes held on the free list. Not all of it
// is allocatable at once: each allocation also consumes a header and
// alignment padding.
func (a *FreeListAllocator) Available() int {
	total := 0
	for off := a.head; off != nilOffset; off = a.span(off).next {
		total += a.span(off).size
	}
	return total
}

func (a *FreeListAllocator) unlinkSpan(off int) {
	s := a.span(off)
	if s.next != nilOffset {
		a.span(s.next).prev = s.prev
	}
	if s.prev != nilOffset {
		a.span(s.prev).next = s.next
	} else {
		a.head = s.next
	}
}

func (a *FreeListAllocator) span(off int) *freeSpan {
	return (*freeSpan)(unsafe.Add(a.arenaStart, off))
}
