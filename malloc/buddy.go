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
	"math"
	"math/bits"
	"unsafe"

	"github.com/cloudwego/memarena/bitvec"
)

// BlockLevel is the depth of a block in the buddy tree. Level 0 is the
// whole arena; blocks at level l have size arenaSize >> l.
type BlockLevel uint8

// TreeIndex is a position in the conceptual complete binary tree over the
// arena: the block at level l with offset k*(arenaSize>>l) has index
// (1<<l - 1) + k. Children of i are 2i+1 and 2i+2, the parent is (i-1)>>1.
type TreeIndex uint16

const (
	// NoBlockLevel and NoTreeIndex form the failure sentinel returned by
	// Allocate together with a nil block.
	NoBlockLevel BlockLevel = math.MaxUint8
	NoTreeIndex  TreeIndex  = math.MaxUint16

	// MaxBlockLevels bounds the tree depth so every index fits a TreeIndex.
	MaxBlockLevels = 16
)

// nilOffset marks the absence of an arena offset (empty list head, no next
// node, no live allocation in the side table).
const nilOffset = -1

// freeNode is embedded at the start of every free block, linking it into
// its level's free list. The constructor rejects configurations whose
// smallest block cannot hold one.
type freeNode struct {
	next      int // arena offset of the next free block at this level
	prev      int
	treeIndex int
}

var freeNodeSize = int(unsafe.Sizeof(freeNode{}))

// BuddyAllocator manages a fixed power-of-two arena by binary splitting.
// Alloc reserves the smallest power-of-two block that covers the request;
// Free merges the block with its buddy whenever both halves are free, all
// the way up the tree, so fragmentation is bounded by the live set.
//
// All bookkeeping except the free-list nodes lives outside the arena: a
// bit per tree node recording "entirely free", one list head per level,
// and a side table mapping each minimum-size cell to the tree index of the
// live allocation starting there. The side table is what lets Free work
// from the block address alone; Allocate/Deallocate carry the
// (level, index) handle explicitly and skip the lookup.
type BuddyAllocator struct {
	arena      []byte
	arenaStart unsafe.Pointer

	heapSize int
	levels   int

	// freeHeads[l] is the arena offset of the head of level l's free list,
	// nilOffset when the list is empty. A listed block's free-tree bit is
	// always set and its parent's bit is always clear.
	freeHeads []int

	// freeTree holds one bit per tree index, set iff that block is
	// entirely free (never allocated, or reassembled by coalescing).
	freeTree []uint64

	// blockToTree[c] is the tree index of the live allocation whose block
	// starts at minimum-size cell c, nilOffset if none.
	blockToTree []int32

	minBlockSize  int
	minBlockShift int
}

var _ Allocator = (*BuddyAllocator)(nil)

// NewBuddyAllocator creates a buddy allocator over the caller-owned arena,
// split down to levels block sizes. The arena length must be a power of
// two, its base address must be aligned to that length, and the smallest
// block (len(arena) >> (levels-1)) must hold a free-list node. The arena
// must outlive the allocator and nothing else may write to it while the
// allocator is live.
func NewBuddyAllocator(arena []byte, levels int) (*BuddyAllocator, error) {
	size := len(arena)
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("buddy: arena size must be a power of two, got %d", size)
	}
	if levels < 1 || levels > MaxBlockLevels {
		return nil, fmt.Errorf("buddy: levels must be in [1, %d], got %d", MaxBlockLevels, levels)
	}
	minBlock := size >> (levels - 1)
	if minBlock < freeNodeSize {
		return nil, fmt.Errorf("buddy: smallest block (%d bytes) cannot hold a free-list node (%d bytes)",
			minBlock, freeNodeSize)
	}
	start := unsafe.Pointer(unsafe.SliceData(arena))
	if uintptr(start)&uintptr(size-1) != 0 {
		return nil, fmt.Errorf("buddy: arena base %p must be aligned to arena size %#x", start, size)
	}

	blockCount := 1 << (levels - 1)
	a := &BuddyAllocator{
		arena:         arena,
		arenaStart:    start,
		heapSize:      size,
		levels:        levels,
		freeHeads:     make([]int, levels),
		freeTree:      bitvec.New(2*blockCount - 1),
		blockToTree:   make([]int32, blockCount),
		minBlockSize:  minBlock,
		minBlockShift: bits.TrailingZeros(uint(minBlock)),
	}
	a.Reset()
	return a, nil
}

// Reset discards all allocations and restores the arena to one free
// level-0 block.
func (a *BuddyAllocator) Reset() {
	for i := range a.freeHeads {
		a.freeHeads[i] = nilOffset
	}
	for i := range a.freeTree {
		a.freeTree[i] = ^uint64(0)
	}
	for i := range a.blockToTree {
		a.blockToTree[i] = nilOffset
	}
	a.freeHeads[0] = 0
	*a.node(0) = freeNode{next: nilOffset, prev: nilOffset, treeIndex: 0}
}

// BlockLevels returns the configured number of levels.
func (a *BuddyAllocator) BlockLevels() int { return a.levels }

// MinBlockSize returns the size of the smallest block.
func (a *BuddyAllocator) MinBlockSize() int { return a.minBlockSize }

// ArenaSize returns the size of the managed arena.
func (a *BuddyAllocator) ArenaSize() int { return a.heapSize }

// Allocate reserves the smallest free block of at least size bytes and
// returns it together with its (level, tree index) handle. A size <= 0 is
// treated as 1. On exhaustion it returns (nil, NoBlockLevel, NoTreeIndex);
// check the block against nil before use.
//
// len(block) == size; cap(block) is the full block size.
func (a *BuddyAllocator) Allocate(size int) ([]byte, BlockLevel, TreeIndex) {
	if size <= 0 {
		size = 1
	}
	off, level, treeIndex, ok := a.allocate(size)
	if !ok {
		return nil, NoBlockLevel, NoTreeIndex
	}
	blockSize := a.heapSize >> level
	return a.arena[off : off+size : off+blockSize], BlockLevel(level), TreeIndex(treeIndex)
}

// Deallocate releases a block using the handle returned by Allocate. The
// triple must come from a prior Allocate on this allocator and must not
// have been freed already; violations panic.
func (a *BuddyAllocator) Deallocate(block []byte, level BlockLevel, index TreeIndex) {
	off := a.offsetOf(block)
	l, idx := int(level), int(index)
	if l >= a.levels || levelOf(idx) != l {
		panic("buddy: invalid handle")
	}
	blockSize := a.heapSize >> l
	if off&(blockSize-1) != 0 {
		panic("buddy: misaligned block")
	}
	if int(a.blockToTree[off>>a.minBlockShift]) != idx {
		panic("buddy: double free or invalid block")
	}
	a.free(off, l, idx)
}

// Alloc implements Allocator. The request is rounded up to align before
// block sizing, so the returned address is aligned to align as well as to
// its own block size.
func (a *BuddyAllocator) Alloc(size, align int) []byte {
	if align <= 0 || align&(align-1) != 0 {
		panic("buddy: align must be a power of two")
	}
	if size <= 0 {
		size = 1
	}
	off, level, _, ok := a.allocate(AlignUp(size, align))
	if !ok {
		return nil
	}
	blockSize := a.heapSize >> level
	return a.arena[off : off+size : off+blockSize]
}

// Free implements Allocator, recovering the handle from the side table.
func (a *BuddyAllocator) Free(block []byte) {
	off := a.offsetOf(block)
	if off&(a.minBlockSize-1) != 0 {
		panic("buddy: misaligned block")
	}
	idx := int(a.blockToTree[off>>a.minBlockShift])
	if idx == nilOffset {
		panic("buddy: double free or invalid block")
	}
	a.free(off, levelOf(idx), idx)
}

// Available returns the total bytes currently on free lists. Because the
// lists hold maximally coalesced blocks, this is exactly the arena size
// minus the block sizes of all live allocations.
func (a *BuddyAllocator) Available() int {
	total := 0
	for level := 0; level < a.levels; level++ {
		blockSize := a.heapSize >> level
		for off := a.freeHeads[level]; off != nilOffset; off = a.node(off).next {
			total += blockSize
		}
	}
	return total
}

// allocate reserves the smallest free block of at least size bytes and
// returns its arena offset, level and tree index.
func (a *BuddyAllocator) allocate(size int) (off, level, treeIndex int, ok bool) {
	if size > a.heapSize {
		return 0, 0, 0, false
	}

	// deepest level whose blocks still fit the request
	best := 0
	for a.heapSize>>(best+1) >= size && best+1 < a.levels {
		best++
	}

	// walk toward the root until a level has a free block; the first hit
	// is the smallest sufficient block
	level = best
	for a.freeHeads[level] == nilOffset && level != 0 {
		level--
	}
	off = a.freeHeads[level]
	if off == nilOffset {
		return 0, 0, 0, false
	}

	treeIndex = a.node(off).treeIndex
	a.unlink(level, off)
	bitvec.SetFalse(a.freeTree, treeIndex)

	// split down to best, keeping the left child and registering the
	// right one on the next level's list
	for level != best {
		level++
		treeIndex = 2*treeIndex + 1
		a.pushFree(level, off+a.heapSize>>level, treeIndex+1)
		bitvec.SetFalse(a.freeTree, treeIndex)
	}

	a.blockToTree[off>>a.minBlockShift] = int32(treeIndex)
	return off, level, treeIndex, true
}

// free marks the block free and coalesces with its buddy as far up the
// tree as possible.
func (a *BuddyAllocator) free(off, level, treeIndex int) {
	bitvec.SetTrue(a.freeTree, treeIndex)
	a.blockToTree[off>>a.minBlockShift] = nilOffset

	for level != 0 {
		isLeft := treeIndex & 1 // left children have odd indices
		if !bitvec.Get(a.freeTree, treeIndex+2*isLeft-1) {
			break
		}
		treeIndex = (treeIndex - 1) >> 1
		bitvec.SetTrue(a.freeTree, treeIndex)

		blockSize := a.heapSize >> level
		parent := AlignDown(off, blockSize<<1)
		a.unlink(level, parent+isLeft*blockSize)
		off = parent
		level--
	}

	a.pushFree(level, off, treeIndex)
}

// pushFree links the block at off as the head of level's free list,
// writing the embedded node.
func (a *BuddyAllocator) pushFree(level, off, treeIndex int) {
	head := a.freeHeads[level]
	*a.node(off) = freeNode{next: head, prev: nilOffset, treeIndex: treeIndex}
	if head != nilOffset {
		a.node(head).prev = off
	}
	a.freeHeads[level] = off
}

// unlink removes the block at off from level's free list.
func (a *BuddyAllocator) unlink(level, off int) {
	n := a.node(off)
	if n.next != nilOffset {
		a.node(n.next).prev = n.prev
	}
	if n.prev != nilOffset {
		a.node(n.prev).next = n.next
	} else {
		a.freeHeads[level] = n.next
	}
}

func (a *BuddyAllocator) node(off int) *freeNode {
	return (*freeNode)(unsafe.Add(a.arenaStart, off))
}

func (a *BuddyAllocator) offsetOf(block []byte) int {
	off := int(uintptr(unsafe.Pointer(unsafe.SliceData(block))) - uintptr(a.arenaStart))
	if off < 0 || off >= a.heapSize {
		panic("buddy: block not in arena")
	}
	return off
}

// levelOf recovers the level of a tree index: level l spans indices
// [2^l - 1, 2^(l+1) - 1).
func levelOf(treeIndex int) int {
	return bits.Len(uint(treeIndex)+1) - 1
}
