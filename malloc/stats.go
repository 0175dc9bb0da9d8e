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
	"strings"

	"github.com/dustin/go-humanize"
)

// Stats is a point-in-time snapshot of a buddy allocator's occupancy.
type Stats struct {
	// ArenaSize is the size of the managed arena.
	ArenaSize int
	// FreeBytes is the sum of all free block sizes.
	FreeBytes int
	// LiveBlocks is the number of outstanding allocations.
	LiveBlocks int
	// FreeBlocksPerLevel[l] is the length of level l's free list.
	FreeBlocksPerLevel []int
}

// Stats walks the free lists and side table; it is O(levels + blocks) and
// meant for debugging, not the hot path.
func (a *BuddyAllocator) Stats() Stats {
	s := Stats{
		ArenaSize:          a.heapSize,
		FreeBlocksPerLevel: make([]int, a.levels),
	}
	for level := 0; level < a.levels; level++ {
		blockSize := a.heapSize >> level
		for off := a.freeHeads[level]; off != nilOffset; off = a.node(off).next {
			s.FreeBlocksPerLevel[level]++
			s.FreeBytes += blockSize
		}
	}
	for _, idx := range a.blockToTree {
		if idx != nilOffset {
			s.LiveBlocks++
		}
	}
	return s
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "arena=%s free=%s live=%d levels=[",
		humanize.IBytes(uint64(s.ArenaSize)), humanize.IBytes(uint64(s.FreeBytes)), s.LiveBlocks)
	for l, n := range s.FreeBlocksPerLevel {
		if l > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", n)
	}
	b.WriteByte(']')
	return b.String()
}
