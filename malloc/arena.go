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

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// NewAlignedArena returns a size-byte arena whose base address is aligned
// to size. size must be a power of two.
//
// NewBuddyAllocator requires base-to-size alignment so that every block it
// returns is naturally aligned; callers whose region comes from a mapped
// device buffer already have that guarantee, everyone else can use this.
// The backing memory is not zeroed: the allocators initialize every byte of
// metadata they read.
func NewAlignedArena(size int) ([]byte, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("arena size must be a power of two, got %d", size)
	}
	buf := dirtmake.Bytes(2*size, 2*size)
	off := int(-uintptr(unsafe.Pointer(&buf[0])) & uintptr(size-1))
	return buf[off : off+size : off+size], nil
}
