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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestAlignUpDown(t *testing.T) {
	assert.Equal(t, 0, AlignUp(0, 8))
	assert.Equal(t, 8, AlignUp(1, 8))
	assert.Equal(t, 8, AlignUp(8, 8))
	assert.Equal(t, 16, AlignUp(9, 8))
	assert.Equal(t, 4096, AlignUp(4095, 4096))

	assert.Equal(t, 0, AlignDown(7, 8))
	assert.Equal(t, 8, AlignDown(8, 8))
	assert.Equal(t, 8, AlignDown(15, 8))
	assert.Equal(t, 0, AlignDown(4095, 4096))
}

func TestAlignPointer(t *testing.T) {
	buf := make([]byte, 64)
	p := unsafe.Pointer(&buf[1])

	up := AlignPointerUp(p, 16)
	assert.Zero(t, uintptr(up)&15)
	assert.LessOrEqual(t, uintptr(p), uintptr(up))
	assert.Less(t, uintptr(up)-uintptr(p), uintptr(16))

	down := AlignPointerDown(up, 16)
	assert.Equal(t, up, down)

	down = AlignPointerDown(unsafe.Add(up, 5), 16)
	assert.Equal(t, up, down)
}

func TestNewAlignedArena(t *testing.T) {
	for _, size := range []int{0x40, 0x1000, 0x4000} {
		arena, err := NewAlignedArena(size)
		assert.NoError(t, err)
		assert.Equal(t, size, len(arena))
		assert.Equal(t, size, cap(arena))
		p := uintptr(unsafe.Pointer(unsafe.SliceData(arena)))
		assert.Zero(t, p&uintptr(size-1), "base %#x not aligned to %#x", p, size)
	}

	_, err := NewAlignedArena(0)
	assert.Error(t, err)
	_, err = NewAlignedArena(0x3000)
	assert.Error(t, err)
}
