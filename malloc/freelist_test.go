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
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanCount(a *FreeListAllocator) int {
	n := 0
	for off := a.head; off != nilOffset; off = a.span(off).next {
		n++
	}
	return n
}

func TestNewFreeListAllocator(t *testing.T) {
	_, err := NewFreeListAllocator(make([]byte, 16))
	assert.Error(t, err)

	a, err := NewFreeListAllocator(make([]byte, 0x1000))
	require.NoError(t, err)
	assert.Equal(t, 0x1000, a.Available())
	assert.Equal(t, 1, spanCount(a))
}

func TestFreeListAllocFree(t *testing.T) {
	a, err := NewFreeListAllocator(make([]byte, 0x1000))
	require.NoError(t, err)

	b1 := a.Alloc(100, 8)
	require.NotNil(t, b1)
	assert.Equal(t, 100, len(b1))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b1)))
	assert.Zero(t, p&7)

	b2 := a.Alloc(200, 16)
	require.NotNil(t, b2)
	assert.False(t, overlap(b1, b2))

	a.Free(b1)
	a.Free(b2)
	// everything merged back into one span
	assert.Equal(t, 1, spanCount(a))
	assert.Equal(t, 0x1000, a.Available())
}

func TestFreeListMergesBothNeighbors(t *testing.T) {
	a, err := NewFreeListAllocator(make([]byte, 0x1000))
	require.NoError(t, err)

	b1 := a.Alloc(0x100, 8)
	b2 := a.Alloc(0x100, 8)
	b3 := a.Alloc(0x100, 8)
	require.NotNil(t, b3)

	// free the outer two, then the middle one: it must bridge both holes
	a.Free(b1)
	a.Free(b3)
	a.Free(b2)
	assert.Equal(t, 1, spanCount(a))
	assert.Equal(t, 0x1000, a.Available())
}

func TestFreeListExhaustion(t *testing.T) {
	a, err := NewFreeListAllocator(make([]byte, 0x100))
	require.NoError(t, err)

	b := a.Alloc(0x100-flHeaderSize, 1)
	require.NotNil(t, b)
	assert.Equal(t, 0, a.Available())
	assert.Nil(t, a.Alloc(1, 1))

	a.Free(b)
	assert.Equal(t, 0x100, a.Available())
}

func TestFreeListSmallRemainderAbsorbed(t *testing.T) {
	a, err := NewFreeListAllocator(make([]byte, 0x100))
	require.NoError(t, err)

	// leave a head remainder smaller than a span node; it must be absorbed
	// into the allocation, not leaked
	b1 := a.Alloc(0x100-flHeaderSize-8, 1)
	require.NotNil(t, b1)
	assert.Equal(t, 0, spanCount(a))

	a.Free(b1)
	assert.Equal(t, 0x100, a.Available())
	assert.Equal(t, 1, spanCount(a))
}

func TestFreeListChurn(t *testing.T) {
	a, err := NewFreeListAllocator(make([]byte, 0x4000))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))

	var live [][]byte
	for round := 0; round < 2000; round++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			b := a.Alloc(1+rng.Intn(0x200), 1<<uint(rng.Intn(5)))
			if b == nil {
				continue
			}
			for i := range b {
				b[i] = byte(round)
			}
			live = append(live, b)
		} else {
			i := rng.Intn(len(live))
			a.Free(live[i])
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	for _, b := range live {
		a.Free(b)
	}
	assert.Equal(t, 1, spanCount(a))
	assert.Equal(t, 0x4000, a.Available())
}

func TestFreeListContractViolations(t *testing.T) {
	a, err := NewFreeListAllocator(make([]byte, 0x1000))
	require.NoError(t, err)
	assert.Panics(t, func() { a.Alloc(8, 7) }, "non power-of-two align")
	assert.Panics(t, func() { a.Free(make([]byte, 8)) }, "foreign block")
}
