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

// Package darray provides a growable array that stores its elements in a
// region obtained from a malloc.Allocator instead of the Go heap.
package darray

import (
	"unsafe"

	"github.com/cloudwego/memarena/malloc"
)

const growthFactor = 2

// Array is a growable contiguous sequence of T backed by an allocator
// region. Elements are treated as plain old data and copied bytewise on
// growth; T must NOT contain pointers, the GC does not see the region.
//
// The array borrows the allocator for its whole lifetime: every Push that
// grows, and Release, go back to it. Not safe for concurrent use.
type Array[T comparable] struct {
	alloc malloc.Allocator
	block []byte

	capacity int
	length   int
}

// WithCapacity creates an array with room for capacity elements, acquired
// from a. capacity must be positive; panics if a cannot satisfy the
// initial request.
func WithCapacity[T comparable](a malloc.Allocator, capacity int) *Array[T] {
	if capacity <= 0 {
		panic("darray: capacity must be positive")
	}
	var zero T
	block := a.Alloc(capacity*int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if block == nil {
		panic("darray: allocator cannot satisfy initial capacity")
	}
	return &Array[T]{alloc: a, block: block, capacity: capacity}
}

// Push appends v, doubling capacity when full. Growth reuses the current
// region while the new byte size still fits cap(block); otherwise it
// allocates a new region, copies the elements and releases the old one.
// Panics if the allocator cannot satisfy the doubled request: callers
// relying on Push cannot recover from a half-grown array.
func (d *Array[T]) Push(v T) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if d.length == d.capacity {
		d.capacity *= growthFactor
		if need := d.capacity * elemSize; need > cap(d.block) {
			block := d.alloc.Alloc(need, int(unsafe.Alignof(zero)))
			if block == nil {
				panic("darray: allocator cannot satisfy growth")
			}
			copy(block[:d.length*elemSize], d.block[:d.length*elemSize])
			d.alloc.Free(d.block)
			d.block = block
		}
	}
	*d.at(d.length) = v
	d.length++
}

// Get returns element i. Panics if i is out of range.
func (d *Array[T]) Get(i int) T {
	if i < 0 || i >= d.length {
		panic("darray: index out of range")
	}
	return *d.at(i)
}

// At returns a pointer to element i for in-place modification.
// Panics if i is out of range.
func (d *Array[T]) At(i int) *T {
	if i < 0 || i >= d.length {
		panic("darray: index out of range")
	}
	return d.at(i)
}

// Len returns the number of elements.
func (d *Array[T]) Len() int { return d.length }

// Cap returns the current capacity in elements.
func (d *Array[T]) Cap() int { return d.capacity }

// Do calls f on each element in order.
func (d *Array[T]) Do(f func(v *T)) {
	for i := 0; i < d.length; i++ {
		f(d.at(i))
	}
}

// Equal reports elementwise equality. Arrays of different lengths are
// never equal.
func (d *Array[T]) Equal(o *Array[T]) bool {
	if d.length != o.length {
		return false
	}
	for i := 0; i < d.length; i++ {
		if *d.at(i) != *o.at(i) {
			return false
		}
	}
	return true
}

// Release returns the current region to the allocator. The array must not
// be used afterwards.
func (d *Array[T]) Release() {
	if d.block != nil {
		d.alloc.Free(d.block)
		d.block = nil
		d.capacity, d.length = 0, 0
	}
}

func (d *Array[T]) at(i int) *T {
	var zero T
	p := unsafe.Pointer(unsafe.SliceData(d.block))
	return (*T)(unsafe.Add(p, i*int(unsafe.Sizeof(zero))))
}
