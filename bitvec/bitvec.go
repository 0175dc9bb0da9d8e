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

// Package bitvec provides single-bit reads and writes over a slice of
// uint64 words. Bit i lives in word i/64 at position i%64, so absolute
// indices are stable across all operations.
package bitvec

// WordBits is the number of bits stored per backing word.
const WordBits = 64

// Words returns the number of uint64 words needed to hold n bits.
func Words(n int) int {
	return (n + WordBits - 1) / WordBits
}

// New returns a zeroed bit-vector large enough to hold n bits.
func New(n int) []uint64 {
	return make([]uint64, Words(n))
}

// Get returns bit i.
func Get(bits []uint64, i int) bool {
	return bits[i/WordBits]&(1<<(i%WordBits)) != 0
}

// Set assigns bit i to v without branching on v: the bit is cleared,
// then OR-ed back in.
func Set(bits []uint64, i int, v bool) {
	var b uint64
	if v {
		b = 1
	}
	bits[i/WordBits] = bits[i/WordBits]&^(1<<(i%WordBits)) | b<<(i%WordBits)
}

// SetTrue sets bit i.
func SetTrue(bits []uint64, i int) {
	bits[i/WordBits] |= 1 << (i % WordBits)
}

// SetFalse clears bit i.
func SetFalse(bits []uint64, i int) {
	bits[i/WordBits] &^= 1 << (i % WordBits)
}
