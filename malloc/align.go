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

// AlignUp rounds n up to the next multiple of align.
// align must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown rounds n down to a multiple of align.
// align must be a power of two.
func AlignDown(n, align int) int {
	return n &^ (align - 1)
}

// AlignPointerUp rounds p up to the next align-byte boundary.
// align must be a power of two.
func AlignPointerUp(p unsafe.Pointer, align int) unsafe.Pointer {
	off := -uintptr(p) & uintptr(align-1)
	return unsafe.Add(p, off)
}

// AlignPointerDown rounds p down to an align-byte boundary.
// align must be a power of two.
func AlignPointerDown(p unsafe.Pointer, align int) unsafe.Pointer {
	off := uintptr(p) & uintptr(align-1)
	return unsafe.Add(p, -off)
}
