// Package buf provides the mutable byte buffer used by the request/response
// path (spec "Buffer": owned, growable byte sequence with explicit size).
package buf

import "bytes"

// minCap is the smallest backing array we ever allocate for a non-empty
// Buffer.
const minCap = 64

// Buffer is an owned, growable byte sequence. The zero value is an empty,
// usable Buffer.
type Buffer struct {
	data []byte // len(data) == size; cap(data) >= size+1
}

// New creates a Buffer pre-sized to hold at least n bytes.
func New(n int) *Buffer {
	b := &Buffer{}
	b.Grow(n)
	return b
}

// FromBytes creates a Buffer that owns a copy of src.
func FromBytes(src []byte) *Buffer {
	b := &Buffer{}
	b.Assign(src)
	return b
}

// Size returns the current logical length of the buffer.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's storage and is invalidated by the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// ensureCap grows the backing array, if needed, so that it can hold at
// least n+1 bytes (the trailing byte the invariant reserves for a NUL the
// socket layer never sends but read code may rely on).
func (b *Buffer) ensureCap(n int) {
	need := n + 1
	if cap(b.data) >= need {
		return
	}
	newCap := cap(b.data)
	if newCap < minCap {
		newCap = minCap
	}
	for newCap < need {
		newCap *= 2
	}
	fresh := make([]byte, len(b.data), newCap)
	copy(fresh, b.data)
	b.data = fresh
}

// Resize sets the logical size to n. Growing zero-fills the new region;
// shrinking just truncates (the freed capacity is retained for reuse).
func (b *Buffer) Resize(n int) {
	if n < 0 {
		n = 0
	}
	b.ensureCap(n)
	old := len(b.data)
	b.data = b.data[:n]
	if n > old {
		clear(b.data[old:n])
	}
}

// Grow ensures the buffer can accept n additional bytes without
// reallocating, without changing the logical size.
func (b *Buffer) Grow(n int) {
	b.ensureCap(len(b.data) + n)
}

// Trim shrinks the logical size to n, discarding any bytes beyond it.
// A no-op if n >= Size().
func (b *Buffer) Trim(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(b.data) {
		b.data = b.data[:n]
	}
}

// Append appends p to the buffer, growing storage as needed.
func (b *Buffer) Append(p []byte) {
	b.ensureCap(len(b.data) + len(p))
	b.data = append(b.data, p...)
}

// AppendString appends s to the buffer without an intermediate []byte copy
// beyond what append itself performs.
func (b *Buffer) AppendString(s string) {
	b.ensureCap(len(b.data) + len(s))
	b.data = append(b.data, s...)
}

// Assign replaces the buffer's contents with a copy of src.
func (b *Buffer) Assign(src []byte) {
	b.ensureCap(len(src))
	b.data = append(b.data[:0], src...)
}

// Substring returns a copy of the byte range [start, end).
// Panics if the range is out of bounds, matching slice semantics.
func (b *Buffer) Substring(start, end int) []byte {
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return out
}

// Compare performs a byte-wise comparison against other, returning a value
// <0, 0, or >0 the way bytes.Compare does.
func (b *Buffer) Compare(other *Buffer) int {
	return bytes.Compare(b.data, other.data)
}

// Reset truncates the buffer to zero length, retaining its capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
