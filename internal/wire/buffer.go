// Package wire implements the message buffer and opcode framing used
// over the authenticated transport. A Buffer is a small mutable byte
// container with an independent read/write cursor, used to build and
// parse the payloads carried by each opcode.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned by any read that would run past the
// buffer's current length.
var ErrTruncated = errors.New("wire: truncated buffer")

// Buffer is a growable byte container with a cursor for sequential
// reads, mirroring the length/capacity/cursor primitive the wire
// codec is built on.
type Buffer struct {
	data   []byte
	length int
	cursor int
}

// NewBuffer returns an empty buffer ready for writing.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// WrapBuffer returns a buffer pre-loaded with b, cursor at zero, ready
// for reading.
func WrapBuffer(b []byte) *Buffer {
	return &Buffer{data: b, length: len(b)}
}

// Len returns the current logical length of the buffer.
func (b *Buffer) Len() int { return b.length }

// Bytes returns the buffer's logical content.
func (b *Buffer) Bytes() []byte { return b.data[:b.length] }

// Reset sets the cursor back to the start of the buffer without
// discarding its content.
func (b *Buffer) Reset() { b.cursor = 0 }

// Seek moves the cursor to an absolute offset.
func (b *Buffer) Seek(offset int) { b.cursor = offset }

// grow ensures the buffer can hold at least n additional bytes,
// extending capacity geometrically.
func (b *Buffer) grow(n int) {
	need := b.length + n
	if need <= cap(b.data) {
		b.data = b.data[:cap(b.data)]
		return
	}
	newCap := cap(b.data)*2 + n
	if newCap < need {
		newCap = need
	}
	nd := make([]byte, newCap)
	copy(nd, b.data[:b.length])
	b.data = nd
}

// SetLength sets the buffer's logical length to n, growing capacity as
// needed and zero-filling any newly exposed tail.
func (b *Buffer) SetLength(n int) {
	if n <= b.length {
		b.length = n
		return
	}
	old := b.length
	b.grow(n - b.length)
	clear(b.data[old:n])
	b.length = n
}

// AppendUint32 appends a big-endian 32-bit integer.
func (b *Buffer) AppendUint32(v uint32) {
	b.grow(4)
	binary.BigEndian.PutUint32(b.data[b.length:b.length+4], v)
	b.length += 4
}

// AppendBytes appends a length-prefixed (u32) byte string.
func (b *Buffer) AppendBytes(p []byte) {
	b.AppendUint32(uint32(len(p)))
	b.grow(len(p))
	copy(b.data[b.length:b.length+len(p)], p)
	b.length += len(p)
}

// AppendRaw appends raw bytes with no length prefix.
func (b *Buffer) AppendRaw(p []byte) {
	b.grow(len(p))
	copy(b.data[b.length:b.length+len(p)], p)
	b.length += len(p)
}

// ReadUint32 reads a big-endian 32-bit integer at the cursor and
// advances it. It fails with ErrTruncated if fewer than 4 bytes
// remain.
func (b *Buffer) ReadUint32() (uint32, error) {
	if b.cursor+4 > b.length {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(b.data[b.cursor : b.cursor+4])
	b.cursor += 4
	return v, nil
}

// ReadBytes reads a length-prefixed (u32) byte string at the cursor
// and advances past it.
func (b *Buffer) ReadBytes() ([]byte, error) {
	n, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	return b.ReadRaw(int(n))
}

// ReadRaw reads n raw bytes at the cursor and advances past them.
func (b *Buffer) ReadRaw(n int) ([]byte, error) {
	if n < 0 || b.cursor+n > b.length {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, b.data[b.cursor:b.cursor+n])
	b.cursor += n
	return out, nil
}
