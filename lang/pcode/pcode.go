// Package pcode implements the pseudocode byte stream: an append-only
// buffer produced by the tokenizer and linker, and a read cursor consumed by
// the statement executor and expression evaluator. Keeping the buffer and
// cursor in one package means no other package ever does raw pointer
// arithmetic into the stream; every read advances through Cursor's methods.
package pcode

import (
	"encoding/binary"

	"github.com/vastcl/vcl/lang/token"
)

// Buffer is the append-only pseudocode byte stream for one translation
// unit. Tokens are written by the scanner; IDENTIFIER/SYMBOL payloads are
// rewritten in place by the linker once a symbol's arena index is known,
// which is why Buffer exposes PatchUint32 alongside the append-only Emit*
// methods.
type Buffer struct {
	b []byte
}

// Len returns the number of bytes written so far; also the offset the next
// Emit call will write at.
func (buf *Buffer) Len() int { return len(buf.b) }

// Bytes returns the buffer's contents. The caller must not retain or
// mutate the slice past the next Emit call.
func (buf *Buffer) Bytes() []byte { return buf.b }

// EmitByte appends a single byte (a bare token, or an operator/keyword
// token with the OpAssign bit folded in) and returns its offset.
func (buf *Buffer) EmitByte(b byte) int {
	off := len(buf.b)
	buf.b = append(buf.b, b)
	return off
}

// EmitToken appends tok as a single byte.
func (buf *Buffer) EmitToken(tok token.Token) int {
	return buf.EmitByte(byte(tok))
}

// EmitUint32 appends a little-endian uint32 payload (used for
// IDENTIFIER/SYMBOL/FUNCTION/FUNCREF table indices and FILE_LINE_MARK's
// packed file/line word).
func (buf *Buffer) EmitUint32(v uint32) int {
	off := len(buf.b)
	buf.b = append(buf.b, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(buf.b[off:], v)
	return off
}

// EmitUint64 appends a little-endian uint64 payload, used by LONG_CONST,
// ULONG_CONST and FLOAT_CONST (the latter via its bit pattern).
func (buf *Buffer) EmitUint64(v uint64) int {
	off := len(buf.b)
	buf.b = append(buf.b, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(buf.b[off:], v)
	return off
}

// EmitBytes appends raw bytes (a STR_CONST's characters, NUL-terminated by
// the caller) and returns the starting offset.
func (buf *Buffer) EmitBytes(p []byte) int {
	off := len(buf.b)
	buf.b = append(buf.b, p...)
	return off
}

// PatchUint32 overwrites the 4 bytes at off with v. Used by the linker once
// it has assigned a symbol its arena index.
func (buf *Buffer) PatchUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(buf.b[off:], v)
}

// PatchByte overwrites a single byte at off, used when the linker rewrites a
// SYMBOL token to IDENTIFIER or FUNCREF in place.
func (buf *Buffer) PatchByte(off int, b byte) {
	buf.b[off] = b
}

// Cursor reads a Buffer sequentially. Multiple cursors may exist over the
// same buffer (the linker and the runtime each walk it independently), each
// advancing independently; a cursor never outlives further Emit calls to
// its buffer once reading has begun, since append may reallocate.
type Cursor struct {
	buf *Buffer
	pos int
}

// NewCursor returns a Cursor positioned at the start of buf.
func NewCursor(buf *Buffer) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the cursor's current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Buffer returns the buffer this cursor reads.
func (c *Cursor) Buffer() *Buffer { return c.buf }

// Seek repositions the cursor to an absolute offset, used for goto (jumping
// to a label's recorded offset) and for the linker re-walking a prototype.
func (c *Cursor) Seek(off int) { c.pos = off }

// AtEnd reports whether the cursor has consumed the whole buffer.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.buf.b) }

// ReadByte consumes and returns the next byte.
func (c *Cursor) ReadByte() byte {
	b := c.buf.b[c.pos]
	c.pos++
	return b
}

// PeekByte returns the next byte without consuming it.
func (c *Cursor) PeekByte() byte {
	return c.buf.b[c.pos]
}

// PeekByteAt returns the byte n positions past the cursor without
// consuming anything, or 0 past the end of the buffer. Used for the
// two-token lookaheads (cast detection, sizeof(T), typedef-name
// declaration starts) that must not disturb the read position.
func (c *Cursor) PeekByteAt(n int) byte {
	if c.pos+n >= len(c.buf.b) {
		return 0
	}
	return c.buf.b[c.pos+n]
}

// PeekUint32At returns the little-endian uint32 starting n bytes past the
// cursor, without consuming anything.
func (c *Cursor) PeekUint32At(n int) uint32 {
	return binary.LittleEndian.Uint32(c.buf.b[c.pos+n:])
}

// ReadToken consumes and returns the next byte as a Token.
func (c *Cursor) ReadToken() token.Token {
	return token.Token(c.ReadByte())
}

// PeekToken returns the next byte as a Token without consuming it.
func (c *Cursor) PeekToken() token.Token {
	return token.Token(c.PeekByte())
}

// ReadUint32 consumes and returns the next 4 bytes as a little-endian
// uint32.
func (c *Cursor) ReadUint32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf.b[c.pos:])
	c.pos += 4
	return v
}

// ReadUint64 consumes and returns the next 8 bytes as a little-endian
// uint64.
func (c *Cursor) ReadUint64() uint64 {
	v := binary.LittleEndian.Uint64(c.buf.b[c.pos:])
	c.pos += 8
	return v
}

// ReadN consumes and returns the next n bytes. Used to read a STR_CONST
// payload, whose length byte precedes it; reading by count rather than
// scanning for a NUL keeps embedded '\0' escapes in string literals from
// desynchronizing the stream.
func (c *Cursor) ReadN(n int) []byte {
	s := c.buf.b[c.pos : c.pos+n]
	c.pos += n
	return s
}
