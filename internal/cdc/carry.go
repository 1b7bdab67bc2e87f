package cdc

import (
	"errors"
	"fmt"
	"io"
)

// Carry owns the read buffer of one stream and the bytes a non-final call
// left unconsumed. The pending tail is always a single candidate chunk, so
// it never exceeds maximum, and the buffer is always larger than maximum,
// which leaves room to read more before the next call.
type Carry struct {
	buf     []byte
	maximum int
	pending int
	filled  int
	final   bool
}

func NewCarry(size, maximum int) (*Carry, error) {
	if size <= maximum {
		return nil, fmt.Errorf("%w: buffer size (%d), maximum (%d)", ErrInsufficientLookahead, size, maximum)
	}
	if size >= IntegerMax {
		return nil, fmt.Errorf("%w: buffer size (%d)", ErrSourceRange, size)
	}
	return &Carry{buf: make([]byte, size), maximum: maximum}, nil
}

// Fill reads after the pending tail until the buffer is full or r is
// exhausted. It reports final once r has no more data.
func (c *Carry) Fill(r io.Reader) (Source, bool, error) {
	if c.final {
		return Source{}, true, io.EOF
	}
	n, err := io.ReadFull(r, c.buf[c.pending:])
	c.filled = c.pending + n
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.final = true
	default:
		return Source{}, false, fmt.Errorf("read source: %w", err)
	}
	return Source{Buf: c.buf, Offset: 0, Length: c.filled}, c.final, nil
}

// Release moves the unconsumed tail to the front of the buffer.
func (c *Carry) Release(consumed int) error {
	if consumed < 0 || consumed > c.filled {
		return fmt.Errorf("%w: consumed (%d), filled (%d)", ErrChunkOverrun, consumed, c.filled)
	}
	tail := c.filled - consumed
	if tail > c.maximum {
		return fmt.Errorf("%w: carried tail (%d), maximum (%d)", ErrChunkTooLarge, tail, c.maximum)
	}
	copy(c.buf, c.buf[consumed:c.filled])
	c.pending = tail
	c.filled = tail
	return nil
}

// Pending is the number of carried bytes waiting at the front of the buffer.
func (c *Carry) Pending() int { return c.pending }

// Size is the capacity of the read buffer.
func (c *Carry) Size() int { return len(c.buf) }

// Done reports whether the final region has been handed out.
func (c *Carry) Done() bool { return c.final }
