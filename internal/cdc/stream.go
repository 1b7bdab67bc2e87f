package cdc

import (
	"context"
	"fmt"
	"io"
)

// DefaultBufferSize is the read buffer used when none is configured.
const DefaultBufferSize = 4 * 1024 * 1024

// Chunk is one finalized chunk of a stream. Data aliases the stream's read
// buffer and is only valid until the emit callback returns.
type Chunk struct {
	Offset int64
	Record
	Data []byte
}

// Stream drives a Chunker over an io.Reader: read, chunk, carry the tail,
// repeat, with the last read marked final. A Stream chunks one input only.
type Stream struct {
	c      *Chunker
	d      *Dispatcher
	carry  *Carry
	target []byte
	offset int64
	chunks int
}

func (c *Chunker) NewStream(bufferSize int) (*Stream, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	carry, err := NewCarry(bufferSize, c.cfg.Maximum)
	if err != nil {
		return nil, err
	}
	capacity, err := RequiredCapacity(c.cfg.Minimum, bufferSize)
	if err != nil {
		return nil, err
	}
	return &Stream{c: c, carry: carry, target: make([]byte, capacity)}, nil
}

// WithDispatcher runs the stream's chunking calls on d instead of the
// caller's goroutine, so many streams share d's workers.
func (s *Stream) WithDispatcher(d *Dispatcher) *Stream {
	s.d = d
	return s
}

func (s *Stream) process(src Source, final bool) (Result, error) {
	dst := Target{Buf: s.target}
	if s.d == nil {
		return s.c.Process(src, dst, final)
	}
	// src and dst belong to the call until done fires; ctx is only checked
	// between calls.
	ch := make(chan Outcome, 1)
	err := s.d.Submit(s.c, src, dst, final, func(res Result, err error) {
		ch <- Outcome{Result: res, Err: err}
	})
	if err != nil {
		return Result{}, err
	}
	o := <-ch
	return o.Result, o.Err
}

// Run chunks r to the end and calls emit for every chunk in order. It stops
// at the first error from r, emit or ctx.
func (s *Stream) Run(ctx context.Context, r io.Reader, emit func(Chunk) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, final, err := s.carry.Fill(r)
		if err != nil {
			return err
		}
		res, err := s.process(src, final)
		if err != nil {
			return fmt.Errorf("chunk at offset %d: %w", s.offset, err)
		}

		pos := src.Offset
		for off := 0; off < res.Written; off += RecordSize {
			rec, err := ParseRecord(s.target[off:])
			if err != nil {
				return err
			}
			end := pos + int(rec.Length)
			if err := emit(Chunk{Offset: s.offset, Record: rec, Data: src.Buf[pos:end]}); err != nil {
				return err
			}
			pos = end
			s.offset += int64(rec.Length)
			s.chunks++
		}

		if final {
			return nil
		}
		if err := s.carry.Release(res.Consumed); err != nil {
			return err
		}
	}
}

// WriteRecords chunks r and writes the raw record stream to w.
func (s *Stream) WriteRecords(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	start := s.chunks
	var buf [RecordSize]byte
	err := s.Run(ctx, r, func(ch Chunk) error {
		PutRecord(buf[:], 0, ch.Digest, ch.Length)
		_, err := w.Write(buf[:])
		return err
	})
	return s.chunks - start, err
}

// Offset is the number of source bytes finalized so far.
func (s *Stream) Offset() int64 { return s.offset }

// Chunks is the number of chunks emitted so far.
func (s *Stream) Chunks() int { return s.chunks }
