package cdc

import (
	"fmt"
)

// Source is a read-only view of Length bytes of Buf starting at Offset.
type Source struct {
	Buf    []byte
	Offset int
	Length int
}

// Target is the region of Buf starting at Offset that receives records.
type Target struct {
	Buf    []byte
	Offset int
}

// Result counts bytes relative to the view offsets.
type Result struct {
	Consumed int
	Written  int
}

// Records is the number of records written.
func (r Result) Records() int { return r.Written / RecordSize }

// Process validates cfg on every call and then chunks src into dst.
func Process(cfg Config, src Source, dst Target, final bool) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if _, err := checkCall(cfg, src, dst, final); err != nil {
		return Result{}, err
	}
	c, err := New(cfg)
	if err != nil {
		return Result{}, err
	}
	return c.Process(src, dst, final)
}

// Process chunks the source view and writes one record per finalized chunk.
//
// A non-final call never finalizes a chunk that ends exactly at the end of
// the view: the cut may move once more data arrives, so those bytes are left
// unconsumed for the caller to carry into the next call. A final call
// consumes every byte, and only its last chunk may be shorter than minimum.
//
// Preconditions are checked before any byte of dst is written.
func (c *Chunker) Process(src Source, dst Target, final bool) (Result, error) {
	capacity, err := checkCall(c.cfg, src, dst, final)
	if err != nil {
		return Result{}, err
	}
	window := src.Buf[src.Offset : src.Offset+src.Length]
	out := dst.Buf[dst.Offset : dst.Offset+capacity]
	return c.run(window, out, final)
}

func (c *Chunker) run(window, out []byte, final bool) (Result, error) {
	var res Result
	for res.Consumed < len(window) {
		rest := window[res.Consumed:]
		size := c.detector.FindCut(rest, c.cfg.Maximum)

		if size == 0 {
			return res, fmt.Errorf("%w: offset (%d)", ErrChunkEmpty, res.Consumed)
		}
		if size > c.cfg.Maximum {
			return res, fmt.Errorf("%w: chunkSize (%d), maximum (%d)", ErrChunkTooLarge, size, c.cfg.Maximum)
		}
		if size > len(rest) {
			return res, fmt.Errorf("%w: chunkSize (%d), remaining (%d)", ErrChunkOverrun, size, len(rest))
		}
		if !final && size == len(rest) {
			break
		}
		if !final && size < c.cfg.Minimum {
			return res, fmt.Errorf("%w: chunkSize (%d), minimum (%d)", ErrChunkTooSmall, size, c.cfg.Minimum)
		}
		if res.Written+RecordSize > len(out) {
			return res, fmt.Errorf("%w: written (%d), capacity (%d)", ErrRecordOverflow, res.Written, len(out))
		}

		res.Written = PutRecord(out, res.Written, c.sum(rest[:size]), uint32(size))
		res.Consumed += size
	}
	if final && res.Consumed != len(window) {
		return res, fmt.Errorf("%w: consumed (%d), sourceSize (%d)", ErrIncompleteFinal, res.Consumed, len(window))
	}
	return res, nil
}

// checkCall validates the views against cfg and returns the target capacity
// the call may use.
func checkCall(cfg Config, src Source, dst Target, final bool) (int, error) {
	if src.Offset < 0 || src.Offset >= IntegerMax || src.Length < 0 || src.Length >= IntegerMax {
		return 0, fmt.Errorf("%w: sourceOffset (%d), sourceSize (%d)", ErrSourceRange, src.Offset, src.Length)
	}
	if src.Offset+src.Length > len(src.Buf) {
		return 0, fmt.Errorf("%w: sourceOffset (%d) + sourceSize (%d) > %d", ErrSourceOverflow, src.Offset, src.Length, len(src.Buf))
	}
	if dst.Offset < 0 || dst.Offset >= IntegerMax {
		return 0, fmt.Errorf("%w: targetOffset (%d)", ErrTargetRange, dst.Offset)
	}
	capacity, err := RequiredCapacity(cfg.Minimum, src.Length)
	if err != nil {
		return 0, err
	}
	if dst.Offset+capacity > len(dst.Buf) {
		return 0, fmt.Errorf("%w: targetOffset (%d) + %d > %d", ErrTargetOverflow, dst.Offset, capacity, len(dst.Buf))
	}
	if !final && src.Length <= cfg.Maximum {
		return 0, fmt.Errorf("%w: sourceSize (%d), maximum (%d)", ErrInsufficientLookahead, src.Length, cfg.Maximum)
	}
	if err := cfg.validateBits(); err != nil {
		return 0, err
	}
	return capacity, nil
}
