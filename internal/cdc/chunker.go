// Package cdc implements gear-hash content-defined chunking over
// caller-supplied buffers and encodes each chunk as a fixed-width
// digest+length record.
package cdc

import (
	"github.com/lupppig/dchunk/internal/digest"
)

// Chunker holds a validated configuration. It keeps no state between
// calls and is safe for concurrent use.
type Chunker struct {
	cfg      Config
	detector *Detector
	algo     digest.Algorithm
	sum      digest.Func
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithDigest selects the chunk digest. The default is SHA-256.
func WithDigest(algo digest.Algorithm) Option {
	return func(c *Chunker) error {
		fn, err := algo.Func()
		if err != nil {
			return err
		}
		c.algo = algo
		c.sum = fn
		return nil
	}
}

func New(cfg Config, opts ...Option) (*Chunker, error) {
	det, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	c := &Chunker{
		cfg:      cfg,
		detector: det,
		algo:     digest.Default,
		sum:      digest.Default.MustFunc(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Chunker) Config() Config { return c.cfg }

func (c *Chunker) Digest() digest.Algorithm { return c.algo }
