package cdc

import (
	"github.com/lupppig/dchunk/internal/gear"
)

// Detector finds content-defined cut points with two masks: a strict one
// up to the center offset and a loose one after it, which pulls chunk sizes
// toward the configured average.
type Detector struct {
	minimum    int
	centerSize int
	maskHigh   uint32
	maskLow    uint32
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.validateBits(); err != nil {
		return nil, err
	}
	bits := cfg.Bits()
	return &Detector{
		minimum:    cfg.Minimum,
		centerSize: cfg.CenterSize(),
		maskHigh:   mask(bits + 1),
		maskLow:    mask(bits - 1),
	}, nil
}

// FindCut returns the length of the chunk starting at window[0]. Windows no
// longer than minimum are returned whole. Otherwise the scan stops at limit
// (normally the configured maximum) and a forced cut is made there if no
// hash position qualifies.
func (d *Detector) FindCut(window []byte, limit int) int {
	n := len(window)
	if n <= d.minimum {
		return n
	}
	if n > limit {
		n = limit
	}

	strictEnd := d.centerSize
	if strictEnd > n {
		strictEnd = n
	}

	var h uint32
	i := d.minimum
	for ; i < strictEnd; i++ {
		h = (h >> 1) + gear.Table[window[i]]
		if h&d.maskHigh == 0 {
			return i + 1
		}
	}
	for ; i < n; i++ {
		h = (h >> 1) + gear.Table[window[i]]
		if h&d.maskLow == 0 {
			return i + 1
		}
	}
	return n
}
