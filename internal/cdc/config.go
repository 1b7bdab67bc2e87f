package cdc

import (
	"fmt"
	"math"
)

// Config holds the three sizes that bound chunk length, in bytes.
type Config struct {
	Average int `mapstructure:"average" json:"average"`
	Minimum int `mapstructure:"minimum" json:"minimum"`
	Maximum int `mapstructure:"maximum" json:"maximum"`
}

// DefaultConfig targets 64 KiB chunks between 16 KiB and 512 KiB.
func DefaultConfig() Config {
	return Config{
		Average: 64 * 1024,
		Minimum: 16 * 1024,
		Maximum: 512 * 1024,
	}
}

// Validate checks bounds and relations in a fixed order so the first
// violated rule is the one reported.
func (c Config) Validate() error {
	if c.Average < AverageMin {
		return fmt.Errorf("%w: average (%d)", ErrAverageTooSmall, c.Average)
	}
	if c.Average > AverageMax {
		return fmt.Errorf("%w: average (%d)", ErrAverageTooLarge, c.Average)
	}
	if c.Minimum < MinimumMin {
		return fmt.Errorf("%w: minimum (%d)", ErrMinimumTooSmall, c.Minimum)
	}
	if c.Minimum > MinimumMax {
		return fmt.Errorf("%w: minimum (%d)", ErrMinimumTooLarge, c.Minimum)
	}
	if c.Minimum >= c.Average {
		return fmt.Errorf("%w: minimum (%d), average (%d)", ErrMinimumNotBelowAverage, c.Minimum, c.Average)
	}
	if c.Maximum < MaximumMin {
		return fmt.Errorf("%w: maximum (%d)", ErrMaximumTooSmall, c.Maximum)
	}
	if c.Maximum > MaximumMax {
		return fmt.Errorf("%w: maximum (%d)", ErrMaximumTooLarge, c.Maximum)
	}
	if c.Maximum <= c.Average {
		return fmt.Errorf("%w: maximum (%d), average (%d)", ErrMaximumNotAboveAverage, c.Maximum, c.Average)
	}
	if c.Maximum-c.Minimum < c.Average {
		return fmt.Errorf("%w: maximum (%d), minimum (%d), average (%d)", ErrSpreadBelowAverage, c.Maximum, c.Minimum, c.Average)
	}
	return nil
}

// Bits is round(log2(average)); 65535, 65536 and 65537 all give 16.
func (c Config) Bits() int {
	return int(math.Round(math.Log2(float64(c.Average))))
}

func (c Config) validateBits() error {
	bits := c.Bits()
	if bits < BitsMin || bits > BitsMax {
		return fmt.Errorf("%w: bits (%d)", ErrBitsOutOfRange, bits)
	}
	return nil
}

func mask(bits int) uint32 {
	return uint32(1)<<uint(bits) - 1
}

// CenterSize is the window offset at which the strict mask gives way to the
// loose one, before clamping to the window.
func (c Config) CenterSize() int {
	offset := c.Minimum + (c.Minimum+1)/2
	if offset > c.Average {
		offset = c.Average
	}
	return c.Average - offset
}

func (c Config) String() string {
	return fmt.Sprintf("average=%d minimum=%d maximum=%d", c.Average, c.Minimum, c.Maximum)
}
