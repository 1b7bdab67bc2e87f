package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/crypto"
	"github.com/lupppig/dchunk/internal/storage"
)

// Stats describes the chunk size distribution and digest redundancy of one
// or more record streams.
type Stats struct {
	Chunks   int
	Unique   int
	Logical  int64 // sum of all chunk lengths
	Physical int64 // sum of the lengths of distinct digests
	Smallest uint32
	Largest  uint32

	seen map[[cdc.DigestSize]byte]uint32
}

func NewStats() *Stats {
	return &Stats{seen: make(map[[cdc.DigestSize]byte]uint32)}
}

func (s *Stats) Add(rec cdc.Record) {
	s.Chunks++
	s.Logical += int64(rec.Length)
	s.addUnique(rec.Digest, rec.Length)
	s.bound(s.Chunks == 1, rec.Length, rec.Length)
}

func (s *Stats) addUnique(d [cdc.DigestSize]byte, length uint32) {
	if s.seen == nil {
		s.seen = make(map[[cdc.DigestSize]byte]uint32)
	}
	if _, ok := s.seen[d]; !ok {
		s.seen[d] = length
		s.Unique++
		s.Physical += int64(length)
	}
}

func (s *Stats) bound(first bool, smallest, largest uint32) {
	if first || smallest < s.Smallest {
		s.Smallest = smallest
	}
	if largest > s.Largest {
		s.Largest = largest
	}
}

// Merge folds o into s; digests seen by both count once.
func (s *Stats) Merge(o *Stats) {
	if o.Chunks == 0 {
		return
	}
	first := s.Chunks == 0
	s.Chunks += o.Chunks
	s.Logical += o.Logical
	for d, length := range o.seen {
		s.addUnique(d, length)
	}
	s.bound(first, o.Smallest, o.Largest)
}

// Average is the mean chunk length.
func (s *Stats) Average() float64 {
	if s.Chunks == 0 {
		return 0
	}
	return float64(s.Logical) / float64(s.Chunks)
}

// AverageError is the relative deviation of the mean chunk length from the
// configured target, in percent.
func (s *Stats) AverageError(target int) float64 {
	if s.Chunks == 0 || target <= 0 {
		return 0
	}
	return math.Abs(s.Average()-float64(target)) / float64(target) * 100
}

// Ratio is logical over physical bytes; 1 means no repeated chunks.
func (s *Stats) Ratio() float64 {
	if s.Physical == 0 {
		return 1
	}
	return float64(s.Logical) / float64(s.Physical)
}

func (s *Stats) String() string {
	return fmt.Sprintf("chunks=%d unique=%d logical=%d physical=%d ratio=%.3f avg=%.1f min=%d max=%d",
		s.Chunks, s.Unique, s.Logical, s.Physical, s.Ratio(), s.Average(), s.Smallest, s.Largest)
}

func Analyze(records []cdc.Record) *Stats {
	s := NewStats()
	for _, rec := range records {
		s.Add(rec)
	}
	return s
}

// AnalyzeReader adds every record of rr to s.
func (s *Stats) AnalyzeReader(rr *cdc.RecordReader) error {
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.Add(rec)
	}
}

// AnalyzeStored adds the records of the stored stream name to s and returns
// its manifest's configured average. keys may be nil for plain streams.
func (s *Stats) AnalyzeStored(ctx context.Context, st storage.Storage, name string, keys *crypto.KeyManager) (int, error) {
	man, err := LoadManifest(ctx, st, name)
	if err != nil {
		return 0, err
	}
	rr, err := openRecords(ctx, st, man, keys, nil)
	if err != nil {
		return 0, err
	}
	defer rr.Close()
	return man.Chunking.Average, s.AnalyzeReader(rr.RecordReader)
}
