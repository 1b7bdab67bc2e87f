package cdc

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	apperrors "github.com/lupppig/dchunk/internal/errors"
)

const (
	DigestSize = 32
	LengthSize = 4
	RecordSize = DigestSize + LengthSize
)

// Record describes one finalized chunk: its digest and its length.
type Record struct {
	Digest [DigestSize]byte
	Length uint32
}

func (r Record) Hex() string {
	return hex.EncodeToString(r.Digest[:])
}

// PutRecord writes digest followed by the big-endian length at offset and
// returns the offset just past the record.
func PutRecord(dst []byte, offset int, digest [DigestSize]byte, length uint32) int {
	copy(dst[offset:offset+DigestSize], digest[:])
	binary.BigEndian.PutUint32(dst[offset+DigestSize:offset+RecordSize], length)
	return offset + RecordSize
}

// ParseRecord decodes the record at the start of src.
func ParseRecord(src []byte) (Record, error) {
	if len(src) < RecordSize {
		return Record{}, fmt.Errorf("short record: %d bytes", len(src))
	}
	var r Record
	copy(r.Digest[:], src[:DigestSize])
	r.Length = binary.BigEndian.Uint32(src[DigestSize:RecordSize])
	return r, nil
}

// DecodeRecords decodes a densely packed record stream.
func DecodeRecords(src []byte) ([]Record, error) {
	if len(src)%RecordSize != 0 {
		return nil, apperrors.Wrap(fmt.Errorf("%d bytes is not a multiple of %d", len(src), RecordSize),
			apperrors.TypeIntegrity, "truncated record stream", "The record stream was cut short. Re-run chunking against the source.")
	}
	records := make([]Record, 0, len(src)/RecordSize)
	for off := 0; off < len(src); off += RecordSize {
		r, _ := ParseRecord(src[off:])
		records = append(records, r)
	}
	return records, nil
}

// RecordReader reads records one at a time from a stream.
type RecordReader struct {
	r   io.Reader
	buf [RecordSize]byte
	n   int
}

func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: r}
}

// Next returns io.EOF once the stream ends on a record boundary.
func (rr *RecordReader) Next() (Record, error) {
	if _, err := io.ReadFull(rr.r, rr.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, apperrors.Wrap(err, apperrors.TypeIntegrity, fmt.Sprintf("truncated record stream after %d records", rr.n), "The record stream was cut short. Re-run chunking against the source.")
		}
		return Record{}, err
	}
	rr.n++
	return ParseRecord(rr.buf[:])
}

// Count returns how many records were read so far.
func (rr *RecordReader) Count() int { return rr.n }

// RequiredCapacity is the worst-case number of record bytes produced for
// sourceSize bytes: every chunk but the last is at least minimum long.
func RequiredCapacity(minimum, sourceSize int) (int, error) {
	if minimum < MinimumMin {
		return 0, fmt.Errorf("%w: minimum (%d)", ErrMinimumTooSmall, minimum)
	}
	if minimum > MinimumMax {
		return 0, fmt.Errorf("%w: minimum (%d)", ErrMinimumTooLarge, minimum)
	}
	if sourceSize < 0 || sourceSize >= IntegerMax {
		return 0, fmt.Errorf("%w: sourceSize (%d)", ErrSourceRange, sourceSize)
	}
	return ceilDiv(sourceSize, minimum) * RecordSize, nil
}

func ceilDiv(x, y int) int {
	return (x + y - 1) / y
}
