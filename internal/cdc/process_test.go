package cdc

import (
	"bytes"
	"encoding/hex"
	"math/rand/v2"
	"testing"

	sha256 "github.com/minio/sha256-simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupppig/dchunk/internal/digest"
	apperrors "github.com/lupppig/dchunk/internal/errors"
)

var smallConfig = Config{Average: 256, Minimum: 64, Maximum: 1024}

// pinnedLengths are the chunk lengths of pinnedInput under smallConfig.
var pinnedLengths = []int{
	127, 179, 162, 188, 531, 166, 617, 214, 398, 195, 102, 268, 244, 251, 244,
	258, 212, 114, 169, 204, 194, 148, 149, 220, 292, 320, 175, 128, 456, 213,
	162, 192, 195, 172, 333,
}

func pinnedInput() []byte {
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte((uint32(i) * 2654435761) >> 13)
	}
	return data
}

func randomBytes(t testing.TB, n int, seed uint64) []byte {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(r.Uint32())
	}
	return data
}

func newTestChunker(t testing.TB, cfg Config, opts ...Option) *Chunker {
	t.Helper()
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c
}

// chunkAll chunks data in a single final call.
func chunkAll(t testing.TB, c *Chunker, data []byte) []Record {
	t.Helper()
	capacity, err := RequiredCapacity(c.Config().Minimum, len(data))
	require.NoError(t, err)
	target := make([]byte, capacity)

	res, err := c.Process(Source{Buf: data, Length: len(data)}, Target{Buf: target}, true)
	require.NoError(t, err)
	require.Equal(t, len(data), res.Consumed)
	require.LessOrEqual(t, res.Written, capacity)

	records, err := DecodeRecords(target[:res.Written])
	require.NoError(t, err)
	return records
}

func lengths(records []Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = int(r.Length)
	}
	return out
}

func TestProcess_PinnedVector(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := pinnedInput()

	records := chunkAll(t, c, data)
	assert.Equal(t, pinnedLengths, lengths(records))
	assert.Equal(t, "fec88079ad429be486cd554b3ac0c96cc1c6a7c4c731e177e47c00ea65c86215", records[0].Hex())
}

// xorshiftInput is a dependency-free stream so the vectors below can be
// reproduced outside Go.
func xorshiftInput(n int, seed uint32) []byte {
	data := make([]byte, n)
	x := seed
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x)
	}
	return data
}

func TestProcess_PinnedVectors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		input   []byte
		lengths []int
		first   string
	}{
		{
			name:  "default config",
			cfg:   DefaultConfig(),
			input: xorshiftInput(1<<20, 0x2545f491),
			lengths: []int{
				26797, 42884, 45813, 19338, 96372, 45162, 24371, 62426, 83289,
				41688, 42349, 52868, 116919, 26105, 36123, 109124, 176948,
			},
			first: "ecbe47197f8aa0884e1f539254fd82f5a32efc267d70bcb7fb25250a2555cf1a",
		},
		{
			// center size is 1000 - (333 + 167) = 500
			name:  "odd minimum",
			cfg:   Config{Average: 1000, Minimum: 333, Maximum: 4096},
			input: xorshiftInput(16384, 0x9e3779b9),
			lengths: []int{
				1025, 622, 966, 506, 688, 1720, 1130, 1373, 1597, 484, 543, 1528,
				650, 644, 740, 1346, 822,
			},
			first: "7f4988e5f951f7bf2d29b08f693ba02453c631d68d7c41a79d4d4e7a5782d074",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChunker(t, tt.cfg)
			records := chunkAll(t, c, tt.input)
			assert.Equal(t, tt.lengths, lengths(records))
			assert.Equal(t, tt.first, records[0].Hex())
		})
	}
}

func TestProcess_ReassemblyAndDigests(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := randomBytes(t, 200*1024, 1)

	records := chunkAll(t, c, data)
	var rebuilt bytes.Buffer
	off := 0
	for i, r := range records {
		chunk := data[off : off+int(r.Length)]
		assert.Equal(t, sha256.Sum256(chunk), r.Digest, "record %d", i)
		assert.LessOrEqual(t, int(r.Length), smallConfig.Maximum)
		if i < len(records)-1 {
			assert.GreaterOrEqual(t, int(r.Length), smallConfig.Minimum)
		}
		rebuilt.Write(chunk)
		off += int(r.Length)
	}
	assert.Equal(t, data, rebuilt.Bytes())
}

func TestProcess_Deterministic(t *testing.T) {
	data := randomBytes(t, 300*1024, 2)
	first := chunkAll(t, newTestChunker(t, smallConfig), data)
	second := chunkAll(t, newTestChunker(t, smallConfig), data)
	assert.Equal(t, first, second)
}

func TestProcess_DigestDoesNotMoveCuts(t *testing.T) {
	data := randomBytes(t, 100*1024, 3)
	base := chunkAll(t, newTestChunker(t, smallConfig), data)

	for _, algo := range []digest.Algorithm{digest.BLAKE2b, digest.BLAKE3} {
		c := newTestChunker(t, smallConfig, WithDigest(algo))
		records := chunkAll(t, c, data)
		assert.Equal(t, lengths(base), lengths(records), algo.String())
		assert.NotEqual(t, base[0].Digest, records[0].Digest, algo.String())
		assert.Equal(t, algo.MustFunc()(data[:records[0].Length]), records[0].Digest)
	}
}

func TestProcess_RepeatedByteForcesMaximumCuts(t *testing.T) {
	cfg := DefaultConfig()
	c := newTestChunker(t, cfg)

	for _, b := range []byte{0x00, 'a', 0xff} {
		data := bytes.Repeat([]byte{b}, 4*1024*1024)
		records := chunkAll(t, c, data)

		require.Len(t, records, 8, "byte %#x", b)
		for _, r := range records {
			assert.Equal(t, uint32(cfg.Maximum), r.Length)
			assert.Equal(t, records[0].Digest, r.Digest)
		}
	}
}

func TestProcess_RandomDataNearAverage(t *testing.T) {
	cfg := DefaultConfig()
	c := newTestChunker(t, cfg)
	data := randomBytes(t, 4*1024*1024, 4)

	records := chunkAll(t, c, data)
	// len/average is 64.
	assert.GreaterOrEqual(t, len(records), 32)
	assert.LessOrEqual(t, len(records), 128)

	seen := make(map[[DigestSize]byte]struct{}, len(records))
	for _, r := range records {
		seen[r.Digest] = struct{}{}
	}
	assert.Len(t, seen, len(records))
}

func TestProcess_SplitAfterMaximumPlusOne(t *testing.T) {
	cfg := DefaultConfig()
	c := newTestChunker(t, cfg)
	data := randomBytes(t, 2*1024*1024, 5)
	want := chunkAll(t, c, data)

	firstLen := cfg.Maximum + 1
	capacity, err := RequiredCapacity(cfg.Minimum, len(data))
	require.NoError(t, err)
	target := make([]byte, capacity)

	res1, err := c.Process(Source{Buf: data, Length: firstLen}, Target{Buf: target}, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, firstLen-res1.Consumed, cfg.Maximum)

	res2, err := c.Process(
		Source{Buf: data, Offset: res1.Consumed, Length: len(data) - res1.Consumed},
		Target{Buf: target, Offset: res1.Written},
		true,
	)
	require.NoError(t, err)
	assert.Equal(t, len(data)-res1.Consumed, res2.Consumed)

	got, err := DecodeRecords(target[:res1.Written+res2.Written])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProcess_EmptyFinal(t *testing.T) {
	c := newTestChunker(t, DefaultConfig())
	res, err := c.Process(Source{}, Target{}, true)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, res.Records())
}

func TestProcess_ShortFinalIsOneChunk(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := []byte("short tail")
	records := chunkAll(t, c, data)
	require.Len(t, records, 1)
	assert.Equal(t, uint32(len(data)), records[0].Length)
	assert.Equal(t, sha256.Sum256(data), records[0].Digest)
}

func TestProcess_NonFinalLeavesTailUnconsumed(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := pinnedInput()
	target := make([]byte, 4096)

	res, err := c.Process(Source{Buf: data, Length: 1100}, Target{Buf: target}, false)
	require.NoError(t, err)

	sum := 0
	i := 0
	for sum+pinnedLengths[i] < 1100 {
		sum += pinnedLengths[i]
		i++
	}
	assert.Equal(t, sum, res.Consumed)
	assert.Equal(t, i*RecordSize, res.Written)
}

func TestProcess_Preconditions(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	buf := make([]byte, 4096)
	big := make([]byte, 1<<16)

	tests := []struct {
		name    string
		src     Source
		dst     Target
		final   bool
		want    error
		errType apperrors.ErrorType
	}{
		{"source overflow", Source{Buf: buf, Offset: 4000, Length: 200}, Target{Buf: big}, true, ErrSourceOverflow, apperrors.TypeCapacity},
		{"negative source offset", Source{Buf: buf, Offset: -1, Length: 10}, Target{Buf: big}, true, ErrSourceRange, apperrors.TypeRange},
		{"negative source size", Source{Buf: buf, Length: -5}, Target{Buf: big}, true, ErrSourceRange, apperrors.TypeRange},
		{"negative target offset", Source{Buf: buf, Length: 10}, Target{Buf: big, Offset: -1}, true, ErrTargetRange, apperrors.TypeRange},
		{"target overflow", Source{Buf: buf, Length: 4096}, Target{Buf: make([]byte, 64*RecordSize-1)}, true, ErrTargetOverflow, apperrors.TypeCapacity},
		{"target offset overflow", Source{Buf: buf, Length: 4096}, Target{Buf: make([]byte, 64*RecordSize), Offset: 1}, true, ErrTargetOverflow, apperrors.TypeCapacity},
		{"insufficient lookahead", Source{Buf: buf, Length: 1024}, Target{Buf: big}, false, ErrInsufficientLookahead, apperrors.TypeRange},
		{"empty non-final", Source{}, Target{}, false, ErrInsufficientLookahead, apperrors.TypeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirty := append([]byte(nil), tt.dst.Buf...)
			res, err := c.Process(tt.src, tt.dst, tt.final)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, apperrors.IsType(err, tt.errType))
			assert.Equal(t, Result{}, res)
			assert.Equal(t, dirty, tt.dst.Buf, "target must be untouched")
		})
	}
}

func TestProcess_ExactCapacityIsEnough(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := randomBytes(t, 4096, 6)
	target := make([]byte, 64*RecordSize)

	res, err := c.Process(Source{Buf: data, Length: len(data)}, Target{Buf: target}, true)
	require.NoError(t, err)
	assert.Equal(t, len(data), res.Consumed)
}

func TestProcessFunc_ValidatesConfig(t *testing.T) {
	data := pinnedInput()
	target := make([]byte, 8192/64*RecordSize)

	_, err := Process(Config{Average: 256, Minimum: 64, Maximum: 300}, Source{Buf: data, Length: len(data)}, Target{Buf: target}, true)
	assert.ErrorIs(t, err, ErrMaximumTooSmall)

	res, err := Process(smallConfig, Source{Buf: data, Length: len(data)}, Target{Buf: target}, true)
	require.NoError(t, err)
	assert.Equal(t, len(pinnedLengths)*RecordSize, res.Written)
	assert.Equal(t, "fec88079ad429be486cd554b3ac0c96cc1c6a7c4c731e177e47c00ea65c86215", hex.EncodeToString(target[:DigestSize]))
}

// splitChunk feeds data through successive non-final calls of the given
// sizes, carrying the tail forward, and finishes with one final call.
func splitChunk(t testing.TB, c *Chunker, data []byte, sizes []int) []Record {
	t.Helper()
	var out []Record
	pending := 0
	pos := 0
	for _, n := range sizes {
		length := pending + n
		if pos-pending+length > len(data) || length <= c.Config().Maximum {
			continue
		}
		start := pos - pending
		capacity, err := RequiredCapacity(c.Config().Minimum, length)
		require.NoError(t, err)
		target := make([]byte, capacity)
		res, err := c.Process(Source{Buf: data, Offset: start, Length: length}, Target{Buf: target}, false)
		require.NoError(t, err)
		recs, err := DecodeRecords(target[:res.Written])
		require.NoError(t, err)
		out = append(out, recs...)
		pending = length - res.Consumed
		require.LessOrEqual(t, pending, c.Config().Maximum)
		pos = start + length
	}
	start := pos - pending
	rest := data[start:]
	return append(out, chunkAll(t, c, rest)...)
}

func TestProcess_BufferSizeIndependence(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := randomBytes(t, 64*1024, 8)
	want := chunkAll(t, c, data)

	splits := [][]int{
		{1025, 1025, 1025, 1025},
		{2048, 4096, 1500, 9000, 1100},
		{30000, 30000},
		{1025, 1, 1, 1, 5000},
	}
	for _, sizes := range splits {
		assert.Equal(t, want, splitChunk(t, c, data, sizes), "%v", sizes)
	}
}

// fuzzConfig derives a valid configuration from three random words, keeping
// the average small enough for quick iterations.
func fuzzConfig(r1, r2, r3 uint32) Config {
	average := AverageMin + int(r1%(1<<14))
	minimum := MinimumMin + int(r2%uint32(average-MinimumMin))
	maximum := max(average+1, minimum+average) + int(r3%uint32(average*8))
	if maximum < MaximumMin {
		maximum = MaximumMin
	}
	return Config{Average: average, Minimum: minimum, Maximum: maximum}
}

func FuzzProcess_Splits(f *testing.F) {
	f.Add(uint64(1), uint32(0), uint32(0), uint32(0), uint32(1025), uint32(3000))
	f.Add(uint64(7), uint32(3000), uint32(1234), uint32(99999), uint32(20000), uint32(1100))
	f.Add(uint64(42), uint32(16383), uint32(16000), uint32(1), uint32(1), uint32(70000))

	f.Fuzz(func(t *testing.T, seed uint64, r1, r2, r3, a, b uint32) {
		cfg := fuzzConfig(r1, r2, r3)
		require.NoError(t, cfg.Validate(), "%s", cfg)
		c := newTestChunker(t, cfg)

		data := randomBytes(t, 3*cfg.Maximum+int(a%4096), seed)
		sa := int(a%uint32(2*cfg.Maximum)) + 1
		sb := int(b%uint32(2*cfg.Maximum)) + 1

		want := chunkAll(t, c, data)
		got := splitChunk(t, c, data, []int{sa, sb, sa + sb, sb})
		assert.Equal(t, want, got)
	})
}
