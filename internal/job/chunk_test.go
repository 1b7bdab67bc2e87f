package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/compress"
	"github.com/lupppig/dchunk/internal/digest"
	apperrors "github.com/lupppig/dchunk/internal/errors"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/storage"
)

var smallConfig = cdc.Config{Average: 256, Minimum: 64, Maximum: 1024}

func sampleInput() []byte {
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte((uint32(i) * 2654435761) >> 13)
	}
	return data
}

func chunkOpts(algo compress.Algorithm) ChunkOptions {
	return ChunkOptions{
		Chunking:    smallConfig,
		Digest:      digest.SHA256,
		BufferSize:  4096,
		Compression: algo,
		Source:      "sample.bin",
	}
}

func TestChunkManager_RunAndVerify(t *testing.T) {
	ctx := context.Background()
	data := sampleInput()

	for _, algo := range []compress.Algorithm{compress.None, compress.Gzip, compress.Lz4, compress.Zstd} {
		t.Run(string(algo), func(t *testing.T) {
			st := storage.NewLocalStorage(t.TempDir())
			cm, err := NewChunkManager(st, chunkOpts(algo))
			require.NoError(t, err)

			man, err := cm.Run(ctx, "sample", bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 35, man.Chunks)
			assert.Equal(t, 35, man.Unique)
			assert.Equal(t, int64(len(data)), man.Size)
			assert.Equal(t, "sample.records"+algo.Ext(), man.Records)
			assert.Equal(t, "sample.bin", man.Source)
			assert.Equal(t, smallConfig, man.Chunking)

			blob, err := st.Open(ctx, man.Records)
			require.NoError(t, err)
			sum, err := manifest.CalculateChecksum(blob)
			blob.Close()
			require.NoError(t, err)
			assert.Equal(t, man.Checksum, sum)

			saved, err := LoadManifest(ctx, st, "sample")
			require.NoError(t, err)
			assert.Equal(t, man.ID, saved.ID)

			report, err := NewVerifyManager(st, VerifyOptions{BufferSize: 2048}).Run(ctx, "sample", bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 35, report.Chunks)
			assert.Equal(t, int64(len(data)), report.Size)
			assert.Equal(t, man.Checksum, report.Checksum)
		})
	}
}

func TestChunkManager_RecordsMatchDirectChunking(t *testing.T) {
	ctx := context.Background()
	data := sampleInput()
	st := storage.NewLocalStorage(t.TempDir())

	cm, err := NewChunkManager(st, chunkOpts(compress.None))
	require.NoError(t, err)
	man, err := cm.Run(ctx, "sample", bytes.NewReader(data))
	require.NoError(t, err)

	blob, err := st.Open(ctx, man.Records)
	require.NoError(t, err)
	defer blob.Close()
	raw, err := io.ReadAll(blob)
	require.NoError(t, err)

	c, err := cdc.New(smallConfig)
	require.NoError(t, err)
	capacity, err := cdc.RequiredCapacity(smallConfig.Minimum, len(data))
	require.NoError(t, err)
	out := make([]byte, capacity)
	res, err := c.Process(cdc.Source{Buf: data, Length: len(data)}, cdc.Target{Buf: out}, true)
	require.NoError(t, err)
	assert.Equal(t, out[:res.Written], raw)
}

func TestChunkManager_RepeatedByteStats(t *testing.T) {
	ctx := context.Background()
	st := storage.NewLocalStorage(t.TempDir())
	cm, err := NewChunkManager(st, ChunkOptions{Chunking: cdc.DefaultConfig(), Compression: compress.Zstd})
	require.NoError(t, err)

	man, err := cm.Run(ctx, "zeros", bytes.NewReader(make([]byte, 4<<20)))
	require.NoError(t, err)
	assert.Equal(t, 8, man.Chunks)
	assert.Equal(t, 1, man.Unique)
	assert.Equal(t, string(digest.SHA256), man.Digest)

	s := NewStats()
	avg, err := s.AnalyzeStored(ctx, st, "zeros", nil)
	require.NoError(t, err)
	assert.Equal(t, 65536, avg)
	assert.Equal(t, 8, s.Chunks)
	assert.Equal(t, uint32(524288), s.Smallest)
	assert.Equal(t, uint32(524288), s.Largest)
	assert.InDelta(t, 8.0, s.Ratio(), 1e-9)
}

func TestChunkManager_SharedDispatcher(t *testing.T) {
	ctx := context.Background()
	st := storage.NewLocalStorage(t.TempDir())
	d := cdc.NewDispatcher(1)
	defer d.Wait()

	inline, err := NewChunkManager(st, chunkOpts(compress.None))
	require.NoError(t, err)
	want, err := inline.Run(ctx, "inline", bytes.NewReader(sampleInput()))
	require.NoError(t, err)

	opts := chunkOpts(compress.None)
	opts.Dispatcher = d
	shared, err := NewChunkManager(st, opts)
	require.NoError(t, err)
	got, err := shared.Run(ctx, "shared", bytes.NewReader(sampleInput()))
	require.NoError(t, err)

	assert.Equal(t, 35, got.Chunks)
	assert.Equal(t, want.Chunks, got.Chunks)
	assert.Equal(t, want.Unique, got.Unique)
	assert.Equal(t, want.Checksum, got.Checksum)
}

func TestChunkManager_DryRunStoresNothing(t *testing.T) {
	ctx := context.Background()
	st := storage.NewLocalStorage(t.TempDir())
	opts := chunkOpts(compress.Gzip)
	opts.DryRun = true
	cm, err := NewChunkManager(st, opts)
	require.NoError(t, err)

	man, err := cm.Run(ctx, "sample", bytes.NewReader(sampleInput()))
	require.NoError(t, err)
	assert.Equal(t, 35, man.Chunks)
	assert.NotEmpty(t, man.Checksum)

	files, err := st.ListMetadata(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestChunkManager_SaveFailure(t *testing.T) {
	ctx := context.Background()
	ms := new(MockStorage)
	ms.On("Save", ctx, "sample.records", mock.Anything).Return("", errors.New("disk full"))

	cm, err := NewChunkManager(ms, chunkOpts(compress.None))
	require.NoError(t, err)

	_, err = cm.Run(ctx, "sample", bytes.NewReader(sampleInput()))
	assert.ErrorContains(t, err, "disk full")
	ms.AssertNotCalled(t, "PutMetadata", mock.Anything, mock.Anything, mock.Anything)
}

func TestChunkManager_SourceFailure(t *testing.T) {
	ctx := context.Background()
	ms := new(MockStorage)
	ms.On("Save", ctx, "sample.records", mock.Anything).
		Run(func(args mock.Arguments) {
			_, _ = io.Copy(io.Discard, args.Get(2).(io.Reader))
		}).
		Return("", errors.New("upload aborted"))

	cm, err := NewChunkManager(ms, chunkOpts(compress.None))
	require.NoError(t, err)

	broken := io.MultiReader(bytes.NewReader(sampleInput()), failingReader{})
	_, err = cm.Run(ctx, "sample", broken)
	assert.ErrorContains(t, err, "read failed")
}

func TestNewChunkManager_InvalidConfig(t *testing.T) {
	_, err := NewChunkManager(storage.NewLocalStorage(t.TempDir()), ChunkOptions{Chunking: cdc.Config{Average: 64, Minimum: 64, Maximum: 1024}})
	assert.True(t, apperrors.IsType(err, apperrors.TypeRange))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
