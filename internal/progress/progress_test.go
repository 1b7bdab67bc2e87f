package progress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbauerster/mpb/v8"
)

func TestReader_NilBar(t *testing.T) {
	data := []byte("hello world")
	pr := NewReader(bytes.NewReader(data), nil)

	got, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriter_NilBar(t *testing.T) {
	var buf bytes.Buffer
	pw := NewWriter(&buf, nil)

	n, err := pw.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", buf.String())
}

func TestReader_CountsIntoBar(t *testing.T) {
	p := mpb.New(mpb.WithOutput(io.Discard))
	bar := AddChunkBar(p, "disk.img", 1024)
	require.NotNil(t, bar)

	_, err := io.Copy(io.Discard, NewReader(bytes.NewReader(make([]byte, 1024)), bar))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), bar.Current())
	p.Wait()
}

func TestNilContainer(t *testing.T) {
	assert.Nil(t, AddChunkBar(nil, "x", 0))
	assert.Nil(t, AddVerifyBar(nil, "x", 10))
	Finish(nil)
	Abort(nil)
}

func TestCounter(t *testing.T) {
	var c Counter
	_, _ = c.Write(make([]byte, 7))
	_, _ = c.Write(make([]byte, 3))
	assert.Equal(t, int64(10), c.Count)
}
