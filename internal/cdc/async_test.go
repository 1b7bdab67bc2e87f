package cdc

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAsync_SingleCompletion(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	data := pinnedInput()
	target := make([]byte, len(data)/smallConfig.Minimum*RecordSize)

	ch, err := c.ProcessAsync(Source{Buf: data, Length: len(data)}, Target{Buf: target}, true)
	require.NoError(t, err)

	out, ok := <-ch
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Equal(t, len(data), out.Result.Consumed)
	assert.Equal(t, len(pinnedLengths)*RecordSize, out.Result.Written)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the single outcome")

	records, err := DecodeRecords(target[:out.Result.Written])
	require.NoError(t, err)
	assert.Equal(t, pinnedLengths, lengths(records))
}

func TestProcessAsync_PreconditionFailsSynchronously(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	ch, err := c.ProcessAsync(Source{Buf: make([]byte, 100), Length: 100}, Target{Buf: make([]byte, 1024)}, false)
	assert.ErrorIs(t, err, ErrInsufficientLookahead)
	assert.Nil(t, ch)
}

func TestDispatcher_ManyStreams(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	d := NewDispatcher(4)

	const streams = 16
	inputs := make([][]byte, streams)
	targets := make([][]byte, streams)
	results := make([]Result, streams)
	var calls atomic.Int32
	var mu sync.Mutex
	var failures []error

	for i := range streams {
		inputs[i] = randomBytes(t, 8*1024+i*100, uint64(i))
		capacity, err := RequiredCapacity(smallConfig.Minimum, len(inputs[i]))
		require.NoError(t, err)
		targets[i] = make([]byte, capacity)

		err = d.Submit(c, Source{Buf: inputs[i], Length: len(inputs[i])}, Target{Buf: targets[i]}, true, func(res Result, err error) {
			calls.Add(1)
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return
			}
			results[i] = res
		})
		require.NoError(t, err)
	}
	d.Wait()

	assert.Equal(t, int32(streams), calls.Load())
	assert.Empty(t, failures)
	for i := range streams {
		got, err := DecodeRecords(targets[i][:results[i].Written])
		require.NoError(t, err)
		assert.Equal(t, chunkAll(t, c, inputs[i]), got, "stream %d", i)
	}
}

func TestDispatcher_RejectedSubmitNeverCompletes(t *testing.T) {
	c := newTestChunker(t, smallConfig)
	d := NewDispatcher(0)
	called := false

	err := d.Submit(c, Source{Buf: make([]byte, 10), Offset: 5, Length: 10}, Target{}, true, func(Result, error) { called = true })
	assert.ErrorIs(t, err, ErrSourceOverflow)
	d.Wait()
	assert.False(t, called)
}
