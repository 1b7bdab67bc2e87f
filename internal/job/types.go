// Package job runs the chunking, verification, statistics and pruning
// operations against a record sink.
package job

import (
	"github.com/vbauerster/mpb/v8"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/compress"
	"github.com/lupppig/dchunk/internal/crypto"
	"github.com/lupppig/dchunk/internal/digest"
	"github.com/lupppig/dchunk/internal/logger"
)

type ChunkOptions struct {
	Chunking    cdc.Config
	Digest      digest.Algorithm
	BufferSize  int
	Compression compress.Algorithm
	Source      string // recorded in the manifest only
	SourceSize  int64  // bar total; 0 when unknown
	DryRun      bool
	Keys        *crypto.KeyManager // encrypts the record stream when set
	Dispatcher  *cdc.Dispatcher    // shared chunking workers; nil chunks inline
	Logger      *logger.Logger
	Progress    *mpb.Progress
}

type VerifyOptions struct {
	BufferSize int
	SourceSize int64
	Keys       *crypto.KeyManager
	Logger     *logger.Logger
	Progress   *mpb.Progress
}

func (o ChunkOptions) log() *logger.Logger {
	if o.Logger == nil {
		return logger.Discard()
	}
	return o.Logger
}

func (o VerifyOptions) log() *logger.Logger {
	if o.Logger == nil {
		return logger.Discard()
	}
	return o.Logger
}
