package job

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/crypto"
	"github.com/lupppig/dchunk/internal/digest"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/progress"
	"github.com/lupppig/dchunk/internal/storage"
)

// ChunkManager chunks sources into record streams stored in a sink, one
// manifest per stream.
type ChunkManager struct {
	Options ChunkOptions
	storage storage.Storage
	chunker *cdc.Chunker
}

func NewChunkManager(s storage.Storage, opts ChunkOptions) (*ChunkManager, error) {
	if opts.Digest == "" {
		opts.Digest = digest.Default
	}
	c, err := cdc.New(opts.Chunking, cdc.WithDigest(opts.Digest))
	if err != nil {
		return nil, err
	}
	return &ChunkManager{Options: opts, storage: s, chunker: c}, nil
}

func (m *ChunkManager) GetStorage() storage.Storage {
	return m.storage
}

// RecordsName is the object name of name's record stream.
func (m *ChunkManager) RecordsName(name string) string {
	n := name + manifest.RecordsExt + m.Options.Compression.Ext()
	if m.Options.Keys != nil {
		n += crypto.Ext
	}
	return n
}

// Run chunks r and stores its record stream under name. The manifest is
// written last, so a stream without one is an interrupted run.
func (m *ChunkManager) Run(ctx context.Context, name string, r io.Reader) (_ *manifest.Manifest, err error) {
	log := m.Options.log().With("name", name)

	stream, err := m.chunker.NewStream(m.Options.BufferSize)
	if err != nil {
		return nil, err
	}
	if m.Options.Dispatcher != nil {
		stream.WithDispatcher(m.Options.Dispatcher)
	}

	man := manifest.New(name, m.Options.Digest.String(), m.chunker.Config(), string(m.Options.Compression))
	man.Source = m.Options.Source
	man.Records = m.RecordsName(name)
	man.Encrypted = m.Options.Keys != nil

	bar := progress.AddChunkBar(m.Options.Progress, name, m.Options.SourceSize)
	defer func() {
		if err != nil {
			progress.Abort(bar)
		}
	}()
	src := progress.NewReader(r, bar)

	log.Debug("Chunking started", "config", m.chunker.Config().String(), "digest", man.Digest, "encrypted", man.Encrypted)

	hasher := sha256.New()
	unique := make(map[[cdc.DigestSize]byte]struct{})

	produce := func(w io.Writer) error {
		cw, err := sealRecords(io.MultiWriter(w, hasher), m.Options.Compression, m.Options.Keys)
		if err != nil {
			return err
		}
		bw := bufio.NewWriter(cw)
		var rec [cdc.RecordSize]byte
		err = stream.Run(ctx, src, func(ch cdc.Chunk) error {
			unique[ch.Digest] = struct{}{}
			cdc.PutRecord(rec[:], 0, ch.Digest, ch.Length)
			_, err := bw.Write(rec[:])
			return err
		})
		if err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		return cw.Close()
	}

	location := "(dry-run)"
	if m.Options.DryRun {
		if err := produce(io.Discard); err != nil {
			return nil, err
		}
	} else {
		pr, pw := io.Pipe()
		errChan := make(chan error, 1)
		go func() {
			err := produce(pw)
			pw.CloseWithError(err)
			errChan <- err
		}()

		location, err = m.storage.Save(ctx, man.Records, pr)
		if err != nil {
			pr.CloseWithError(err)
			if perr := <-errChan; perr != nil && perr != err {
				return nil, perr
			}
			return nil, fmt.Errorf("storage save failed: %w", err)
		}
		if err := <-errChan; err != nil {
			return nil, err
		}
	}
	progress.Finish(bar)

	man.Chunks = stream.Chunks()
	man.Unique = len(unique)
	man.Size = stream.Offset()
	man.Checksum = hex.EncodeToString(hasher.Sum(nil))

	if !m.Options.DryRun {
		data, err := man.Serialize()
		if err != nil {
			return nil, err
		}
		if err := m.storage.PutMetadata(ctx, manifest.FileName(name), data); err != nil {
			return nil, fmt.Errorf("failed to save manifest: %w", err)
		}
	}

	log.Info("Record stream saved", "location", location, "chunks", man.Chunks, "unique", man.Unique, "size", man.Size)
	return man, nil
}
