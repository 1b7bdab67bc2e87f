package job

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/digest"
	apperrors "github.com/lupppig/dchunk/internal/errors"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/progress"
	"github.com/lupppig/dchunk/internal/storage"
)

// Report summarizes a successful verification.
type Report struct {
	Name     string
	Chunks   int
	Size     int64
	Checksum string
}

// VerifyManager checks a stored record stream against its source.
type VerifyManager struct {
	Options VerifyOptions
	storage storage.Storage
}

func NewVerifyManager(s storage.Storage, opts VerifyOptions) *VerifyManager {
	return &VerifyManager{Options: opts, storage: s}
}

// LoadManifest fetches and decodes name's manifest.
func LoadManifest(ctx context.Context, s storage.Storage, name string) (*manifest.Manifest, error) {
	data, err := s.GetMetadata(ctx, manifest.FileName(name))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "manifest not found", "Run `dchunk list` to see stored record streams.")
	}
	man, err := manifest.Deserialize(data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeIntegrity, "manifest is unreadable", "")
	}
	return man, nil
}

// Run re-chunks source with the manifest's parameters and compares every
// chunk with the stored record: same length, same digest, same count. The
// stored blob's checksum and the manifest totals are checked as well.
func (m *VerifyManager) Run(ctx context.Context, name string, source io.Reader) (_ *Report, err error) {
	log := m.Options.log().With("name", name)

	man, err := LoadManifest(ctx, m.storage, name)
	if err != nil {
		return nil, err
	}
	algo, err := digest.Parse(man.Digest)
	if err != nil {
		return nil, err
	}
	chunker, err := cdc.New(man.Chunking, cdc.WithDigest(algo))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeIntegrity, "manifest carries invalid chunking parameters", "")
	}
	bufferSize := m.Options.BufferSize
	if bufferSize <= man.Chunking.Maximum {
		bufferSize = man.Chunking.Maximum + cdc.DefaultBufferSize
	}
	stream, err := chunker.NewStream(bufferSize)
	if err != nil {
		return nil, err
	}
	hasher := sha256.New()
	stored, err := openRecords(ctx, m.storage, man, m.Options.Keys, hasher)
	if err != nil {
		return nil, err
	}
	defer stored.Close()

	bar := progress.AddVerifyBar(m.Options.Progress, name, m.Options.SourceSize)
	defer func() {
		if err != nil {
			progress.Abort(bar)
		}
	}()
	src := progress.NewReader(source, bar)

	log.Debug("Verification started", "records", man.Records)

	err = stream.Run(ctx, src, func(ch cdc.Chunk) error {
		want, err := stored.Next()
		if errors.Is(err, io.EOF) {
			return mismatch(stream.Chunks(), ch.Offset, "source has more chunks than the record stream")
		}
		if err != nil {
			return err
		}
		if err := checkBounds(want, man.Chunking); err != nil {
			return mismatch(stream.Chunks(), ch.Offset, err.Error())
		}
		if want.Length != ch.Length {
			return mismatch(stream.Chunks(), ch.Offset, fmt.Sprintf("length %d, source gives %d", want.Length, ch.Length))
		}
		if want.Digest != ch.Digest {
			return mismatch(stream.Chunks(), ch.Offset, fmt.Sprintf("digest %s, source gives %s", want.Hex(), ch.Hex()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := stored.Next(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, mismatch(stream.Chunks(), stream.Offset(), "record stream has more records than the source has chunks")
	}
	progress.Finish(bar)

	// The decompressor may stop before the container trailer.
	if err := stored.Drain(); err != nil {
		return nil, err
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))
	if man.Checksum != "" && man.Checksum != checksum {
		return nil, apperrors.Wrap(apperrors.ErrIntegrityMismatch, apperrors.TypeIntegrity,
			fmt.Sprintf("record stream checksum mismatch (expected %s, got %s)", man.Checksum, checksum),
			apperrors.ErrIntegrityMismatch.Hint)
	}
	if stream.Chunks() != man.Chunks || stream.Offset() != man.Size {
		return nil, apperrors.Wrap(apperrors.ErrIntegrityMismatch, apperrors.TypeIntegrity,
			fmt.Sprintf("manifest totals disagree: %d chunks / %d bytes recorded, %d / %d verified", man.Chunks, man.Size, stream.Chunks(), stream.Offset()),
			apperrors.ErrIntegrityMismatch.Hint)
	}

	log.Info("Integrity verification passed", "chunks", stream.Chunks(), "checksum", checksum)
	return &Report{Name: name, Chunks: stream.Chunks(), Size: stream.Offset(), Checksum: checksum}, nil
}

// checkBounds applies the record-stream rules that hold for every record:
// a length is never zero and never exceeds the maximum.
func checkBounds(rec cdc.Record, cfg cdc.Config) error {
	if rec.Length == 0 {
		return errors.New("zero-length record")
	}
	if int64(rec.Length) > int64(cfg.Maximum) {
		return fmt.Errorf("record length %d exceeds maximum %d", rec.Length, cfg.Maximum)
	}
	return nil
}

func mismatch(index int, offset int64, detail string) error {
	return apperrors.Wrap(apperrors.ErrIntegrityMismatch, apperrors.TypeIntegrity,
		fmt.Sprintf("chunk %d at offset %d: %s", index, offset, detail),
		apperrors.ErrIntegrityMismatch.Hint)
}
