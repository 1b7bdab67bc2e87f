package job

import (
	"context"
	"fmt"
	"io"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/compress"
	"github.com/lupppig/dchunk/internal/crypto"
	apperrors "github.com/lupppig/dchunk/internal/errors"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/storage"
)

// storedRecords reads a stored record stream back through its decryption
// and decompression layers.
type storedRecords struct {
	*cdc.RecordReader
	blob io.ReadCloser
	raw  io.Reader
	dec  io.ReadCloser
}

// openRecords opens man's record stream. Raw stored bytes are copied to
// sum when it is not nil.
func openRecords(ctx context.Context, s storage.Storage, man *manifest.Manifest, keys *crypto.KeyManager, sum io.Writer) (*storedRecords, error) {
	algo, err := compress.Parse(man.Compression)
	if err != nil {
		return nil, err
	}
	if man.Encrypted && keys == nil {
		return nil, apperrors.New(apperrors.TypeConfig, fmt.Sprintf("record stream %s is encrypted", man.Records), "Set DCHUNK_PASSPHRASE or pass --key-file.")
	}

	blob, err := s.Open(ctx, man.Records)
	if err != nil {
		return nil, fmt.Errorf("failed to open record stream: %w", err)
	}
	var raw io.Reader = blob
	if sum != nil {
		raw = io.TeeReader(blob, sum)
	}
	plain := raw
	if man.Encrypted {
		plain = crypto.NewDecryptReader(raw, keys)
	}
	dec, err := compress.NewReader(plain, algo)
	if err != nil {
		blob.Close()
		return nil, fmt.Errorf("failed to create decompression reader for %s: %w", algo, err)
	}
	return &storedRecords{RecordReader: cdc.NewRecordReader(dec), blob: blob, raw: raw, dec: dec}, nil
}

// Drain consumes whatever the decoders left unread, such as container
// trailers, so the checksum covers the whole blob.
func (r *storedRecords) Drain() error {
	_, err := io.Copy(io.Discard, r.raw)
	return err
}

func (r *storedRecords) Close() error {
	r.dec.Close()
	return r.blob.Close()
}

// sealRecords wraps w in the encryption and compression layers of a new
// record stream. Closing the result flushes both layers, innermost first.
func sealRecords(w io.Writer, algo compress.Algorithm, keys *crypto.KeyManager) (io.WriteCloser, error) {
	if keys == nil {
		return compress.NewWriter(w, algo)
	}
	ew, err := crypto.NewEncryptWriter(w, keys)
	if err != nil {
		return nil, err
	}
	cw, err := compress.NewWriter(ew, algo)
	if err != nil {
		return nil, err
	}
	return &layered{WriteCloser: cw, outer: ew}, nil
}

type layered struct {
	io.WriteCloser
	outer io.Closer
}

func (l *layered) Close() error {
	if err := l.WriteCloser.Close(); err != nil {
		return err
	}
	return l.outer.Close()
}
