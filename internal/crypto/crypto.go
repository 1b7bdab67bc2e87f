// Package crypto encrypts record streams at rest with AES-256-GCM.
//
// Stream layout: magic "DCHK", version byte, 32-byte salt, then segments of
// [nonce 12][final 1][length 4][ciphertext]. Each segment is sealed with its
// index and final flag as additional data, so dropped, reordered or
// truncated segments fail authentication.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	apperrors "github.com/lupppig/dchunk/internal/errors"
)

const (
	KeySize     = 32 // AES-256
	SaltSize    = 32
	NonceSize   = 12
	TagSize     = 16
	SegmentSize = 64 * 1024
	MagicBytes  = "DCHK"
	Ext         = ".enc" // appended to encrypted record stream names
	Version     = 1

	headerSize        = len(MagicBytes) + 1 + SaltSize
	segmentHeaderSize = NonceSize + 1 + 4
	kdfIterations     = 600_000
)

var ErrDecrypt = apperrors.New(apperrors.TypeIntegrity, "decryption failed: invalid key or tampered data", "Check the passphrase or key file used when the stream was written.")

// KeyManager holds either a raw 32-byte key or a passphrase that is
// stretched with the per-stream salt.
type KeyManager struct {
	key        []byte
	passphrase string
}

func NewKeyManager(passphrase, keyFile string) (*KeyManager, error) {
	if passphrase == "" && keyFile == "" {
		return nil, apperrors.New(apperrors.TypeConfig, "either passphrase or key-file must be provided for encryption", "Set DCHUNK_PASSPHRASE or pass --key-file.")
	}
	if keyFile == "" {
		return &KeyManager{passphrase: passphrase}, nil
	}

	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "failed to read key file", "")
	}
	if len(key) != KeySize {
		h := sha256.Sum256(key)
		key = h[:]
	}
	return &KeyManager{key: key}, nil
}

// DeriveKey stretches a passphrase with salt.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, KeySize, sha256.New)
}

func (km *KeyManager) aead(salt []byte) (cipher.AEAD, error) {
	key := km.key
	if key == nil {
		key = DeriveKey(km.passphrase, salt)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func additionalData(index uint64, final bool) []byte {
	var ad [9]byte
	binary.BigEndian.PutUint64(ad[:8], index)
	if final {
		ad[8] = 1
	}
	return ad[:]
}

// EncryptWriter seals everything written to it. Close writes the final
// segment and never closes the underlying writer.
type EncryptWriter struct {
	w     io.Writer
	gcm   cipher.AEAD
	buf   []byte
	index uint64
	err   error
}

func NewEncryptWriter(w io.Writer, km *KeyManager) (*EncryptWriter, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	gcm, err := km.aead(salt)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, headerSize)
	header = append(header, MagicBytes...)
	header = append(header, Version)
	header = append(header, salt...)
	if _, err := w.Write(header); err != nil {
		return nil, err
	}

	return &EncryptWriter{w: w, gcm: gcm, buf: make([]byte, 0, SegmentSize)}, nil
}

func (ew *EncryptWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n := len(p)
	for len(p) > 0 {
		if len(ew.buf) == SegmentSize {
			if err := ew.seal(false); err != nil {
				ew.err = err
				return 0, err
			}
		}
		m := min(SegmentSize-len(ew.buf), len(p))
		ew.buf = append(ew.buf, p[:m]...)
		p = p[m:]
	}
	return n, nil
}

func (ew *EncryptWriter) seal(final bool) error {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ciphertext := ew.gcm.Seal(nil, nonce, ew.buf, additionalData(ew.index, final))

	head := make([]byte, segmentHeaderSize)
	copy(head, nonce)
	if final {
		head[NonceSize] = 1
	}
	binary.BigEndian.PutUint32(head[NonceSize+1:], uint32(len(ciphertext)))

	if _, err := ew.w.Write(head); err != nil {
		return err
	}
	if _, err := ew.w.Write(ciphertext); err != nil {
		return err
	}
	ew.buf = ew.buf[:0]
	ew.index++
	return nil
}

func (ew *EncryptWriter) Close() error {
	if ew.err != nil {
		return ew.err
	}
	ew.err = ew.seal(true)
	if ew.err != nil {
		return ew.err
	}
	ew.err = errors.New("crypto: write after close")
	return nil
}

// DecryptReader opens a stream written by EncryptWriter. It reports an
// Integrity error if the stream ends before its final segment.
type DecryptReader struct {
	r     io.Reader
	km    *KeyManager
	gcm   cipher.AEAD
	buf   []byte
	pos   int
	index uint64
	done  bool
	err   error
}

func NewDecryptReader(r io.Reader, km *KeyManager) *DecryptReader {
	return &DecryptReader{r: r, km: km}
}

func (dr *DecryptReader) Read(p []byte) (int, error) {
	if dr.err != nil {
		return 0, dr.err
	}
	if dr.gcm == nil {
		if err := dr.readHeader(); err != nil {
			dr.err = err
			return 0, err
		}
	}
	for dr.pos >= len(dr.buf) {
		if dr.done {
			dr.err = io.EOF
			return 0, io.EOF
		}
		if err := dr.nextSegment(); err != nil {
			dr.err = err
			return 0, err
		}
	}
	n := copy(p, dr.buf[dr.pos:])
	dr.pos += n
	return n, nil
}

func (dr *DecryptReader) readHeader() error {
	head := make([]byte, headerSize)
	if _, err := io.ReadFull(dr.r, head); err != nil {
		return apperrors.Wrap(err, apperrors.TypeIntegrity, "failed to read encryption header", "")
	}
	if string(head[:len(MagicBytes)]) != MagicBytes {
		return apperrors.New(apperrors.TypeIntegrity, "not an encrypted record stream: missing magic", "")
	}
	if v := head[len(MagicBytes)]; v != Version {
		return apperrors.New(apperrors.TypeIntegrity, fmt.Sprintf("unsupported encryption version %d", v), "")
	}
	gcm, err := dr.km.aead(head[len(MagicBytes)+1:])
	if err != nil {
		return err
	}
	dr.gcm = gcm
	return nil
}

func (dr *DecryptReader) nextSegment() error {
	head := make([]byte, segmentHeaderSize)
	if _, err := io.ReadFull(dr.r, head); err != nil {
		return apperrors.Wrap(err, apperrors.TypeIntegrity, fmt.Sprintf("encrypted stream truncated at segment %d", dr.index), "")
	}
	final := head[NonceSize] == 1
	length := binary.BigEndian.Uint32(head[NonceSize+1:])
	if length < TagSize || length > SegmentSize+TagSize {
		return apperrors.New(apperrors.TypeIntegrity, fmt.Sprintf("invalid segment length %d", length), "")
	}

	ciphertext := make([]byte, length)
	if _, err := io.ReadFull(dr.r, ciphertext); err != nil {
		return apperrors.Wrap(err, apperrors.TypeIntegrity, fmt.Sprintf("encrypted stream truncated in segment %d", dr.index), "")
	}
	plaintext, err := dr.gcm.Open(nil, head[:NonceSize], ciphertext, additionalData(dr.index, final))
	if err != nil {
		return ErrDecrypt
	}

	if final {
		var one [1]byte
		if n, _ := io.ReadFull(dr.r, one[:]); n != 0 {
			return apperrors.New(apperrors.TypeIntegrity, "trailing data after final segment", "")
		}
		dr.done = true
	}
	dr.buf = plaintext
	dr.pos = 0
	dr.index++
	return nil
}
