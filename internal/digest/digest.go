// Package digest selects the 32-byte hash used to identify chunks.
package digest

import (
	"fmt"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"

	apperrors "github.com/lupppig/dchunk/internal/errors"
)

// Size is the length of every chunk digest in bytes.
const Size = 32

// Func computes the digest of one chunk.
type Func func([]byte) [Size]byte

type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b-256"
	BLAKE3  Algorithm = "blake3"
)

// Default is the algorithm record streams are produced with unless configured otherwise.
const Default = SHA256

// Parse accepts the canonical names plus a few common spellings.
func Parse(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256", "sha-256":
		return SHA256, nil
	case "blake2b", "blake2b-256", "blake2b256":
		return BLAKE2b, nil
	case "blake3":
		return BLAKE3, nil
	}
	return "", apperrors.New(apperrors.TypeConfig, fmt.Sprintf("unsupported digest algorithm %q", name), "Use one of: sha256, blake2b-256, blake3.")
}

func (a Algorithm) Func() (Func, error) {
	switch a {
	case SHA256:
		return sha256.Sum256, nil
	case BLAKE2b:
		return blake2b.Sum256, nil
	case BLAKE3:
		return blake3.Sum256, nil
	}
	return nil, apperrors.New(apperrors.TypeConfig, fmt.Sprintf("unsupported digest algorithm %q", string(a)), "Use one of: sha256, blake2b-256, blake3.")
}

// MustFunc is Func for algorithms known at compile time.
func (a Algorithm) MustFunc() Func {
	fn, err := a.Func()
	if err != nil {
		panic(err)
	}
	return fn
}

func (a Algorithm) String() string { return string(a) }

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, BLAKE2b, BLAKE3}
}
