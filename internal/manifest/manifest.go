package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/sha256-simd"

	"github.com/lupppig/dchunk/internal/cdc"
)

const (
	FormatVersion = "1"
	Ext           = ".manifest"
	RecordsExt    = ".records"
)

// Manifest describes one stored record stream.
type Manifest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Source      string     `json:"source,omitempty"`
	Records     string     `json:"records"` // object name of the record stream
	Version     string     `json:"version"`
	Digest      string     `json:"digest"`
	Chunking    cdc.Config `json:"chunking"`
	Compression string     `json:"compression,omitempty"`
	Encrypted   bool       `json:"encrypted,omitempty"`
	Checksum    string     `json:"checksum,omitempty"` // SHA-256 of the stored blob
	Chunks      int        `json:"chunks"`
	Unique      int        `json:"unique"`
	Size        int64      `json:"size"` // logical bytes covered by the records
	CreatedAt   time.Time  `json:"created_at"`
}

func New(name, digest string, cfg cdc.Config, compression string) *Manifest {
	return &Manifest{
		ID:          uuid.NewString(),
		Name:        name,
		Version:     FormatVersion,
		Digest:      digest,
		Chunking:    cfg,
		Compression: compression,
		CreatedAt:   time.Now().UTC(),
	}
}

// FileName is the object name the manifest is stored under.
func FileName(name string) string {
	return name + Ext
}

// NameOf strips the manifest extension; ok is false for other objects.
func NameOf(object string) (string, bool) {
	return strings.CutSuffix(object, Ext)
}

func (m *Manifest) Serialize() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func Deserialize(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != "" && m.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", m.Version)
	}
	return &m, nil
}

func CalculateChecksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
