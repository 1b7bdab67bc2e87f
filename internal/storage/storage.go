package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	apperrors "github.com/lupppig/dchunk/internal/errors"
)

// Storage is a sink for record streams and their manifests. Chunk payloads
// are never stored.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	PutMetadata(ctx context.Context, name string, data []byte) error
	GetMetadata(ctx context.Context, name string) ([]byte, error)
	ListMetadata(ctx context.Context, prefix string) ([]string, error)
	Location() string
	Close() error
}

type StorageOptions struct {
	AllowInsecure bool
}

// scp-style target: user@host:path
var scpLike = regexp.MustCompile(`^([^@/:]+)@([^:/]+):(.*)$`)

// FromURI resolves a target string to a Storage. Plain paths and local://
// URIs are local directories; s3://, sftp:// (or user@host:path) and ftp://
// select the remote backends.
func FromURI(uri string, opts StorageOptions) (Storage, error) {
	if uri == "" {
		return NewLocalStorage(""), nil
	}

	if !strings.Contains(uri, "://") {
		if m := scpLike.FindStringSubmatch(uri); m != nil {
			return NewSSHStorage(&url.URL{Scheme: "sftp", User: url.User(m[1]), Host: m[2], Path: "/" + strings.TrimPrefix(m[3], "/")})
		}
		if bucket, ok := strings.CutPrefix(uri, "s3:"); ok {
			return NewS3Storage(&url.URL{Scheme: "s3", Host: defaultS3Endpoint, Path: "/" + bucket})
		}
		return NewLocalStorage(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "invalid target URI", "Use a path, local://, s3://, sftp:// or ftp:// URI.")
	}

	switch u.Scheme {
	case "local", "file":
		return NewLocalStorage(u.Host + u.Path), nil
	case "s3":
		return NewS3Storage(u)
	case "sftp", "ssh":
		return NewSSHStorage(u)
	case "ftp":
		return NewFTPStorage(u, opts)
	default:
		return nil, apperrors.New(apperrors.TypeConfig, fmt.Sprintf("unsupported storage scheme %q", u.Scheme), "Use a path, local://, s3://, sftp:// or ftp:// URI.")
	}
}

// Scrub hides the password of a target URI for logs and errors.
func Scrub(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	if _, ok := u.User.Password(); !ok {
		return uri
	}
	return u.Redacted()
}

// Copy streams one object from src to dst under the same name.
func Copy(ctx context.Context, src, dst Storage, name string) (string, error) {
	r, err := src.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("open %s on %s: %w", name, src.Location(), err)
	}
	defer r.Close()
	return dst.Save(ctx, name, r)
}
