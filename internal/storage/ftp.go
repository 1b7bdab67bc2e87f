package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	apperrors "github.com/lupppig/dchunk/internal/errors"
)

// FTPStorage is plaintext and only available with AllowInsecure. A single
// control connection is shared, so calls are serialized.
type FTPStorage struct {
	mu         sync.Mutex
	client     *ftp.ServerConn
	remotePath string
	host       string
}

func NewFTPStorage(u *url.URL, opts StorageOptions) (*FTPStorage, error) {
	if !opts.AllowInsecure {
		return nil, apperrors.New(apperrors.TypeConfig, "insecure protocol FTP requires explicit opt-in with --allow-insecure", "Pass --allow-insecure or use sftp:// instead.")
	}
	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Host
	if !strings.Contains(host, ":") {
		host = host + ":21"
	}

	c, err := ftp.Dial(host, ftp.DialWithTimeout(5*time.Second))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConnection, "failed to connect via FTP", "Check host reachability and the FTP port.")
	}

	if err := c.Login(user, pass); err != nil {
		c.Quit()
		return nil, apperrors.Wrap(err, apperrors.TypeAuth, "FTP login failed", "Check the FTP user and password.")
	}

	remotePath := u.Path
	if remotePath == "" {
		remotePath = "/"
	}
	return &FTPStorage{
		client:     c,
		remotePath: remotePath,
		host:       host,
	}, nil
}

func (s *FTPStorage) remote(name string) string {
	return path.Join(s.remotePath, name)
}

func (s *FTPStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	p := s.remote(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDir(path.Dir(p))
	if err := s.client.Stor(p, r); err != nil {
		return "", err
	}
	return "ftp://" + s.host + p, nil
}

// Open buffers the whole object: the control connection cannot serve other
// calls while a transfer is open.
func (s *FTPStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := s.GetMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *FTPStorage) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Delete(s.remote(name))
}

func (s *FTPStorage) Location() string {
	return "ftp://" + s.host + s.remotePath
}

func (s *FTPStorage) PutMetadata(ctx context.Context, name string, data []byte) error {
	_, err := s.Save(ctx, name, bytes.NewReader(data))
	return err
}

func (s *FTPStorage) GetMetadata(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.client.Retr(s.remote(name))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *FTPStorage) ListMetadata(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []string
	walker := s.client.Walk(s.remotePath)
	for walker.Next() {
		if walker.Err() != nil {
			continue
		}
		entry := walker.Stat()
		if entry == nil || entry.Type != ftp.EntryTypeFile {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(walker.Path(), s.remotePath), "/")
		if strings.HasPrefix(rel, prefix) {
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ensureDir creates every missing directory of p; errors for existing
// directories are ignored.
func (s *FTPStorage) ensureDir(p string) {
	if p == "." || p == "/" {
		return
	}
	current := ""
	if strings.HasPrefix(p, "/") {
		current = "/"
	}
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		current = path.Join(current, part)
		_ = s.client.MakeDir(current)
	}
}

func (s *FTPStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Quit()
}
