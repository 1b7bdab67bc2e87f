package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/lupppig/dchunk/internal/errors"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// S3Storage stores objects under an optional prefix of one bucket.
// URI form: s3://[access:secret@]endpoint/bucket[/prefix][?ssl=false&region=r]
type S3Storage struct {
	client     *minio.Client
	endpoint   string
	bucketName string
	prefix     string
}

func NewS3Storage(u *url.URL) (*S3Storage, error) {
	endpoint := u.Host
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return nil, apperrors.New(apperrors.TypeConfig, "S3 target is missing a bucket", "Use s3://endpoint/bucket[/prefix].")
	}
	bucket := parts[0]
	prefix := ""
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}

	creds := credentials.NewEnvAWS()
	if u.User != nil {
		secret, _ := u.User.Password()
		creds = credentials.NewStaticV4(u.User.Username(), secret, "")
	}

	q := u.Query()
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: q.Get("ssl") != "false",
		Region: q.Get("region"),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "failed to create S3 client", "Check the S3 endpoint and credentials.")
	}

	return &S3Storage{
		client:     client,
		endpoint:   endpoint,
		bucketName: bucket,
		prefix:     prefix,
	}, nil
}

func (s *S3Storage) getObjectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + strings.TrimPrefix(name, "/")
}

func (s *S3Storage) relative(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *S3Storage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	size := int64(-1)
	if l, ok := r.(interface{ Len() int }); ok {
		size = int64(l.Len())
	}
	object := s.getObjectName(name)
	_, err := s.client.PutObject(ctx, s.bucketName, object, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeConnection, fmt.Sprintf("failed to upload %s", object), "Check bucket permissions and network connectivity.")
	}
	return fmt.Sprintf("s3://%s/%s/%s", s.endpoint, s.bucketName, object), nil
}

func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, s.getObjectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; surface a missing object here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	return s.client.RemoveObject(ctx, s.bucketName, s.getObjectName(name), minio.RemoveObjectOptions{})
}

func (s *S3Storage) Location() string {
	loc := fmt.Sprintf("s3://%s/%s", s.endpoint, s.bucketName)
	if s.prefix != "" {
		loc += "/" + s.prefix
	}
	return loc
}

func (s *S3Storage) PutMetadata(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucketName, s.getObjectName(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *S3Storage) GetMetadata(ctx context.Context, name string) ([]byte, error) {
	r, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *S3Storage) ListMetadata(ctx context.Context, prefix string) ([]string, error) {
	var files []string
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s.getObjectName(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		files = append(files, s.relative(obj.Key))
	}
	return files, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to check S3 bucket", "Check the S3 endpoint and credentials.")
	}
	if ok {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
}

func (s *S3Storage) Close() error { return nil }
