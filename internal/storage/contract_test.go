package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// testSinkContract runs the operations the job layer relies on against s:
// record streams of unknown length, overwrites, manifests listed by
// prefix, cross-sink copies and deletes.
func testSinkContract(t *testing.T, s Storage) {
	ctx := context.Background()
	records := bytes.Repeat([]byte{0xab, 0x00, 0x00, 0x01, 0x00}, 36)

	read := func(t *testing.T, name string) []byte {
		t.Helper()
		r, err := s.Open(ctx, name)
		require.NoError(t, err)
		defer r.Close()
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		return got
	}

	t.Run("SaveUnknownLength", func(t *testing.T) {
		loc, err := s.Save(ctx, "img/base.records", struct{ io.Reader }{bytes.NewReader(records)})
		require.NoError(t, err)
		assert.Contains(t, loc, "base.records")
		assert.Equal(t, records, read(t, "img/base.records"))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := s.Save(ctx, "img/base.records", bytes.NewReader(records[:72]))
		require.NoError(t, err)
		assert.Equal(t, records[:72], read(t, "img/base.records"))
	})

	t.Run("Manifests", func(t *testing.T) {
		require.NoError(t, s.PutMetadata(ctx, "img/base.manifest", []byte(`{"name":"img/base"}`)))
		require.NoError(t, s.PutMetadata(ctx, "top.manifest", []byte(`{"name":"top"}`)))

		got, err := s.GetMetadata(ctx, "img/base.manifest")
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"img/base"}`, string(got))

		names, err := s.ListMetadata(ctx, "img/")
		require.NoError(t, err)
		assert.Contains(t, names, "img/base.manifest")
		assert.Contains(t, names, "img/base.records")
		assert.NotContains(t, names, "top.manifest")

		_, err = s.GetMetadata(ctx, "img/missing.manifest")
		assert.Error(t, err)
	})

	t.Run("CopyToLocal", func(t *testing.T) {
		dst := NewLocalStorage(t.TempDir())
		_, err := Copy(ctx, s, dst, "img/base.records")
		require.NoError(t, err)
		r, err := dst.Open(ctx, "img/base.records")
		require.NoError(t, err)
		defer r.Close()
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, records[:72], got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "img/base.records"))
		_, err := s.Open(ctx, "img/base.records")
		assert.Error(t, err)
	})
}

func TestLocalStorage_Contract(t *testing.T) {
	testSinkContract(t, NewLocalStorage(t.TempDir()))
}

// startContainer runs req and returns the host and mapped port of the
// given container port. Skipped in -short mode.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) (string, int) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	if host == "localhost" || host == "::1" {
		host = "127.0.0.1"
	}
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Int()
}
