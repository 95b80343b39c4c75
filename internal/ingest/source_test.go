package ingest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	bucket, key string
	body        string
	err         error
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.bucket, f.key = bucket, key
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestSourceOpener_BaseDirConfinement(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "in.csv", header)
	o := NewSourceOpener(dir, nil)

	for _, path := range []string{"", "../in.csv", "/etc/passwd", filepath.Join(dir, "..", "x.csv")} {
		assert.ErrorIs(t, o.Validate(path), ErrInvalidPath, path)
	}
	for _, path := range []string{"in.csv", "sub/../in.csv", filepath.Join(dir, "in.csv")} {
		assert.NoError(t, o.Validate(path), path)
	}

	rc, err := o.Open(context.Background(), "in.csv")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, header, string(b))
}

func TestSourceOpener_ObjectPaths(t *testing.T) {
	objects := &fakeObjects{body: header}
	o := NewSourceOpener("/data", objects)

	rc, err := o.Open(context.Background(), "s3://telemetry/2024/03/events.csv")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "telemetry", objects.bucket)
	assert.Equal(t, "2024/03/events.csv", objects.key)

	_, err = o.Open(context.Background(), "minio://telemetry/events.csv")
	require.NoError(t, err)

	assert.ErrorIs(t, o.Validate("s3://telemetry"), ErrInvalidPath)

	objects.err = errors.New("NoSuchKey")
	_, err = o.Open(context.Background(), "s3://telemetry/missing.csv")
	assert.ErrorIs(t, err, ErrSourceRead)
}

func TestSourceOpener_ObjectStorageNotConfigured(t *testing.T) {
	o := NewSourceOpener("", nil)
	assert.ErrorIs(t, o.Validate("s3://bucket/key.csv"), ErrInvalidPath)
}
