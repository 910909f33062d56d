package blob

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	fs, err := Open(ctx, Config{FSRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, fs.Driver())

	mem, err := Open(ctx, Config{Driver: "MEMORY"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, mem.Driver())

	_, err = Open(ctx, Config{Driver: DriverS3})
	assert.Error(t, err, "bucket is required")

	s3, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}})
	require.NoError(t, err)
	assert.Equal(t, DriverS3, s3.Driver())

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown blob driver")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("VAINE_BLOB_DRIVER", "fs")
	t.Setenv("VAINE_BLOB_FS_ROOT", "/tmp/vaine")
	t.Setenv("VAINE_BLOB_FS_BASE_URL", "http://localhost:8080/artifacts")
	t.Setenv("VAINE_BLOB_S3_BUCKET", "bkt")

	cfg := ConfigFromEnv()
	assert.Equal(t, DriverFilesystem, cfg.Driver)
	assert.Equal(t, "/tmp/vaine", cfg.FSRoot)
	assert.Equal(t, "http://localhost:8080/artifacts", cfg.FSBaseURL)
	assert.Equal(t, "bkt", cfg.S3.Bucket)
}

func TestBackendsShareContract(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir(), "http://h/a")
	require.NoError(t, err)
	stores := map[string]Store{"fs": fs, "memory": NewMemory(), "s3": NewMockS3ForTests()}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			key := ArtifactKey("x1", "ty.csv")
			assert.Equal(t, "exports/x1/ty.csv", key)
			_, err := store.Put(ctx, key, strings.NewReader("a,b\n"), PutOptions{ContentType: "text/csv"})
			require.NoError(t, err)
			_, err = store.Put(ctx, key, strings.NewReader("a,b\n"), PutOptions{})
			assert.True(t, errors.Is(err, ErrExists))
			info, err := store.Head(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, int64(4), info.Size)
			_, err = store.Head(ctx, ArtifactKey("x1", "missing"))
			assert.True(t, errors.Is(err, ErrNotFound))
			list, err := store.List(ctx, "exports/x1/")
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}
