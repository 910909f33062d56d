package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"vaine/internal/infra/blob/fs"
	memorystore "vaine/internal/infra/blob/memory"
	infraS3 "vaine/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend configuration.
type S3Config = infraS3.Config

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	// FSBaseURL, when set, is the prefix of the download URLs the filesystem
	// backend hands out.
	FSBaseURL string
	S3        S3Config
}

// ConfigFromEnv reads the backend selection from the environment:
//
//	VAINE_BLOB_DRIVER: fs|s3|memory (default fs)
//	VAINE_BLOB_FS_ROOT: directory root when driver=fs (default ./exports)
//	VAINE_BLOB_FS_BASE_URL: download URL prefix when driver=fs
//	VAINE_BLOB_S3_BUCKET, VAINE_BLOB_S3_REGION, VAINE_BLOB_S3_ENDPOINT,
//	VAINE_BLOB_S3_PATH_STYLE: see infra/blob/s3
func ConfigFromEnv() Config {
	return Config{
		Driver:    Driver(os.Getenv("VAINE_BLOB_DRIVER")),
		FSRoot:    os.Getenv("VAINE_BLOB_FS_ROOT"),
		FSBaseURL: os.Getenv("VAINE_BLOB_FS_BASE_URL"),
		S3:        infraS3.ConfigFromEnv(),
	}
}

// Open constructs the configured backend. An empty driver selects fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := Driver(strings.ToLower(string(cfg.Driver)))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot, cfg.FSBaseURL)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewFilesystem constructs a filesystem-backed store rooted at root.
func NewFilesystem(root, baseURL string) (Store, error) {
	var opts []fs.Option
	if baseURL != "" {
		opts = append(opts, fs.WithBaseURL(baseURL))
	}
	return fs.New(root, opts...)
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests returns an S3 store served by an in-process fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
