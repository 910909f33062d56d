// Package config loads the YAML settings for the CLI and HTTP server and
// applies VAINE_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"vaine/internal/blob"
	"vaine/internal/ledger"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full application configuration.
type Config struct {
	Clusters int          `yaml:"clusters"`
	Alpha    float64      `yaml:"alpha"`
	Blob     BlobConfig   `yaml:"blob"`
	Ledger   LedgerConfig `yaml:"ledger"`
	HTTP     HTTPConfig   `yaml:"http"`
}

// BlobConfig selects the artifact store.
type BlobConfig struct {
	Driver    string        `yaml:"driver"`
	FSRoot    string        `yaml:"fs_root"`
	FSBaseURL string        `yaml:"fs_base_url"`
	S3        blob.S3Config `yaml:"s3"`
}

// LedgerConfig selects the export ledger.
type LedgerConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Clusters: 10,
		Alpha:    0.05,
		Blob:     BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "./exports"},
		Ledger:   LedgerConfig{Driver: string(ledger.DriverSQLite), SQLitePath: "./vaine.db"},
		HTTP:     HTTPConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults (a missing path is not an error when
// empty), then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("VAINE_CLUSTERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: VAINE_CLUSTERS=%q", ErrInvalid, v)
		}
		c.Clusters = n
	}
	if v, ok := lookup("VAINE_ALPHA"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: VAINE_ALPHA=%q", ErrInvalid, v)
		}
		c.Alpha = f
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("VAINE_BLOB_DRIVER", &c.Blob.Driver)
	str("VAINE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("VAINE_BLOB_FS_BASE_URL", &c.Blob.FSBaseURL)
	str("VAINE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("VAINE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("VAINE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	if v, ok := lookup("VAINE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: VAINE_BLOB_S3_PATH_STYLE=%q", ErrInvalid, v)
		}
		c.Blob.S3.PathStyle = b
	}
	str("VAINE_LEDGER_DRIVER", &c.Ledger.Driver)
	str("VAINE_SQLITE_PATH", &c.Ledger.SQLitePath)
	str("VAINE_POSTGRES_DSN", &c.Ledger.PostgresDSN)
	str("VAINE_HTTP_ADDR", &c.HTTP.Addr)
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Clusters < 1 {
		return fmt.Errorf("%w: clusters must be >= 1, got %d", ErrInvalid, c.Clusters)
	}
	if !(c.Alpha > 0 && c.Alpha <= 1) {
		return fmt.Errorf("%w: alpha must be in (0, 1], got %v", ErrInvalid, c.Alpha)
	}
	switch blob.Driver(strings.ToLower(c.Blob.Driver)) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("%w: blob.s3.bucket is required for the s3 driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown blob driver %q", ErrInvalid, c.Blob.Driver)
	}
	switch ledger.Driver(strings.ToLower(c.Ledger.Driver)) {
	case "", ledger.DriverSQLite, ledger.DriverPostgres, ledger.DriverMemory:
	default:
		return fmt.Errorf("%w: unknown ledger driver %q", ErrInvalid, c.Ledger.Driver)
	}
	return nil
}

// BlobStore converts the blob section for blob.Open.
func (c Config) BlobStore() blob.Config {
	return blob.Config{
		Driver:    blob.Driver(c.Blob.Driver),
		FSRoot:    c.Blob.FSRoot,
		FSBaseURL: c.Blob.FSBaseURL,
		S3:        c.Blob.S3,
	}
}

// LedgerStore converts the ledger section for ledger.Open.
func (c Config) LedgerStore() ledger.Config {
	return ledger.Config{
		Driver:      ledger.Driver(c.Ledger.Driver),
		SQLitePath:  c.Ledger.SQLitePath,
		PostgresDSN: c.Ledger.PostgresDSN,
	}
}
