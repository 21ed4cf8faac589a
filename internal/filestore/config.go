package filestore

import (
	"fmt"

	"github.com/koustreak/dbbroker/internal/errs"
)

// Provider identifies the storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings needed to reach a storage backend.
type Config struct {
	Provider Provider

	// Endpoint is the host:port of the storage server, e.g. "localhost:9000".
	Endpoint string

	AccessKey string
	SecretKey string

	UseSSL bool

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string

	// Bucket, when set, is the bucket Ping checks instead of listing all
	// buckets, for credentials scoped to a single bucket.
	Bucket string
}

// DefaultConfig returns a local-dev MinIO config.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	}
}

func (c *Config) Validate() error {
	if c.Provider != ProviderMinIO {
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported file store provider %q", c.Provider)
	}
	if c.Endpoint == "" {
		return errs.New(errs.ErrKindInvalidInput, "file store endpoint is empty")
	}
	return nil
}

// String omits the secret key.
func (c *Config) String() string {
	return fmt.Sprintf("%s://%s (access key %s, ssl %t)", c.Provider, c.Endpoint, c.AccessKey, c.UseSSL)
}
