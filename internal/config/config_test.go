package config

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/filestore"
)

const sampleYAML = `
log:
  level: debug
  format: console
pooling:
  enabled: true
  max_total_pool_size:
    default: 80
    oracle: 60
    sqlserver: 40
  per_user_max_pool_size: 10
  cleanup_interval_seconds: 300
  test_on_checkout: true
server:
  address: 127.0.0.1:9090
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.False(t, pc.Enabled)
	assert.Equal(t, 100, pc.MaxTotalFor(dialect.Oracle))
	assert.Equal(t, 20, pc.PerUserMax)
	assert.Equal(t, 2*time.Hour, pc.CleanupInterval)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "rfc3339", cfg.Log.TimeFormat)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout())

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.True(t, pc.Enabled)
	assert.True(t, pc.TestOnCheckout)
	assert.Equal(t, 60, pc.MaxTotalFor(dialect.Oracle))
	assert.Equal(t, 40, pc.MaxTotalFor(dialect.MSSQL))
	assert.Equal(t, 80, pc.MaxTotalFor(dialect.MySQL))
	assert.Equal(t, 10, pc.PerUserMax)
	assert.Equal(t, 5*time.Minute, pc.CleanupInterval)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		kind errs.ErrKind
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			kind: errs.ErrKindNotFound,
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string { return writeFile(t, "pooling: [unclosed") },
			kind: errs.ErrKindInvalidInput,
		},
		{
			name: "unknown type",
			path: func(t *testing.T) string { return writeFile(t, "pooling:\n  max_total_pool_size:\n    informix: 5\n") },
			kind: errs.ErrKindInvalidInput,
		},
		{
			name: "zero per user",
			path: func(t *testing.T) string { return writeFile(t, "pooling:\n  per_user_max_pool_size: 0\n") },
			kind: errs.ErrKindInvalidInput,
		},
		{
			name: "bad log level",
			path: func(t *testing.T) string { return writeFile(t, "log:\n  level: loud\n") },
			kind: errs.ErrKindInvalidInput,
		},
		{
			name: "incomplete remote",
			path: func(t *testing.T) string { return writeFile(t, "remote:\n  enabled: true\n  endpoint: minio:9000\n") },
			kind: errs.ErrKindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}
}

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"DBBROKER_LOG_LEVEL":                "warn",
		"DBBROKER_SERVER_ADDR":              ":9999",
		"DBBROKER_POOLING_ENABLED":          "true",
		"DBBROKER_PER_USER_MAX_POOL_SIZE":   " 5 ",
		"DBBROKER_CLEANUP_INTERVAL_SECONDS": "60",
		"DBBROKER_REMOTE_SECRET_KEY":        "minio-secret",
		"DBBROKER_LOG_FORMAT":               "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.True(t, cfg.Pooling.Enabled)
	assert.Equal(t, 5, cfg.Pooling.PerUserMaxPoolSize)
	assert.Equal(t, 60, cfg.Pooling.CleanupIntervalSeconds)
	assert.Equal(t, "minio-secret", cfg.StoreConfig().SecretKey)
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, env := range []map[string]string{
		{"DBBROKER_POOLING_ENABLED": "maybe"},
		{"DBBROKER_PER_USER_MAX_POOL_SIZE": "lots"},
	} {
		err := DefaultConfig().ApplyEnv(envMap(env))
		assert.True(t, errs.IsInvalidInput(err), "%v", env)
	}
}

type docStore struct {
	bucket, key, body string
}

type docObject struct {
	io.Reader
	info *filestore.ObjectInfo
}

func (docObject) Close() error                  { return nil }
func (o docObject) Info() *filestore.ObjectInfo { return o.info }

func (s *docStore) Ping(context.Context) error { return nil }
func (s *docStore) Close() error               { return nil }

func (s *docStore) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	if bucket != s.bucket || key != s.key {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	return &filestore.ObjectInfo{Key: key, Size: int64(len(s.body)), ETag: "v1"}, nil
}

func (s *docStore) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	info, err := s.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return docObject{Reader: bytes.NewBufferString(s.body), info: info}, nil
}

func TestLoadRemote(t *testing.T) {
	local, err := Load(writeFile(t, sampleYAML))
	require.NoError(t, err)

	store := &docStore{
		bucket: "dbbroker",
		key:    "pooling.yaml",
		body:   "pooling:\n  max_total_pool_size:\n    oracle: 30\n  per_user_max_pool_size: 15\n",
	}

	merged, info, err := local.LoadRemote(context.Background(), store, "dbbroker", "pooling.yaml")
	require.NoError(t, err)
	assert.Equal(t, "v1", info.ETag)

	pc, err := merged.PoolConfig()
	require.NoError(t, err)
	assert.True(t, pc.Enabled)
	assert.Equal(t, 30, pc.MaxTotalFor(dialect.Oracle))
	assert.Equal(t, 40, pc.MaxTotalFor(dialect.MSSQL))
	assert.Equal(t, 15, pc.PerUserMax)
	assert.Equal(t, "debug", merged.Log.Level)

	// The local config is untouched.
	assert.Equal(t, 60, local.Pooling.MaxTotalPoolSize["oracle"])
	assert.Equal(t, 10, local.Pooling.PerUserMaxPoolSize)

	_, _, err = local.LoadRemote(context.Background(), store, "dbbroker", "missing.yaml")
	assert.True(t, errs.IsNotFound(err))

	store.body = "pooling:\n  per_user_max_pool_size: -1\n"
	_, _, err = local.LoadRemote(context.Background(), store, "dbbroker", "pooling.yaml")
	assert.True(t, errs.IsInvalidInput(err))
}
