package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/koustreak/dbbroker/internal/errs"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "broker.db"))
	require.NoError(t, err)
	return db
}

func TestSQLSource_AcquireAndRelease(t *testing.T) {
	src := NewSQLSource(openSQLite(t), SourceConfig{MaxConns: 2, TestOnCheckout: true}, nil)
	t.Cleanup(func() { _ = src.Close() })

	ctx := context.Background()
	c1, err := src.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, c1.Ping(ctx))

	c2, err := src.Acquire(ctx)
	require.NoError(t, err)

	st := src.Stats()
	assert.Equal(t, 2, st.Open)
	assert.Equal(t, 2, st.InUse)

	require.NoError(t, c1.Close())
	require.NoError(t, c2.Close())

	st = src.Stats()
	assert.Equal(t, 0, st.InUse)
	assert.Equal(t, 2, st.Idle)

	_, _, failed := src.LastFailure()
	assert.False(t, failed)
}

func TestSQLSource_CheckoutAfterCloseIsRecorded(t *testing.T) {
	src := NewSQLSource(openSQLite(t), SourceConfig{}, nil)
	require.NoError(t, src.Close())

	_, err := src.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))

	phase, cause, ok := src.LastFailure()
	require.True(t, ok)
	assert.Equal(t, PhaseCheckout, phase)
	assert.Contains(t, cause.Error(), "closed")
}

func TestSQLSource_CheckoutHonoursContext(t *testing.T) {
	src := NewSQLSource(openSQLite(t), SourceConfig{MaxConns: 1}, nil)
	t.Cleanup(func() { _ = src.Close() })

	held, err := src.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = src.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
}

func TestOpenDirect_ClosesPool(t *testing.T) {
	db := openSQLite(t)

	conn, err := OpenDirect(context.Background(), db, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Ping(context.Background()))
	require.NoError(t, conn.Close())

	assert.Error(t, db.Ping())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"canceled", fmt.Errorf("dial: %w", context.Canceled), errs.ErrKindTimeout},
		{"bad conn", driver.ErrBadConn, errs.ErrKindConnectionFailed},
		{"login text", errors.New("Login failed for user 'app'"), errs.ErrKindPermissionDenied},
		{"other", errors.New("connection refused"), errs.ErrKindConnectionFailed},
		{"already classified", errs.New(errs.ErrKindDriverUnavailable, "x"), errs.ErrKindDriverUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapError(tt.err, "checkout failed").Kind)
		})
	}
	assert.Nil(t, MapError(nil, "x"))
}

func TestScrubClassifier(t *testing.T) {
	c := ScrubClassifier(MapError, "s3cret")

	e := c(errors.New("login failed: dsn user:s3cret@db1"), "connect failed")
	assert.Equal(t, errs.ErrKindPermissionDenied, e.Kind)
	assert.NotContains(t, e.Error(), "s3cret")
	assert.Contains(t, e.Error(), "user:***@db1")

	plain := errors.New("connection refused")
	assert.Same(t, plain, errors.Unwrap(c(plain, "x")))
}

func TestCredentials_NeverPrintPassword(t *testing.T) {
	cred := Credentials{Username: "app", Password: "s3cret"}
	for _, s := range []string{fmt.Sprint(cred), fmt.Sprintf("%v", cred), fmt.Sprintf("%#v", cred)} {
		assert.NotContains(t, s, "s3cret")
		assert.Contains(t, s, "app")
	}
}

func TestDiagnostics_Order(t *testing.T) {
	var d Diagnostics
	_, _, ok := d.LastFailure()
	assert.False(t, ok)

	d.Record(PhaseCheckin, errors.New("checkin"))
	d.Record(PhaseTest, errors.New("test"))
	p, err, ok := d.LastFailure()
	require.True(t, ok)
	assert.Equal(t, PhaseTest, p)
	assert.EqualError(t, err, "test")
}

func TestSourceConfig_WithDefaults(t *testing.T) {
	cfg := SourceConfig{MaxConns: 3}.WithDefaults()
	def := DefaultSourceConfig()
	assert.Equal(t, 3, cfg.MaxConns)
	assert.Equal(t, def.MaxConnIdleTime, cfg.MaxConnIdleTime)
	assert.Equal(t, def.ConnectTimeout, cfg.ConnectTimeout)
}
