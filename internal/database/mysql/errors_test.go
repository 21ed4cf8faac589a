package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"access denied", &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'app'"}, errs.ErrKindPermissionDenied},
		{"db access denied", fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: 1044}), errs.ErrKindPermissionDenied},
		{"too many connections", &mysql.MySQLError{Number: 1040}, errs.ErrKindConnectionFailed},
		{"unknown database", &mysql.MySQLError{Number: 1049}, errs.ErrKindConnectionFailed},
		{"invalid conn", mysql.ErrInvalidConn, errs.ErrKindConnectionFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"refused", errors.New("dial tcp 10.0.0.1:3306: connect: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "checkout failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Nil(t, mapError(nil, "x"))
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "tcp(db1:3306", database.Credentials{Username: "u", Password: "p"}, database.SourceConfig{})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestOpen_DoesNotDial(t *testing.T) {
	src, err := Open(context.Background(), "tcp(127.0.0.1:1)/app?parseTime=true", database.Credentials{Username: "u", Password: "p"}, database.SourceConfig{MaxConns: 2})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 0, src.Stats().Open)
}
