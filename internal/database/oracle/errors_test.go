package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/sijms/go-ora/v2/network"
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
		{"invalid login", &network.OracleError{ErrCode: 1017}, errs.ErrKindPermissionDenied},
		{"account locked", &network.OracleError{ErrCode: 28000}, errs.ErrKindPermissionDenied},
		{"unknown service", &network.OracleError{ErrCode: 12514}, errs.ErrKindConnectionFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"refused", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "connect failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}

	got := mapError(&network.OracleError{ErrCode: 1017}, "connect failed")
	assert.Contains(t, got.Message, "ORA-01017")
}

func TestOpen_RejectsNonOracleURL(t *testing.T) {
	_, err := Open(context.Background(), "tcp(db1:1521)/ORCL", database.Credentials{Username: "scott", Password: "tiger"}, database.SourceConfig{})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
