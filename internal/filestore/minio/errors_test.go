package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/filestore"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"wrapped cancel", fmt.Errorf("get: %w", context.Canceled), errs.ErrKindTimeout},
		{"missing key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"missing bucket", miniogo.ErrorResponse{Code: "NoSuchBucket"}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bad signature", miniogo.ErrorResponse{Code: "SignatureDoesNotMatch"}, errs.ErrKindPermissionDenied},
		{"bad bucket name", miniogo.ErrorResponse{Code: "InvalidBucketName"}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"status only 404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"status only 401", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"status only 400", miniogo.ErrorResponse{StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"server error", miniogo.ErrorResponse{StatusCode: http.StatusInternalServerError}, errs.ErrKindConnectionFailed},
		{"plain", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "op failed", got.Message)
		})
	}

	assert.Nil(t, mapError(nil, "noop"))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &filestore.Config{Provider: "s3", Endpoint: "localhost:9000"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = New(context.Background(), filestore.DefaultConfig("", "ak", "sk"))
	assert.True(t, errs.IsInvalidInput(err))
}
