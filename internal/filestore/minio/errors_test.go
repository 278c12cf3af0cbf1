package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/filestore"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"wrapped cancel", fmt.Errorf("upload: %w", context.Canceled), errs.ErrKindTimeout},
		{"no bucket", miniogo.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"no key code only", miniogo.ErrorResponse{Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"unauthorized status", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"bad name", miniogo.ErrorResponse{Code: "InvalidBucketName", StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"code beats status", miniogo.ErrorResponse{Code: "InvalidBucketName", StatusCode: http.StatusForbidden}, errs.ErrKindInvalidInput},
		{"unknown code falls back to status", miniogo.ErrorResponse{Code: "XMinioStorageFull", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"unknown code and status", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, errs.ErrKindConnectionFailed},
		{"transport", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.err, got.Cause)
		})
	}

	assert.Nil(t, mapError(nil, "op"))
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), &filestore.Config{})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = New(context.Background(), nil)
	assert.True(t, errs.IsInvalidInput(err))
}

var _ filestore.Store = (*Driver)(nil)
