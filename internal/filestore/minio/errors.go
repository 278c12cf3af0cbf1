package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/koustreak/nlsql/internal/errs"
)

// mapError turns a minio-go failure into an export-side *errs.Error. The S3
// error code decides the kind; the HTTP status is the fallback when the code
// is one we do not list. Anything that never reached the server is a
// connection failure.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	return errs.Wrap(kindOf(err), msg, err)
}

var codeKinds = map[string]errs.ErrKind{
	"NoSuchBucket":          errs.ErrKindNotFound,
	"NoSuchKey":             errs.ErrKindNotFound,
	"AccessDenied":          errs.ErrKindPermissionDenied,
	"InvalidAccessKeyId":    errs.ErrKindPermissionDenied,
	"SignatureDoesNotMatch": errs.ErrKindPermissionDenied,
	"InvalidBucketName":     errs.ErrKindInvalidInput,
	"InvalidObjectName":     errs.ErrKindInvalidInput,
	"KeyTooLongError":       errs.ErrKindInvalidInput,
	"RequestTimeout":        errs.ErrKindTimeout,
	"SlowDown":              errs.ErrKindTimeout,
}

func kindOf(err error) errs.ErrKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.ErrKindTimeout
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return errs.ErrKindConnectionFailed
	}

	switch kind, known := codeKinds[resp.Code]; {
	case known:
		return kind
	case resp.StatusCode == http.StatusNotFound:
		return errs.ErrKindNotFound
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return errs.ErrKindPermissionDenied
	case resp.StatusCode == http.StatusBadRequest:
		return errs.ErrKindInvalidInput
	}
	return errs.ErrKindConnectionFailed
}
