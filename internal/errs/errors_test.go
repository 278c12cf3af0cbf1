package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrKindInvalidQuery, "only SELECT queries are allowed"),
			want: "[invalid_query] only SELECT queries are allowed",
		},
		{
			name: "with cause",
			err:  Wrap(ErrKindQueryFailed, "query failed", errors.New("no such table: x")),
			want: "[query_failed] query failed: no such table: x",
		},
		{
			name: "formatted",
			err:  Newf(ErrKindUnsupportedDialect, "unsupported database type: %s", "redis"),
			want: "[unsupported_dialect] unsupported database type: redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := Wrap(ErrKindTimeout, "query timed out", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsTimeout(err))
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	base := New(ErrKindConnectionFailed, "dial tcp: connection refused")
	wrapped := fmt.Errorf("get schema: %w", base)

	assert.True(t, IsConnectionFailed(wrapped))
	assert.False(t, IsQueryFailed(wrapped))
	assert.Equal(t, ErrKindConnectionFailed, KindOf(wrapped))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
}

func TestErrKind_String(t *testing.T) {
	kinds := map[ErrKind]string{
		ErrKindUnknown:            "unknown",
		ErrKindNotFound:           "not_found",
		ErrKindConnectionFailed:   "connection_failed",
		ErrKindTimeout:            "timeout",
		ErrKindQueryFailed:        "query_failed",
		ErrKindInvalidInput:       "invalid_input",
		ErrKindPermissionDenied:   "permission_denied",
		ErrKindUnsupportedDialect: "unsupported_dialect",
		ErrKindInvalidQuery:       "invalid_query",
		ErrKindGenerationFailed:   "generation_failed",
		ErrKindClosed:             "closed",
	}
	for kind, want := range kinds {
		assert.Equal(t, want, kind.String())
	}
}
