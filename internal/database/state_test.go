package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/nlsql/internal/errs"
)

func TestLifecycle_EnsureOpensOnce(t *testing.T) {
	var l Lifecycle
	opens := 0
	open := func(context.Context) error { opens++; return nil }

	require.NoError(t, l.Ensure(context.Background(), open))
	require.NoError(t, l.Ensure(context.Background(), open))
	assert.Equal(t, 1, opens)
	assert.Equal(t, StateConnected, l.State())
}

func TestLifecycle_OpenFailureStaysUnconnected(t *testing.T) {
	var l Lifecycle
	boom := errors.New("boom")

	err := l.Ensure(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateUnconnected, l.State())
}

func TestLifecycle_CloseIsTerminal(t *testing.T) {
	var l Lifecycle
	releases := 0
	release := func(context.Context) error { releases++; return nil }

	require.NoError(t, l.Ensure(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, l.Close(context.Background(), release))
	require.NoError(t, l.Close(context.Background(), release))
	assert.Equal(t, 1, releases)
	assert.Equal(t, StateClosed, l.State())

	err := l.Ensure(context.Background(), func(context.Context) error { return nil })
	assert.True(t, errs.IsClosed(err))
}

func TestLifecycle_CloseWithoutConnect(t *testing.T) {
	var l Lifecycle
	called := false

	require.NoError(t, l.Close(context.Background(), func(context.Context) error { called = true; return nil }))
	assert.False(t, called)
	assert.Equal(t, StateClosed, l.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unconnected", StateUnconnected.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
}
