package database

import (
	"context"
	"sync"

	"github.com/koustreak/nlsql/internal/errs"
)

// State is the lifecycle position of an adapter.
//
//	Unconnected ──Connect──▶ Connected ──Disconnect──▶ Closed
//	     └───────────────Disconnect───────────────────────┘
//
// Closed is terminal.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle is the connection state machine shared by the adapters. The
// adapter supplies open and close callbacks; Lifecycle guarantees open runs
// at most once and close runs only after a successful open.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Ensure transitions Unconnected → Connected by calling open. It is a no-op
// when already connected and fails with ErrKindClosed after Close.
func (l *Lifecycle) Ensure(ctx context.Context, open func(context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateConnected:
		return nil
	case StateClosed:
		return errs.New(errs.ErrKindClosed, "adapter is closed")
	}

	if err := open(ctx); err != nil {
		return err
	}
	l.state = StateConnected
	return nil
}

// Close moves to Closed, calling release only if a connection was open.
func (l *Lifecycle) Close(ctx context.Context, release func(context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state
	l.state = StateClosed
	if prev != StateConnected {
		return nil
	}
	return release(ctx)
}
