package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

type refusedErr struct{}

func (refusedErr) Error() string { return "connection refused" }
func (refusedErr) Timeout() bool { return false }
func (refusedErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := Default()
	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(errors.New("boom"), 1))
	require.False(t, p.ShouldRetry(errors.New("boom"), 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(Permanent(errors.New("404")), 1))
	require.True(t, p.ShouldRetry(timeoutErr{}, 1))
	require.False(t, p.ShouldRetry(refusedErr{}, 1))
}

func TestShouldRetryDialErrors(t *testing.T) {
	t.Parallel()

	p := Default()
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	require.True(t, p.ShouldRetry(refused, 1))
	require.True(t, p.ShouldRetry(fmt.Errorf("get archive: %w", refused), 2))
	require.False(t, p.ShouldRetry(refused, 3))
	require.False(t, p.ShouldRetry(&net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, 1))
}

func TestDoRetriesRefusedDial(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	var dialer net.Dialer
	attempts := 0
	err = p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts = attempt
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
		}
		return err
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestBackoffBounded(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(errors.New("not found"))
	})
	require.ErrorIs(t, err, ErrPermanent)
	require.Equal(t, 1, calls)
}

func TestDoHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second}
	err := p.Do(ctx, func(context.Context, int) error {
		return errors.New("flaky")
	})
	require.ErrorIs(t, err, context.Canceled)
}
