package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitPacesAfterFirstToken(t *testing.T) {
	t.Parallel()

	l := New(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.Less(t, time.Since(start), 20*time.Millisecond, "first wait draws the initial token")

	require.NoError(t, l.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond, "second wait is paced")
}

func TestWaitDisabled(t *testing.T) {
	t.Parallel()

	start := time.Now()
	l := New(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitNilLimiter(t *testing.T) {
	t.Parallel()

	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
}

func TestWaitCanceledContext(t *testing.T) {
	t.Parallel()

	l := New(time.Minute)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
}
