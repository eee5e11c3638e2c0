package stats

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestReporterCountersCreatedOnDemandAndForgotten(t *testing.T) {
	r := NewReporter(false, zerolog.Nop())

	c1 := r.Counters("stream-a")
	require.NotNil(t, c1)
	c2 := r.Counters("stream-a")
	require.Same(t, c1, c2, "Counters must return the same instance for an existing stream")

	r.Forget("stream-a")
	c3 := r.Counters("stream-a")
	require.NotSame(t, c1, c3, "Forget must drop the prior counters so a new stream gets a fresh set")
}

func TestReporterRunReturnsOnCancelWhenDisabled(t *testing.T) {
	r := NewReporter(false, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after ctx was canceled")
	}
}
