package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross_arb/internal/core"
	"cross_arb/pkg/logging"
)

func TestTickLoopSweepsTimeouts(t *testing.T) {
	h := newHarness(t)
	m := h.machine

	m.CheckAndExecuteOpen(always)
	require.Equal(t, core.StateOpenLeg1Waiting, m.State())
	h.advance(6 * time.Second)

	loop := NewTickLoop(m, 5*time.Millisecond, logging.GetGlobalLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return m.State() == core.StateOpenLeg1Canceling
	}, time.Second, 5*time.Millisecond, "sweep should cancel the timed-out maker")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("tick loop did not stop on context cancellation")
	}
}

func TestTickLoopDefaultsInterval(t *testing.T) {
	h := newHarness(t)
	loop := NewTickLoop(h.machine, 0, logging.GetGlobalLogger())
	assert.Equal(t, time.Second, loop.interval)
}
