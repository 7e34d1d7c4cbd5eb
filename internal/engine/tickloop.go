package engine

import (
	"context"
	"time"

	"cross_arb/internal/core"
)

// TickLoop drives the machine's periodic timeout sweep. It exists so the
// machine itself never owns a goroutine; the supervisor runs the loop and
// the machine stays a passive, lockable object.
type TickLoop struct {
	machine  *Machine
	interval time.Duration
	logger   core.ILogger
}

// NewTickLoop creates the sweep loop. interval is normally one second.
func NewTickLoop(machine *Machine, interval time.Duration, logger core.ILogger) *TickLoop {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickLoop{
		machine:  machine,
		interval: interval,
		logger:   logger.WithField("component", "tick_loop"),
	}
}

// Run blocks until ctx is canceled, calling OnTick every interval.
func (t *TickLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("Tick loop started", "interval", t.interval.String())

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Tick loop stopped")
			return ctx.Err()
		case <-ticker.C:
			t.machine.OnTick()
		}
	}
}
