package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsHolder owns the engine instruments. Counter methods are safe to
// call before InitInstruments; they become no-ops until the instruments
// exist. Gauge values are kept in maps and exported through callbacks.
type MetricsHolder struct {
	mu sync.RWMutex

	ordersPlaced metric.Int64Counter
	ordersFilled metric.Int64Counter
	cancels      metric.Int64Counter
	staleTicks   metric.Int64Counter
	wsReconnects metric.Int64Counter
	chaseDepth   metric.Int64Histogram

	netSpreads   map[string]float64 // direction -> fee-adjusted spread
	positions    map[string]float64 // symbol -> signed size
	machineState int64
}

var (
	globalMetrics *MetricsHolder
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the process-wide metrics holder.
func GetGlobalMetrics() *MetricsHolder {
	metricsOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			netSpreads: make(map[string]float64),
			positions:  make(map[string]float64),
		}
	})
	return globalMetrics
}

// InitInstruments creates the instruments on the given meter and registers
// the gauge callbacks.
func (m *MetricsHolder) InitInstruments(meter metric.Meter) error {
	var err error

	m.ordersPlaced, err = meter.Int64Counter(
		"cross_arb_orders_placed_total",
		metric.WithDescription("Orders submitted, by venue and order kind"),
	)
	if err != nil {
		return err
	}

	m.ordersFilled, err = meter.Int64Counter(
		"cross_arb_orders_filled_total",
		metric.WithDescription("Orders that reached a filled terminal state"),
	)
	if err != nil {
		return err
	}

	m.cancels, err = meter.Int64Counter(
		"cross_arb_cancels_total",
		metric.WithDescription("Cancel requests issued, by venue"),
	)
	if err != nil {
		return err
	}

	m.staleTicks, err = meter.Int64Counter(
		"cross_arb_stale_ticks_total",
		metric.WithDescription("Ticks dropped by the freshness guard"),
	)
	if err != nil {
		return err
	}

	m.wsReconnects, err = meter.Int64Counter(
		"cross_arb_ws_reconnects_total",
		metric.WithDescription("Websocket reconnect attempts, by venue and stream"),
	)
	if err != nil {
		return err
	}

	m.chaseDepth, err = meter.Int64Histogram(
		"cross_arb_chase_depth",
		metric.WithDescription("Limit attempts consumed before a taker leg completed"),
	)
	if err != nil {
		return err
	}

	netSpread, err := meter.Float64ObservableGauge(
		"cross_arb_net_spread",
		metric.WithDescription("Fee-adjusted spread per direction"),
	)
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for direction, v := range m.netSpreads {
				o.ObserveFloat64(netSpread, v,
					metric.WithAttributes(attribute.String("direction", direction)))
			}
			return nil
		},
		netSpread,
	)
	if err != nil {
		return err
	}

	positionSize, err := meter.Float64ObservableGauge(
		"cross_arb_position_size",
		metric.WithDescription("Signed base position per symbol"),
	)
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for symbol, v := range m.positions {
				o.ObserveFloat64(positionSize, v,
					metric.WithAttributes(attribute.String("symbol", symbol)))
			}
			return nil
		},
		positionSize,
	)
	if err != nil {
		return err
	}

	machineState, err := meter.Int64ObservableGauge(
		"cross_arb_machine_state",
		metric.WithDescription("Current strategy state as an ordinal"),
	)
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			o.ObserveInt64(machineState, m.machineState)
			return nil
		},
		machineState,
	)
	return err
}

// IncOrdersPlaced records an order submission.
func (m *MetricsHolder) IncOrdersPlaced(ctx context.Context, venue, kind string) {
	if m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("kind", kind),
	))
}

// IncOrdersFilled records a fully filled order.
func (m *MetricsHolder) IncOrdersFilled(ctx context.Context, venue string) {
	if m.ordersFilled == nil {
		return
	}
	m.ordersFilled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
	))
}

// IncCancels records a cancel request.
func (m *MetricsHolder) IncCancels(ctx context.Context, venue string) {
	if m.cancels == nil {
		return
	}
	m.cancels.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
	))
}

// IncStaleTicks records a tick rejected by the freshness guard.
func (m *MetricsHolder) IncStaleTicks(ctx context.Context, venue string) {
	if m.staleTicks == nil {
		return
	}
	m.staleTicks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
	))
}

// IncWsReconnects records a websocket reconnect attempt.
func (m *MetricsHolder) IncWsReconnects(ctx context.Context, venue, stream string) {
	if m.wsReconnects == nil {
		return
	}
	m.wsReconnects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("stream", stream),
	))
}

// RecordChaseDepth records how many limit attempts a taker leg consumed.
func (m *MetricsHolder) RecordChaseDepth(ctx context.Context, attempts int) {
	if m.chaseDepth == nil {
		return
	}
	m.chaseDepth.Record(ctx, int64(attempts))
}

// SetNetSpread updates the exported spread for a direction.
func (m *MetricsHolder) SetNetSpread(direction string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netSpreads[direction] = v
}

// SetPositionSize updates the exported position for a symbol.
func (m *MetricsHolder) SetPositionSize(symbol string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[symbol] = v
}

// SetMachineState updates the exported state ordinal.
func (m *MetricsHolder) SetMachineState(state int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.machineState = state
}
