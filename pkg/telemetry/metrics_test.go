package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestCountersNoopBeforeInit(t *testing.T) {
	holder := &MetricsHolder{
		netSpreads: make(map[string]float64),
		positions:  make(map[string]float64),
	}

	ctx := context.Background()

	// Instruments do not exist yet; these must be safe no-ops.
	holder.IncOrdersPlaced(ctx, "cex", "limit")
	holder.IncOrdersFilled(ctx, "cex")
	holder.IncCancels(ctx, "dex")
	holder.IncStaleTicks(ctx, "dex")
	holder.IncWsReconnects(ctx, "cex", "depth")
	holder.RecordChaseDepth(ctx, 2)

	holder.SetNetSpread("open", 1.5)
	holder.SetPositionSize("ETH", 0.001)
	holder.SetMachineState(3)

	if holder.netSpreads["open"] != 1.5 {
		t.Errorf("net spread = %v", holder.netSpreads["open"])
	}
	if holder.positions["ETH"] != 0.001 {
		t.Errorf("position = %v", holder.positions["ETH"])
	}
	if holder.machineState != 3 {
		t.Errorf("machine state = %d", holder.machineState)
	}
}

func TestInitMetrics(t *testing.T) {
	if err := InitMetrics(); err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}

	if otel.GetMeterProvider() == nil {
		t.Error("Meter provider not set")
	}

	holder := GetGlobalMetrics()
	if holder.ordersPlaced == nil || holder.chaseDepth == nil {
		t.Error("Instruments not created")
	}

	// Counters must work once instruments exist.
	ctx := context.Background()
	holder.IncOrdersPlaced(ctx, "cex", "market")
	holder.RecordChaseDepth(ctx, 4)

	if GetMeter("test-meter") == nil {
		t.Error("Failed to get meter")
	}
	if GetTracer("test-tracer") == nil {
		t.Error("Failed to get tracer")
	}
}
