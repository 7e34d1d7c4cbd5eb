package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross_arb/internal/core"
)

func TestNormalizeUpdate(t *testing.T) {
	tests := []struct {
		name     string
		status   core.OrderStatus
		cum      float64
		wantType core.OrderEventType
		wantOK   bool
	}{
		{"filled", core.OrderStatusFilled, 1.5, core.EventAllFilled, true},
		{"canceled clean", core.OrderStatusCanceled, 0, core.EventAllCanceled, true},
		{"canceled with fills", core.OrderStatusCanceled, 0.4, core.EventPartialFilledCanceled, true},
		{"expired clean", core.OrderStatusExpired, 0, core.EventAllCanceled, true},
		{"expired with fills", core.OrderStatusExpired, 0.2, core.EventPartialFilledCanceled, true},
		{"rejected", core.OrderStatusRejected, 0, core.EventAllCanceled, true},
		{"new", core.OrderStatusNew, 0, "", false},
		{"partial progress", core.OrderStatusPartiallyFilled, 0.3, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := NormalizeUpdate(core.OrderUpdate{
				Venue:        core.VenueCEX,
				OrderID:      "42",
				Status:       tt.status,
				CumFilledQty: decimal.NewFromFloat(tt.cum),
			})

			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, "42", ev.OrderID)
			assert.Equal(t, core.VenueCEX, ev.Venue)
		})
	}
}

func TestNormalizeUpdateCumQty(t *testing.T) {
	ev, ok := NormalizeUpdate(core.OrderUpdate{
		OrderID:      "7",
		Status:       core.OrderStatusFilled,
		CumFilledQty: decimal.NewFromFloat(0.25),
	})
	require.True(t, ok)
	assert.True(t, ev.CumQty.Equal(decimal.NewFromFloat(0.25)))

	// A canceled order with nothing done normalizes to zero, whatever the
	// venue reported.
	ev, ok = NormalizeUpdate(core.OrderUpdate{
		OrderID: "8",
		Status:  core.OrderStatusCanceled,
	})
	require.True(t, ok)
	assert.True(t, ev.CumQty.IsZero())
}
