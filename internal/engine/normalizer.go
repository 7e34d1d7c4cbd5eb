// Package engine contains the strategy state machine, the order event
// normalizer, and the periodic tick loop that drives timeouts.
package engine

import (
	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
)

// NormalizeUpdate folds a venue order update into the terminal-event
// vocabulary the machine consumes. Non-terminal updates (NEW, partial fill
// progress) are not surfaced; the machine reads cumulative quantity at the
// terminal event.
func NormalizeUpdate(u core.OrderUpdate) (core.OrderEvent, bool) {
	switch u.Status {
	case core.OrderStatusFilled:
		return core.OrderEvent{
			Venue:   u.Venue,
			OrderID: u.OrderID,
			Type:    core.EventAllFilled,
			CumQty:  u.CumFilledQty,
		}, true

	case core.OrderStatusCanceled, core.OrderStatusExpired, core.OrderStatusRejected:
		if u.CumFilledQty.IsPositive() {
			return core.OrderEvent{
				Venue:   u.Venue,
				OrderID: u.OrderID,
				Type:    core.EventPartialFilledCanceled,
				CumQty:  u.CumFilledQty,
			}, true
		}
		return core.OrderEvent{
			Venue:   u.Venue,
			OrderID: u.OrderID,
			Type:    core.EventAllCanceled,
			CumQty:  decimal.Zero,
		}, true

	default:
		return core.OrderEvent{}, false
	}
}
