package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType is the normalized terminal-event vocabulary the strategy
// machine consumes. Intermediate partial-fill progress is never surfaced;
// cumulative quantity is read at the terminal event.
type OrderEventType string

const (
	// EventAllFilled - the order filled completely.
	EventAllFilled OrderEventType = "ALL_FILLED"
	// EventPartialFilledCanceled - the order ended (canceled, expired or
	// rejected) with a non-zero cumulative fill.
	EventPartialFilledCanceled OrderEventType = "PARTIAL_FILLED_CANCELED"
	// EventAllCanceled - the order ended with zero fills.
	EventAllCanceled OrderEventType = "ALL_CANCELED"
)

// OrderEvent is a normalized terminal order event
type OrderEvent struct {
	Venue   Venue
	OrderID string
	Type    OrderEventType
	CumQty  decimal.Decimal
}

// FillRecord is one journal row describing a terminal event the machine
// accepted, with the position after applying it.
type FillRecord struct {
	Time     time.Time
	Venue    Venue
	Symbol   string
	OrderID  string
	Event    OrderEventType
	CumQty   decimal.Decimal
	IncQty   decimal.Decimal
	Position decimal.Decimal
}

// EpisodeRecord summarizes one completed two-leg round (open or close)
type EpisodeRecord struct {
	Kind      string // "open" or "close"
	StartedAt time.Time
	EndedAt   time.Time
	Quantity  decimal.Decimal
}
