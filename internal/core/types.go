// Package core defines the shared vocabulary of the arbitrage engine: venues,
// orders, book levels, tickers, strategy states, and the interfaces the
// components are wired through.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies one of the two trading venues by its role.
type Venue string

const (
	// VenueCEX is the centralized exchange, the Leg-2 taker side.
	VenueCEX Venue = "cex"
	// VenueDEX is the decentralized exchange, the Leg-1 maker side.
	VenueDEX Venue = "dex"
)

// Side represents order side
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType represents order type
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce represents time in force policy
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
)

// OrderStatus represents the venue-agnostic order lifecycle status
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further fills can occur after this status
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// OrderRequest describes an order to be placed on a venue. Quantity and Price
// must already be rounded to the venue's precision by the caller.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	TimeInForce   TimeInForce
	Quantity      decimal.Decimal
	Price         decimal.Decimal // unused for market orders
	ReduceOnly    bool
	ClientOrderID string
}

// OrderUpdate is a venue-agnostic order lifecycle event as produced by the
// venue adapters from their user streams.
type OrderUpdate struct {
	Venue        Venue
	Symbol       string
	OrderID      string
	Status       OrderStatus
	CumFilledQty decimal.Decimal
	OrderQty     decimal.Decimal
	EventTime    time.Time
}

// OrderUpdateHandler receives user-stream order updates
type OrderUpdateHandler func(update OrderUpdate)

// BalanceInfo holds a venue balance in its settlement asset
type BalanceInfo struct {
	Asset     string
	Total     decimal.Decimal
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// PositionInfo holds a venue position. Size is signed: positive long,
// negative short.
type PositionInfo struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// IsLong reports whether the position is net long
func (p *PositionInfo) IsLong() bool {
	return p != nil && p.Size.Sign() > 0
}

// IsShort reports whether the position is net short
func (p *PositionInfo) IsShort() bool {
	return p != nil && p.Size.Sign() < 0
}

// IsFlat reports whether there is no position
func (p *PositionInfo) IsFlat() bool {
	return p == nil || p.Size.IsZero()
}

// Level is one price level of an order book
type Level struct {
	Price  decimal.Decimal
	Size   decimal.Decimal
	Orders int
}

// L2Book is a normalized order book snapshot. Bids are sorted by price
// descending, asks ascending.
type L2Book struct {
	Venue     Venue
	Symbol    string
	Bids      []Level
	Asks      []Level
	EventTime int64
}

// TopOfBook returns the best bid and ask. ok is false when either side is
// empty or the book is crossed; such ticks must be dropped.
func (b *L2Book) TopOfBook() (bid, ask Level, ok bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return Level{}, Level{}, false
	}
	bid, ask = b.Bids[0], b.Asks[0]
	if bid.Price.GreaterThanOrEqual(ask.Price) {
		return Level{}, Level{}, false
	}
	return bid, ask, true
}

// Ticker is the latest top-of-book for one venue. A zero BidPrice means the
// venue has never ticked.
type Ticker struct {
	BidPrice      decimal.Decimal
	AskPrice      decimal.Decimal
	LocalRecvTime time.Time
}

// FeeSchedule holds a venue's fee fractions (0.0002 = 2 bps)
type FeeSchedule struct {
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal
}
