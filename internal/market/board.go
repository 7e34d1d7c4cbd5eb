// Package market maintains the cross-venue price board and the feeds that drive it.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/telemetry"
)

// Side selects which side of the book a price read returns.
type Side int

const (
	Bid Side = iota
	Ask
)

// Board holds the latest top-of-book ticker per venue and computes
// fee-adjusted spreads under a freshness guard. Tickers older than
// maxDelay are treated as missing.
type Board struct {
	mu      sync.RWMutex
	tickers map[core.Venue]*core.Ticker

	fees     map[core.Venue]core.FeeSchedule
	maxDelay time.Duration

	openThreshold  decimal.Decimal
	closeThreshold decimal.Decimal

	now func() time.Time
}

// NewBoard creates a price board for the two venues.
func NewBoard(cexFees, dexFees core.FeeSchedule, maxDelay time.Duration, openThreshold, closeThreshold decimal.Decimal) *Board {
	return &Board{
		tickers: map[core.Venue]*core.Ticker{
			core.VenueCEX: {},
			core.VenueDEX: {},
		},
		fees: map[core.Venue]core.FeeSchedule{
			core.VenueCEX: cexFees,
			core.VenueDEX: dexFees,
		},
		maxDelay:       maxDelay,
		openThreshold:  openThreshold,
		closeThreshold: closeThreshold,
		now:            time.Now,
	}
}

// Update writes a venue's top of book and stamps the receive time.
func (b *Board) Update(venue core.Venue, bid, ask decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tickers[venue]
	if !ok {
		t = &core.Ticker{}
		b.tickers[venue] = t
	}
	t.BidPrice = bid
	t.AskPrice = ask
	t.LocalRecvTime = b.now()
}

// GetPrice returns the requested side's price, or false when the ticker is
// uninitialized or older than the freshness bound.
func (b *Board) GetPrice(venue core.Venue, side Side) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.freshTicker(venue)
	if !ok {
		return decimal.Zero, false
	}
	if side == Bid {
		return t.BidPrice, true
	}
	return t.AskPrice, true
}

// GetSpread returns the raw crossbook spreads
// (dex_bid - cex_ask, cex_bid - dex_ask).
func (b *Board) GetSpread() (decimal.Decimal, decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cex, ok := b.freshTicker(core.VenueCEX)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	dex, ok := b.freshTicker(core.VenueDEX)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}

	openSpread := dex.BidPrice.Sub(cex.AskPrice)
	closeSpread := cex.BidPrice.Sub(dex.AskPrice)
	return openSpread, closeSpread, true
}

// GetSpreadWithFees returns the fee-adjusted net spreads. The open direction
// earns the DEX bid net of the DEX maker fee and pays the CEX ask plus the
// CEX taker fee; the close direction swaps the venue roles.
func (b *Board) GetSpreadWithFees() (decimal.Decimal, decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cex, ok := b.freshTicker(core.VenueCEX)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	dex, ok := b.freshTicker(core.VenueDEX)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}

	one := decimal.NewFromInt(1)
	cexFees := b.fees[core.VenueCEX]
	dexFees := b.fees[core.VenueDEX]

	openNet := dex.BidPrice.Mul(one.Sub(dexFees.MakerFee)).
		Sub(cex.AskPrice.Mul(one.Add(cexFees.TakerFee)))
	closeNet := cex.BidPrice.Mul(one.Sub(cexFees.MakerFee)).
		Sub(dex.AskPrice.Mul(one.Add(dexFees.TakerFee)))

	m := telemetry.GetGlobalMetrics()
	m.SetNetSpread("open", openNet.InexactFloat64())
	m.SetNetSpread("close", closeNet.InexactFloat64())

	return openNet, closeNet, true
}

// OpenSignal reports whether the fee-adjusted open spread clears the
// configured threshold.
func (b *Board) OpenSignal() bool {
	openNet, _, ok := b.GetSpreadWithFees()
	if !ok {
		return false
	}
	return openNet.GreaterThan(b.openThreshold)
}

// CloseSignal reports whether the fee-adjusted close spread clears the
// configured threshold.
func (b *Board) CloseSignal() bool {
	_, closeNet, ok := b.GetSpreadWithFees()
	if !ok {
		return false
	}
	return closeNet.GreaterThan(b.closeThreshold)
}

// freshTicker returns the ticker when it is initialized and within the
// freshness bound. Callers hold at least the read lock.
func (b *Board) freshTicker(venue core.Venue) (*core.Ticker, bool) {
	t, ok := b.tickers[venue]
	if !ok || t.BidPrice.IsZero() {
		return nil, false
	}
	if b.now().Sub(t.LocalRecvTime) > b.maxDelay {
		telemetry.GetGlobalMetrics().IncStaleTicks(context.Background(), string(venue))
		return nil, false
	}
	return t, true
}
