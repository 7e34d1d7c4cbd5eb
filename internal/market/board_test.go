package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross_arb/internal/core"
)

func testFees() (core.FeeSchedule, core.FeeSchedule) {
	cex := core.FeeSchedule{
		MakerFee: decimal.NewFromFloat(0.0002),
		TakerFee: decimal.NewFromFloat(0.0004),
	}
	dex := core.FeeSchedule{
		MakerFee: decimal.NewFromFloat(0.0001),
		TakerFee: decimal.NewFromFloat(0.00035),
	}
	return cex, dex
}

func newTestBoard(openThreshold, closeThreshold float64) *Board {
	cex, dex := testFees()
	return NewBoard(cex, dex, time.Second,
		decimal.NewFromFloat(openThreshold), decimal.NewFromFloat(closeThreshold))
}

func TestBoardUninitialized(t *testing.T) {
	b := newTestBoard(0, 0)

	_, ok := b.GetPrice(core.VenueCEX, Bid)
	assert.False(t, ok, "uninitialized ticker must not return a price")

	_, _, ok = b.GetSpread()
	assert.False(t, ok)

	_, _, ok = b.GetSpreadWithFees()
	assert.False(t, ok)

	assert.False(t, b.OpenSignal())
	assert.False(t, b.CloseSignal())
}

func TestBoardUpdateAndRead(t *testing.T) {
	b := newTestBoard(0, 0)

	b.Update(core.VenueCEX, decimal.NewFromInt(59990), decimal.NewFromInt(60000))
	b.Update(core.VenueDEX, decimal.NewFromInt(60100), decimal.NewFromInt(60110))

	bid, ok := b.GetPrice(core.VenueCEX, Bid)
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.NewFromInt(59990)))

	ask, ok := b.GetPrice(core.VenueDEX, Ask)
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromInt(60110)))
}

func TestBoardStaleness(t *testing.T) {
	b := newTestBoard(0, 0)

	now := time.Now()
	b.now = func() time.Time { return now }

	b.Update(core.VenueCEX, decimal.NewFromInt(59990), decimal.NewFromInt(60000))
	b.Update(core.VenueDEX, decimal.NewFromInt(60100), decimal.NewFromInt(60110))

	_, ok := b.GetPrice(core.VenueCEX, Bid)
	require.True(t, ok, "fresh ticker should be readable")

	b.now = func() time.Time { return now.Add(1200 * time.Millisecond) }

	_, ok = b.GetPrice(core.VenueCEX, Bid)
	assert.False(t, ok, "stale ticker must be treated as missing")

	_, _, ok = b.GetSpread()
	assert.False(t, ok)

	_, _, ok = b.GetSpreadWithFees()
	assert.False(t, ok)

	assert.False(t, b.OpenSignal())
}

func TestBoardRawSpread(t *testing.T) {
	b := newTestBoard(0, 0)

	b.Update(core.VenueCEX, decimal.NewFromInt(59990), decimal.NewFromInt(60000))
	b.Update(core.VenueDEX, decimal.NewFromInt(60100), decimal.NewFromInt(60110))

	openSpread, closeSpread, ok := b.GetSpread()
	require.True(t, ok)

	// dex_bid - cex_ask and cex_bid - dex_ask
	assert.True(t, openSpread.Equal(decimal.NewFromInt(100)), "open spread %s", openSpread)
	assert.True(t, closeSpread.Equal(decimal.NewFromInt(-120)), "close spread %s", closeSpread)
}

func TestBoardSpreadWithFees(t *testing.T) {
	b := newTestBoard(0, 0)

	b.Update(core.VenueCEX, decimal.NewFromInt(59990), decimal.NewFromInt(60000))
	b.Update(core.VenueDEX, decimal.NewFromInt(60100), decimal.NewFromInt(60110))

	openNet, closeNet, ok := b.GetSpreadWithFees()
	require.True(t, ok)

	// open: 60100*(1-0.0001) - 60000*(1+0.0004)
	wantOpen := decimal.NewFromFloat(60100).Mul(decimal.NewFromFloat(0.9999)).
		Sub(decimal.NewFromFloat(60000).Mul(decimal.NewFromFloat(1.0004)))
	// close: 59990*(1-0.0002) - 60110*(1+0.00035)
	wantClose := decimal.NewFromFloat(59990).Mul(decimal.NewFromFloat(0.9998)).
		Sub(decimal.NewFromFloat(60110).Mul(decimal.NewFromFloat(1.00035)))

	assert.True(t, openNet.Equal(wantOpen), "open net %s want %s", openNet, wantOpen)
	assert.True(t, closeNet.Equal(wantClose), "close net %s want %s", closeNet, wantClose)
}

func TestBoardFeeAdjustedSpreadNeverExceedsRaw(t *testing.T) {
	tests := []struct {
		name             string
		cexBid, cexAsk   int64
		dexBid, dexAsk   int64
	}{
		{"dex above cex", 59990, 60000, 60100, 60110},
		{"cex above dex", 60200, 60210, 60100, 60110},
		{"tight books", 60000, 60001, 60000, 60001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBoard(0, 0)
			b.Update(core.VenueCEX, decimal.NewFromInt(tt.cexBid), decimal.NewFromInt(tt.cexAsk))
			b.Update(core.VenueDEX, decimal.NewFromInt(tt.dexBid), decimal.NewFromInt(tt.dexAsk))

			rawOpen, rawClose, ok := b.GetSpread()
			require.True(t, ok)
			netOpen, netClose, ok := b.GetSpreadWithFees()
			require.True(t, ok)

			assert.True(t, netOpen.LessThanOrEqual(rawOpen),
				"net open %s must not exceed raw %s", netOpen, rawOpen)
			assert.True(t, netClose.LessThanOrEqual(rawClose),
				"net close %s must not exceed raw %s", netClose, rawClose)
		})
	}
}

func TestBoardSignals(t *testing.T) {
	// With these prices the open net is roughly +70 and the close net is
	// deeply negative.
	b := newTestBoard(50, 0)
	b.Update(core.VenueCEX, decimal.NewFromInt(59990), decimal.NewFromInt(60000))
	b.Update(core.VenueDEX, decimal.NewFromInt(60100), decimal.NewFromInt(60110))

	assert.True(t, b.OpenSignal())
	assert.False(t, b.CloseSignal())

	// Raising the bar above the net suppresses the signal.
	b.openThreshold = decimal.NewFromInt(100)
	assert.False(t, b.OpenSignal())
}
