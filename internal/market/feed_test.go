package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross_arb/internal/core"
	"cross_arb/pkg/logging"
)

func TestBinanceFeedHandleMessage(t *testing.T) {
	board := newTestBoard(0, 0)

	updates := 0
	feed := NewBinanceFeed("wss://example.test", "ETHUSDT", 20, board,
		func() { updates++ }, logging.GetGlobalLogger())

	msg := []byte(`{
		"e": "depthUpdate",
		"E": 1700000000000,
		"s": "ETHUSDT",
		"b": [["3000.50","1.2"],["3000.40","0.8"]],
		"a": [["3000.60","0.5"],["3000.70","2.0"]]
	}`)
	feed.handleMessage(msg)

	bid, ok := board.GetPrice(core.VenueCEX, Bid)
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.NewFromFloat(3000.50)))

	ask, ok := board.GetPrice(core.VenueCEX, Ask)
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromFloat(3000.60)))

	assert.Equal(t, 1, updates, "onUpdate should fire once per accepted tick")
}

func TestBinanceFeedDropsBadTicks(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"empty bids", `{"E":1,"s":"ETHUSDT","b":[],"a":[["3000.60","0.5"]]}`},
		{"empty asks", `{"E":1,"s":"ETHUSDT","b":[["3000.50","1.2"]],"a":[]}`},
		{"crossed book", `{"E":1,"s":"ETHUSDT","b":[["3000.70","1.2"]],"a":[["3000.60","0.5"]]}`},
		{"not json", `garbage`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := newTestBoard(0, 0)
			updates := 0
			feed := NewBinanceFeed("wss://example.test", "ETHUSDT", 20, board,
				func() { updates++ }, logging.GetGlobalLogger())

			feed.handleMessage([]byte(tt.msg))

			_, ok := board.GetPrice(core.VenueCEX, Bid)
			assert.False(t, ok, "dropped tick must not reach the board")
			assert.Equal(t, 0, updates)
		})
	}
}

func TestHyperliquidFeedHandleMessage(t *testing.T) {
	board := newTestBoard(0, 0)
	feed := NewHyperliquidFeed("wss://example.test/ws", "ETH", board, logging.GetGlobalLogger())

	msg := []byte(`{
		"channel": "l2Book",
		"data": {
			"coin": "ETH",
			"time": 1700000000000,
			"levels": [
				[{"px":"3001.1","sz":"5.0","n":3},{"px":"3001.0","sz":"2.0","n":1}],
				[{"px":"3001.3","sz":"4.0","n":2},{"px":"3001.4","sz":"1.0","n":1}]
			]
		}
	}`)
	feed.handleMessage(msg)

	bid, ok := board.GetPrice(core.VenueDEX, Bid)
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.NewFromFloat(3001.1)))

	ask, ok := board.GetPrice(core.VenueDEX, Ask)
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromFloat(3001.3)))
}

func TestHyperliquidFeedIgnoresOtherChannels(t *testing.T) {
	board := newTestBoard(0, 0)
	feed := NewHyperliquidFeed("wss://example.test/ws", "ETH", board, logging.GetGlobalLogger())

	feed.handleMessage([]byte(`{"channel":"pong"}`))
	feed.handleMessage([]byte(`{"channel":"subscriptionResponse","data":{}}`))
	feed.handleMessage([]byte(`{"channel":"l2Book","data":{"coin":"ETH","levels":[[]]}}`))

	_, ok := board.GetPrice(core.VenueDEX, Bid)
	assert.False(t, ok)
}

func TestParsePairLevelsSkipsMalformed(t *testing.T) {
	levels := parsePairLevels([][]string{
		{"3000.5", "1.0"},
		{"not-a-number", "1.0"},
		{"3000.4"},
		{"3000.3", "bad"},
	})

	require.Len(t, levels, 1)
	assert.True(t, levels[0].Price.Equal(decimal.NewFromFloat(3000.5)))
	assert.Equal(t, 1, levels[0].Orders)
}
