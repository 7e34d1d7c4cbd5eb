package market

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/websocket"
)

// binanceDepthMsg is the futures partial depth stream payload. The top
// levels arrive as [price, size] string pairs.
type binanceDepthMsg struct {
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

// BinanceFeed subscribes to the futures partial depth stream and writes the
// top of book into the price board. After every accepted update it fires the
// onUpdate hook, which carries the signal-evaluation role for this venue.
type BinanceFeed struct {
	board    *Board
	client   *websocket.Client
	logger   core.ILogger
	onUpdate func()
}

// NewBinanceFeed creates the depth feed for the given symbol.
func NewBinanceFeed(wsBase, symbol string, depthLevels int, board *Board, onUpdate func(), logger core.ILogger) *BinanceFeed {
	f := &BinanceFeed{
		board:    board,
		logger:   logger,
		onUpdate: onUpdate,
	}

	url := fmt.Sprintf("%s/ws/%s@depth%d@100ms", wsBase, strings.ToLower(symbol), depthLevels)
	f.client = websocket.NewClient(string(core.VenueCEX), "depth", url, f.handleMessage, logger)
	return f
}

// Start begins streaming.
func (f *BinanceFeed) Start() {
	f.client.Start()
}

// Stop tears the stream down.
func (f *BinanceFeed) Stop() {
	f.client.Stop()
}

func (f *BinanceFeed) handleMessage(message []byte) {
	var msg binanceDepthMsg
	if err := json.Unmarshal(message, &msg); err != nil {
		f.logger.Debug("Dropping unparseable depth message", "error", err)
		return
	}

	book := core.L2Book{
		Venue:     core.VenueCEX,
		Symbol:    msg.Symbol,
		EventTime: msg.EventTime,
		Bids:      parsePairLevels(msg.Bids),
		Asks:      parsePairLevels(msg.Asks),
	}

	bid, ask, ok := book.TopOfBook()
	if !ok {
		return
	}

	f.board.Update(core.VenueCEX, bid.Price, ask.Price)
	if f.onUpdate != nil {
		f.onUpdate()
	}
}

// parsePairLevels converts [price, size] string pairs into levels. Venues
// that omit the order count get it encoded as 1.
func parsePairLevels(raw [][]string) []core.Level {
	levels := make([]core.Level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}
		levels = append(levels, core.Level{Price: price, Size: size, Orders: 1})
	}
	return levels
}
