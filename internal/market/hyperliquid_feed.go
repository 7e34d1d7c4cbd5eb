package market

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/websocket"
)

// hlSubscribeMsg is the subscription request envelope.
type hlSubscribeMsg struct {
	Method       string         `json:"method"`
	Subscription hlSubscription `json:"subscription"`
}

type hlSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

// hlEnvelope wraps every message with a channel tag.
type hlEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// hlL2Data carries the book snapshot. levels[0] is bids, levels[1] is asks.
type hlL2Data struct {
	Coin   string        `json:"coin"`
	Time   int64         `json:"time"`
	Levels [][]hlWsLevel `json:"levels"`
}

type hlWsLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// HyperliquidFeed subscribes to the l2Book channel and writes the top of
// book into the price board. This feed never evaluates signals; the faster
// venue's ticks own that role.
type HyperliquidFeed struct {
	board  *Board
	client *websocket.Client
	logger core.ILogger
	coin   string
}

// NewHyperliquidFeed creates the book feed for the given coin.
func NewHyperliquidFeed(wsURL, coin string, board *Board, logger core.ILogger) *HyperliquidFeed {
	f := &HyperliquidFeed{
		board:  board,
		logger: logger,
		coin:   coin,
	}

	f.client = websocket.NewClient(string(core.VenueDEX), "l2Book", wsURL, f.handleMessage, logger)
	// The venue expects an application-level ping within every minute.
	f.client.SetPingPayload([]byte(`{"method":"ping"}`))
	f.client.SetPingConfig(50*time.Second, 10*time.Second, 75*time.Second)
	f.client.SetOnConnected(f.subscribe)
	return f
}

// Start begins streaming.
func (f *HyperliquidFeed) Start() {
	f.client.Start()
}

// Stop tears the stream down.
func (f *HyperliquidFeed) Stop() {
	f.client.Stop()
}

func (f *HyperliquidFeed) subscribe() {
	msg := hlSubscribeMsg{
		Method:       "subscribe",
		Subscription: hlSubscription{Type: "l2Book", Coin: f.coin},
	}
	if err := f.client.Send(msg); err != nil {
		f.logger.Error("l2Book subscribe failed", "coin", f.coin, "error", err)
	}
}

func (f *HyperliquidFeed) handleMessage(message []byte) {
	var env hlEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		f.logger.Debug("Dropping unparseable book message", "error", err)
		return
	}
	if env.Channel != "l2Book" {
		return
	}

	var data hlL2Data
	if err := json.Unmarshal(env.Data, &data); err != nil {
		f.logger.Debug("Dropping unparseable l2Book payload", "error", err)
		return
	}
	if len(data.Levels) < 2 {
		return
	}

	book := core.L2Book{
		Venue:     core.VenueDEX,
		Symbol:    data.Coin,
		EventTime: data.Time,
		Bids:      parseWsLevels(data.Levels[0]),
		Asks:      parseWsLevels(data.Levels[1]),
	}

	bid, ask, ok := book.TopOfBook()
	if !ok {
		return
	}

	f.board.Update(core.VenueDEX, bid.Price, ask.Price)
}

func parseWsLevels(raw []hlWsLevel) []core.Level {
	levels := make([]core.Level, 0, len(raw))
	for _, l := range raw {
		price, err := decimal.NewFromString(l.Px)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(l.Sz)
		if err != nil {
			continue
		}
		orders := l.N
		if orders <= 0 {
			orders = 1
		}
		levels = append(levels, core.Level{Price: price, Size: size, Orders: orders})
	}
	return levels
}
