package hyperliquid

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/websocket"
)

type wsSubscribeMsg struct {
	Method       string         `json:"method"`
	Subscription wsSubscription `json:"subscription"`
}

type wsSubscription struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// wsOrderUpdate is one element of an orderUpdates batch. Status and the
// fill quantities appear at the item level on fill payloads and inside the
// order object on others; both spots are read.
type wsOrderUpdate struct {
	Order struct {
		Coin   string `json:"coin"`
		Oid    int64  `json:"oid"`
		Cloid  string `json:"cloid"`
		Sz     string `json:"sz"`
		OrigSz string `json:"origSz"`
		CumSz  string `json:"cumSz"`
		Status string `json:"status"`
	} `json:"order"`
	Status          string `json:"status"`
	StatusTimestamp int64  `json:"statusTimestamp"`
	CumSz           string `json:"cumSz"`
}

// SubscribeUserStream opens the unified WS, subscribes to orderUpdates for
// the operator wallet, and feeds translated updates to handler until ctx is
// canceled. Reconnects resubscribe automatically.
func (c *Client) SubscribeUserStream(ctx context.Context, handler core.OrderUpdateHandler) error {
	client := websocket.NewClient(string(core.VenueDEX), "orderUpdates", c.wsURL,
		func(message []byte) {
			c.handleUserMessage(message, handler)
		}, c.logger)

	// Application-level ping; the venue ignores control frames.
	client.SetPingPayload([]byte(`{"method":"ping"}`))
	client.SetPingConfig(50*time.Second, 10*time.Second, 75*time.Second)
	client.SetOnConnected(func() {
		msg := wsSubscribeMsg{
			Method: "subscribe",
			Subscription: wsSubscription{
				Type: "orderUpdates",
				User: c.signer.Address().Hex(),
			},
		}
		if err := client.Send(msg); err != nil {
			c.logger.Error("orderUpdates subscribe failed", "error", err)
		}
	})

	client.Start()

	go func() {
		<-ctx.Done()
		client.Stop()
	}()

	return nil
}

func (c *Client) handleUserMessage(message []byte, handler core.OrderUpdateHandler) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Debug("Dropping unparseable user message", "error", err)
		return
	}
	if env.Channel != "orderUpdates" {
		return
	}

	var updates []wsOrderUpdate
	if err := json.Unmarshal(env.Data, &updates); err != nil {
		c.logger.Debug("Dropping unparseable orderUpdates payload", "error", err)
		return
	}

	for _, raw := range updates {
		if update, ok := c.translateUpdate(raw); ok {
			handler(update)
		}
	}
}

// translateUpdate maps one venue order update into the shared vocabulary.
// A "filled" status is terminal only when the cumulative size reaches the
// order size; earlier fills surface as PARTIALLY_FILLED so the normalizer
// drops them.
func (c *Client) translateUpdate(raw wsOrderUpdate) (core.OrderUpdate, bool) {
	status := raw.Status
	if status == "" {
		status = raw.Order.Status
	}

	orderID := ""
	if raw.Order.Oid != 0 {
		orderID = strconv.FormatInt(raw.Order.Oid, 10)
	} else if raw.Order.Cloid != "" {
		orderID = raw.Order.Cloid
	}
	if orderID == "" {
		return core.OrderUpdate{}, false
	}

	orderQty := parseQty(raw.Order.Sz)

	cumRaw := raw.CumSz
	if cumRaw == "" {
		cumRaw = raw.Order.CumSz
	}
	cumQty := parseQty(cumRaw)
	if cumRaw == "" && raw.Order.OrigSz != "" {
		// No cumulative field: sz is the remainder of origSz.
		orig := parseQty(raw.Order.OrigSz)
		cumQty = orig.Sub(orderQty)
		orderQty = orig
	}

	update := core.OrderUpdate{
		Venue:        core.VenueDEX,
		Symbol:       raw.Order.Coin,
		OrderID:      orderID,
		CumFilledQty: cumQty,
		OrderQty:     orderQty,
		EventTime:    time.UnixMilli(raw.StatusTimestamp),
	}

	switch strings.ToLower(status) {
	case "filled":
		if cumQty.GreaterThanOrEqual(orderQty) || core.WithinEpsilon(cumQty, orderQty) {
			update.Status = core.OrderStatusFilled
		} else {
			update.Status = core.OrderStatusPartiallyFilled
		}
	case "canceled", "cancelled", "margincanceled":
		update.Status = core.OrderStatusCanceled
	case "expired":
		update.Status = core.OrderStatusExpired
	case "rejected":
		update.Status = core.OrderStatusRejected
	case "open", "resting":
		update.Status = core.OrderStatusNew
	default:
		c.logger.Debug("Unknown order status on user stream",
			"status", status, "order_id", orderID)
		return core.OrderUpdate{}, false
	}

	return update, true
}

func parseQty(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
