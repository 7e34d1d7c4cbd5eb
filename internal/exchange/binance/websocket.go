package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/retry"
)

// SubscribeUserStream acquires a listen key and serves the user-data stream
// until ctx is canceled. The stream is kept alive with a 30-minute keepalive
// ticker; on disconnect the listen key is re-acquired and the stream
// re-served after reconnectWait. Returns an error only when the first listen
// key cannot be acquired.
func (c *Client) SubscribeUserStream(ctx context.Context, handler core.OrderUpdateHandler) error {
	listenKey, err := c.acquireListenKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen key: %w", err)
	}

	keyCh := make(chan string, 1)
	keyCh <- listenKey

	go c.keepAliveLoop(ctx, listenKey, keyCh)
	go c.serveLoop(ctx, listenKey, keyCh, handler)

	return nil
}

func (c *Client) acquireListenKey(ctx context.Context) (string, error) {
	var listenKey string
	err := retry.Do(ctx, retry.DefaultPolicy, retry.Always, func() error {
		key, kerr := c.client.NewStartUserStreamService().Do(ctx)
		if kerr != nil {
			return classifyError(kerr)
		}
		listenKey = key
		return nil
	})
	return listenKey, err
}

// keepAliveLoop extends the listen key every 30 minutes. keyCh carries
// replacement keys when the serve loop re-acquires after a disconnect.
func (c *Client) keepAliveLoop(ctx context.Context, listenKey string, keyCh <-chan string) {
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case key := <-keyCh:
			listenKey = key
		case <-ticker.C:
			err := c.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
			if err != nil {
				c.logger.Error("Listen key keepalive failed", "error", err)
			} else {
				c.logger.Debug("Listen key extended")
			}
		}
	}
}

// serveLoop runs WsUserDataServe until ctx cancels, re-acquiring the listen
// key on every disconnect because the old key may have expired with the
// connection.
func (c *Client) serveLoop(ctx context.Context, listenKey string, keyCh chan<- string, handler core.OrderUpdateHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		doneC, stopC, err := futures.WsUserDataServe(listenKey,
			func(event *futures.WsUserDataEvent) {
				c.handleUserDataEvent(event, handler)
			},
			func(err error) {
				c.logger.Error("User stream error", "error", err)
			},
		)
		if err != nil {
			c.logger.Error("User stream connect failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.reconnectWait):
			}
			continue
		}

		c.logger.Info("User stream connected")

		select {
		case <-ctx.Done():
			stopC <- struct{}{}
			return
		case <-doneC:
			c.logger.Warn("User stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectWait):
		}

		if key, kerr := c.acquireListenKey(ctx); kerr != nil {
			c.logger.Error("Listen key re-acquisition failed", "error", kerr)
		} else {
			listenKey = key
			select {
			case keyCh <- key:
			default:
			}
		}
	}
}

// handleUserDataEvent translates ORDER_TRADE_UPDATE events into the
// venue-agnostic order update. Everything else on the stream is ignored.
func (c *Client) handleUserDataEvent(event *futures.WsUserDataEvent, handler core.OrderUpdateHandler) {
	if event.Event != futures.UserDataEventTypeOrderTradeUpdate {
		return
	}

	order := event.OrderTradeUpdate

	cumQty, err := decimal.NewFromString(order.AccumulatedFilledQty)
	if err != nil {
		c.logger.Warn("Unparseable cumulative quantity on user stream",
			"order_id", order.ID, "value", order.AccumulatedFilledQty)
		return
	}
	orderQty, err := decimal.NewFromString(order.OriginalQty)
	if err != nil {
		orderQty = decimal.Zero
	}

	handler(core.OrderUpdate{
		Venue:        core.VenueCEX,
		Symbol:       order.Symbol,
		OrderID:      strconv.FormatInt(order.ID, 10),
		Status:       core.OrderStatus(order.Status),
		CumFilledQty: cumQty,
		OrderQty:     orderQty,
		EventTime:    time.UnixMilli(order.TradeTime),
	})
}
