package binance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross_arb/internal/core"
	"cross_arb/pkg/apperrors"
	"cross_arb/pkg/logging"
)

// newStreamClient builds a client good enough for the pure code paths under
// test. New is avoided because it syncs server time over the network.
func newStreamClient() *Client {
	return &Client{logger: logging.GetGlobalLogger()}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		code int64
		msg  string
		want error
	}{
		{"invalid api key", -2015, "Invalid API-key, IP, or permissions for action.", apperrors.ErrAuthenticationFailed},
		{"insufficient balance", -2010, "Account has insufficient balance for requested action.", apperrors.ErrInsufficientFunds},
		{"margin insufficient", -2019, "Margin is insufficient.", apperrors.ErrInsufficientFunds},
		{"too many requests", -1003, "Too many requests queued.", apperrors.ErrRateLimitExceeded},
		{"order rate limit", -1015, "Too many new orders.", apperrors.ErrRateLimitExceeded},
		{"bad symbol", -1121, "Invalid symbol.", apperrors.ErrInvalidSymbol},
		{"unknown order", -2011, "Unknown order sent.", apperrors.ErrOrderNotFound},
		{"no such order", -2013, "Order does not exist.", apperrors.ErrOrderNotFound},
		{"precision", -1111, "Precision is over the maximum defined for this asset.", apperrors.ErrInvalidOrderParameter},
		{"price filter", -4014, "Price not increased by tick size.", apperrors.ErrInvalidOrderParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(&common.APIError{Code: tt.code, Message: tt.msg})
			require.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), tt.msg)
		})
	}
}

func TestClassifyErrorPassthrough(t *testing.T) {
	assert.NoError(t, classifyError(nil))

	plain := errors.New("dial tcp: connection refused")
	assert.ErrorIs(t, classifyError(plain), plain)

	// Unmapped codes come back as the raw API error for the caller to log.
	apiErr := &common.APIError{Code: -1000, Message: "An unknown error occurred."}
	got := classifyError(apiErr)
	var back *common.APIError
	require.ErrorAs(t, got, &back)
	assert.EqualValues(t, -1000, back.Code)
}

func TestClassifyErrorUnwrapsWrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("cancel order: %w", &common.APIError{Code: -2011, Message: "Unknown order sent."})
	assert.ErrorIs(t, classifyError(wrapped), apperrors.ErrOrderNotFound)
}

func TestHandleUserDataEventTranslates(t *testing.T) {
	c := newStreamClient()

	var captured []core.OrderUpdate
	c.handleUserDataEvent(&futures.WsUserDataEvent{
		Event: futures.UserDataEventTypeOrderTradeUpdate,
		WsUserDataOrderTradeUpdate: futures.WsUserDataOrderTradeUpdate{
			OrderTradeUpdate: futures.WsOrderTradeUpdate{
				ID:                   123456,
				Symbol:               "ETHUSDT",
				Status:               "FILLED",
				AccumulatedFilledQty: "0.001",
				OriginalQty:          "0.002",
				TradeTime:            1_700_000_000_123,
			},
		},
	}, func(u core.OrderUpdate) { captured = append(captured, u) })

	require.Len(t, captured, 1)
	u := captured[0]
	assert.Equal(t, core.VenueCEX, u.Venue)
	assert.Equal(t, "ETHUSDT", u.Symbol)
	assert.Equal(t, "123456", u.OrderID)
	assert.Equal(t, core.OrderStatusFilled, u.Status)
	assert.True(t, u.CumFilledQty.Equal(decimal.NewFromFloat(0.001)), "cum %s", u.CumFilledQty)
	assert.True(t, u.OrderQty.Equal(decimal.NewFromFloat(0.002)), "qty %s", u.OrderQty)
	assert.Equal(t, time.UnixMilli(1_700_000_000_123), u.EventTime)
}

func TestHandleUserDataEventIgnoresOtherEvents(t *testing.T) {
	c := newStreamClient()

	calls := 0
	for _, eventType := range []futures.UserDataEventType{
		futures.UserDataEventTypeAccountUpdate,
		futures.UserDataEventTypeListenKeyExpired,
		futures.UserDataEventTypeMarginCall,
	} {
		c.handleUserDataEvent(&futures.WsUserDataEvent{Event: eventType},
			func(core.OrderUpdate) { calls++ })
	}

	assert.Zero(t, calls)
}

func TestHandleUserDataEventDropsUnparseableCumQty(t *testing.T) {
	c := newStreamClient()

	calls := 0
	c.handleUserDataEvent(&futures.WsUserDataEvent{
		Event: futures.UserDataEventTypeOrderTradeUpdate,
		WsUserDataOrderTradeUpdate: futures.WsUserDataOrderTradeUpdate{
			OrderTradeUpdate: futures.WsOrderTradeUpdate{
				ID:                   42,
				Symbol:               "ETHUSDT",
				Status:               "FILLED",
				AccumulatedFilledQty: "garbage",
				OriginalQty:          "0.002",
			},
		},
	}, func(core.OrderUpdate) { calls++ })

	assert.Zero(t, calls, "an update without a usable fill quantity must be dropped")
}

func TestHandleUserDataEventDefaultsMissingOrderQty(t *testing.T) {
	c := newStreamClient()

	var captured []core.OrderUpdate
	c.handleUserDataEvent(&futures.WsUserDataEvent{
		Event: futures.UserDataEventTypeOrderTradeUpdate,
		WsUserDataOrderTradeUpdate: futures.WsUserDataOrderTradeUpdate{
			OrderTradeUpdate: futures.WsOrderTradeUpdate{
				ID:                   42,
				Symbol:               "ETHUSDT",
				Status:               "CANCELED",
				AccumulatedFilledQty: "0.0004",
			},
		},
	}, func(u core.OrderUpdate) { captured = append(captured, u) })

	require.Len(t, captured, 1)
	assert.True(t, captured[0].OrderQty.IsZero())
	assert.True(t, captured[0].CumFilledQty.Equal(decimal.NewFromFloat(0.0004)))
}

func TestCancelOrderRejectsNonNumericID(t *testing.T) {
	c := newStreamClient()

	err := c.CancelOrder(context.Background(), "ETHUSDT", "not-a-number")
	require.ErrorIs(t, err, apperrors.ErrInvalidOrderParameter)
	assert.Contains(t, err.Error(), "not-a-number")
}

func TestPlaceOrderRejectsUnknownType(t *testing.T) {
	c := &Client{client: futures.NewClient("", ""), logger: logging.GetGlobalLogger()}

	_, err := c.PlaceOrder(context.Background(), &core.OrderRequest{
		Symbol:   "ETHUSDT",
		Side:     core.SideBuy,
		Type:     core.OrderType("STOP_MARKET"),
		Quantity: decimal.NewFromFloat(0.001),
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrderParameter)
}
