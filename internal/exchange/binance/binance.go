// Package binance adapts Binance USDⓈ-M futures to core.VenueClient. REST
// goes through the official go-binance futures client; the user stream rides
// a listen key (see websocket.go).
package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/apperrors"
)

// settlementAsset is the margin asset of the USDⓈ-M contracts we trade.
const settlementAsset = "USDT"

// Client is the CEX venue adapter.
type Client struct {
	client *futures.Client
	logger core.ILogger

	reconnectWait     time.Duration
	keepAliveInterval time.Duration
}

// New creates the adapter. baseURL overrides the production REST endpoint
// when non-empty (testnet). Server time is synced once so signed requests
// do not drift out of the recvWindow.
func New(apiKey, secretKey, baseURL string, logger core.ILogger) *Client {
	fc := futures.NewClient(apiKey, secretKey)
	if baseURL != "" {
		fc.BaseURL = baseURL
	}

	if _, err := fc.NewSetServerTimeService().Do(context.Background()); err != nil {
		logger.Warn("Failed to sync server time", "error", err)
	}

	return &Client{
		client:            fc,
		logger:            logger.WithField("component", "binance"),
		reconnectWait:     3 * time.Second,
		keepAliveInterval: 30 * time.Minute,
	}
}

// Name returns the venue role.
func (c *Client) Name() core.Venue {
	return core.VenueCEX
}

// PlaceOrder submits a LIMIT GTC or MARKET order and returns the exchange
// order id.
func (c *Client) PlaceOrder(ctx context.Context, req *core.OrderRequest) (string, error) {
	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	svc := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Quantity(req.Quantity.String()).
		NewClientOrderID(clientOrderID)

	switch req.Type {
	case core.OrderTypeLimit:
		tif := futures.TimeInForceTypeGTC
		if req.TimeInForce == core.TimeInForceIOC {
			tif = futures.TimeInForceTypeIOC
		}
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(tif).
			Price(req.Price.String())
	case core.OrderTypeMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	default:
		return "", fmt.Errorf("%w: order type %q", apperrors.ErrInvalidOrderParameter, req.Type)
	}

	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return "", classifyError(err)
	}
	if resp.OrderID == 0 {
		return "", apperrors.ErrNoOrderID
	}

	return strconv.FormatInt(resp.OrderID, 10), nil
}

// CancelOrder cancels by exchange order id. An order the exchange no longer
// knows counts as already canceled.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: order id %q", apperrors.ErrInvalidOrderParameter, orderID)
	}

	_, err = c.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		cerr := classifyError(err)
		if errors.Is(cerr, apperrors.ErrOrderNotFound) || strings.Contains(err.Error(), "Unknown order") {
			c.logger.Debug("Cancel target already gone", "order_id", orderID)
			return nil
		}
		return cerr
	}

	return nil
}

// Balance returns the USDT futures wallet balance.
func (c *Client) Balance(ctx context.Context) (*core.BalanceInfo, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}

	for _, asset := range account.Assets {
		if asset.Asset != settlementAsset {
			continue
		}

		total, err := decimal.NewFromString(asset.WalletBalance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse wallet balance %q: %w", asset.WalletBalance, err)
		}
		available, err := decimal.NewFromString(asset.AvailableBalance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse available balance %q: %w", asset.AvailableBalance, err)
		}

		return &core.BalanceInfo{
			Asset:     settlementAsset,
			Total:     total,
			Available: available,
			Locked:    total.Sub(available),
		}, nil
	}

	return &core.BalanceInfo{Asset: settlementAsset}, nil
}

// Position returns the signed position for symbol, or nil when flat.
func (c *Client) Position(ctx context.Context, symbol string) (*core.PositionInfo, error) {
	risks, err := c.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}

	for _, risk := range risks {
		if risk.Symbol != symbol {
			continue
		}

		size, err := decimal.NewFromString(risk.PositionAmt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse position amount %q: %w", risk.PositionAmt, err)
		}
		if size.IsZero() {
			return nil, nil
		}

		entry, err := decimal.NewFromString(risk.EntryPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to parse entry price %q: %w", risk.EntryPrice, err)
		}

		return &core.PositionInfo{
			Symbol:     symbol,
			Size:       size,
			EntryPrice: entry,
		}, nil
	}

	return nil, nil
}

// classifyError maps Binance API error codes onto the sentinel taxonomy so
// callers can classify without string matching.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case -2015:
		return fmt.Errorf("%w: %s", apperrors.ErrAuthenticationFailed, apiErr.Message)
	case -2010, -2019:
		return fmt.Errorf("%w: %s", apperrors.ErrInsufficientFunds, apiErr.Message)
	case -1003, -1015:
		return fmt.Errorf("%w: %s", apperrors.ErrRateLimitExceeded, apiErr.Message)
	case -1121:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidSymbol, apiErr.Message)
	case -2011, -2013:
		return fmt.Errorf("%w: %s", apperrors.ErrOrderNotFound, apiErr.Message)
	case -1111, -4014:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidOrderParameter, apiErr.Message)
	}

	return err
}
