package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cross_arb/internal/core"
	"cross_arb/pkg/apperrors"
	"cross_arb/pkg/httpclient"
)

// marginAsset is the collateral asset of the perp clearinghouse.
const marginAsset = "USDC"

// marketSlippage caps how far a market order's aggressive IoC limit may
// cross the mid.
var marketSlippage = decimal.NewFromFloat(0.02)

const (
	tifGtc = "Gtc"
	tifIoc = "Ioc"
)

// Client is the DEX venue adapter.
type Client struct {
	http    *httpclient.Client
	signer  *Signer
	limiter *rate.Limiter
	logger  core.ILogger
	wsURL   string

	mu        sync.Mutex
	assets    map[string]int // coin → asset index in the perp universe
	lastNonce uint64
}

// New creates the adapter. Actions are signed with signer's wallet key and
// rate limited client-side; the venue's own limits are tighter than ours.
func New(baseURL, wsURL string, signer *Signer, logger core.ILogger) *Client {
	return &Client{
		http:    httpclient.NewClient(baseURL, 10*time.Second, nil),
		signer:  signer,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger.WithField("component", "hyperliquid"),
		wsURL:   wsURL,
	}
}

// Name returns the venue role.
func (c *Client) Name() core.Venue {
	return core.VenueDEX
}

// Wire types for the signed /exchange actions. Field order is load-bearing
// (see actionHash).

type orderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []wireOrder `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

type wireOrder struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	Price      string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  wireOrderType `json:"t" msgpack:"t"`
}

type wireOrderType struct {
	Limit *wireLimitTif `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

type wireLimitTif struct {
	Tif string `json:"tif" msgpack:"tif"`
}

type cancelAction struct {
	Type    string       `json:"type" msgpack:"type"`
	Cancels []wireCancel `json:"cancels" msgpack:"cancels"`
}

type wireCancel struct {
	Asset int   `json:"a" msgpack:"a"`
	Oid   int64 `json:"o" msgpack:"o"`
}

type exchangeRequest struct {
	Action       interface{} `json:"action"`
	Nonce        uint64      `json:"nonce"`
	Signature    Signature   `json:"signature"`
	VaultAddress *string     `json:"vaultAddress"`
}

// exchangeResponse wraps every action response. On "ok" Response holds the
// typed payload; otherwise it is a bare error string.
type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type orderResponse struct {
	Type string `json:"type"`
	Data struct {
		Statuses []orderStatusEntry `json:"statuses"`
	} `json:"data"`
}

type orderStatusEntry struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled"`
	Error string `json:"error"`
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// PlaceOrder submits a limit GTC order, or a market order expressed as an
// aggressive IoC limit capped 2% through the mid. The returned id is the
// oid from the first placement status, resting or filled.
func (c *Client) PlaceOrder(ctx context.Context, req *core.OrderRequest) (string, error) {
	assetID, err := c.assetFor(ctx, req.Symbol)
	if err != nil {
		return "", err
	}

	isBuy := req.Side == core.SideBuy
	price := req.Price
	tif := tifGtc
	if req.TimeInForce == core.TimeInForceIOC {
		tif = tifIoc
	}

	if req.Type == core.OrderTypeMarket {
		price, err = c.slippagePrice(ctx, req.Symbol, isBuy)
		if err != nil {
			return "", fmt.Errorf("failed to derive market price: %w", err)
		}
		tif = tifIoc
	}
	if !price.IsPositive() {
		return "", fmt.Errorf("%w: price %s", apperrors.ErrInvalidOrderParameter, price)
	}

	action := orderAction{
		Type: "order",
		Orders: []wireOrder{{
			Asset:      assetID,
			IsBuy:      isBuy,
			Price:      price.String(),
			Size:       req.Quantity.String(),
			ReduceOnly: req.ReduceOnly,
			OrderType:  wireOrderType{Limit: &wireLimitTif{Tif: tif}},
		}},
		Grouping: "na",
	}

	raw, err := c.postAction(ctx, action)
	if err != nil {
		return "", err
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to parse order response: %w", err)
	}
	if len(resp.Data.Statuses) == 0 {
		return "", apperrors.ErrNoOrderID
	}

	status := resp.Data.Statuses[0]
	switch {
	case status.Error != "":
		return "", mapActionError(status.Error)
	case status.Resting != nil:
		return strconv.FormatInt(status.Resting.Oid, 10), nil
	case status.Filled != nil:
		return strconv.FormatInt(status.Filled.Oid, 10), nil
	default:
		return "", apperrors.ErrNoOrderID
	}
}

// CancelOrder cancels by oid. An order the venue no longer tracks counts as
// already canceled.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: order id %q", apperrors.ErrInvalidOrderParameter, orderID)
	}

	assetID, err := c.assetFor(ctx, symbol)
	if err != nil {
		return err
	}

	action := cancelAction{
		Type:    "cancel",
		Cancels: []wireCancel{{Asset: assetID, Oid: oid}},
	}

	raw, err := c.postAction(ctx, action)
	if err != nil {
		return err
	}

	// Cancel statuses mix bare "success" strings with error objects.
	var resp struct {
		Type string `json:"type"`
		Data struct {
			Statuses []json.RawMessage `json:"statuses"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("failed to parse cancel response: %w", err)
	}
	if len(resp.Data.Statuses) == 0 {
		return nil
	}

	var ok string
	if err := json.Unmarshal(resp.Data.Statuses[0], &ok); err == nil {
		return nil
	}

	var entry struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Data.Statuses[0], &entry); err != nil {
		return fmt.Errorf("failed to parse cancel status: %w", err)
	}
	if isGoneOrderError(entry.Error) {
		c.logger.Debug("Cancel target already gone", "order_id", orderID)
		return nil
	}
	return mapActionError(entry.Error)
}

// Balance returns the clearinghouse margin summary as a balance.
func (c *Client) Balance(ctx context.Context) (*core.BalanceInfo, error) {
	state, err := c.userState(ctx)
	if err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(state.MarginSummary.AccountValue)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account value %q: %w", state.MarginSummary.AccountValue, err)
	}
	available, err := decimal.NewFromString(state.Withdrawable)
	if err != nil {
		return nil, fmt.Errorf("failed to parse withdrawable %q: %w", state.Withdrawable, err)
	}
	locked, err := decimal.NewFromString(state.MarginSummary.TotalMarginUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse margin used %q: %w", state.MarginSummary.TotalMarginUsed, err)
	}

	return &core.BalanceInfo{
		Asset:     marginAsset,
		Total:     total,
		Available: available,
		Locked:    locked,
	}, nil
}

// Position returns the signed perp position for symbol, or nil when flat.
func (c *Client) Position(ctx context.Context, symbol string) (*core.PositionInfo, error) {
	state, err := c.userState(ctx)
	if err != nil {
		return nil, err
	}

	for _, ap := range state.AssetPositions {
		if ap.Position.Coin != symbol {
			continue
		}

		size, err := decimal.NewFromString(ap.Position.Szi)
		if err != nil {
			return nil, fmt.Errorf("failed to parse position size %q: %w", ap.Position.Szi, err)
		}
		if size.IsZero() {
			return nil, nil
		}

		entry := decimal.Zero
		if ap.Position.EntryPx != "" {
			if entry, err = decimal.NewFromString(ap.Position.EntryPx); err != nil {
				return nil, fmt.Errorf("failed to parse entry price %q: %w", ap.Position.EntryPx, err)
			}
		}

		return &core.PositionInfo{
			Symbol:     symbol,
			Size:       size,
			EntryPrice: entry,
		}, nil
	}

	return nil, nil
}

type userState struct {
	MarginSummary struct {
		AccountValue    string `json:"accountValue"`
		TotalMarginUsed string `json:"totalMarginUsed"`
	} `json:"marginSummary"`
	Withdrawable   string `json:"withdrawable"`
	AssetPositions []struct {
		Position struct {
			Coin    string `json:"coin"`
			Szi     string `json:"szi"`
			EntryPx string `json:"entryPx"`
		} `json:"position"`
	} `json:"assetPositions"`
}

func (c *Client) userState(ctx context.Context) (*userState, error) {
	body, err := c.http.Post(ctx, "/info", infoRequest{
		Type: "userState",
		User: c.signer.Address().Hex(),
	})
	if err != nil {
		return nil, fmt.Errorf("user state query failed: %w", err)
	}

	var state userState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("failed to parse user state: %w", err)
	}
	return &state, nil
}

// postAction signs and submits one action to /exchange.
func (c *Client) postAction(ctx context.Context, action interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	nonce := c.nextNonce()
	sig, err := c.signer.SignAction(action, nonce)
	if err != nil {
		return nil, err
	}

	body, err := c.http.Post(ctx, "/exchange", exchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange action failed: %w", err)
	}

	var resp exchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse exchange response: %w", err)
	}
	if resp.Status != "ok" {
		var msg string
		if json.Unmarshal(resp.Response, &msg) != nil || msg == "" {
			msg = string(resp.Response)
		}
		return nil, mapActionError(msg)
	}

	return resp.Response, nil
}

// nextNonce returns a strictly increasing millisecond nonce.
func (c *Client) nextNonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := uint64(time.Now().UnixMilli())
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

// assetFor resolves a coin to its asset index, loading the perp universe on
// first use.
func (c *Client) assetFor(ctx context.Context, coin string) (int, error) {
	c.mu.Lock()
	id, ok := c.assets[coin]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	if err := c.loadMeta(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	id, ok = c.assets[coin]
	c.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s not in the perp universe", apperrors.ErrInvalidSymbol, coin)
	}
	return id, nil
}

func (c *Client) loadMeta(ctx context.Context) error {
	body, err := c.http.Post(ctx, "/info", infoRequest{Type: "meta"})
	if err != nil {
		return fmt.Errorf("meta query failed: %w", err)
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return fmt.Errorf("failed to parse meta: %w", err)
	}

	assets := make(map[string]int, len(meta.Universe))
	for i, u := range meta.Universe {
		assets[u.Name] = i
	}

	c.mu.Lock()
	c.assets = assets
	c.mu.Unlock()

	c.logger.Debug("Perp universe loaded", "assets", len(assets))
	return nil
}

// slippagePrice fetches the mid and steps it marketSlippage through the
// book: up for buys, down for sells. The result rides the venue's
// five-significant-figure price grid.
func (c *Client) slippagePrice(ctx context.Context, coin string, isBuy bool) (decimal.Decimal, error) {
	body, err := c.http.Post(ctx, "/info", infoRequest{Type: "allMids"})
	if err != nil {
		return decimal.Zero, fmt.Errorf("mid query failed: %w", err)
	}

	var mids map[string]string
	if err := json.Unmarshal(body, &mids); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse mids: %w", err)
	}

	raw, ok := mids[coin]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no mid for %s", apperrors.ErrInvalidSymbol, coin)
	}
	mid, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse mid %q: %w", raw, err)
	}

	factor := decimal.NewFromInt(1).Sub(marketSlippage)
	if isBuy {
		factor = decimal.NewFromInt(1).Add(marketSlippage)
	}
	return roundToPriceGrid(mid.Mul(factor)), nil
}

// roundToPriceGrid trims a derived price to five significant figures and at
// most six decimals, matching the venue's accepted grid.
func roundToPriceGrid(px decimal.Decimal) decimal.Decimal {
	f, _ := px.Float64()
	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'g', 5, 64))
	if err != nil {
		return px.Round(6)
	}
	return d.Round(6)
}

// mapActionError folds venue rejection strings onto the sentinel taxonomy.
func mapActionError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficient margin"), strings.Contains(lower, "insufficient balance"):
		return fmt.Errorf("%w: %s", apperrors.ErrInsufficientFunds, msg)
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many"):
		return fmt.Errorf("%w: %s", apperrors.ErrRateLimitExceeded, msg)
	case strings.Contains(lower, "signature"), strings.Contains(lower, "does not exist"):
		return fmt.Errorf("%w: %s", apperrors.ErrAuthenticationFailed, msg)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrOrderRejected, msg)
	}
}

// isGoneOrderError matches the cancel rejection for orders already filled,
// canceled, or never placed.
func isGoneOrderError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "never placed") ||
		strings.Contains(lower, "already canceled") ||
		strings.Contains(lower, "unknown order") ||
		strings.Contains(lower, "filled")
}
