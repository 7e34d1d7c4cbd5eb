package core

import (
	"context"
)

// VenueClient is the capability set the engine needs from a venue. The two
// adapters (Binance futures, Hyperliquid) and the test mock implement it.
type VenueClient interface {
	// Name returns the venue role this client serves.
	Name() Venue

	// PlaceOrder submits an order and returns the venue order id. The id is
	// extracted from the venue response, however nested; failure to extract
	// one is a placement failure (apperrors.ErrNoOrderID).
	PlaceOrder(ctx context.Context, req *OrderRequest) (string, error)

	// CancelOrder cancels by venue order id. Canceling an order the venue no
	// longer knows is not an error.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// Balance returns the venue balance in its settlement asset.
	Balance(ctx context.Context) (*BalanceInfo, error)

	// Position returns the current position for symbol, or nil when flat.
	Position(ctx context.Context, symbol string) (*PositionInfo, error)

	// SubscribeUserStream installs handler for order lifecycle events and
	// keeps the stream alive (reconnect, keepalive) until ctx is canceled.
	SubscribeUserStream(ctx context.Context, handler OrderUpdateHandler) error
}

// TradeRecorder receives terminal fills and completed episodes for audit.
// Implementations must never block trading; errors stay internal.
type TradeRecorder interface {
	RecordFill(rec FillRecord)
	RecordEpisode(rec EpisodeRecord)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// Runner is a component with a blocking lifecycle managed by the supervisor
type Runner interface {
	Run(ctx context.Context) error
}
