// Package mock provides scripted in-memory doubles for the venue clients.
// Tests drive the machine by placing through a mock and injecting the user
// stream events a real venue would push back.
package mock

import (
	"context"
	"fmt"
	"sync"

	"cross_arb/internal/core"
)

// VenueClient implements core.VenueClient with scripted behavior. Every
// request is captured for assertions; order ids are deterministic.
type VenueClient struct {
	mu   sync.Mutex
	name core.Venue

	orderSeq  int64
	placed    []core.OrderRequest
	canceled  []string
	placeErrs []error
	cancelErr error

	balance     *core.BalanceInfo
	balanceErr  error
	position    *core.PositionInfo
	positionErr []error

	handler core.OrderUpdateHandler
}

// NewVenueClient creates a mock for the given venue role.
func NewVenueClient(name core.Venue) *VenueClient {
	return &VenueClient{
		name:     name,
		orderSeq: 1000,
		balance: &core.BalanceInfo{
			Asset: "USDT",
		},
	}
}

// Name returns the venue role.
func (m *VenueClient) Name() core.Venue {
	return m.name
}

// PlaceOrder captures the request and returns the next scripted outcome:
// a queued error if one is pending, otherwise a fresh deterministic id.
func (m *VenueClient) PlaceOrder(_ context.Context, req *core.OrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.placed = append(m.placed, *req)

	if len(m.placeErrs) > 0 {
		err := m.placeErrs[0]
		m.placeErrs = m.placeErrs[1:]
		return "", err
	}

	m.orderSeq++
	return fmt.Sprintf("%s-%d", m.name, m.orderSeq), nil
}

// CancelOrder records the cancel and returns the configured error, if any.
func (m *VenueClient) CancelOrder(_ context.Context, _ string, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled = append(m.canceled, orderID)
	return m.cancelErr
}

// Balance returns the scripted balance.
func (m *VenueClient) Balance(_ context.Context) (*core.BalanceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	b := *m.balance
	return &b, nil
}

// Position returns the scripted position, consuming queued errors first.
func (m *VenueClient) Position(_ context.Context, _ string) (*core.PositionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.positionErr) > 0 {
		err := m.positionErr[0]
		m.positionErr = m.positionErr[1:]
		return nil, err
	}
	if m.position == nil {
		return nil, nil
	}
	p := *m.position
	return &p, nil
}

// SubscribeUserStream stores the handler for event injection.
func (m *VenueClient) SubscribeUserStream(_ context.Context, handler core.OrderUpdateHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return nil
}

// EmitUpdate pushes a user-stream event through the subscribed handler, the
// way a venue reader goroutine would. The venue tag is filled in.
func (m *VenueClient) EmitUpdate(update core.OrderUpdate) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		return
	}
	update.Venue = m.name
	handler(update)
}

// FailNextPlace queues an error for the next PlaceOrder call.
func (m *VenueClient) FailNextPlace(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeErrs = append(m.placeErrs, err)
}

// SetCancelError makes every CancelOrder return err.
func (m *VenueClient) SetCancelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelErr = err
}

// SetBalance scripts the Balance response.
func (m *VenueClient) SetBalance(b *core.BalanceInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = b
}

// SetBalanceError makes Balance fail.
func (m *VenueClient) SetBalanceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceErr = err
}

// SetPosition scripts the Position response; nil means flat.
func (m *VenueClient) SetPosition(p *core.PositionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
}

// FailPositionTimes queues n transient Position failures before the
// scripted response is served.
func (m *VenueClient) FailPositionTimes(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.positionErr = append(m.positionErr, err)
	}
}

// Placed returns a copy of every captured order request.
func (m *VenueClient) Placed() []core.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.OrderRequest, len(m.placed))
	copy(out, m.placed)
	return out
}

// LastPlaced returns the most recent order request, or nil.
func (m *VenueClient) LastPlaced() *core.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.placed) == 0 {
		return nil
	}
	req := m.placed[len(m.placed)-1]
	return &req
}

// Canceled returns a copy of every canceled order id.
func (m *VenueClient) Canceled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.canceled))
	copy(out, m.canceled)
	return out
}

// LastOrderID returns the id assigned to the most recent successful
// placement, or "" when nothing placed.
func (m *VenueClient) LastOrderID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orderSeq == 1000 {
		return ""
	}
	return fmt.Sprintf("%s-%d", m.name, m.orderSeq)
}
