package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/internal/market"
	"cross_arb/pkg/concurrency"
	"cross_arb/pkg/telemetry"
)

const (
	episodeOpen  = "open"
	episodeClose = "close"
)

// Config holds the machine's trading parameters. Quantities and prices are
// rounded half-up to the per-venue precisions before hitting a venue.
type Config struct {
	CEXSymbol    string
	DEXSymbol    string
	BaseQuantity decimal.Decimal

	OrderTimeout    time.Duration
	MaxChaseRetries int
	ChaseStep       decimal.Decimal

	CEXPricePrecision int
	CEXQtyPrecision   int
	DEXPricePrecision int
	DEXQtyPrecision   int
}

// Machine is the two-leg execution state machine. Leg 1 is a maker limit on
// the DEX; Leg 2 hedges the realized fill on the CEX with a bounded
// limit-chase that escalates to market. All context is guarded by one mutex;
// order placement runs inside it because the order id must be recorded
// before the mutex is released.
type Machine struct {
	mu  sync.Mutex
	cfg Config

	board    *market.Board
	cex      core.VenueClient
	dex      core.VenueClient
	pool     *concurrency.WorkerPool
	recorder core.TradeRecorder
	logger   core.ILogger
	metrics  *telemetry.MetricsHolder

	ctx context.Context
	now func() time.Time

	state           core.StrategyState
	leg1Filled      decimal.Decimal
	leg2Filled      decimal.Decimal
	position        decimal.Decimal
	activeOrderID   string
	activeOrderTime time.Time
	chaseRetries    int
	lastCum         map[string]decimal.Decimal

	episodeStart time.Time
}

// NewMachine wires the machine. recorder may be nil.
func NewMachine(cfg Config, board *market.Board, cex, dex core.VenueClient,
	pool *concurrency.WorkerPool, recorder core.TradeRecorder, logger core.ILogger) *Machine {
	return &Machine{
		cfg:      cfg,
		board:    board,
		cex:      cex,
		dex:      dex,
		pool:     pool,
		recorder: recorder,
		logger:   logger,
		metrics:  telemetry.GetGlobalMetrics(),
		ctx:      context.Background(),
		now:      time.Now,
		state:    core.StateOpenCondition,
		lastCum:  make(map[string]decimal.Decimal),
	}
}

// Start installs the context used to bound venue calls.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
}

// State returns the current strategy state.
func (m *Machine) State() core.StrategyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Position returns the net DEX-leg position.
func (m *Machine) Position() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// SetInitialState seeds the machine from reconciled venue state.
func (m *Machine) SetInitialState(state core.StrategyState, position decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = position
	m.setState(state)
	m.metrics.SetPositionSize(m.cfg.DEXSymbol, position.InexactFloat64())
	m.logger.Info("Machine initialized", "state", state.String(), "position", position)
}

// CheckAndExecuteOpen evaluates the entry signal and, when it holds, places
// the Leg-1 maker BUY on the DEX at its current bid.
func (m *Machine) CheckAndExecuteOpen(signal func() bool) {
	if m.State() != core.StateOpenCondition {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != core.StateOpenCondition {
		return
	}
	if signal == nil || !signal() {
		return
	}

	price, ok := m.board.GetPrice(core.VenueDEX, market.Bid)
	if !ok {
		m.logger.Warn("Entry signal without a usable bid, skipping")
		return
	}

	priceRounded := core.RoundHalfUp(price, m.cfg.DEXPricePrecision)
	qty := core.RoundHalfUp(m.cfg.BaseQuantity, m.cfg.DEXQtyPrecision)
	if !qty.IsPositive() {
		m.logger.Error("Base quantity rounds to zero", "base_quantity", m.cfg.BaseQuantity)
		return
	}

	orderID, err := m.placeOrder(m.dex, &core.OrderRequest{
		Symbol:      m.cfg.DEXSymbol,
		Side:        core.SideBuy,
		Type:        core.OrderTypeLimit,
		TimeInForce: core.TimeInForceGTC,
		Quantity:    qty,
		Price:       priceRounded,
	})
	if err != nil {
		m.logger.Error("Entry placement failed", "error", err)
		return
	}

	m.activeOrderID = orderID
	m.activeOrderTime = m.now()
	m.leg1Filled = decimal.Zero
	m.lastCum[orderID] = decimal.Zero
	m.episodeStart = m.now()
	m.metrics.IncOrdersPlaced(m.ctx, string(core.VenueDEX), "limit")
	m.setState(core.StateOpenLeg1Waiting)
	m.logger.Info("Entry order placed", "order_id", orderID, "price", priceRounded, "qty", qty)
}

// CheckAndExecuteClose evaluates the exit signal and, when it holds, places
// the Leg-1 maker SELL on the DEX at its current ask for the whole position.
func (m *Machine) CheckAndExecuteClose(signal func() bool) {
	if m.State() != core.StateCloseCondition {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != core.StateCloseCondition {
		return
	}
	if m.position.LessThanOrEqual(core.Epsilon) {
		return
	}
	if signal == nil || !signal() {
		return
	}

	price, ok := m.board.GetPrice(core.VenueDEX, market.Ask)
	if !ok {
		m.logger.Warn("Exit signal without a usable ask, skipping")
		return
	}

	priceRounded := core.RoundHalfUp(price, m.cfg.DEXPricePrecision)
	qty := core.RoundHalfUp(m.position, m.cfg.DEXQtyPrecision)
	if !qty.IsPositive() {
		m.logger.Error("Position rounds to zero", "position", m.position)
		return
	}

	orderID, err := m.placeOrder(m.dex, &core.OrderRequest{
		Symbol:      m.cfg.DEXSymbol,
		Side:        core.SideSell,
		Type:        core.OrderTypeLimit,
		TimeInForce: core.TimeInForceGTC,
		Quantity:    qty,
		Price:       priceRounded,
	})
	if err != nil {
		m.logger.Error("Exit placement failed", "error", err)
		return
	}

	m.activeOrderID = orderID
	m.activeOrderTime = m.now()
	m.leg1Filled = decimal.Zero
	m.lastCum[orderID] = decimal.Zero
	m.episodeStart = m.now()
	m.metrics.IncOrdersPlaced(m.ctx, string(core.VenueDEX), "limit")
	m.setState(core.StateCloseLeg1Waiting)
	m.logger.Info("Exit order placed", "order_id", orderID, "price", priceRounded, "qty", qty)
}

// OnOrderUpdate feeds a venue order update through the normalizer and into
// the state machine.
func (m *Machine) OnOrderUpdate(update core.OrderUpdate) {
	ev, ok := NormalizeUpdate(update)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handleEvent(ev)
}

// OnTick is the periodic timeout sweep. Leg-1 timeouts transition to the
// canceling state; leg-2 timeouts cancel and let the terminal event drive
// the next chase step. A failed chase placement is re-attempted here once
// its own timeout passes.
func (m *Machine) OnTick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if m.activeOrderID == "" {
		if m.state.IsLeg2() && !m.activeOrderTime.IsZero() &&
			now.Sub(m.activeOrderTime) > m.cfg.OrderTimeout {
			m.retryChasePlacement()
		}
		return
	}

	if now.Sub(m.activeOrderTime) <= m.cfg.OrderTimeout {
		return
	}

	switch m.state {
	case core.StateOpenLeg1Waiting:
		m.logger.Warn("Leg1 order timed out, canceling", "order_id", m.activeOrderID)
		m.setState(core.StateOpenLeg1Canceling)
		m.dispatchCancel(m.dex, m.cfg.DEXSymbol, m.activeOrderID)

	case core.StateCloseLeg1Waiting:
		m.logger.Warn("Close Leg1 order timed out, canceling", "order_id", m.activeOrderID)
		m.setState(core.StateCloseLeg1Canceling)
		m.dispatchCancel(m.dex, m.cfg.DEXSymbol, m.activeOrderID)

	case core.StateOpenLeg1Canceling, core.StateCloseLeg1Canceling:
		// The earlier cancel may have been lost; retry until a terminal
		// event lands.
		m.dispatchCancel(m.dex, m.cfg.DEXSymbol, m.activeOrderID)

	case core.StateOpenLeg2Waiting, core.StateOpenLeg2Chasing,
		core.StateCloseLeg2Waiting, core.StateCloseLeg2Chasing:
		m.logger.Warn("Leg2 order timed out, canceling", "order_id", m.activeOrderID)
		m.dispatchCancel(m.cex, m.cfg.CEXSymbol, m.activeOrderID)
	}
}

// handleEvent applies one normalized terminal event. Caller holds the mutex.
func (m *Machine) handleEvent(ev core.OrderEvent) {
	if ev.OrderID == "" || m.activeOrderID == "" {
		return
	}
	if ev.OrderID != m.activeOrderID {
		m.logger.Debug("Ignoring event for inactive order",
			"order_id", ev.OrderID, "active_order_id", m.activeOrderID)
		return
	}

	inc := ev.CumQty.Sub(m.lastCum[ev.OrderID])
	if inc.IsNegative() {
		inc = decimal.Zero
	}
	// One terminal event per order; the entry has served its purpose.
	delete(m.lastCum, ev.OrderID)

	m.logger.Info("Order event",
		"state", m.state.String(), "event", string(ev.Type),
		"cum", ev.CumQty, "inc", inc)

	if ev.Type == core.EventAllFilled {
		m.metrics.IncOrdersFilled(m.ctx, string(ev.Venue))
	}

	switch m.state {
	case core.StateOpenLeg1Waiting:
		m.handleOpenLeg1Waiting(ev, inc)
	case core.StateOpenLeg1Canceling:
		m.handleOpenLeg1Canceling(ev, inc)
	case core.StateOpenLeg2Waiting, core.StateOpenLeg2Chasing:
		m.handleLeg2(episodeOpen, ev, inc)
	case core.StateCloseLeg1Waiting:
		m.handleCloseLeg1Waiting(ev, inc)
	case core.StateCloseLeg1Canceling:
		m.handleCloseLeg1Canceling(ev, inc)
	case core.StateCloseLeg2Waiting, core.StateCloseLeg2Chasing:
		m.handleLeg2(episodeClose, ev, inc)
	}

	m.recordFill(ev, inc)
	m.metrics.SetPositionSize(m.cfg.DEXSymbol, m.position.InexactFloat64())
}

func (m *Machine) handleOpenLeg1Waiting(ev core.OrderEvent, inc decimal.Decimal) {
	switch ev.Type {
	case core.EventAllFilled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Add(inc)
		m.startLeg2(episodeOpen, true, m.leg1Filled)

	case core.EventPartialFilledCanceled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Add(inc)
		m.setState(core.StateOpenLeg1Canceling)
		m.dispatchCancel(m.dex, m.cfg.DEXSymbol, ev.OrderID)
		m.startLeg2(episodeOpen, true, m.leg1Filled)

	case core.EventAllCanceled:
		// The venue killed the order on its own; nothing filled.
		m.activeOrderID = ""
		m.setState(core.StateOpenCondition)
	}
}

func (m *Machine) handleOpenLeg1Canceling(ev core.OrderEvent, inc decimal.Decimal) {
	switch ev.Type {
	case core.EventAllCanceled:
		if m.leg1Filled.IsZero() {
			m.setState(core.StateOpenCondition)
		} else {
			m.logger.Warn("Cancel confirmed with fills already hedged elsewhere",
				"leg1_filled", m.leg1Filled)
		}
		m.activeOrderID = ""

	case core.EventAllFilled:
		// Cancel raced a full fill. Hedge everything, keep the chase budget.
		m.leg1Filled = ev.CumQty
		m.position = m.position.Add(inc)
		m.startLeg2(episodeOpen, false, m.leg1Filled)

	case core.EventPartialFilledCanceled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Add(inc)
		m.startLeg2(episodeOpen, true, m.leg1Filled)
	}
}

func (m *Machine) handleCloseLeg1Waiting(ev core.OrderEvent, inc decimal.Decimal) {
	switch ev.Type {
	case core.EventAllFilled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Sub(inc)
		m.startLeg2(episodeClose, true, m.leg1Filled)

	case core.EventPartialFilledCanceled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Sub(inc)
		m.setState(core.StateCloseLeg1Canceling)
		m.dispatchCancel(m.dex, m.cfg.DEXSymbol, ev.OrderID)
		m.startLeg2(episodeClose, true, m.leg1Filled)

	case core.EventAllCanceled:
		m.activeOrderID = ""
		m.transitionAfterClose()
	}
}

func (m *Machine) handleCloseLeg1Canceling(ev core.OrderEvent, inc decimal.Decimal) {
	switch ev.Type {
	case core.EventAllCanceled:
		m.activeOrderID = ""
		m.transitionAfterClose()

	case core.EventAllFilled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Sub(inc)
		m.startLeg2(episodeClose, false, m.leg1Filled)

	case core.EventPartialFilledCanceled:
		m.leg1Filled = ev.CumQty
		m.position = m.position.Sub(inc)
		m.startLeg2(episodeClose, true, m.leg1Filled)
	}
}

// handleLeg2 advances the hedge leg. Progress accumulates through the
// cum-delta so a chase spanning several orders accounts correctly.
func (m *Machine) handleLeg2(kind string, ev core.OrderEvent, inc decimal.Decimal) {
	m.leg2Filled = m.leg2Filled.Add(inc)

	target := m.leg1Filled
	remaining := target.Sub(m.leg2Filled)

	if remaining.LessThanOrEqual(core.Epsilon) {
		m.completeEpisode(kind)
		return
	}
	if !core.RoundHalfUp(remaining, m.cfg.CEXQtyPrecision).IsPositive() {
		m.logger.Warn("Hedge remainder below venue precision, treating as complete",
			"remaining", remaining)
		m.completeEpisode(kind)
		return
	}

	side := core.SideSell
	chasing := core.StateOpenLeg2Chasing
	if kind == episodeClose {
		side = core.SideBuy
		chasing = core.StateCloseLeg2Chasing
	}
	m.setState(chasing)
	m.executeLeg2Step(side, remaining)
}

// startLeg2 launches the hedge leg. An initial launch resets the chase
// budget and leg-2 progress; a launch from a cancel/fill race keeps both.
func (m *Machine) startLeg2(kind string, initial bool, qty decimal.Decimal) {
	side := core.SideSell
	waiting := core.StateOpenLeg2Waiting
	chasing := core.StateOpenLeg2Chasing
	if kind == episodeClose {
		side = core.SideBuy
		waiting = core.StateCloseLeg2Waiting
		chasing = core.StateCloseLeg2Chasing
	}

	if initial {
		m.chaseRetries = 0
		m.leg2Filled = decimal.Zero
		m.setState(waiting)
	} else {
		m.setState(chasing)
	}

	m.executeLeg2Step(side, qty)
}

// executeLeg2Step places one hedge order on the CEX: a limit stepped
// 0.1%/0.2%/0.3% through the book for the first attempts, then market. A
// missing board price also falls back to market. Caller holds the mutex.
func (m *Machine) executeLeg2Step(side core.Side, qty decimal.Decimal) {
	qtyRounded := core.RoundHalfUp(qty, m.cfg.CEXQtyPrecision)
	if !qtyRounded.IsPositive() {
		m.logger.Error("Chase quantity rounds to zero", "qty", qty)
		return
	}

	req := &core.OrderRequest{
		Symbol:   m.cfg.CEXSymbol,
		Side:     side,
		Quantity: qtyRounded,
	}

	boardSide := market.Bid
	if side == core.SideBuy {
		boardSide = market.Ask
	}
	marketPrice, priceOK := m.board.GetPrice(core.VenueCEX, boardSide)

	kind := "market"
	switch {
	case !priceOK:
		m.logger.Warn("No fresh hedge price, using market order")
		req.Type = core.OrderTypeMarket

	case m.chaseRetries < m.cfg.MaxChaseRetries:
		adj := m.cfg.ChaseStep.Mul(decimal.NewFromInt(int64(m.chaseRetries + 1)))
		factor := decimal.NewFromInt(1).Sub(adj)
		if side == core.SideBuy {
			factor = decimal.NewFromInt(1).Add(adj)
		}
		req.Type = core.OrderTypeLimit
		req.TimeInForce = core.TimeInForceGTC
		req.Price = core.RoundHalfUp(marketPrice.Mul(factor), m.cfg.CEXPricePrecision)
		kind = "limit"
		m.logger.Info("Chase limit",
			"attempt", m.chaseRetries+1, "side", string(side),
			"price", req.Price, "base", marketPrice, "qty", qtyRounded)

	default:
		req.Type = core.OrderTypeMarket
		m.logger.Info("Chase market",
			"attempt", m.chaseRetries+1, "side", string(side), "qty", qtyRounded)
	}

	orderID, err := m.placeOrder(m.cex, req)
	if err != nil {
		m.logger.Error("Chase placement failed", "error", err)
		// Leave the state alone; the tick loop re-attempts after the
		// order timeout.
		m.activeOrderID = ""
		m.activeOrderTime = m.now()
		return
	}

	m.activeOrderID = orderID
	m.activeOrderTime = m.now()
	m.chaseRetries++
	m.lastCum[orderID] = decimal.Zero
	m.metrics.IncOrdersPlaced(m.ctx, string(core.VenueCEX), kind)
	m.logger.Info("Chase order placed", "order_id", orderID)
}

// retryChasePlacement re-runs the pending chase step after a placement
// failure. Caller holds the mutex.
func (m *Machine) retryChasePlacement() {
	kind := episodeClose
	side := core.SideBuy
	if m.state.IsOpenSequence() {
		kind = episodeOpen
		side = core.SideSell
	}

	remaining := m.leg1Filled.Sub(m.leg2Filled)
	if remaining.LessThanOrEqual(core.Epsilon) ||
		!core.RoundHalfUp(remaining, m.cfg.CEXQtyPrecision).IsPositive() {
		m.completeEpisode(kind)
		return
	}

	m.logger.Warn("Re-attempting hedge placement", "remaining", remaining)
	m.executeLeg2Step(side, remaining)
}

// completeEpisode resets per-episode context and returns to a condition
// state. Caller holds the mutex.
func (m *Machine) completeEpisode(kind string) {
	m.metrics.RecordChaseDepth(m.ctx, m.chaseRetries)
	if m.recorder != nil {
		m.recorder.RecordEpisode(core.EpisodeRecord{
			Kind:      kind,
			StartedAt: m.episodeStart,
			EndedAt:   m.now(),
			Quantity:  m.leg1Filled,
		})
	}

	m.activeOrderID = ""
	m.leg1Filled = decimal.Zero
	m.leg2Filled = decimal.Zero
	m.chaseRetries = 0

	if kind == episodeOpen {
		m.setState(core.StateCloseCondition)
	} else {
		m.transitionAfterClose()
	}

	m.logger.Info("Hedge complete", "kind", kind, "position", m.position)
}

// transitionAfterClose picks the condition state from the residual position.
func (m *Machine) transitionAfterClose() {
	if m.position.LessThanOrEqual(core.Epsilon) {
		m.setState(core.StateOpenCondition)
	} else {
		m.setState(core.StateCloseCondition)
	}
}

// placeOrder runs the REST placement with a bounded context. An empty order
// id from the venue counts as failure.
func (m *Machine) placeOrder(client core.VenueClient, req *core.OrderRequest) (string, error) {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.OrderTimeout)
	defer cancel()
	return client.PlaceOrder(ctx, req)
}

// dispatchCancel fires the cancel on the worker pool so the REST round-trip
// never holds the machine mutex.
func (m *Machine) dispatchCancel(client core.VenueClient, symbol, orderID string) {
	m.metrics.IncCancels(m.ctx, string(client.Name()))

	err := m.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.OrderTimeout)
		defer cancel()
		if cerr := client.CancelOrder(ctx, symbol, orderID); cerr != nil {
			m.logger.Warn("Cancel failed",
				"venue", string(client.Name()), "order_id", orderID, "error", cerr)
		}
	})
	if err != nil {
		m.logger.Error("Cancel dispatch rejected", "order_id", orderID, "error", err)
	}
}

func (m *Machine) recordFill(ev core.OrderEvent, inc decimal.Decimal) {
	if m.recorder == nil {
		return
	}

	symbol := m.cfg.CEXSymbol
	if ev.Venue == core.VenueDEX {
		symbol = m.cfg.DEXSymbol
	}
	m.recorder.RecordFill(core.FillRecord{
		Time:     m.now(),
		Venue:    ev.Venue,
		Symbol:   symbol,
		OrderID:  ev.OrderID,
		Event:    ev.Type,
		CumQty:   ev.CumQty,
		IncQty:   inc,
		Position: m.position,
	})
}

func (m *Machine) setState(s core.StrategyState) {
	m.state = s
	m.metrics.SetMachineState(int64(s))
	m.logger.Info("State transition", "state", s.String())
}
