// Package reconcile verifies that venue state matches something the
// strategy machine can safely resume from. Anything it cannot explain is a
// refusal to start: single-sided residue is never auto-hedged.
package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
	"cross_arb/pkg/apperrors"
	"cross_arb/pkg/retry"
)

// Result is the reconciled starting point for the machine.
type Result struct {
	State    core.StrategyState
	Position decimal.Decimal
}

// Reconciler queries both venues at startup and decides the initial state.
type Reconciler struct {
	cex       core.VenueClient
	dex       core.VenueClient
	cexSymbol string
	dexSymbol string
	logger    core.ILogger
}

// New creates the reconciler.
func New(cex, dex core.VenueClient, cexSymbol, dexSymbol string, logger core.ILogger) *Reconciler {
	return &Reconciler{
		cex:       cex,
		dex:       dex,
		cexSymbol: cexSymbol,
		dexSymbol: dexSymbol,
		logger:    logger.WithField("component", "reconciler"),
	}
}

// Reconcile reports balances, queries both positions with transient-error
// retry, and applies the decision matrix:
//
//	flat / flat                      → OpenCondition, position 0
//	CEX short / DEX long, sizes match → CloseCondition, position |DEX size|
//	anything else                     → ErrPositionMismatch
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	r.reportBalance(ctx, r.cex)
	r.reportBalance(ctx, r.dex)

	cexPos, err := r.queryPosition(ctx, r.cex, r.cexSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s position: %w", r.cex.Name(), err)
	}
	dexPos, err := r.queryPosition(ctx, r.dex, r.dexSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s position: %w", r.dex.Name(), err)
	}

	r.logger.Info("Venue positions",
		"cex", positionString(cexPos), "dex", positionString(dexPos))

	switch {
	case cexPos.IsFlat() && dexPos.IsFlat():
		r.logger.Info("Both venues flat, starting fresh")
		return &Result{State: core.StateOpenCondition, Position: decimal.Zero}, nil

	case cexPos.IsShort() && dexPos.IsLong():
		cexSize := cexPos.Size.Abs()
		dexSize := dexPos.Size.Abs()
		if !core.WithinEpsilon(cexSize, dexSize) {
			return nil, fmt.Errorf("%w: hedge sizes diverge (cex %s, dex %s)",
				apperrors.ErrPositionMismatch, cexPos.Size, dexPos.Size)
		}
		r.logger.Info("Hedged position found, resuming close side", "position", dexSize)
		return &Result{State: core.StateCloseCondition, Position: dexSize}, nil

	default:
		return nil, fmt.Errorf("%w: cex %s, dex %s",
			apperrors.ErrPositionMismatch, positionString(cexPos), positionString(dexPos))
	}
}

// reportBalance logs the venue balance. Failures are logged and tolerated;
// the balance report is informational.
func (r *Reconciler) reportBalance(ctx context.Context, client core.VenueClient) {
	balance, err := client.Balance(ctx)
	if err != nil {
		r.logger.Warn("Balance query failed", "venue", string(client.Name()), "error", err)
		return
	}
	r.logger.Info("Venue balance",
		"venue", string(client.Name()), "asset", balance.Asset,
		"total", balance.Total, "available", balance.Available, "locked", balance.Locked)
}

func (r *Reconciler) queryPosition(ctx context.Context, client core.VenueClient, symbol string) (*core.PositionInfo, error) {
	var pos *core.PositionInfo
	err := retry.Do(ctx, retry.DefaultPolicy, retry.Always, func() error {
		p, perr := client.Position(ctx, symbol)
		if perr != nil {
			return perr
		}
		pos = p
		return nil
	})
	return pos, err
}

func positionString(p *core.PositionInfo) string {
	if p.IsFlat() {
		return "flat"
	}
	side := "LONG"
	if p.IsShort() {
		side = "SHORT"
	}
	return fmt.Sprintf("%s %s", side, p.Size.Abs())
}
