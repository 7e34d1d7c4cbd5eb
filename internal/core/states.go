package core

// StrategyState is the strategy machine's state. The open sequence buys the
// DEX leg and hedges short on the CEX; the close sequence mirrors it.
type StrategyState int

const (
	// StateOpenCondition searches for an entry signal.
	StateOpenCondition StrategyState = iota
	// StateOpenLeg1Waiting has a resting maker BUY on the DEX.
	StateOpenLeg1Waiting
	// StateOpenLeg1Canceling has issued a cancel for the Leg-1 order.
	StateOpenLeg1Canceling
	// StateOpenLeg2Waiting has the first hedge SELL resting on the CEX.
	StateOpenLeg2Waiting
	// StateOpenLeg2Chasing is re-pricing the hedge after a cancel or partial.
	StateOpenLeg2Chasing
	// StateCloseCondition holds a hedged position and searches for an exit.
	StateCloseCondition
	// StateCloseLeg1Waiting has a resting maker SELL on the DEX.
	StateCloseLeg1Waiting
	// StateCloseLeg1Canceling has issued a cancel for the close Leg-1 order.
	StateCloseLeg1Canceling
	// StateCloseLeg2Waiting has the buy-back resting on the CEX.
	StateCloseLeg2Waiting
	// StateCloseLeg2Chasing is re-pricing the buy-back.
	StateCloseLeg2Chasing
)

var stateNames = map[StrategyState]string{
	StateOpenCondition:      "OpenCondition",
	StateOpenLeg1Waiting:    "OpenLeg1Waiting",
	StateOpenLeg1Canceling:  "OpenLeg1Canceling",
	StateOpenLeg2Waiting:    "OpenLeg2Waiting",
	StateOpenLeg2Chasing:    "OpenLeg2Chasing",
	StateCloseCondition:     "CloseCondition",
	StateCloseLeg1Waiting:   "CloseLeg1Waiting",
	StateCloseLeg1Canceling: "CloseLeg1Canceling",
	StateCloseLeg2Waiting:   "CloseLeg2Waiting",
	StateCloseLeg2Chasing:   "CloseLeg2Chasing",
}

func (s StrategyState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// HasActiveOrder reports whether the state implies a live order on a venue.
// The machine's active order id is non-empty exactly in these states.
func (s StrategyState) HasActiveOrder() bool {
	switch s {
	case StateOpenLeg1Waiting, StateOpenLeg1Canceling,
		StateOpenLeg2Waiting, StateOpenLeg2Chasing,
		StateCloseLeg1Waiting, StateCloseLeg1Canceling,
		StateCloseLeg2Waiting, StateCloseLeg2Chasing:
		return true
	default:
		return false
	}
}

// IsLeg1 reports whether the state belongs to a Leg-1 phase (DEX order live)
func (s StrategyState) IsLeg1() bool {
	switch s {
	case StateOpenLeg1Waiting, StateOpenLeg1Canceling,
		StateCloseLeg1Waiting, StateCloseLeg1Canceling:
		return true
	default:
		return false
	}
}

// IsLeg2 reports whether the state belongs to a Leg-2 phase (CEX order live
// or being re-priced)
func (s StrategyState) IsLeg2() bool {
	switch s {
	case StateOpenLeg2Waiting, StateOpenLeg2Chasing,
		StateCloseLeg2Waiting, StateCloseLeg2Chasing:
		return true
	default:
		return false
	}
}

// IsOpenSequence reports whether the state is part of the open sequence
func (s StrategyState) IsOpenSequence() bool {
	switch s {
	case StateOpenCondition, StateOpenLeg1Waiting, StateOpenLeg1Canceling,
		StateOpenLeg2Waiting, StateOpenLeg2Chasing:
		return true
	default:
		return false
	}
}
