package strategy

import (
	"strconv"

	"quantforge/domain"
)

// symbolState tracks the per-symbol bookkeeping every builtin strategy
// needs: how many bars have been observed (for warm-up), the direction of
// the last emitted signal (for suppression), and a monotonically increasing
// crossover index used to build stable rule IDs.
type symbolState struct {
	barCount      int
	lastDirection domain.SignalDirection
	crossoverIdx  int
	active        bool
}

// WarmupTracker implements the shared warm-up-and-suppression bookkeeping
// common to indicator-driven strategies, so each builtin strategy only has
// to supply its own indicator math. Embed it in a strategy and call its
// methods from OnBar.
type WarmupTracker struct {
	window int // W: minimum bars required before the first signal
	states map[string]*symbolState
}

// NewWarmupTracker builds a tracker requiring window+1 bars before a symbol
// may emit its first signal.
func NewWarmupTracker(window int) *WarmupTracker {
	return &WarmupTracker{window: window, states: make(map[string]*symbolState)}
}

// Reset clears all per-symbol state.
func (w *WarmupTracker) Reset() {
	w.states = make(map[string]*symbolState)
}

// Observe records that a bar was seen for symbol and returns whether the
// strategy is now warmed up for it (at least window+1 bars observed).
func (w *WarmupTracker) Observe(symbol string) bool {
	st := w.stateFor(symbol)
	st.barCount++
	return st.barCount >= w.window+1
}

// RuleID builds a stable rule_id of the form "<symbol>/<direction>/<index>"
// and returns whether emission is allowed: a strategy suppresses repeat
// signals in the same direction while the previous one remains active, and
// bumps the crossover index whenever the direction actually changes.
func (w *WarmupTracker) RuleID(symbol string, direction domain.SignalDirection) (ruleID string, allow bool) {
	st := w.stateFor(symbol)
	if st.active && st.lastDirection == direction {
		return "", false
	}
	st.crossoverIdx++
	st.active = true
	st.lastDirection = direction
	return formatRuleID(symbol, direction, st.crossoverIdx), true
}

// Flatten marks symbol as having no active signal, so the next signal in
// either direction is allowed regardless of the previous direction.
func (w *WarmupTracker) Flatten(symbol string) {
	st := w.stateFor(symbol)
	st.active = false
}

func (w *WarmupTracker) stateFor(symbol string) *symbolState {
	st, ok := w.states[symbol]
	if !ok {
		st = &symbolState{}
		w.states[symbol] = st
	}
	return st
}

func formatRuleID(symbol string, direction domain.SignalDirection, idx int) string {
	return symbol + "/" + string(direction) + "/" + strconv.Itoa(idx)
}
