// Package strategy defines the Strategy contract: consume BAR events,
// maintain indicator state, emit SIGNAL events.
package strategy

import "quantforge/domain"

// Strategy consumes bars for one or more symbols and emits signals. A
// Strategy must not inspect or mutate positions or cash.
type Strategy interface {
	// ID is the strategy's stable identifier, stamped onto every signal it
	// emits as Signal.StrategyID.
	ID() string

	// OnBar updates indicator state for bar.Symbol and returns zero or more
	// signals. A strategy SHALL NOT return more than one signal per bar per
	// symbol.
	OnBar(bar domain.Bar) ([]domain.Signal, error)

	// Reset clears all indicator buffers and per-run state. Idempotent.
	Reset()

	// Parameters enumerates configurable parameters with their current
	// values.
	Parameters() map[string]ParamValue
}

// ParamKind discriminates the value held by a ParamValue.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamString
)

// ParamValue is a tagged union over a strategy parameter's value, used in
// place of map[string]interface{} so callers don't need type assertions.
type ParamValue struct {
	Kind  ParamKind
	Int   int64
	Float float64
	Str   string
}

func IntParam(v int64) ParamValue      { return ParamValue{Kind: ParamInt, Int: v} }
func FloatParam(v float64) ParamValue  { return ParamValue{Kind: ParamFloat, Float: v} }
func StringParam(v string) ParamValue  { return ParamValue{Kind: ParamString, Str: v} }
