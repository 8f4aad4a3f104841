// Package apperr defines the error taxonomy used across the backtest engine:
// configuration errors, data errors, pipeline contract violations, handler
// panics, end-of-run invariant violations, and optimizer worker timeouts.
// Every fallible core operation returns either a nil error or one that
// Is/As-unwraps to an *Error so callers can branch on Kind without string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the CLI should react to it: which exit
// code to use and whether it is safe to keep going.
type Kind int

const (
	// KindConfig: missing section, bad enum value, contradictory options.
	// Fatal before run start.
	KindConfig Kind = iota
	// KindData: malformed row, non-monotonic timestamps, empty split.
	// Fatal for the affected run only.
	KindData
	// KindContractViolation: FILL with unknown order_id, CLOSE without an
	// open position. Logged, event dropped, run continues as inconsistent.
	KindContractViolation
	// KindHandlerPanic: unexpected failure inside a handler. Isolated per
	// handler; run continues.
	KindHandlerPanic
	// KindInvariant: PnL/equity mismatch or open positions survive a forced
	// close. Surfaced as consistency=false, not fatal.
	KindInvariant
	// KindTimeout: optimizer per-combination wall clock exceeded.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindData:
		return "data"
	case KindContractViolation:
		return "contract_violation"
	case KindHandlerPanic:
		return "handler_panic"
	case KindInvariant:
		return "invariant"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified, wrapped error. Op names the operation that failed
// (e.g. "broker.Fill", "coordinator.Run") for log correlation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err does not
// wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Log is a run's error log: every recorded entry (what failed, where) in
// order, plus how many times each (op, kind) pair has been seen (for "first
// few instances" summarization).
type Log struct {
	entries []LogEntry
	counts  map[string]int
}

// LogEntry is a single recorded failure.
type LogEntry struct {
	Kind    Kind
	Op      string
	Message string
}

// NewLog creates an empty run-scoped error log.
func NewLog() *Log {
	return &Log{counts: make(map[string]int)}
}

// Record appends err to the log, classifying it if possible.
func (l *Log) Record(op string, err error) {
	if err == nil {
		return
	}
	kind := KindContractViolation
	if k, ok := KindOf(err); ok {
		kind = k
	}
	entry := LogEntry{Kind: kind, Op: op, Message: err.Error()}
	l.entries = append(l.entries, entry)
	l.counts[entry.Op+"|"+entry.Kind.String()]++
}

// Entries returns all recorded entries in insertion order.
func (l *Log) Entries() []LogEntry {
	if l == nil {
		return nil
	}
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how many times (op, kind) has been recorded.
func (l *Log) Count(op string, kind Kind) int {
	if l == nil {
		return 0
	}
	return l.counts[op+"|"+kind.String()]
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// IsEmpty reports whether no errors have been recorded.
func (l *Log) IsEmpty() bool { return l.Len() == 0 }
