package risk

import (
	"fmt"
	"strings"
)

// ViolationCode is a machine-readable identifier for a specific breach,
// recorded alongside a rejected signal rather than silently dropping it.
type ViolationCode string

const (
	ViolationMaxPositionsReached ViolationCode = "MAX_POSITIONS_REACHED"
	ViolationDrawdownHalt        ViolationCode = "DRAWDOWN_HALT"
	ViolationZeroQuantity        ViolationCode = "ZERO_QUANTITY"
	ViolationNoStopInput         ViolationCode = "NO_STOP_INPUT"
)

// Violation describes why a signal did not result in an order.
type Violation struct {
	Code    ViolationCode
	Symbol  string
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("risk violation [%s] %s: %s", v.Code, v.Symbol, v.Message)
}

// Violations is a slice of Violation that also satisfies the error interface.
type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, " | ")
}

func (vs Violations) IsEmpty() bool { return len(vs) == 0 }
