package chain

import (
	"errors"
	"fmt"
)

var (
	errNilState            = errors.New("chain engine: state not configured")
	ErrTooManySteps        = errors.New("chain engine: step count must be between 1 and 5")
	ErrChainCycle          = errors.New("chain engine: step kind repeated within plan")
	ErrExceedsVerseLimit   = errors.New("chain engine: verse coverage limit exceeded")
	ErrChainNotFound       = errors.New("chain engine: chain not found")
	ErrChainExists         = errors.New("chain engine: active chain already exists for verse and principal")
	ErrAlreadyUnwound      = errors.New("chain engine: chain already unwound")
	ErrInvalidChainStatus  = errors.New("chain engine: operation not permitted in current chain status")
	ErrInvalidDeposit      = errors.New("chain engine: deposit must be positive")
	ErrInsufficientBalance = errors.New("chain engine: insufficient balance for deposit")
	ErrVerseNotFound       = errors.New("chain engine: verse not configured")
	ErrExposureReserved    = errors.New("chain engine: exposure already reserved for chain")
	errSubProtocolMissing  = errors.New("chain engine: no sub-protocol registered for step kind")
	errInvalidStepKind     = errors.New("chain engine: invalid step kind")
)

// StepExecutionError reports a sub-protocol failure at a specific position in
// the plan. Reversal is true when the failure happened while unwinding. The
// chain state reflects only the steps that durably succeeded.
type StepExecutionError struct {
	Index    int
	Kind     Step
	Reversal bool
	Err      error
}

func (e *StepExecutionError) Error() string {
	op := "apply"
	if e.Reversal {
		op = "reverse"
	}
	return fmt.Sprintf("chain engine: %s step %d (%s): %v", op, e.Index, e.Kind, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }
