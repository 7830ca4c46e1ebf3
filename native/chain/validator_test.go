package chain

import (
	"errors"
	"testing"
)

func TestValidateStepsCountBounds(t *testing.T) {
	if err := ValidateSteps(nil); !errors.Is(err, ErrTooManySteps) {
		t.Fatalf("expected ErrTooManySteps for empty plan, got %v", err)
	}
	six := []Step{StepBorrow, StepLiquidity, StepStake, StepArbitrage, StepBorrow, StepLiquidity}
	if err := ValidateSteps(six); !errors.Is(err, ErrTooManySteps) {
		t.Fatalf("expected ErrTooManySteps for six steps, got %v", err)
	}
}

func TestValidateStepsCycleAnywhere(t *testing.T) {
	// The conservative rule: repetition anywhere in the plan, not only
	// adjacent repeats.
	plans := [][]Step{
		{StepBorrow, StepBorrow},
		{StepBorrow, StepStake, StepBorrow},
		{StepLiquidity, StepStake, StepArbitrage, StepLiquidity},
	}
	for _, plan := range plans {
		if err := ValidateSteps(plan); !errors.Is(err, ErrChainCycle) {
			t.Fatalf("expected ErrChainCycle for %v, got %v", plan, err)
		}
	}
}

func TestValidateStepsAccepts(t *testing.T) {
	plans := [][]Step{
		{StepBorrow},
		{StepBorrow, StepLiquidity},
		{StepBorrow, StepLiquidity, StepStake},
		{StepBorrow, StepLiquidity, StepStake, StepArbitrage},
	}
	for _, plan := range plans {
		if err := ValidateSteps(plan); err != nil {
			t.Fatalf("expected plan %v to validate, got %v", plan, err)
		}
	}
}

func TestValidateStepsRejectsUnknownKind(t *testing.T) {
	if err := ValidateSteps([]Step{Step(99)}); !errors.Is(err, errInvalidStepKind) {
		t.Fatalf("expected invalid step kind error, got %v", err)
	}
}
