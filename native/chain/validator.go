package chain

// ValidateSteps enforces the structural constraints on a step plan before any
// state is created: 1 to MaxChainSteps steps, every kind known, and no step
// kind appearing more than once anywhere in the plan. A repeated kind is
// rejected as a cycle regardless of position.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 || len(steps) > MaxChainSteps {
		return ErrTooManySteps
	}
	var seen [StepArbitrage + 1]bool
	for _, step := range steps {
		if !step.Valid() {
			return errInvalidStepKind
		}
		if seen[step] {
			return ErrChainCycle
		}
		seen[step] = true
	}
	return nil
}
