package chain

import "math/big"

// Multiplicative leverage factor per step kind, in basis points. These are
// calibration constants shared with the sub-protocol modules: each module's
// output amount must equal its input scaled by the same factor, so that
// CurrentValue == Deposit * EffectiveLeverage holds after every step.
const (
	BorrowMultiplierBps    uint64 = 15_000 // 1.5x
	LiquidityMultiplierBps uint64 = 12_000 // 1.2x
	StakeMultiplierBps     uint64 = 11_000 // 1.1x
	ArbitrageMultiplierBps uint64 = 10_500 // 1.05x
)

// StepMultiplierBps returns the leverage factor contributed by a step kind.
func StepMultiplierBps(step Step) uint64 {
	switch step {
	case StepBorrow:
		return BorrowMultiplierBps
	case StepLiquidity:
		return LiquidityMultiplierBps
	case StepStake:
		return StakeMultiplierBps
	case StepArbitrage:
		return ArbitrageMultiplierBps
	default:
		return 10_000
	}
}

// Leverage computes the effective leverage multiple for a step sequence as a
// 1e18-scaled fixed-point value. Factors compound multiplicatively; the empty
// prefix yields exactly 1.0. Deterministic and monotonically non-decreasing
// in prefix length since every factor is >= 1.
func Leverage(steps []Step) *big.Int {
	lev := new(big.Int).Set(one)
	for _, step := range steps {
		lev.Mul(lev, new(big.Int).SetUint64(StepMultiplierBps(step)))
		lev.Quo(lev, basisPoints)
	}
	return lev
}

// WorstCaseExposure derives the maximum exposure a chain could reach if fully
// executed: deposit scaled by the planned leverage, rounded up.
func WorstCaseExposure(deposit *big.Int, leverage *big.Int) *big.Int {
	return mulFixedCeil(deposit, leverage)
}
