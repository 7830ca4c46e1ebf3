package chain

import (
	"math/big"
	"testing"
)

func bigFromFloat(t *testing.T, value string) *big.Int {
	t.Helper()
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		t.Fatalf("invalid rational %q", value)
	}
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(one))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func TestLeverageCalibration(t *testing.T) {
	cases := []struct {
		name  string
		steps []Step
		low   string
		high  string
	}{
		{"borrow only", []Step{StepBorrow}, "1.4", "1.6"},
		{"borrow liquidity", []Step{StepBorrow, StepLiquidity}, "1.7", "1.9"},
		{"borrow liquidity stake", []Step{StepBorrow, StepLiquidity, StepStake}, "1.9", "2.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lev := Leverage(tc.steps)
			if lev.Cmp(bigFromFloat(t, tc.low)) < 0 {
				t.Fatalf("leverage %s below lower bound %s", lev, tc.low)
			}
			if lev.Cmp(bigFromFloat(t, tc.high)) > 0 {
				t.Fatalf("leverage %s above upper bound %s", lev, tc.high)
			}
		})
	}
}

func TestLeverageEmptyPrefixIsOne(t *testing.T) {
	if lev := Leverage(nil); lev.Cmp(one) != 0 {
		t.Fatalf("expected 1.0 for empty prefix, got %s", lev)
	}
}

func TestLeverageMonotonicInPrefix(t *testing.T) {
	steps := []Step{StepBorrow, StepLiquidity, StepStake, StepArbitrage}
	prev := Leverage(nil)
	for k := 1; k <= len(steps); k++ {
		next := Leverage(steps[:k])
		if next.Cmp(prev) < 0 {
			t.Fatalf("leverage decreased at prefix %d: %s -> %s", k, prev, next)
		}
		prev = next
	}
	if prev.Cmp(one) < 0 {
		t.Fatalf("full-plan leverage %s below 1.0", prev)
	}
}

func TestLeverageDeterministic(t *testing.T) {
	steps := []Step{StepBorrow, StepLiquidity, StepStake}
	first := Leverage(steps)
	for i := 0; i < 10; i++ {
		if again := Leverage(steps); again.Cmp(first) != 0 {
			t.Fatalf("leverage not deterministic: %s vs %s", first, again)
		}
	}
}

func TestWorstCaseExposure(t *testing.T) {
	deposit := big.NewInt(1_000_000)
	lev := Leverage([]Step{StepBorrow, StepLiquidity})
	exposure := WorstCaseExposure(deposit, lev)
	if exposure.Cmp(big.NewInt(1_800_000)) != 0 {
		t.Fatalf("expected exposure 1800000, got %s", exposure)
	}
	if WorstCaseExposure(nil, lev).Sign() != 0 {
		t.Fatalf("expected zero exposure for nil deposit")
	}
}
