package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Step identifies one yield-amplifying action within a leverage chain. The
// set is closed; extending it means adding a new tag here plus a multiplier
// in leverage.go and a sub-protocol registration in the executor.
type Step uint8

const (
	StepBorrow Step = iota + 1
	StepLiquidity
	StepStake
	StepArbitrage
)

// MaxChainSteps bounds the length of a step plan.
const MaxChainSteps = 5

func (s Step) Valid() bool {
	switch s {
	case StepBorrow, StepLiquidity, StepStake, StepArbitrage:
		return true
	default:
		return false
	}
}

func (s Step) String() string {
	switch s {
	case StepBorrow:
		return "borrow"
	case StepLiquidity:
		return "liquidity"
	case StepStake:
		return "stake"
	case StepArbitrage:
		return "arbitrage"
	default:
		return fmt.Sprintf("step(%d)", uint8(s))
	}
}

// ParseStep resolves the wire representation of a step kind.
func ParseStep(raw string) (Step, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "borrow":
		return StepBorrow, nil
	case "liquidity":
		return StepLiquidity, nil
	case "stake":
		return StepStake, nil
	case "arbitrage":
		return StepArbitrage, nil
	default:
		return 0, fmt.Errorf("chain engine: unknown step kind %q", raw)
	}
}

func (s Step) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("chain engine: cannot encode invalid step %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStep(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ChainStatus tracks the lifecycle of a chain record.
type ChainStatus uint8

const (
	StatusActive ChainStatus = iota + 1
	StatusCompleted
	StatusUnwound
)

func (s ChainStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusUnwound:
		return "unwound"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s ChainStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ChainStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		*s = StatusActive
	case "completed":
		*s = StatusCompleted
	case "unwound":
		*s = StatusUnwound
	default:
		return fmt.Errorf("chain engine: unknown chain status %q", raw)
	}
	return nil
}

// StepRecord captures the amounts that flowed through one applied step. The
// unwinder replays these records in reverse to restore collateral exactly.
type StepRecord struct {
	Kind   Step     `json:"kind"`
	Input  *big.Int `json:"input"`
	Output *big.Int `json:"output"`
}

// ChainState is the durable record of one principal's leverage chain against
// one verse. The step plan is fixed at creation; StepsCompleted is the
// resumption point for both execution and unwinding.
type ChainState struct {
	ID                string         `json:"id"`
	Verse             string         `json:"verse"`
	Principal         common.Address `json:"principal"`
	Deposit           *big.Int       `json:"deposit"`
	CurrentValue      *big.Int       `json:"currentValue"`
	Steps             []Step         `json:"steps"`
	StepsCompleted    uint8          `json:"stepsCompleted"`
	Records           []StepRecord   `json:"records,omitempty"`
	EffectiveLeverage *big.Int       `json:"effectiveLeverage"`
	ReservedExposure  *big.Int       `json:"reservedExposure"`
	Status            ChainStatus    `json:"status"`
	CreatedAt         int64          `json:"createdAt"`
	UpdatedAt         int64          `json:"updatedAt"`
}

// Normalize replaces nil amount fields with zero values.
func (c *ChainState) Normalize() *ChainState {
	if c == nil {
		return nil
	}
	if c.Deposit == nil {
		c.Deposit = big.NewInt(0)
	}
	if c.CurrentValue == nil {
		c.CurrentValue = big.NewInt(0)
	}
	if c.EffectiveLeverage == nil {
		c.EffectiveLeverage = new(big.Int).Set(one)
	}
	if c.ReservedExposure == nil {
		c.ReservedExposure = big.NewInt(0)
	}
	for i := range c.Records {
		if c.Records[i].Input == nil {
			c.Records[i].Input = big.NewInt(0)
		}
		if c.Records[i].Output == nil {
			c.Records[i].Output = big.NewInt(0)
		}
	}
	return c
}

// Clone returns a deep copy suitable for handing to read-model consumers.
func (c *ChainState) Clone() *ChainState {
	if c == nil {
		return nil
	}
	clone := &ChainState{
		ID:             c.ID,
		Verse:          c.Verse,
		Principal:      c.Principal,
		StepsCompleted: c.StepsCompleted,
		Status:         c.Status,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.Deposit != nil {
		clone.Deposit = new(big.Int).Set(c.Deposit)
	}
	if c.CurrentValue != nil {
		clone.CurrentValue = new(big.Int).Set(c.CurrentValue)
	}
	if c.EffectiveLeverage != nil {
		clone.EffectiveLeverage = new(big.Int).Set(c.EffectiveLeverage)
	}
	if c.ReservedExposure != nil {
		clone.ReservedExposure = new(big.Int).Set(c.ReservedExposure)
	}
	if len(c.Steps) > 0 {
		clone.Steps = append([]Step(nil), c.Steps...)
	}
	if len(c.Records) > 0 {
		clone.Records = make([]StepRecord, len(c.Records))
		for i, rec := range c.Records {
			clone.Records[i] = StepRecord{Kind: rec.Kind}
			if rec.Input != nil {
				clone.Records[i].Input = new(big.Int).Set(rec.Input)
			}
			if rec.Output != nil {
				clone.Records[i].Output = new(big.Int).Set(rec.Output)
			}
		}
	}
	return clone.Normalize()
}

// VerseConfig describes one verse's risk budget: the liquidity it carries and
// the fraction of it that may be committed to active chains.
type VerseConfig struct {
	ID               string
	TotalLiquidity   *big.Int
	CoverageRatioBps uint64
}

// Limit returns the maximum exposure the verse may carry,
// TotalLiquidity * CoverageRatioBps / 10000.
func (v VerseConfig) Limit() *big.Int {
	if v.TotalLiquidity == nil || v.TotalLiquidity.Sign() <= 0 || v.CoverageRatioBps == 0 {
		return big.NewInt(0)
	}
	limit := new(big.Int).Mul(v.TotalLiquidity, new(big.Int).SetUint64(v.CoverageRatioBps))
	return limit.Quo(limit, basisPoints)
}
