package staking

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type memState struct {
	pools     map[string]*Pool
	positions map[string]*Position
}

func newMemState() *memState {
	return &memState{pools: make(map[string]*Pool), positions: make(map[string]*Position)}
}

func positionKey(verseID string, addr common.Address) string {
	return verseID + "/" + addr.Hex()
}

func (m *memState) GetPool(verseID string) (*Pool, error) {
	return m.pools[verseID], nil
}

func (m *memState) PutPool(verseID string, pool *Pool) error {
	m.pools[verseID] = pool
	return nil
}

func (m *memState) GetPosition(verseID string, addr common.Address) (*Position, error) {
	return m.positions[positionKey(verseID, addr)], nil
}

func (m *memState) PutPosition(verseID string, addr common.Address, position *Position) error {
	m.positions[positionKey(verseID, addr)] = position
	return nil
}

var staker = common.HexToAddress("0x00000000000000000000000000000000000000d1")

func TestApplyCreditsBonus(t *testing.T) {
	state := newMemState()
	engine := NewEngine(DefaultParams())
	engine.SetState(state)

	out, err := engine.Apply("verse-1", staker, big.NewInt(1_800_000))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out.Cmp(big.NewInt(1_980_000)) != 0 {
		t.Fatalf("expected 1980000, got %s", out)
	}
	if staked, _ := engine.Staked("verse-1", staker); staked.Cmp(big.NewInt(1_800_000)) != 0 {
		t.Fatalf("expected stake 1800000, got %s", staked)
	}
	if pool := state.pools["verse-1"]; pool.TotalStaked.Cmp(big.NewInt(1_800_000)) != 0 {
		t.Fatalf("expected pool stake 1800000, got %s", pool.TotalStaked)
	}
}

func TestReverseUnbondsStake(t *testing.T) {
	state := newMemState()
	engine := NewEngine(DefaultParams())
	engine.SetState(state)

	input := big.NewInt(1_800_000)
	if _, err := engine.Apply("verse-1", staker, input); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	restored, err := engine.Reverse("verse-1", staker, input)
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if restored.Cmp(input) != 0 {
		t.Fatalf("expected restored value %s, got %s", input, restored)
	}
	if staked, _ := engine.Staked("verse-1", staker); staked.Sign() != 0 {
		t.Fatalf("expected stake cleared, got %s", staked)
	}
	if pool := state.pools["verse-1"]; pool.TotalStaked.Sign() != 0 {
		t.Fatalf("expected pool cleared, got %s", pool.TotalStaked)
	}
}

func TestReverseWithoutStake(t *testing.T) {
	engine := NewEngine(DefaultParams())
	engine.SetState(newMemState())
	if _, err := engine.Reverse("verse-1", staker, big.NewInt(100)); !errors.Is(err, ErrNothingStaked) {
		t.Fatalf("expected ErrNothingStaked, got %v", err)
	}
}

func TestApplyRejectsNonPositive(t *testing.T) {
	engine := NewEngine(DefaultParams())
	engine.SetState(newMemState())
	if _, err := engine.Apply("verse-1", staker, nil); err == nil {
		t.Fatalf("expected rejection of nil amount")
	}
	if _, err := engine.Apply("verse-1", staker, big.NewInt(-5)); err == nil {
		t.Fatalf("expected rejection of negative amount")
	}
}
