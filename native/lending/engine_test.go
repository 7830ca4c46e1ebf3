package lending

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

func newTestEngine(t *testing.T, liquidity int64) (*Engine, *memState) {
	t.Helper()
	state := newMemState()
	engine := NewEngine(DefaultParams())
	engine.SetState(state)
	if liquidity > 0 {
		if err := engine.InitPool("verse-1", big.NewInt(liquidity)); err != nil {
			t.Fatalf("init pool failed: %v", err)
		}
	}
	return engine, state
}

var borrower = common.HexToAddress("0x00000000000000000000000000000000000000b1")

func TestApplyAmplifiesByBorrowFactor(t *testing.T) {
	engine, state := newTestEngine(t, 10_000_000)

	out, err := engine.Apply("verse-1", borrower, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out.Cmp(big.NewInt(1_500_000)) != 0 {
		t.Fatalf("expected 1500000, got %s", out)
	}

	debt, err := engine.Debt("verse-1", borrower)
	if err != nil {
		t.Fatalf("debt query failed: %v", err)
	}
	if debt.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("expected debt 500000, got %s", debt)
	}
	pool := state.pools["verse-1"]
	if pool.TotalBorrowed.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("expected pool borrowed 500000, got %s", pool.TotalBorrowed)
	}
}

func TestApplyRejectsWhenPoolDry(t *testing.T) {
	engine, state := newTestEngine(t, 100)

	_, err := engine.Apply("verse-1", borrower, big.NewInt(1_000_000))
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if pool := state.pools["verse-1"]; pool.TotalBorrowed.Sign() != 0 {
		t.Fatalf("failed borrow mutated pool: %s", pool.TotalBorrowed)
	}
	if debt, _ := engine.Debt("verse-1", borrower); debt.Sign() != 0 {
		t.Fatalf("failed borrow created debt: %s", debt)
	}
}

func TestReverseRepaysDebt(t *testing.T) {
	engine, state := newTestEngine(t, 10_000_000)

	input := big.NewInt(1_000_000)
	if _, err := engine.Apply("verse-1", borrower, input); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	restored, err := engine.Reverse("verse-1", borrower, input)
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if restored.Cmp(input) != 0 {
		t.Fatalf("expected restored value %s, got %s", input, restored)
	}
	if debt, _ := engine.Debt("verse-1", borrower); debt.Sign() != 0 {
		t.Fatalf("expected debt cleared, got %s", debt)
	}
	pool := state.pools["verse-1"]
	if pool.TotalBorrowed.Sign() != 0 {
		t.Fatalf("expected pool borrowed cleared, got %s", pool.TotalBorrowed)
	}
	if pool.TotalLiquidity.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("liquidity changed across a round trip: %s", pool.TotalLiquidity)
	}
}

func TestReverseWithoutDebt(t *testing.T) {
	engine, _ := newTestEngine(t, 10_000_000)
	if _, err := engine.Reverse("verse-1", borrower, big.NewInt(1_000)); !errors.Is(err, ErrNoOutstandingDebt) {
		t.Fatalf("expected ErrNoOutstandingDebt, got %v", err)
	}
}

func TestInitPoolTopsUp(t *testing.T) {
	engine, state := newTestEngine(t, 1_000)
	if err := engine.InitPool("verse-1", big.NewInt(500)); err != nil {
		t.Fatalf("top up failed: %v", err)
	}
	if got := state.pools["verse-1"].TotalLiquidity; got.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("expected liquidity 1500, got %s", got)
	}
	if err := engine.InitPool("verse-1", big.NewInt(0)); err == nil {
		t.Fatalf("expected rejection of non-positive liquidity")
	}
}

func TestSeedPoolSkipsExistingPool(t *testing.T) {
	engine, state := newTestEngine(t, 0)

	if err := engine.SeedPool("verse-1", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if got := state.pools["verse-1"].TotalLiquidity; got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected liquidity 1000000, got %s", got)
	}

	// Re-seeding an existing pool, as on a restart, is a no-op.
	if err := engine.SeedPool("verse-1", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if got := state.pools["verse-1"].TotalLiquidity; got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("re-seed inflated liquidity to %s", got)
	}

	// A pool changed by live borrowing keeps its state too.
	if _, err := engine.Apply("verse-1", borrower, big.NewInt(1_000)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if err := engine.SeedPool("verse-1", big.NewInt(5_000_000)); err != nil {
		t.Fatalf("third seed failed: %v", err)
	}
	pool := state.pools["verse-1"]
	if pool.TotalLiquidity.Cmp(big.NewInt(1_000_000)) != 0 || pool.TotalBorrowed.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("seed disturbed a live pool: liquidity=%s borrowed=%s", pool.TotalLiquidity, pool.TotalBorrowed)
	}

	if err := engine.SeedPool("verse-1", big.NewInt(0)); err == nil {
		t.Fatalf("expected rejection of non-positive liquidity")
	}
}

func TestPoolsAreVerseScoped(t *testing.T) {
	engine, _ := newTestEngine(t, 10_000_000)
	if err := engine.InitPool("verse-2", big.NewInt(10_000_000)); err != nil {
		t.Fatalf("init second pool failed: %v", err)
	}
	if _, err := engine.Apply("verse-1", borrower, big.NewInt(1_000)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if debt, _ := engine.Debt("verse-2", borrower); debt.Sign() != 0 {
		t.Fatalf("debt leaked across verses: %s", debt)
	}
}
