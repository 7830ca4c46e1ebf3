package lending

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "versechain/native/common"
)

var (
	errNilState              = errors.New("lending engine: state not configured")
	errInvalidAmount         = errors.New("lending engine: amount must be positive")
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	ErrNoOutstandingDebt     = errors.New("lending engine: no outstanding debt to repay")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "lending"

// Pool tracks the verse-scoped borrow market: liquidity made available to
// chains and the amount currently lent out.
type Pool struct {
	TotalLiquidity *big.Int `json:"totalLiquidity"`
	TotalBorrowed  *big.Int `json:"totalBorrowed"`
}

// Position is the outstanding debt of one principal against one verse pool.
type Position struct {
	Debt *big.Int `json:"debt"`
}

type engineState interface {
	GetPool(verseID string) (*Pool, error)
	PutPool(verseID string, pool *Pool) error
	GetPosition(verseID string, addr common.Address) (*Position, error)
	PutPosition(verseID string, addr common.Address, position *Position) error
}

// Params holds the governance controlled borrow settings.
type Params struct {
	// BorrowFactorBps is the fraction of the entering value lent against it,
	// in basis points. 5000 yields the 1.5x borrow step multiplier.
	BorrowFactorBps uint64
}

// DefaultParams returns the production borrow calibration.
func DefaultParams() Params {
	return Params{BorrowFactorBps: 5_000}
}

// Engine implements the borrow leg of a leverage chain. A single mutex
// serializes pool mutations; per-verse pools are independent records but the
// borrow volume is low enough that finer striping is not warranted.
type Engine struct {
	mu     sync.Mutex
	state  engineState
	params Params
	pauses nativecommon.PauseView
}

// NewEngine constructs a lending engine with the supplied parameters.
func NewEngine(params Params) *Engine {
	if params.BorrowFactorBps == 0 {
		params = DefaultParams()
	}
	return &Engine{params: params}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// InitPool seeds the verse pool with lendable liquidity. Existing pools are
// topped up, not replaced.
func (e *Engine) InitPool(verseID string, liquidity *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return errInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.ensurePool(verseID)
	if err != nil {
		return err
	}
	pool.TotalLiquidity = new(big.Int).Add(pool.TotalLiquidity, liquidity)
	return e.state.PutPool(verseID, pool)
}

// SeedPool writes the configured liquidity only when the verse has no pool
// record yet. Restarting with the same configuration leaves an existing pool
// untouched.
func (e *Engine) SeedPool(verseID string, liquidity *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return errInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, err := e.state.GetPool(verseID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	pool := &Pool{
		TotalLiquidity: new(big.Int).Set(liquidity),
		TotalBorrowed:  big.NewInt(0),
	}
	return e.state.PutPool(verseID, pool)
}

// Apply executes the borrow step: lends BorrowFactorBps of the entering value
// against it and returns the amplified value.
func (e *Engine) Apply(verseID string, principal common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.ensurePool(verseID)
	if err != nil {
		return nil, err
	}
	borrowed := scaleBps(amount, e.params.BorrowFactorBps)
	if availableLiquidity(pool).Cmp(borrowed) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	position, err := e.ensurePosition(verseID, principal)
	if err != nil {
		return nil, err
	}
	position.Debt = new(big.Int).Add(position.Debt, borrowed)
	pool.TotalBorrowed = new(big.Int).Add(pool.TotalBorrowed, borrowed)

	if err := e.state.PutPosition(verseID, principal, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(verseID, pool); err != nil {
		return nil, err
	}
	return new(big.Int).Add(amount, borrowed), nil
}

// Reverse repays the debt taken for the recorded input amount and returns
// the restored value.
func (e *Engine) Reverse(verseID string, principal common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.ensurePool(verseID)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(verseID, principal)
	if err != nil {
		return nil, err
	}
	borrowed := scaleBps(amount, e.params.BorrowFactorBps)
	if position.Debt.Cmp(borrowed) < 0 {
		return nil, ErrNoOutstandingDebt
	}

	position.Debt = new(big.Int).Sub(position.Debt, borrowed)
	pool.TotalBorrowed = new(big.Int).Sub(pool.TotalBorrowed, borrowed)
	if pool.TotalBorrowed.Sign() < 0 {
		pool.TotalBorrowed = big.NewInt(0)
	}

	if err := e.state.PutPosition(verseID, principal, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(verseID, pool); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

// Debt reports the outstanding debt of a principal against a verse pool.
func (e *Engine) Debt(verseID string, principal common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.ensurePosition(verseID, principal)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(position.Debt), nil
}

func (e *Engine) ensurePool(verseID string) (*Pool, error) {
	pool, err := e.state.GetPool(verseID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	if pool.TotalLiquidity == nil {
		pool.TotalLiquidity = big.NewInt(0)
	}
	if pool.TotalBorrowed == nil {
		pool.TotalBorrowed = big.NewInt(0)
	}
	return pool, nil
}

func (e *Engine) ensurePosition(verseID string, addr common.Address) (*Position, error) {
	position, err := e.state.GetPosition(verseID, addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{}
	}
	if position.Debt == nil {
		position.Debt = big.NewInt(0)
	}
	return position, nil
}

func availableLiquidity(pool *Pool) *big.Int {
	liquidity := new(big.Int).Sub(pool.TotalLiquidity, pool.TotalBorrowed)
	if liquidity.Sign() < 0 {
		return big.NewInt(0)
	}
	return liquidity
}

func scaleBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return scaled.Quo(scaled, basisPoints)
}
