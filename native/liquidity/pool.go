package liquidity

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "versechain/native/common"
)

var (
	errNilState        = errors.New("liquidity pool: state not configured")
	errInvalidAmount   = errors.New("liquidity pool: amount must be positive")
	ErrNothingSupplied = errors.New("liquidity pool: principal has no supplied liquidity")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "liquidity"

// Pool is the verse-scoped liquidity pool. Shares are minted proportionally
// to the pool's current supply; the first supplier gets shares 1:1.
type Pool struct {
	TotalSupplied *big.Int `json:"totalSupplied"`
	TotalShares   *big.Int `json:"totalShares"`
}

// Position tracks one principal's supplied liquidity and minted shares.
type Position struct {
	Supplied *big.Int `json:"supplied"`
	Shares   *big.Int `json:"shares"`
}

type poolState interface {
	GetPool(verseID string) (*Pool, error)
	PutPool(verseID string, pool *Pool) error
	GetPosition(verseID string, addr common.Address) (*Position, error)
	PutPosition(verseID string, addr common.Address, position *Position) error
}

// Params holds the pool yield calibration.
type Params struct {
	// YieldBps is the immediate LVR-style yield credited on supply, in basis
	// points of the supplied amount. 2000 yields the 1.2x liquidity step
	// multiplier.
	YieldBps uint64
}

// DefaultParams returns the production yield calibration.
func DefaultParams() Params {
	return Params{YieldBps: 2_000}
}

// Engine implements the liquidity-provision leg of a leverage chain.
type Engine struct {
	mu     sync.Mutex
	state  poolState
	params Params
	pauses nativecommon.PauseView
}

func NewEngine(params Params) *Engine {
	if params.YieldBps == 0 {
		params = DefaultParams()
	}
	return &Engine{params: params}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state poolState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Apply supplies the entering value to the verse pool, mints shares and
// returns the value including the credited yield.
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
	position, err := e.ensurePosition(verseID, principal)
	if err != nil {
		return nil, err
	}

	minted := new(big.Int)
	if pool.TotalShares.Sign() == 0 || pool.TotalSupplied.Sign() == 0 {
		minted.Set(amount)
	} else {
		minted.Mul(amount, pool.TotalShares)
		minted.Quo(minted, pool.TotalSupplied)
		if minted.Sign() == 0 {
			minted.Set(amount)
		}
	}

	pool.TotalSupplied = new(big.Int).Add(pool.TotalSupplied, amount)
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, minted)
	position.Supplied = new(big.Int).Add(position.Supplied, amount)
	position.Shares = new(big.Int).Add(position.Shares, minted)

	if err := e.state.PutPosition(verseID, principal, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(verseID, pool); err != nil {
		return nil, err
	}

	yield := scaleBps(amount, e.params.YieldBps)
	return new(big.Int).Add(amount, yield), nil
}

// Reverse withdraws the recorded supplied amount, burning the proportional
// share of the position, and returns the restored value.
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
	if position.Supplied.Cmp(amount) < 0 {
		return nil, ErrNothingSupplied
	}

	burned := new(big.Int)
	if position.Supplied.Cmp(amount) == 0 {
		burned.Set(position.Shares)
	} else {
		burned.Mul(position.Shares, amount)
		burned.Quo(burned, position.Supplied)
	}

	position.Supplied = new(big.Int).Sub(position.Supplied, amount)
	position.Shares = new(big.Int).Sub(position.Shares, burned)
	pool.TotalSupplied = new(big.Int).Sub(pool.TotalSupplied, amount)
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, burned)
	if pool.TotalSupplied.Sign() < 0 {
		pool.TotalSupplied = big.NewInt(0)
	}
	if pool.TotalShares.Sign() < 0 {
		pool.TotalShares = big.NewInt(0)
	}

	if err := e.state.PutPosition(verseID, principal, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(verseID, pool); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

// Supplied reports the liquidity a principal currently has in the verse pool.
func (e *Engine) Supplied(verseID string, principal common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.ensurePosition(verseID, principal)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(position.Supplied), nil
}

func (e *Engine) ensurePool(verseID string) (*Pool, error) {
	pool, err := e.state.GetPool(verseID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	if pool.TotalSupplied == nil {
		pool.TotalSupplied = big.NewInt(0)
	}
	if pool.TotalShares == nil {
		pool.TotalShares = big.NewInt(0)
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
	if position.Supplied == nil {
		position.Supplied = big.NewInt(0)
	}
	if position.Shares == nil {
		position.Shares = big.NewInt(0)
	}
	return position, nil
}

func scaleBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return scaled.Quo(scaled, basisPoints)
}
