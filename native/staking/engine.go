package staking

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "versechain/native/common"
)

var (
	errNilState      = errors.New("staking engine: state not configured")
	errInvalidAmount = errors.New("staking engine: amount must be positive")
	ErrNothingStaked = errors.New("staking engine: principal has no staked balance")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "staking"

// Pool aggregates the staked derivative amounts for a verse.
type Pool struct {
	TotalStaked *big.Int `json:"totalStaked"`
}

// Position is one principal's bonded stake in a verse pool.
type Position struct {
	Staked *big.Int `json:"staked"`
}

type stakeState interface {
	GetPool(verseID string) (*Pool, error)
	PutPool(verseID string, pool *Pool) error
	GetPosition(verseID string, addr common.Address) (*Position, error)
	PutPosition(verseID string, addr common.Address, position *Position) error
}

// Params holds the staking reward calibration.
type Params struct {
	// BonusBps is the reward credited on staking, in basis points of the
	// staked amount. 1000 yields the 1.1x stake step multiplier.
	BonusBps uint64
}

// DefaultParams returns the production stake calibration.
func DefaultParams() Params {
	return Params{BonusBps: 1_000}
}

// Engine implements the staking leg of a leverage chain.
type Engine struct {
	mu     sync.Mutex
	state  stakeState
	params Params
	pauses nativecommon.PauseView
}

func NewEngine(params Params) *Engine {
	if params.BonusBps == 0 {
		params = DefaultParams()
	}
	return &Engine{params: params}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state stakeState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Apply stakes the entering value and returns it with the bonded reward.
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

	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
	position.Staked = new(big.Int).Add(position.Staked, amount)

	if err := e.state.PutPosition(verseID, principal, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(verseID, pool); err != nil {
		return nil, err
	}

	bonus := scaleBps(amount, e.params.BonusBps)
	return new(big.Int).Add(amount, bonus), nil
}

// Reverse unstakes the recorded amount and returns the restored value.
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
	if position.Staked.Cmp(amount) < 0 {
		return nil, ErrNothingStaked
	}

	position.Staked = new(big.Int).Sub(position.Staked, amount)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)
	if pool.TotalStaked.Sign() < 0 {
		pool.TotalStaked = big.NewInt(0)
	}

	if err := e.state.PutPosition(verseID, principal, position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(verseID, pool); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

// Staked reports a principal's bonded amount in the verse pool.
func (e *Engine) Staked(verseID string, principal common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.ensurePosition(verseID, principal)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(position.Staked), nil
}

func (e *Engine) ensurePool(verseID string) (*Pool, error) {
	pool, err := e.state.GetPool(verseID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	if pool.TotalStaked == nil {
		pool.TotalStaked = big.NewInt(0)
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
	if position.Staked == nil {
		position.Staked = big.NewInt(0)
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
