package arb

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "versechain/native/common"
)

var (
	errNilState      = errors.New("arb desk: state not configured")
	errInvalidAmount = errors.New("arb desk: amount must be positive")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "arb"

// Book records the cumulative spread captured per verse, kept for audit.
type Book struct {
	Captured *big.Int `json:"captured"`
}

type deskState interface {
	GetBook(verseID string) (*Book, error)
	PutBook(verseID string, book *Book) error
}

// Params holds the spread capture calibration.
type Params struct {
	// CaptureBps is the profit taken on a spread pass, in basis points of
	// the entering value. 500 yields the 1.05x arbitrage step multiplier.
	CaptureBps uint64
}

// DefaultParams returns the production capture calibration.
func DefaultParams() Params {
	return Params{CaptureBps: 500}
}

// Desk implements the arbitrage leg of a leverage chain: a spread capture
// pass with no open position, so the reverse is a plain pass-through.
type Desk struct {
	mu     sync.Mutex
	state  deskState
	params Params
	pauses nativecommon.PauseView
}

func NewDesk(params Params) *Desk {
	if params.CaptureBps == 0 {
		params = DefaultParams()
	}
	return &Desk{params: params}
}

// SetState wires the desk to the external persistence layer.
func (d *Desk) SetState(state deskState) { d.state = state }

func (d *Desk) SetPauses(p nativecommon.PauseView) {
	if d == nil {
		return
	}
	d.pauses = p
}

// Apply captures the configured spread on the entering value.
func (d *Desk) Apply(verseID string, _ common.Address, amount *big.Int) (*big.Int, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	book, err := d.ensureBook(verseID)
	if err != nil {
		return nil, err
	}
	profit := new(big.Int).Mul(amount, new(big.Int).SetUint64(d.params.CaptureBps))
	profit.Quo(profit, basisPoints)

	book.Captured = new(big.Int).Add(book.Captured, profit)
	if err := d.state.PutBook(verseID, book); err != nil {
		return nil, err
	}
	return new(big.Int).Add(amount, profit), nil
}

// Reverse is a pass-through: the arbitrage step leaves no position to close,
// so unwinding simply restores the recorded input value.
func (d *Desk) Reverse(_ string, _ common.Address, amount *big.Int) (*big.Int, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

func (d *Desk) ensureBook(verseID string) (*Book, error) {
	book, err := d.state.GetBook(verseID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		book = &Book{}
	}
	if book.Captured == nil {
		book.Captured = big.NewInt(0)
	}
	return book, nil
}
