package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	coretypes "versechain/core/types"
	"versechain/native/arb"
	"versechain/native/chain"
	"versechain/native/lending"
	"versechain/native/liquidity"
	"versechain/native/staking"
	"versechain/storage"
)

// Ledger is the single persistence hub for the chaining engine and its
// sub-protocol modules. Records are stored as JSON in a key-value database
// under per-module prefixes. The Ledger itself implements chain.State; the
// narrower module interfaces are served by typed views to keep the method
// sets apart.
type Ledger struct {
	db storage.Database
}

// NewLedger wraps a database in a ledger.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func accountKey(addr common.Address) []byte {
	return []byte("acct/" + addr.Hex())
}

func chainKey(id string) []byte {
	return []byte("chain/" + id)
}

func chainOwnerKey(verse string, addr common.Address) []byte {
	return []byte("chainowner/" + verse + "/" + addr.Hex())
}

func poolKey(module, verse string) []byte {
	return []byte(module + "/pool/" + verse)
}

func positionKey(module, verse string, addr common.Address) []byte {
	return []byte(module + "/position/" + verse + "/" + addr.Hex())
}

func (l *Ledger) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := l.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("ledger: decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Ledger) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ledger: encode %s: %w", key, err)
	}
	return l.db.Put(key, raw)
}

// --- chain.State ---

func (l *Ledger) GetChain(id string) (*chain.ChainState, error) {
	record := &chain.ChainState{}
	ok, err := l.getJSON(chainKey(id), record)
	if err != nil || !ok {
		return nil, err
	}
	return record.Normalize(), nil
}

func (l *Ledger) PutChain(state *chain.ChainState) error {
	if state == nil || state.ID == "" {
		return fmt.Errorf("ledger: refusing to store chain without id")
	}
	return l.putJSON(chainKey(state.ID), state)
}

func (l *Ledger) GetAccount(addr common.Address) (*coretypes.Account, error) {
	account := &coretypes.Account{}
	ok, err := l.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return coretypes.NewAccount(), nil
	}
	return account.Normalize(), nil
}

func (l *Ledger) PutAccount(addr common.Address, account *coretypes.Account) error {
	if account == nil {
		return fmt.Errorf("ledger: refusing to store nil account")
	}
	return l.putJSON(accountKey(addr), account)
}

func (l *Ledger) ActiveChainID(verse string, principal common.Address) (string, error) {
	var id string
	ok, err := l.getJSON(chainOwnerKey(verse, principal), &id)
	if err != nil || !ok {
		return "", err
	}
	return id, nil
}

func (l *Ledger) SetActiveChain(verse string, principal common.Address, id string) error {
	return l.putJSON(chainOwnerKey(verse, principal), id)
}

func (l *Ledger) ClearActiveChain(verse string, principal common.Address) error {
	return l.db.Delete(chainOwnerKey(verse, principal))
}

// --- module views ---

// LendingView adapts the ledger to the lending engine's state interface.
type LendingView struct{ l *Ledger }

func (l *Ledger) LendingState() *LendingView { return &LendingView{l: l} }

func (v *LendingView) GetPool(verseID string) (*lending.Pool, error) {
	pool := &lending.Pool{}
	ok, err := v.l.getJSON(poolKey("lending", verseID), pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

func (v *LendingView) PutPool(verseID string, pool *lending.Pool) error {
	return v.l.putJSON(poolKey("lending", verseID), pool)
}

func (v *LendingView) GetPosition(verseID string, addr common.Address) (*lending.Position, error) {
	position := &lending.Position{}
	ok, err := v.l.getJSON(positionKey("lending", verseID, addr), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (v *LendingView) PutPosition(verseID string, addr common.Address, position *lending.Position) error {
	return v.l.putJSON(positionKey("lending", verseID, addr), position)
}

// LiquidityView adapts the ledger to the liquidity pool's state interface.
type LiquidityView struct{ l *Ledger }

func (l *Ledger) LiquidityState() *LiquidityView { return &LiquidityView{l: l} }

func (v *LiquidityView) GetPool(verseID string) (*liquidity.Pool, error) {
	pool := &liquidity.Pool{}
	ok, err := v.l.getJSON(poolKey("liquidity", verseID), pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

func (v *LiquidityView) PutPool(verseID string, pool *liquidity.Pool) error {
	return v.l.putJSON(poolKey("liquidity", verseID), pool)
}

func (v *LiquidityView) GetPosition(verseID string, addr common.Address) (*liquidity.Position, error) {
	position := &liquidity.Position{}
	ok, err := v.l.getJSON(positionKey("liquidity", verseID, addr), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (v *LiquidityView) PutPosition(verseID string, addr common.Address, position *liquidity.Position) error {
	return v.l.putJSON(positionKey("liquidity", verseID, addr), position)
}

// StakingView adapts the ledger to the staking engine's state interface.
type StakingView struct{ l *Ledger }

func (l *Ledger) StakingState() *StakingView { return &StakingView{l: l} }

func (v *StakingView) GetPool(verseID string) (*staking.Pool, error) {
	pool := &staking.Pool{}
	ok, err := v.l.getJSON(poolKey("staking", verseID), pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

func (v *StakingView) PutPool(verseID string, pool *staking.Pool) error {
	return v.l.putJSON(poolKey("staking", verseID), pool)
}

func (v *StakingView) GetPosition(verseID string, addr common.Address) (*staking.Position, error) {
	position := &staking.Position{}
	ok, err := v.l.getJSON(positionKey("staking", verseID, addr), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (v *StakingView) PutPosition(verseID string, addr common.Address, position *staking.Position) error {
	return v.l.putJSON(positionKey("staking", verseID, addr), position)
}

// ArbView adapts the ledger to the arbitrage desk's state interface.
type ArbView struct{ l *Ledger }

func (l *Ledger) ArbState() *ArbView { return &ArbView{l: l} }

func (v *ArbView) GetBook(verseID string) (*arb.Book, error) {
	book := &arb.Book{}
	ok, err := v.l.getJSON([]byte("arb/book/"+verseID), book)
	if err != nil || !ok {
		return nil, err
	}
	return book, nil
}

func (v *ArbView) PutBook(verseID string, book *arb.Book) error {
	return v.l.putJSON([]byte("arb/book/"+verseID), book)
}
