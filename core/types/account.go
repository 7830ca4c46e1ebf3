package types

import "math/big"

// Account holds the platform balances for a single principal. Balance is the
// freely spendable amount in smallest units; Collateral is the portion locked
// by the chain engine while a leverage chain is active.
type Account struct {
	Balance    *big.Int `json:"balance"`
	Collateral *big.Int `json:"collateral"`
}

// NewAccount returns an account with zeroed balances.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0), Collateral: big.NewInt(0)}
}

// Normalize replaces nil balance fields with zero values so callers can
// operate on decoded accounts without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return NewAccount()
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	if a.Collateral == nil {
		a.Collateral = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := NewAccount()
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if a.Collateral != nil {
		clone.Collateral = new(big.Int).Set(a.Collateral)
	}
	return clone
}
