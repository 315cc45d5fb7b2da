package types

import "math/big"

// Account holds the ledger balances for a single identity. Native balances
// carry nine fractional digits, stable balances six; the fund transfer
// gateway enforces the policy on every movement.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalanceNative *big.Int `json:"balanceNative"`
	BalanceStable *big.Int `json:"balanceStable"`
}

// Normalize replaces nil balance fields with zero values so callers can
// operate on the account without per-field checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{BalanceNative: big.NewInt(0), BalanceStable: big.NewInt(0)}
	}
	if a.BalanceNative == nil {
		a.BalanceNative = big.NewInt(0)
	}
	if a.BalanceStable == nil {
		a.BalanceStable = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Normalize()
	}
	clone := &Account{Nonce: a.Nonce}
	if a.BalanceNative != nil {
		clone.BalanceNative = new(big.Int).Set(a.BalanceNative)
	}
	if a.BalanceStable != nil {
		clone.BalanceStable = new(big.Int).Set(a.BalanceStable)
	}
	return clone.Normalize()
}
