package types

import "math/big"

// Account holds the reserve-coin balance for a single address. Launched token
// balances live in the token ledger, not here.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return &clone
}

// Ensure fills nil fields so callers can mutate the account without nil checks.
func Ensure(a *Account) *Account {
	if a == nil {
		a = &Account{}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}
