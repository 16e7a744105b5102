// Package token implements the fungible ledger backing launched tokens: an
// owner-gated mint at creation, plain and allowance-based transfers, and a
// one-way revocation of the privileged owner role consumed at migration.
package token

import (
	"errors"
	"math/big"
	"strings"
)

var (
	errNilState          = errors.New("token ledger: state not configured")
	errInvalidToken      = errors.New("token ledger: token identifier must not be empty")
	errTokenExists       = errors.New("token ledger: token already minted")
	errTokenNotFound     = errors.New("token ledger: token not found")
	errInvalidAmount     = errors.New("token ledger: amount must be positive")
	errInsufficientFunds = errors.New("token ledger: insufficient balance")
	errAllowanceExceeded = errors.New("token ledger: allowance exceeded")
	errRoleRevoked       = errors.New("token ledger: privileged role already revoked")
)

// Token is the stored metadata for one launched token.
type Token struct {
	ID           string
	Name         string
	Symbol       string
	TotalSupply  *big.Int
	Owner        [20]byte
	OwnerRevoked bool
}

// Clone returns a deep copy of the token record.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	if t.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(t.TotalSupply)
	}
	return &clone
}

type ledgerState interface {
	TokenGet(id string) (*Token, bool, error)
	TokenPut(token *Token) error
	TokenBalanceGet(id string, holder [20]byte) (*big.Int, error)
	TokenBalancePut(id string, holder [20]byte, amount *big.Int) error
	TokenAllowanceGet(id string, owner, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(id string, owner, spender [20]byte, amount *big.Int) error
}

// Ledger wires token accounting to the persistence layer.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs an unwired ledger.
func NewLedger() *Ledger { return &Ledger{} }

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// MintInitial creates the token and mints its entire issuance to the owner.
// It can run only once per token identifier and only while no token with that
// identifier exists.
func (l *Ledger) MintInitial(id, name, symbol string, owner [20]byte, total *big.Int) (*Token, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, errInvalidToken
	}
	if total == nil || total.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if existing, ok, err := l.state.TokenGet(trimmed); err != nil {
		return nil, err
	} else if ok && existing != nil {
		return nil, errTokenExists
	}
	record := &Token{
		ID:          trimmed,
		Name:        strings.TrimSpace(name),
		Symbol:      strings.TrimSpace(symbol),
		TotalSupply: new(big.Int).Set(total),
		Owner:       owner,
	}
	if err := l.state.TokenPut(record); err != nil {
		return nil, err
	}
	if err := l.credit(trimmed, owner, total); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(id string, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if _, err := l.requireToken(id); err != nil {
		return err
	}
	if err := l.debit(id, from, amount); err != nil {
		return err
	}
	return l.credit(id, to, amount)
}

// TransferFrom moves amount on behalf of spender, consuming allowance granted
// by the holder. The controller uses it to pull tokens into pool custody on
// sell.
func (l *Ledger) TransferFrom(id string, spender, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if _, err := l.requireToken(id); err != nil {
		return err
	}
	if err := l.consumeAllowance(id, from, spender, amount); err != nil {
		return err
	}
	if err := l.debit(id, from, amount); err != nil {
		return err
	}
	return l.credit(id, to, amount)
}

// Approve grants spender the right to move up to amount of the owner's tokens.
func (l *Ledger) Approve(id string, owner, spender [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if _, err := l.requireToken(id); err != nil {
		return err
	}
	return l.state.TokenAllowancePut(id, owner, spender, new(big.Int).Set(amount))
}

// BurnFrom destroys amount of the holder's tokens, consuming allowance when
// the spender is not the holder.
func (l *Ledger) BurnFrom(id string, spender, from [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	record, err := l.requireToken(id)
	if err != nil {
		return err
	}
	if spender != from {
		if err := l.consumeAllowance(id, from, spender, amount); err != nil {
			return err
		}
	}
	if err := l.debit(id, from, amount); err != nil {
		return err
	}
	record.TotalSupply = new(big.Int).Sub(record.TotalSupply, amount)
	return l.state.TokenPut(record)
}

// BalanceOf returns the holder's balance.
func (l *Ledger) BalanceOf(id string, holder [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if _, err := l.requireToken(id); err != nil {
		return nil, err
	}
	balance, err := l.state.TokenBalanceGet(id, holder)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// Allowance returns the remaining allowance granted by owner to spender.
func (l *Ledger) Allowance(id string, owner, spender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if _, err := l.requireToken(id); err != nil {
		return nil, err
	}
	allowance, err := l.state.TokenAllowanceGet(id, owner, spender)
	if err != nil {
		return nil, err
	}
	if allowance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(allowance), nil
}

// TotalSupply returns the outstanding supply of the token.
func (l *Ledger) TotalSupply(id string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	record, err := l.requireToken(id)
	if err != nil {
		return nil, err
	}
	if record.TotalSupply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(record.TotalSupply), nil
}

// Get returns the token metadata.
func (l *Ledger) Get(id string) (*Token, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.requireToken(id)
}

// RevokePrivilegedRole permanently removes the owner role. There is no
// operation that restores it; the flag flips exactly once.
func (l *Ledger) RevokePrivilegedRole(id string) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	record, err := l.requireToken(id)
	if err != nil {
		return err
	}
	if record.OwnerRevoked {
		return errRoleRevoked
	}
	record.OwnerRevoked = true
	record.Owner = [20]byte{}
	return l.state.TokenPut(record)
}

func (l *Ledger) requireToken(id string) (*Token, error) {
	record, ok, err := l.state.TokenGet(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, errTokenNotFound
	}
	return record, nil
}

func (l *Ledger) debit(id string, holder [20]byte, amount *big.Int) error {
	balance, err := l.state.TokenBalanceGet(id, holder)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	return l.state.TokenBalancePut(id, holder, new(big.Int).Sub(balance, amount))
}

func (l *Ledger) credit(id string, holder [20]byte, amount *big.Int) error {
	balance, err := l.state.TokenBalanceGet(id, holder)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return l.state.TokenBalancePut(id, holder, new(big.Int).Add(balance, amount))
}

func (l *Ledger) consumeAllowance(id string, owner, spender [20]byte, amount *big.Int) error {
	allowance, err := l.state.TokenAllowanceGet(id, owner, spender)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return errAllowanceExceeded
	}
	return l.state.TokenAllowancePut(id, owner, spender, new(big.Int).Sub(allowance, amount))
}
