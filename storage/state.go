package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"launchpad/core/types"
	"launchpad/native/amm"
	"launchpad/native/launch"
	"launchpad/native/token"
)

// Key prefixes partition the flat key-value space by record kind.
const (
	prefixLaunchPool   = "launch/pool/"
	keyLaunchPoolIndex = "launch/pools"
	prefixAccount      = "account/"
	prefixTokenMeta    = "token/meta/"
	prefixTokenBalance = "token/balance/"
	prefixTokenAllow   = "token/allowance/"
	prefixAMMPool      = "amm/pool/"
	prefixAMMLPShare   = "amm/lp/"
)

var errNoTransaction = errors.New("storage: commit without open transaction")

// Manager adapts the key-value database into the typed state surface the
// launch engine, token ledger and AMM venue operate on. While a transaction
// is open every write lands in an overlay; Commit flushes the overlay to the
// database in one pass and Rollback discards it, so a failed operation leaves
// no partial writes behind.
type Manager struct {
	mu      sync.Mutex
	db      Database
	overlay map[string][]byte
}

// NewManager wraps a database in a state manager.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a write overlay. Transactions do not nest; a second Begin
// replaces the overlay of the first.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = make(map[string][]byte)
}

// Commit flushes the overlay to the database.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay == nil {
		return errNoTransaction
	}
	for key, value := range m.overlay {
		if err := m.db.Put([]byte(key), value); err != nil {
			m.overlay = nil
			return fmt.Errorf("storage: commit %q: %w", key, err)
		}
	}
	m.overlay = nil
	return nil
}

// Rollback discards the overlay.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = nil
}

func (m *Manager) read(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay != nil {
		if value, ok := m.overlay[key]; ok {
			return value, true, nil
		}
	}
	value, err := m.db.Get([]byte(key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) write(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay != nil {
		m.overlay[key] = value
		return nil
	}
	return m.db.Put([]byte(key), value)
}

func (m *Manager) readRLP(key string, out interface{}) (bool, error) {
	raw, ok, err := m.read(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) writeRLP(key string, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return m.write(key, raw)
}

func addrHex(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

// --- launch pools ---

func (m *Manager) LaunchPoolGet(id string) (*launch.Pool, bool, error) {
	pool := new(launch.Pool)
	ok, err := m.readRLP(prefixLaunchPool+id, pool)
	if err != nil || !ok {
		return nil, false, err
	}
	return pool, true, nil
}

func (m *Manager) LaunchPoolPut(pool *launch.Pool) error {
	return m.writeRLP(prefixLaunchPool+pool.ID, pool)
}

func (m *Manager) LaunchPoolIDs() ([]string, error) {
	var ids []string
	if _, err := m.readRLP(keyLaunchPoolIndex, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) LaunchPoolIndexAppend(id string) error {
	ids, err := m.LaunchPoolIDs()
	if err != nil {
		return err
	}
	return m.writeRLP(keyLaunchPoolIndex, append(ids, id))
}

// --- reserve-coin accounts ---

func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.readRLP(prefixAccount+addrHex(addr), account)
	if err != nil || !ok {
		return nil, err
	}
	return account, nil
}

func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	return m.writeRLP(prefixAccount+addrHex(addr), types.Ensure(account))
}

// --- token ledger ---

func (m *Manager) TokenGet(id string) (*token.Token, bool, error) {
	record := new(token.Token)
	ok, err := m.readRLP(prefixTokenMeta+id, record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

func (m *Manager) TokenPut(record *token.Token) error {
	return m.writeRLP(prefixTokenMeta+record.ID, record)
}

func (m *Manager) TokenBalanceGet(id string, holder [20]byte) (*big.Int, error) {
	return m.bigIntGet(prefixTokenBalance + id + "/" + addrHex(holder))
}

func (m *Manager) TokenBalancePut(id string, holder [20]byte, amount *big.Int) error {
	return m.writeRLP(prefixTokenBalance+id+"/"+addrHex(holder), amount)
}

func (m *Manager) TokenAllowanceGet(id string, owner, spender [20]byte) (*big.Int, error) {
	return m.bigIntGet(prefixTokenAllow + id + "/" + addrHex(owner) + "/" + addrHex(spender))
}

func (m *Manager) TokenAllowancePut(id string, owner, spender [20]byte, amount *big.Int) error {
	return m.writeRLP(prefixTokenAllow+id+"/"+addrHex(owner)+"/"+addrHex(spender), amount)
}

// --- AMM venue ---

func (m *Manager) AMMPoolGet(id string) (*amm.Pool, bool, error) {
	pool := new(amm.Pool)
	ok, err := m.readRLP(prefixAMMPool+id, pool)
	if err != nil || !ok {
		return nil, false, err
	}
	return pool, true, nil
}

func (m *Manager) AMMPoolPut(pool *amm.Pool) error {
	return m.writeRLP(prefixAMMPool+pool.TokenID, pool)
}

func (m *Manager) AMMLPShareGet(id string, holder [20]byte) (*big.Int, error) {
	return m.bigIntGet(prefixAMMLPShare + id + "/" + addrHex(holder))
}

func (m *Manager) AMMLPSharePut(id string, holder [20]byte, amount *big.Int) error {
	return m.writeRLP(prefixAMMLPShare+id+"/"+addrHex(holder), amount)
}

// bigIntGet returns nil for never-written balances so callers can treat the
// absence of a record as zero.
func (m *Manager) bigIntGet(key string) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.readRLP(key, value)
	if err != nil || !ok {
		return nil, err
	}
	return value, nil
}
