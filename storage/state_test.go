package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"launchpad/core/types"
	"launchpad/native/amm"
	"launchpad/native/launch"
	"launchpad/native/token"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func TestPoolRoundTrip(t *testing.T) {
	m := NewManager(NewMemDB())

	_, ok, err := m.LaunchPoolGet("missing")
	require.NoError(t, err)
	require.False(t, ok)

	pool := &launch.Pool{
		ID:             "abc123",
		Name:           "Round Trip",
		Symbol:         "RT",
		Creator:        testAddr(1),
		Vault:          testAddr(2),
		ReserveBalance: big.NewInt(1234),
		TokenInventory: big.NewInt(5678),
		Phase:          launch.PhaseListed,
		CreatedAt:      100,
		ListedAt:       200,
	}
	require.NoError(t, m.LaunchPoolPut(pool))

	loaded, ok, err := m.LaunchPoolGet("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pool, loaded)
}

func TestPoolIndexPreservesOrder(t *testing.T) {
	m := NewManager(NewMemDB())

	ids, err := m.LaunchPoolIDs()
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, m.LaunchPoolIndexAppend("first"))
	require.NoError(t, m.LaunchPoolIndexAppend("second"))
	require.NoError(t, m.LaunchPoolIndexAppend("third"))

	ids, err = m.LaunchPoolIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestAccountRoundTrip(t *testing.T) {
	m := NewManager(NewMemDB())

	account, err := m.GetAccount(testAddr(9))
	require.NoError(t, err)
	require.Nil(t, account)

	require.NoError(t, m.PutAccount(testAddr(9), &types.Account{Nonce: 7, Balance: big.NewInt(42)}))
	account, err = m.GetAccount(testAddr(9))
	require.NoError(t, err)
	require.Equal(t, uint64(7), account.Nonce)
	require.Zero(t, account.Balance.Cmp(big.NewInt(42)))
}

func TestTokenRecordsRoundTrip(t *testing.T) {
	m := NewManager(NewMemDB())

	record := &token.Token{
		ID:           "tok",
		Name:         "Token",
		Symbol:       "TOK",
		TotalSupply:  big.NewInt(1000),
		Owner:        testAddr(3),
		OwnerRevoked: true,
	}
	require.NoError(t, m.TokenPut(record))
	loaded, ok, err := m.TokenGet("tok")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, loaded)

	balance, err := m.TokenBalanceGet("tok", testAddr(4))
	require.NoError(t, err)
	require.Nil(t, balance)
	require.NoError(t, m.TokenBalancePut("tok", testAddr(4), big.NewInt(55)))
	balance, err = m.TokenBalanceGet("tok", testAddr(4))
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(55)))

	require.NoError(t, m.TokenAllowancePut("tok", testAddr(4), testAddr(5), big.NewInt(9)))
	allowance, err := m.TokenAllowanceGet("tok", testAddr(4), testAddr(5))
	require.NoError(t, err)
	require.Zero(t, allowance.Cmp(big.NewInt(9)))
}

func TestAMMRecordsRoundTrip(t *testing.T) {
	m := NewManager(NewMemDB())

	pool := &amm.Pool{
		TokenID:      "tok",
		ReserveDepth: big.NewInt(400),
		TokenDepth:   big.NewInt(100),
		LPShares:     big.NewInt(200),
	}
	require.NoError(t, m.AMMPoolPut(pool))
	loaded, ok, err := m.AMMPoolGet("tok")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pool, loaded)

	require.NoError(t, m.AMMLPSharePut("tok", testAddr(6), big.NewInt(200)))
	shares, err := m.AMMLPShareGet("tok", testAddr(6))
	require.NoError(t, err)
	require.Zero(t, shares.Cmp(big.NewInt(200)))
}

func TestOverlayCommitAndRollback(t *testing.T) {
	db := NewMemDB()
	m := NewManager(db)

	m.Begin()
	require.NoError(t, m.PutAccount(testAddr(1), &types.Account{Balance: big.NewInt(10)}))

	// Uncommitted writes are visible through the manager but absent from the
	// backing database.
	account, err := m.GetAccount(testAddr(1))
	require.NoError(t, err)
	require.Zero(t, account.Balance.Cmp(big.NewInt(10)))
	_, err = db.Get([]byte(prefixAccount + addrHex(testAddr(1))))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, m.Commit())
	_, err = db.Get([]byte(prefixAccount + addrHex(testAddr(1))))
	require.NoError(t, err)

	m.Begin()
	require.NoError(t, m.PutAccount(testAddr(1), &types.Account{Balance: big.NewInt(99)}))
	m.Rollback()

	account, err = m.GetAccount(testAddr(1))
	require.NoError(t, err)
	require.Zero(t, account.Balance.Cmp(big.NewInt(10)))
}

func TestCommitWithoutBeginFails(t *testing.T) {
	m := NewManager(NewMemDB())
	require.Error(t, m.Commit())
}
