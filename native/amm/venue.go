// Package amm provides the external liquidity venue a migrated pool deposits
// into: a minimal constant-product pool keyed by token identifier. The launch
// controller only depends on the LiquidityVenue behaviour; this package is the
// in-process reference implementation.
package amm

import (
	"errors"
	"math/big"
	"time"
)

var (
	errNilState        = errors.New("amm venue: state not configured")
	errInvalidAmount   = errors.New("amm venue: deposit amounts must be positive")
	errDeadlineExpired = errors.New("amm venue: deadline expired")
	errBelowMinimum    = errors.New("amm venue: consumed amount below requested minimum")
)

// Pool holds the venue-side reserves for one listed token.
type Pool struct {
	TokenID      string
	ReserveDepth *big.Int
	TokenDepth   *big.Int
	LPShares     *big.Int
}

// Clone returns a deep copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ReserveDepth != nil {
		clone.ReserveDepth = new(big.Int).Set(p.ReserveDepth)
	}
	if p.TokenDepth != nil {
		clone.TokenDepth = new(big.Int).Set(p.TokenDepth)
	}
	if p.LPShares != nil {
		clone.LPShares = new(big.Int).Set(p.LPShares)
	}
	return &clone
}

// DepositResult reports the amounts the venue actually consumed and the LP
// shares issued for them.
type DepositResult struct {
	ReserveUsed *big.Int
	TokenUsed   *big.Int
	LPIssued    *big.Int
}

type venueState interface {
	AMMPoolGet(id string) (*Pool, bool, error)
	AMMPoolPut(pool *Pool) error
	AMMLPShareGet(id string, holder [20]byte) (*big.Int, error)
	AMMLPSharePut(id string, holder [20]byte, amount *big.Int) error
}

// Venue wires the constant-product pools to persistence.
type Venue struct {
	state venueState
	nowFn func() int64
}

// NewVenue constructs an unwired venue.
func NewVenue() *Venue {
	return &Venue{nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState configures the state backend used by the venue.
func (v *Venue) SetState(state venueState) { v.state = state }

// SetNowFunc overrides the time source for deterministic testing.
func (v *Venue) SetNowFunc(now func() int64) {
	if now == nil {
		v.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	v.nowFn = now
}

// AddLiquidity deposits a reserve/token pair into the pool for tokenID. On a
// fresh pool both amounts are consumed in full and LP shares bootstrap as the
// geometric mean of the deposits. On an existing pool the deposit is clamped
// to the current reserve/token price and the leftovers are reported back to
// the caller through the used amounts.
func (v *Venue) AddLiquidity(tokenID string, reserveAmount, tokenAmount, minReserve, minToken *big.Int, recipient [20]byte, deadline int64) (*DepositResult, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	if reserveAmount == nil || reserveAmount.Sign() <= 0 || tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if deadline < v.nowFn() {
		return nil, errDeadlineExpired
	}

	pool, ok, err := v.state.AMMPoolGet(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		pool = &Pool{
			TokenID:      tokenID,
			ReserveDepth: big.NewInt(0),
			TokenDepth:   big.NewInt(0),
			LPShares:     big.NewInt(0),
		}
	} else {
		pool = pool.Clone()
	}

	reserveUsed := new(big.Int).Set(reserveAmount)
	tokenUsed := new(big.Int).Set(tokenAmount)
	var issued *big.Int
	if pool.LPShares.Sign() == 0 {
		issued = new(big.Int).Mul(reserveUsed, tokenUsed)
		issued.Sqrt(issued)
	} else {
		// Match the pool price: scale the token leg to the reserve leg and
		// fall back the other way when the token leg is the short one.
		tokenAtPrice := new(big.Int).Mul(reserveUsed, pool.TokenDepth)
		tokenAtPrice.Quo(tokenAtPrice, pool.ReserveDepth)
		if tokenAtPrice.Cmp(tokenUsed) > 0 {
			reserveUsed.Mul(tokenUsed, pool.ReserveDepth)
			reserveUsed.Quo(reserveUsed, pool.TokenDepth)
		} else {
			tokenUsed = tokenAtPrice
		}
		issued = new(big.Int).Mul(reserveUsed, pool.LPShares)
		issued.Quo(issued, pool.ReserveDepth)
	}

	if minReserve != nil && reserveUsed.Cmp(minReserve) < 0 {
		return nil, errBelowMinimum
	}
	if minToken != nil && tokenUsed.Cmp(minToken) < 0 {
		return nil, errBelowMinimum
	}

	pool.ReserveDepth = new(big.Int).Add(pool.ReserveDepth, reserveUsed)
	pool.TokenDepth = new(big.Int).Add(pool.TokenDepth, tokenUsed)
	pool.LPShares = new(big.Int).Add(pool.LPShares, issued)
	if err := v.state.AMMPoolPut(pool); err != nil {
		return nil, err
	}

	held, err := v.state.AMMLPShareGet(tokenID, recipient)
	if err != nil {
		return nil, err
	}
	if held == nil {
		held = big.NewInt(0)
	}
	if err := v.state.AMMLPSharePut(tokenID, recipient, new(big.Int).Add(held, issued)); err != nil {
		return nil, err
	}

	return &DepositResult{
		ReserveUsed: reserveUsed,
		TokenUsed:   tokenUsed,
		LPIssued:    issued,
	}, nil
}

// PoolFor returns the venue pool for a token, if one exists.
func (v *Venue) PoolFor(tokenID string) (*Pool, bool, error) {
	if v == nil || v.state == nil {
		return nil, false, errNilState
	}
	pool, ok, err := v.state.AMMPoolGet(tokenID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return pool.Clone(), true, nil
}
