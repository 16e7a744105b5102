package launch

import "math/big"

// Phase tracks the lifecycle of a pool. The transition is one-way: a pool
// trades against the bonding curve until migration hands it to the AMM, after
// which it is listed forever.
type Phase uint8

const (
	PhaseTrading Phase = iota
	PhaseListed
)

// String renders the phase for logs and RPC payloads.
func (p Phase) String() string {
	switch p {
	case PhaseTrading:
		return "trading"
	case PhaseListed:
		return "listed"
	default:
		return "unknown"
	}
}

// Pool is the per-market ledger entry owned by the controller. Circulating
// supply is never stored; it is always derived from the trading allocation
// minus the remaining inventory so the two cannot drift apart.
type Pool struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Symbol         string   `json:"symbol"`
	Creator        [20]byte `json:"creator"`
	Vault          [20]byte `json:"vault"`
	ReserveBalance *big.Int `json:"reserveBalance"`
	TokenInventory *big.Int `json:"tokenInventory"`
	Phase          Phase    `json:"phase"`
	CreatedAt      uint64   `json:"createdAt"`
	ListedAt       uint64   `json:"listedAt,omitempty"`
}

// Clone returns a deep copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ReserveBalance != nil {
		clone.ReserveBalance = new(big.Int).Set(p.ReserveBalance)
	}
	if p.TokenInventory != nil {
		clone.TokenInventory = new(big.Int).Set(p.TokenInventory)
	}
	return &clone
}

// CirculatingSupply derives the tokens sold so far out of the trading
// allocation.
func (p *Pool) CirculatingSupply(tradingAllocation *big.Int) *big.Int {
	if p == nil || p.TokenInventory == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(tradingAllocation, p.TokenInventory)
}

// TradeResult reports the amounts a buy or sell actually settled at, which
// can differ from the request when the inventory clamp fires.
type TradeResult struct {
	PoolID       string   `json:"poolId"`
	Direction    string   `json:"direction"`
	TokenAmount  *big.Int `json:"tokenAmount"`
	Contribution *big.Int `json:"contribution,omitempty"`
	Payout       *big.Int `json:"payout,omitempty"`
	Fee          *big.Int `json:"fee"`
	Refund       *big.Int `json:"refund,omitempty"`
	Clamped      bool     `json:"clamped,omitempty"`
	Migrated     bool     `json:"migrated,omitempty"`
}

// CreateResult bundles the new pool with the optional creator buy settled in
// the same call.
type CreateResult struct {
	Pool  *Pool        `json:"pool"`
	Trade *TradeResult `json:"trade,omitempty"`
}

// BuyQuote mirrors the amounts a Buy of the same size would settle at.
type BuyQuote struct {
	PoolID       string   `json:"poolId"`
	TokensOut    *big.Int `json:"tokensOut"`
	Contribution *big.Int `json:"contribution"`
	Fee          *big.Int `json:"fee"`
	Refund       *big.Int `json:"refund"`
	Clamped      bool     `json:"clamped"`
}

// SellQuote mirrors the amounts a Sell of the same size would settle at.
type SellQuote struct {
	PoolID     string   `json:"poolId"`
	ReserveOut *big.Int `json:"reserveOut"`
	Fee        *big.Int `json:"fee"`
	Payout     *big.Int `json:"payout"`
}
