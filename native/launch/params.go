package launch

import (
	"errors"
	"math/big"
)

const (
	// feeDenominator scales every basis-point rate in this package.
	feeDenominator = 10_000
	// MaxLiquidityFeeBps caps the admin-adjustable liquidity fee at 5%.
	MaxLiquidityFeeBps = 500
	// migrationThresholdBps lists a pool once its reserve reaches 99% of the
	// configured cap.
	migrationThresholdBps = 9_900
)

var (
	errFeeRateTooHigh     = errors.New("launch params: liquidity fee must not exceed 500 bps")
	errTradeFeeOutOfRange = errors.New("launch params: trade fee must be below 10000 bps")
	errInvalidCap         = errors.New("launch params: reserve cap must be positive")
	errInvalidRecipient   = errors.New("launch params: fee recipient not configured")
	errInvalidAllocation  = errors.New("launch params: allocations must be positive and partition total issuance")
)

// Params holds the process-wide launch configuration. Total issuance is split
// exactly between the trading allocation sold on the curve and the liquidity
// allocation reserved for migration.
type Params struct {
	TradeFeeBps         uint64
	LiquidityFeeBps     uint64
	ReserveCap          *big.Int
	FeeRecipient        [20]byte
	TotalIssuance       *big.Int
	TradingAllocation   *big.Int
	LiquidityAllocation *big.Int
}

// DefaultParams mirrors the canonical deployment: one billion tokens with an
// 800M/200M trading/liquidity split, a 1% trade fee and a 2.5% liquidity fee.
func DefaultParams() Params {
	tokens := func(n int64) *big.Int {
		v := big.NewInt(n)
		return v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	}
	return Params{
		TradeFeeBps:         100,
		LiquidityFeeBps:     250,
		ReserveCap:          tokens(10_000),
		TotalIssuance:       tokens(1_000_000_000),
		TradingAllocation:   tokens(800_000_000),
		LiquidityAllocation: tokens(200_000_000),
	}
}

// Validate enforces the parameter bounds shared by the engine and the config
// loader.
func (p Params) Validate() error {
	if p.TradeFeeBps >= feeDenominator {
		return errTradeFeeOutOfRange
	}
	if p.LiquidityFeeBps > MaxLiquidityFeeBps {
		return errFeeRateTooHigh
	}
	if p.ReserveCap == nil || p.ReserveCap.Sign() <= 0 {
		return errInvalidCap
	}
	if p.FeeRecipient == ([20]byte{}) {
		return errInvalidRecipient
	}
	if p.TotalIssuance == nil || p.TotalIssuance.Sign() <= 0 ||
		p.TradingAllocation == nil || p.TradingAllocation.Sign() <= 0 ||
		p.LiquidityAllocation == nil || p.LiquidityAllocation.Sign() <= 0 {
		return errInvalidAllocation
	}
	sum := new(big.Int).Add(p.TradingAllocation, p.LiquidityAllocation)
	if sum.Cmp(p.TotalIssuance) != 0 {
		return errInvalidAllocation
	}
	return nil
}

// Clone returns a deep copy of the parameters.
func (p Params) Clone() Params {
	clone := p
	if p.ReserveCap != nil {
		clone.ReserveCap = new(big.Int).Set(p.ReserveCap)
	}
	if p.TotalIssuance != nil {
		clone.TotalIssuance = new(big.Int).Set(p.TotalIssuance)
	}
	if p.TradingAllocation != nil {
		clone.TradingAllocation = new(big.Int).Set(p.TradingAllocation)
	}
	if p.LiquidityAllocation != nil {
		clone.LiquidityAllocation = new(big.Int).Set(p.LiquidityAllocation)
	}
	return clone
}
