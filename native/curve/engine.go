// Package curve implements the continuous-reserve pricing math for launchpad
// pools: a Bancor-style bonding curve with a closed-form branch for the
// zero-supply bootstrap case. All quantities are 18-decimal fixed point and
// every function is pure and deterministic.
package curve

import (
	"errors"
	"math/big"
)

// MaxWeight is the denominator of the reserve ratio fraction. A reserve ratio
// of MaxWeight/(n+1) yields a polynomial price curve of degree n.
const MaxWeight = 1_000_000

var (
	// ErrInvalidParameters flags a non-positive slope or an out-of-range ratio.
	ErrInvalidParameters = errors.New("curve engine: slope must be positive and reserve ratio within (0, MaxWeight]")
	// ErrAmountExceedsSupply flags a burn larger than the circulating supply.
	ErrAmountExceedsSupply = errors.New("curve engine: amount exceeds circulating supply")
	// ErrReserveExceedsBalance flags a refund larger than the held reserve.
	ErrReserveExceedsBalance = errors.New("curve engine: reserve exceeds pool balance")
)

// Engine evaluates the pricing formulas for a fixed (slope, reserveRatio)
// parameterisation. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	slope        *big.Int
	reserveRatio uint64
}

// NewEngine validates the curve parameters and returns a pricing engine.
// slope is 18-decimal fixed point; reserveRatio is a fraction of MaxWeight.
func NewEngine(slope *big.Int, reserveRatio uint64) (*Engine, error) {
	if slope == nil || slope.Sign() <= 0 {
		return nil, ErrInvalidParameters
	}
	if reserveRatio == 0 || reserveRatio > MaxWeight {
		return nil, ErrInvalidParameters
	}
	return &Engine{slope: new(big.Int).Set(slope), reserveRatio: reserveRatio}, nil
}

// Slope returns a copy of the configured slope.
func (e *Engine) Slope() *big.Int { return new(big.Int).Set(e.slope) }

// ReserveRatio returns the configured ratio as a fraction of MaxWeight.
func (e *Engine) ReserveRatio() uint64 { return e.reserveRatio }

// inverseWeightFixed is MaxWeight/reserveRatio scaled into fixed point, the
// exponent used wherever the curve is evaluated in the supply direction.
func (e *Engine) inverseWeightFixed() *big.Int {
	exp := new(big.Int).Mul(big.NewInt(MaxWeight), fixedOne)
	return exp.Quo(exp, new(big.Int).SetUint64(e.reserveRatio))
}

// weightFixed is reserveRatio/MaxWeight scaled into fixed point.
func (e *Engine) weightFixed() *big.Int {
	exp := new(big.Int).Mul(new(big.Int).SetUint64(e.reserveRatio), fixedOne)
	return exp.Quo(exp, big.NewInt(MaxWeight))
}

// PriceToMint returns the reserve cost of minting amount tokens against the
// given balance and circulating supply.
//
// At zero supply the general formula divides by zero, so the closed-form
// integral of the linear price curve is used instead:
//
//	cost = reserveRatio * slope * amount^(MaxWeight/reserveRatio)
//
// For positive supply the cost equals the refund for selling amount tokens
// down from supply+amount, so the sale formula is evaluated there.
func (e *Engine) PriceToMint(balance, supply, amount *big.Int) (*big.Int, error) {
	if err := checkInputs(balance, supply, amount); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if supply.Sign() == 0 {
		powed, err := fpPowAny(amount, e.inverseWeightFixed())
		if err != nil {
			return nil, err
		}
		cost := powed.Mul(powed, e.slope)
		cost.Quo(cost, fixedOne)
		cost.Mul(cost, new(big.Int).SetUint64(e.reserveRatio))
		cost.Quo(cost, big.NewInt(MaxWeight))
		return cost, nil
	}
	upper := new(big.Int).Add(supply, amount)
	return e.saleReturn(upper, balance, amount)
}

// MintableForPrice returns the token amount minted for the given reserve
// contribution. It is the inverse of PriceToMint on both branches.
func (e *Engine) MintableForPrice(balance, supply, reserve *big.Int) (*big.Int, error) {
	if err := checkInputs(balance, supply, reserve); err != nil {
		return nil, err
	}
	if reserve.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if supply.Sign() == 0 {
		denom := new(big.Int).Mul(e.slope, new(big.Int).SetUint64(e.reserveRatio))
		if denom.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		base := new(big.Int).Mul(reserve, fixedOne)
		base.Mul(base, big.NewInt(MaxWeight))
		base.Quo(base, denom)
		if base.Sign() == 0 {
			return big.NewInt(0), nil
		}
		return fpPowAny(base, e.weightFixed())
	}
	return e.purchaseReturn(supply, balance, reserve)
}

// RefundForBurn returns the reserve released by burning amount tokens.
// Burning the entire circulating supply drains the whole balance directly,
// avoiding the formula singularity at zero remaining supply.
func (e *Engine) RefundForBurn(balance, supply, amount *big.Int) (*big.Int, error) {
	if err := checkInputs(balance, supply, amount); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if amount.Cmp(supply) > 0 {
		return nil, ErrAmountExceedsSupply
	}
	if amount.Cmp(supply) == 0 {
		return new(big.Int).Set(balance), nil
	}
	return e.saleReturn(supply, balance, amount)
}

// BurnableForRefund returns the token amount that must be burned to release
// the given reserve. Draining the entire balance returns the whole supply.
func (e *Engine) BurnableForRefund(balance, supply, reserve *big.Int) (*big.Int, error) {
	if err := checkInputs(balance, supply, reserve); err != nil {
		return nil, err
	}
	if reserve.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if reserve.Cmp(balance) > 0 {
		return nil, ErrReserveExceedsBalance
	}
	if reserve.Cmp(balance) == 0 {
		return new(big.Int).Set(supply), nil
	}
	remaining := new(big.Int).Sub(balance, reserve)
	return e.purchaseReturn(supply, remaining, reserve)
}

// CurrentPrice returns the marginal price at the given balance and supply.
func (e *Engine) CurrentPrice(balance, supply *big.Int) (*big.Int, error) {
	if err := checkInputs(balance, supply, big.NewInt(0)); err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		price := new(big.Int).Mul(e.slope, new(big.Int).SetUint64(e.reserveRatio))
		return price.Quo(price, big.NewInt(MaxWeight)), nil
	}
	price := new(big.Int).Mul(balance, fixedOne)
	price.Mul(price, big.NewInt(MaxWeight))
	denom := new(big.Int).Mul(supply, new(big.Int).SetUint64(e.reserveRatio))
	return price.Quo(price, denom), nil
}

// MarketCap returns CurrentPrice multiplied by the circulating supply, which
// collapses to balance*MaxWeight/reserveRatio on the curve.
func (e *Engine) MarketCap(balance, supply *big.Int) (*big.Int, error) {
	if err := checkInputs(balance, supply, big.NewInt(0)); err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	mcap := new(big.Int).Mul(balance, big.NewInt(MaxWeight))
	return mcap.Quo(mcap, new(big.Int).SetUint64(e.reserveRatio)), nil
}

// purchaseReturn implements the general purchase formula
//
//	supply * ((1 + reserve/balance)^(reserveRatio/MaxWeight) - 1)
func (e *Engine) purchaseReturn(supply, balance, reserve *big.Int) (*big.Int, error) {
	if balance.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	base := new(big.Int).Mul(reserve, fixedOne)
	base.Quo(base, balance)
	base.Add(base, fixedOne)
	powed, err := fpPow(base, e.weightFixed())
	if err != nil {
		return nil, err
	}
	if powed.Cmp(fixedOne) < 0 {
		return nil, ErrPrecisionFault
	}
	out := powed.Sub(powed, fixedOne)
	out.Mul(out, supply)
	return out.Quo(out, fixedOne), nil
}

// saleReturn implements the general sale formula
//
//	balance * (1 - (1 - amount/supply)^(MaxWeight/reserveRatio))
//
// evaluated through the reciprocal base supply/(supply-amount) so the ladder
// only ever raises values at or above one.
func (e *Engine) saleReturn(supply, balance, amount *big.Int) (*big.Int, error) {
	if supply.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if amount.Cmp(supply) > 0 {
		return nil, ErrAmountExceedsSupply
	}
	if amount.Cmp(supply) == 0 {
		return new(big.Int).Set(balance), nil
	}
	remaining := new(big.Int).Sub(supply, amount)
	base := new(big.Int).Mul(supply, fixedOne)
	base.Quo(base, remaining)
	powed, err := fpPow(base, e.inverseWeightFixed())
	if err != nil {
		return nil, err
	}
	if powed.Cmp(fixedOne) < 0 {
		return nil, ErrPrecisionFault
	}
	refund := new(big.Int).Sub(powed, fixedOne)
	refund.Mul(refund, balance)
	return refund.Quo(refund, powed), nil
}

func checkInputs(values ...*big.Int) error {
	for _, v := range values {
		if err := checkQuantity(v); err != nil {
			return err
		}
	}
	return nil
}
