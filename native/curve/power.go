package curve

import (
	"errors"
	"math/big"
)

// Fixed-point ladder used by the pricing formulas. All values are 18-decimal
// fixed point big integers. Fractional powers are never computed directly;
// they are routed through fpLn/fpExp so intermediates stay bounded for large
// balances and supplies.
//
// Numeric contract:
//   - every external quantity must be below 2^128 (ErrInputTooLarge otherwise);
//   - the exponent argument exponent*ln(base) must stay at or below
//     maxExpArgument (100000 in fixed point), which covers every reserve ratio
//     of at least 0.1% across the full input domain;
//   - relative approximation error stays below 1e-9, enforced by the
//     error-bound tests in power_test.go;
//   - a negative value where a non-negative one is required aborts with
//     ErrPrecisionFault rather than clamping to zero.

var (
	// ErrInputTooLarge flags quantities beyond the supported magnitude ceiling.
	ErrInputTooLarge = errors.New("curve engine: input exceeds supported magnitude")
	// ErrDivisionByZero flags a zero denominator in a formula input.
	ErrDivisionByZero = errors.New("curve engine: division by zero denominator")
	// ErrPrecisionFault flags a negative intermediate inside the ladder. It is
	// an internal fault, not a caller error, and always aborts the operation.
	ErrPrecisionFault = errors.New("curve engine: precision fault in fixed-point ladder")
)

var (
	fixedOne = mustBigInt("1000000000000000000")
	fixedTwo = mustBigInt("2000000000000000000")
	// ln(2) scaled by 1e18, truncated.
	fixedLn2 = mustBigInt("693147180559945309")
	// Magnitude ceiling for every balance/supply/amount argument.
	maxFixedInput = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	// Ceiling on the exp argument; beyond it results are too wide to compute.
	maxExpArgument = new(big.Int).Mul(big.NewInt(100_000), mustBigInt("1000000000000000000"))
)

const seriesIterationCap = 200

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// fpLn computes ln(x) in fixed point for x >= 1. The input is normalised into
// [1, 2) by halving, then the remainder is evaluated through the atanh series
// ln(m) = 2*(z + z^3/3 + z^5/5 + ...) with z = (m-1)/(m+1), which converges in
// under twenty terms at this scale.
func fpLn(x *big.Int) (*big.Int, error) {
	if x == nil || x.Cmp(fixedOne) < 0 {
		return nil, ErrPrecisionFault
	}
	m := new(big.Int).Set(x)
	shifts := int64(0)
	for m.Cmp(fixedTwo) >= 0 {
		m.Rsh(m, 1)
		shifts++
	}

	num := new(big.Int).Sub(m, fixedOne)
	den := new(big.Int).Add(m, fixedOne)
	z := num.Mul(num, fixedOne)
	z.Quo(z, den)

	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, fixedOne)

	sum := big.NewInt(0)
	term := new(big.Int).Set(z)
	scratch := new(big.Int)
	for i := int64(1); i < seriesIterationCap; i += 2 {
		if term.Sign() == 0 {
			break
		}
		scratch.Quo(term, big.NewInt(i))
		sum.Add(sum, scratch)
		term.Mul(term, zSquared)
		term.Quo(term, fixedOne)
	}

	result := new(big.Int).Mul(big.NewInt(shifts), fixedLn2)
	result.Add(result, sum.Lsh(sum, 1))
	return result, nil
}

// fpExp computes e^x in fixed point for x >= 0. The argument is split into
// n*ln2 + r with r < ln2; e^r converges through its Taylor series in around
// twenty terms and the 2^n factor becomes a single shift.
func fpExp(x *big.Int) (*big.Int, error) {
	if x == nil || x.Sign() < 0 {
		return nil, ErrPrecisionFault
	}
	if x.Cmp(maxExpArgument) > 0 {
		return nil, ErrInputTooLarge
	}
	n := new(big.Int).Quo(x, fixedLn2)
	r := new(big.Int).Mul(n, fixedLn2)
	r.Sub(x, r)

	sum := new(big.Int).Set(fixedOne)
	term := new(big.Int).Set(fixedOne)
	for i := int64(1); i < seriesIterationCap; i++ {
		term.Mul(term, r)
		term.Quo(term, fixedOne)
		term.Quo(term, big.NewInt(i))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}
	return sum.Lsh(sum, uint(n.Uint64())), nil
}

// fpPow computes base^exponent for base >= 1 and exponent >= 0, both in fixed
// point, as exp(exponent*ln(base)).
func fpPow(base, exponent *big.Int) (*big.Int, error) {
	if base == nil || exponent == nil {
		return nil, ErrPrecisionFault
	}
	if exponent.Sign() == 0 || base.Cmp(fixedOne) == 0 {
		return new(big.Int).Set(fixedOne), nil
	}
	logBase, err := fpLn(base)
	if err != nil {
		return nil, err
	}
	arg := logBase.Mul(logBase, exponent)
	arg.Quo(arg, fixedOne)
	return fpExp(arg)
}

// fpPowAny extends fpPow to bases below 1 by raising the reciprocal and
// inverting the result. A zero base with a positive exponent is zero.
func fpPowAny(base, exponent *big.Int) (*big.Int, error) {
	if base == nil || exponent == nil {
		return nil, ErrPrecisionFault
	}
	if base.Sign() < 0 || exponent.Sign() < 0 {
		return nil, ErrPrecisionFault
	}
	if exponent.Sign() == 0 {
		return new(big.Int).Set(fixedOne), nil
	}
	if base.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if base.Cmp(fixedOne) >= 0 {
		return fpPow(base, exponent)
	}
	recip := new(big.Int).Mul(fixedOne, fixedOne)
	recip.Quo(recip, base)
	powed, err := fpPow(recip, exponent)
	if err != nil {
		return nil, err
	}
	if powed.Sign() <= 0 {
		return nil, ErrPrecisionFault
	}
	result := new(big.Int).Mul(fixedOne, fixedOne)
	result.Quo(result, powed)
	return result, nil
}

// checkQuantity validates a non-negative fixed-point input against the
// magnitude ceiling.
func checkQuantity(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrPrecisionFault
	}
	if v.Cmp(maxFixedInput) > 0 {
		return ErrInputTooLarge
	}
	return nil
}
