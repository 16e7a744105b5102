package curve

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func fixedFromFloat(f float64) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(f), big.NewFloat(1e18))
	out, _ := scaled.Int(nil)
	return out
}

func floatFromFixed(v *big.Int) float64 {
	q := new(big.Float).SetInt(v)
	q.Quo(q, big.NewFloat(1e18))
	out, _ := q.Float64()
	return out
}

func assertRelative(t *testing.T, got *big.Int, want, tol float64) {
	t.Helper()
	g := floatFromFixed(got)
	if want == 0 {
		if g != 0 {
			t.Fatalf("expected zero, got %g", g)
		}
		return
	}
	if diff := math.Abs(g-want) / math.Abs(want); diff > tol {
		t.Fatalf("relative error %g exceeds %g (got %g want %g)", diff, tol, g, want)
	}
}

func TestLnAccuracy(t *testing.T) {
	inputs := []float64{1, 1.000001, 1.5, 2, math.E, 10, 1234.5678, 1e6, 1e12, 3.4e20}
	for _, in := range inputs {
		got, err := fpLn(fixedFromFloat(in))
		if err != nil {
			t.Fatalf("fpLn(%g): %v", in, err)
		}
		if in == 1 {
			if got.Sign() != 0 {
				t.Fatalf("fpLn(1) = %s, want 0", got)
			}
			continue
		}
		assertRelative(t, got, math.Log(in), 1e-9)
	}
}

func TestLnRejectsBelowOne(t *testing.T) {
	if _, err := fpLn(fixedFromFloat(0.5)); !errors.Is(err, ErrPrecisionFault) {
		t.Fatalf("expected precision fault, got %v", err)
	}
	if _, err := fpLn(nil); !errors.Is(err, ErrPrecisionFault) {
		t.Fatalf("expected precision fault for nil, got %v", err)
	}
}

func TestExpAccuracy(t *testing.T) {
	inputs := []float64{0, 0.1, 0.5, 1, 2, 5, 10, 42.42, 88}
	for _, in := range inputs {
		got, err := fpExp(fixedFromFloat(in))
		if err != nil {
			t.Fatalf("fpExp(%g): %v", in, err)
		}
		assertRelative(t, got, math.Exp(in), 1e-9)
	}
}

func TestExpDomain(t *testing.T) {
	if _, err := fpExp(big.NewInt(-1)); !errors.Is(err, ErrPrecisionFault) {
		t.Fatalf("expected precision fault for negative argument, got %v", err)
	}
	over := new(big.Int).Add(maxExpArgument, big.NewInt(1))
	if _, err := fpExp(over); !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected input too large, got %v", err)
	}
}

func TestPowAccuracy(t *testing.T) {
	cases := []struct {
		base, exp float64
	}{
		{1, 7},
		{2, 2},
		{2, 0.5},
		{1.0001, 2},
		{9, 0.5},
		{1000, 1.5},
		{1e6, 2},
		{3, 10},
	}
	for _, tc := range cases {
		got, err := fpPow(fixedFromFloat(tc.base), fixedFromFloat(tc.exp))
		if err != nil {
			t.Fatalf("fpPow(%g, %g): %v", tc.base, tc.exp, err)
		}
		assertRelative(t, got, math.Pow(tc.base, tc.exp), 1e-9)
	}
}

func TestPowAnyReciprocal(t *testing.T) {
	got, err := fpPowAny(fixedFromFloat(0.5), fixedFromFloat(2))
	if err != nil {
		t.Fatalf("fpPowAny: %v", err)
	}
	assertRelative(t, got, 0.25, 1e-9)

	got, err = fpPowAny(fixedFromFloat(0.25), fixedFromFloat(0.5))
	if err != nil {
		t.Fatalf("fpPowAny: %v", err)
	}
	assertRelative(t, got, 0.5, 1e-9)

	got, err = fpPowAny(big.NewInt(0), fixedFromFloat(2))
	if err != nil {
		t.Fatalf("fpPowAny zero base: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("0^2 = %s, want 0", got)
	}

	got, err = fpPowAny(fixedFromFloat(5), big.NewInt(0))
	if err != nil {
		t.Fatalf("fpPowAny zero exponent: %v", err)
	}
	if got.Cmp(fixedOne) != 0 {
		t.Fatalf("5^0 = %s, want 1", got)
	}
}

func TestPowMonotonicInBase(t *testing.T) {
	exp := fixedFromFloat(0.5)
	prev := big.NewInt(0)
	for _, base := range []float64{1, 1.5, 2, 4, 8, 100, 1e4, 1e8} {
		got, err := fpPow(fixedFromFloat(base), exp)
		if err != nil {
			t.Fatalf("fpPow(%g): %v", base, err)
		}
		if got.Cmp(prev) <= 0 {
			t.Fatalf("power not increasing at base %g: %s <= %s", base, got, prev)
		}
		prev = got
	}
}

func TestQuantityCeiling(t *testing.T) {
	if err := checkQuantity(maxFixedInput); err != nil {
		t.Fatalf("ceiling itself should pass: %v", err)
	}
	over := new(big.Int).Add(maxFixedInput, big.NewInt(1))
	if err := checkQuantity(over); !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected input too large, got %v", err)
	}
	if err := checkQuantity(big.NewInt(-1)); !errors.Is(err, ErrPrecisionFault) {
		t.Fatalf("expected precision fault for negative, got %v", err)
	}
}
