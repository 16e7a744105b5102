package curve

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func testEngine(t *testing.T, ratio uint64) *Engine {
	t.Helper()
	engine, err := NewEngine(fixedFromFloat(1), ratio)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(nil, 500_000); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters for nil slope, got %v", err)
	}
	if _, err := NewEngine(big.NewInt(0), 500_000); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters for zero slope, got %v", err)
	}
	if _, err := NewEngine(fixedFromFloat(1), 0); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters for zero ratio, got %v", err)
	}
	if _, err := NewEngine(fixedFromFloat(1), MaxWeight+1); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters for ratio above MaxWeight, got %v", err)
	}
}

func TestZeroSupplyClosedForm(t *testing.T) {
	// ratio 500000 is weight 1/2, so cost = 0.5 * slope * amount^2.
	engine := testEngine(t, 500_000)
	cost, err := engine.PriceToMint(big.NewInt(0), big.NewInt(0), fixedFromFloat(2))
	if err != nil {
		t.Fatalf("price to mint: %v", err)
	}
	assertRelative(t, cost, 2, 1e-6)

	// Inverse branch recovers the amount from the cost.
	amount, err := engine.MintableForPrice(big.NewInt(0), big.NewInt(0), cost)
	if err != nil {
		t.Fatalf("mintable for price: %v", err)
	}
	assertRelative(t, amount, 2, 1e-6)
}

func TestZeroSupplyFirstBuyScenario(t *testing.T) {
	engine := testEngine(t, 500_000)
	reserve := fixedFromFloat(1)

	first, err := engine.MintableForPrice(big.NewInt(0), big.NewInt(0), reserve)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	// amount = (reserve / (0.5 * slope))^0.5 = sqrt(2)
	assertRelative(t, first, math.Sqrt2, 1e-6)

	second, err := engine.MintableForPrice(reserve, first, reserve)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if second.Cmp(first) >= 0 {
		t.Fatalf("second buy of equal reserve must mint strictly fewer tokens: first %s second %s", first, second)
	}
}

func TestPriceToMintMonotonicInAmount(t *testing.T) {
	engine := testEngine(t, 500_000)
	balance := fixedFromFloat(500)
	supply := fixedFromFloat(1000)
	prev := big.NewInt(0)
	for _, amount := range []float64{1, 2, 5, 10, 50, 100, 500} {
		cost, err := engine.PriceToMint(balance, supply, fixedFromFloat(amount))
		if err != nil {
			t.Fatalf("price to mint %g: %v", amount, err)
		}
		if cost.Cmp(prev) <= 0 {
			t.Fatalf("cost not strictly increasing at amount %g: %s <= %s", amount, cost, prev)
		}
		prev = cost
	}
}

func TestMintableIsLeftInverse(t *testing.T) {
	engine := testEngine(t, 500_000)
	balance := fixedFromFloat(10_000)
	supply := fixedFromFloat(1_000_000)
	// Small trades relative to supply so the buy/sell continuity approximation
	// stays inside the documented tolerance.
	amount := fixedFromFloat(100)

	cost, err := engine.PriceToMint(balance, supply, amount)
	if err != nil {
		t.Fatalf("price to mint: %v", err)
	}
	minted, err := engine.MintableForPrice(balance, supply, cost)
	if err != nil {
		t.Fatalf("mintable for price: %v", err)
	}
	assertRelative(t, minted, floatFromFixed(amount), 1e-3)
}

func TestRoundTripNeverCreatesValue(t *testing.T) {
	engine := testEngine(t, 500_000)
	balance := fixedFromFloat(10_000)
	supply := fixedFromFloat(1_000_000)

	for _, contribution := range []float64{1, 10, 100, 5000} {
		reserve := fixedFromFloat(contribution)
		minted, err := engine.MintableForPrice(balance, supply, reserve)
		if err != nil {
			t.Fatalf("mintable: %v", err)
		}
		refund, err := engine.RefundForBurn(balance, supply, minted)
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if refund.Cmp(reserve) > 0 {
			t.Fatalf("round trip created value: paid %s, refunded %s", reserve, refund)
		}
	}
}

func TestFullDrainEdges(t *testing.T) {
	engine := testEngine(t, 500_000)
	balance := fixedFromFloat(321.5)
	supply := fixedFromFloat(7_777)

	refund, err := engine.RefundForBurn(balance, supply, supply)
	if err != nil {
		t.Fatalf("refund full supply: %v", err)
	}
	if refund.Cmp(balance) != 0 {
		t.Fatalf("burning full supply must refund exact balance: got %s want %s", refund, balance)
	}

	amount, err := engine.BurnableForRefund(balance, supply, balance)
	if err != nil {
		t.Fatalf("burnable full balance: %v", err)
	}
	if amount.Cmp(supply) != 0 {
		t.Fatalf("draining full balance must burn exact supply: got %s want %s", amount, supply)
	}
}

func TestDomainRejections(t *testing.T) {
	engine := testEngine(t, 500_000)
	balance := fixedFromFloat(100)
	supply := fixedFromFloat(1000)

	if _, err := engine.RefundForBurn(balance, supply, fixedFromFloat(1001)); !errors.Is(err, ErrAmountExceedsSupply) {
		t.Fatalf("expected amount exceeds supply, got %v", err)
	}
	if _, err := engine.BurnableForRefund(balance, supply, fixedFromFloat(101)); !errors.Is(err, ErrReserveExceedsBalance) {
		t.Fatalf("expected reserve exceeds balance, got %v", err)
	}
	if _, err := engine.MintableForPrice(big.NewInt(0), supply, fixedFromFloat(1)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero with empty balance, got %v", err)
	}
	over := new(big.Int).Add(maxFixedInput, big.NewInt(1))
	if _, err := engine.PriceToMint(balance, supply, over); !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected input too large, got %v", err)
	}
}

func TestCurrentPriceAndMarketCap(t *testing.T) {
	engine := testEngine(t, 500_000)
	balance := fixedFromFloat(100)
	supply := fixedFromFloat(1000)

	// price = balance / (weight * supply) = 100 / (0.5 * 1000) = 0.2
	price, err := engine.CurrentPrice(balance, supply)
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	assertRelative(t, price, 0.2, 1e-9)

	// market cap = balance / weight = 200
	mcap, err := engine.MarketCap(balance, supply)
	if err != nil {
		t.Fatalf("market cap: %v", err)
	}
	assertRelative(t, mcap, 200, 1e-9)

	// Bootstrap price is the curve intercept, weight * slope.
	price, err = engine.CurrentPrice(big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("bootstrap price: %v", err)
	}
	assertRelative(t, price, 0.5, 1e-9)
}

func TestZeroAmountsQuoteZero(t *testing.T) {
	engine := testEngine(t, 500_000)
	zero := big.NewInt(0)
	balance := fixedFromFloat(100)
	supply := fixedFromFloat(1000)

	for name, fn := range map[string]func() (*big.Int, error){
		"priceToMint":       func() (*big.Int, error) { return engine.PriceToMint(balance, supply, zero) },
		"mintableForPrice":  func() (*big.Int, error) { return engine.MintableForPrice(balance, supply, zero) },
		"refundForBurn":     func() (*big.Int, error) { return engine.RefundForBurn(balance, supply, zero) },
		"burnableForRefund": func() (*big.Int, error) { return engine.BurnableForRefund(balance, supply, zero) },
	} {
		out, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if out.Sign() != 0 {
			t.Fatalf("%s with zero input should be zero, got %s", name, out)
		}
	}
}
