package config

import (
	"os"
	"path/filepath"
	"testing"

	"launchpad/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	if cfg.RPCAddress == "" || cfg.DataDir == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	// The default is deliberately unusable until a fee recipient is set.
	if _, err := cfg.LaunchParams(); err == nil {
		t.Fatal("default config must not yield launch params without a fee recipient")
	}
}

func TestLoadExistingAndConvert(t *testing.T) {
	var raw [20]byte
	raw[19] = 1
	recipient := crypto.NewAddress(raw).String()

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
RPCAddress = ":9999"
FeeRecipient = "` + recipient + `"
TradeFeeBps = 50
LiquidityFeeBps = 250
ReserveCapWei = "1000"
TotalIssuanceWei = "125"
TradingAllocationWei = "100"
LiquidityAllocationWei = "25"
CurveSlopeWei = "2000000000000000000"
CurveReserveRatio = 500000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9999" {
		t.Fatalf("RPCAddress = %q, want :9999", cfg.RPCAddress)
	}
	if cfg.DataDir == "" {
		t.Fatal("missing fields must fall back to defaults")
	}

	params, err := cfg.LaunchParams()
	if err != nil {
		t.Fatalf("launch params: %v", err)
	}
	if params.TradeFeeBps != 50 || params.FeeRecipient != raw {
		t.Fatalf("params not converted: %+v", params)
	}
	slope, ratio, err := cfg.CurveParams()
	if err != nil {
		t.Fatalf("curve params: %v", err)
	}
	if slope.String() != "2000000000000000000" || ratio != 500_000 {
		t.Fatalf("curve params = %s/%d", slope, ratio)
	}
}

func TestLaunchParamsRejectsBadValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.FeeRecipient = "not-an-address"
	if _, err := cfg.LaunchParams(); err == nil {
		t.Fatal("invalid recipient must be rejected")
	}

	var raw [20]byte
	raw[19] = 1
	cfg = defaultConfig()
	cfg.FeeRecipient = crypto.NewAddress(raw).String()
	cfg.TradingAllocationWei = "999"
	if _, err := cfg.LaunchParams(); err == nil {
		t.Fatal("allocations that do not partition total issuance must be rejected")
	}

	cfg = defaultConfig()
	cfg.CurveReserveRatio = 2_000_000
	if _, _, err := cfg.CurveParams(); err == nil {
		t.Fatal("reserve ratio above the weight denominator must be rejected")
	}
	cfg = defaultConfig()
	cfg.CurveSlopeWei = "0"
	if _, _, err := cfg.CurveParams(); err == nil {
		t.Fatal("zero slope must be rejected")
	}
}
