// Package config loads the launchpad daemon configuration from a TOML file,
// creating a commented default on first run. Amount fields are decimal wei
// strings so they survive TOML's integer range.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"launchpad/crypto"
	"launchpad/native/curve"
	"launchpad/native/launch"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`

	// FeeRecipient is the bech32 address trade and liquidity fees accrue to.
	// The daemon refuses to start until it is set.
	FeeRecipient    string `toml:"FeeRecipient"`
	TradeFeeBps     uint64 `toml:"TradeFeeBps"`
	LiquidityFeeBps uint64 `toml:"LiquidityFeeBps"`

	ReserveCapWei          string `toml:"ReserveCapWei"`
	TotalIssuanceWei       string `toml:"TotalIssuanceWei"`
	TradingAllocationWei   string `toml:"TradingAllocationWei"`
	LiquidityAllocationWei string `toml:"LiquidityAllocationWei"`

	CurveSlopeWei     string `toml:"CurveSlopeWei"`
	CurveReserveRatio uint64 `toml:"CurveReserveRatio"`

	RPCRateLimitPerSecond float64 `toml:"RPCRateLimitPerSecond"`
	RPCRateLimitBurst     int     `toml:"RPCRateLimitBurst"`

	OTLPEndpoint string `toml:"OTLPEndpoint"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := defaultConfig()
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaults.RPCAddress
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = defaults.MetricsAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if c.TradeFeeBps == 0 {
		c.TradeFeeBps = defaults.TradeFeeBps
	}
	if c.LiquidityFeeBps == 0 {
		c.LiquidityFeeBps = defaults.LiquidityFeeBps
	}
	if strings.TrimSpace(c.ReserveCapWei) == "" {
		c.ReserveCapWei = defaults.ReserveCapWei
	}
	if strings.TrimSpace(c.TotalIssuanceWei) == "" {
		c.TotalIssuanceWei = defaults.TotalIssuanceWei
	}
	if strings.TrimSpace(c.TradingAllocationWei) == "" {
		c.TradingAllocationWei = defaults.TradingAllocationWei
	}
	if strings.TrimSpace(c.LiquidityAllocationWei) == "" {
		c.LiquidityAllocationWei = defaults.LiquidityAllocationWei
	}
	if strings.TrimSpace(c.CurveSlopeWei) == "" {
		c.CurveSlopeWei = defaults.CurveSlopeWei
	}
	if c.CurveReserveRatio == 0 {
		c.CurveReserveRatio = defaults.CurveReserveRatio
	}
	if c.RPCRateLimitPerSecond <= 0 {
		c.RPCRateLimitPerSecond = defaults.RPCRateLimitPerSecond
	}
	if c.RPCRateLimitBurst <= 0 {
		c.RPCRateLimitBurst = defaults.RPCRateLimitBurst
	}
}

func defaultConfig() *Config {
	defaults := launch.DefaultParams()
	return &Config{
		RPCAddress:             ":8545",
		MetricsAddress:         ":9090",
		DataDir:                "./launchpad-data",
		TradeFeeBps:            defaults.TradeFeeBps,
		LiquidityFeeBps:        defaults.LiquidityFeeBps,
		ReserveCapWei:          defaults.ReserveCap.String(),
		TotalIssuanceWei:       defaults.TotalIssuance.String(),
		TradingAllocationWei:   defaults.TradingAllocation.String(),
		LiquidityAllocationWei: defaults.LiquidityAllocation.String(),
		CurveSlopeWei:          "1000000000000000000",
		CurveReserveRatio:      500_000,
		RPCRateLimitPerSecond:  50,
		RPCRateLimitBurst:      100,
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// LaunchParams converts the raw config values into validated engine
// parameters.
func (c *Config) LaunchParams() (launch.Params, error) {
	params := launch.Params{
		TradeFeeBps:     c.TradeFeeBps,
		LiquidityFeeBps: c.LiquidityFeeBps,
	}
	if strings.TrimSpace(c.FeeRecipient) == "" {
		return launch.Params{}, fmt.Errorf("config: FeeRecipient must be set to an lpd address")
	}
	recipient, err := crypto.ParseAddress(strings.TrimSpace(c.FeeRecipient))
	if err != nil {
		return launch.Params{}, fmt.Errorf("config: FeeRecipient: %w", err)
	}
	params.FeeRecipient = recipient.Raw()

	if params.ReserveCap, err = parseWei("ReserveCapWei", c.ReserveCapWei); err != nil {
		return launch.Params{}, err
	}
	if params.TotalIssuance, err = parseWei("TotalIssuanceWei", c.TotalIssuanceWei); err != nil {
		return launch.Params{}, err
	}
	if params.TradingAllocation, err = parseWei("TradingAllocationWei", c.TradingAllocationWei); err != nil {
		return launch.Params{}, err
	}
	if params.LiquidityAllocation, err = parseWei("LiquidityAllocationWei", c.LiquidityAllocationWei); err != nil {
		return launch.Params{}, err
	}
	if err := params.Validate(); err != nil {
		return launch.Params{}, err
	}
	return params, nil
}

// CurveParams returns the pricing engine arguments.
func (c *Config) CurveParams() (*big.Int, uint64, error) {
	slope, err := parseWei("CurveSlopeWei", c.CurveSlopeWei)
	if err != nil {
		return nil, 0, err
	}
	if slope.Sign() == 0 {
		return nil, 0, fmt.Errorf("config: CurveSlopeWei must be positive")
	}
	if c.CurveReserveRatio == 0 || c.CurveReserveRatio > curve.MaxWeight {
		return nil, 0, fmt.Errorf("config: CurveReserveRatio must be within (0, %d]", curve.MaxWeight)
	}
	return slope, c.CurveReserveRatio, nil
}

func parseWei(field, value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must be a non-negative decimal wei string, got %q", field, value)
	}
	return parsed, nil
}
