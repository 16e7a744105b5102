package events

import (
	"math/big"

	"launchpad/crypto"
)

const (
	// TypeLaunchPoolCreated is emitted when a new bonding-curve pool opens.
	TypeLaunchPoolCreated = "launch.pool.created"
	// TypeLaunchTradeExecuted is emitted for every settled buy or sell.
	TypeLaunchTradeExecuted = "launch.trade.executed"
	// TypeLaunchMigrationExecuted is emitted when a pool hands off to the AMM.
	TypeLaunchMigrationExecuted = "launch.migration.executed"
)

// Trade directions carried by LaunchTradeExecuted.
const (
	TradeDirectionBuy  = "buy"
	TradeDirectionSell = "sell"
)

type LaunchPoolCreated struct {
	PoolID  string
	Name    string
	Symbol  string
	Creator [20]byte
}

func (LaunchPoolCreated) EventType() string { return TypeLaunchPoolCreated }

// Attributes flattens the event for transport-level encoding.
func (e LaunchPoolCreated) Attributes() map[string]string {
	return map[string]string{
		"poolId":  e.PoolID,
		"name":    e.Name,
		"symbol":  e.Symbol,
		"creator": crypto.NewAddress(e.Creator).String(),
	}
}

type LaunchTradeExecuted struct {
	PoolID      string
	Direction   string
	Trader      [20]byte
	TokenAmount *big.Int
	ReserveIn   *big.Int
	ReserveOut  *big.Int
	Fee         *big.Int
}

func (LaunchTradeExecuted) EventType() string { return TypeLaunchTradeExecuted }

func (e LaunchTradeExecuted) Attributes() map[string]string {
	return map[string]string{
		"poolId":      e.PoolID,
		"direction":   e.Direction,
		"trader":      crypto.NewAddress(e.Trader).String(),
		"tokenAmount": bigString(e.TokenAmount),
		"reserveIn":   bigString(e.ReserveIn),
		"reserveOut":  bigString(e.ReserveOut),
		"fee":         bigString(e.Fee),
	}
}

type LaunchMigrationExecuted struct {
	PoolID         string
	ReserveDeposit *big.Int
	TokenDeposit   *big.Int
	LiquidityFee   *big.Int
	LPSharesIssued *big.Int
	TriggeredByBuy bool
}

func (LaunchMigrationExecuted) EventType() string { return TypeLaunchMigrationExecuted }

func (e LaunchMigrationExecuted) Attributes() map[string]string {
	triggered := "admin"
	if e.TriggeredByBuy {
		triggered = "buy"
	}
	return map[string]string{
		"poolId":         e.PoolID,
		"reserveDeposit": bigString(e.ReserveDeposit),
		"tokenDeposit":   bigString(e.TokenDeposit),
		"liquidityFee":   bigString(e.LiquidityFee),
		"lpShares":       bigString(e.LPSharesIssued),
		"trigger":        triggered,
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
