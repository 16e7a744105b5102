// Package launch implements the bonding-curve pool controller: it owns one
// ledger entry per market, sequences fee extraction around the pricing engine,
// settles reserve and token transfers, and performs the one-way migration to
// the external AMM once a pool fills up or sells out.
package launch

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/amm"
	"launchpad/native/token"
)

// Error kinds surfaced by the controller. Every failure aborts the whole
// operation; nothing is retried internally.
var (
	ErrPoolNotFound        = errors.New("launch engine: pool not found")
	ErrPoolExists          = errors.New("launch engine: pool already exists")
	ErrInvalidPhase        = errors.New("launch engine: pool already listed")
	ErrInvalidAmount       = errors.New("launch engine: amount must be positive")
	ErrInvalidName         = errors.New("launch engine: invalid token name or symbol")
	ErrCapacityExceeded    = errors.New("launch engine: reserve cap reached")
	ErrInsufficientReserve = errors.New("launch engine: payout exceeds held reserve")
	ErrInsufficientFunds   = errors.New("launch engine: insufficient balance")
	ErrTransferFailed      = errors.New("launch engine: transfer failed")
	ErrReentrancy          = errors.New("launch engine: reentrant call into guarded operation")
	errNilState            = errors.New("launch engine: state not configured")
	errNilPricing          = errors.New("launch engine: pricing engine not configured")
	errNilLedger           = errors.New("launch engine: token ledger not configured")
	errNilVenue            = errors.New("launch engine: liquidity venue not configured")
)

// venueAddress is the ledger account holding assets handed to the AMM. It is
// not backed by a key; only the venue reference implementation draws on it.
var venueAddress = crypto.DeriveVaultAddress([20]byte{}, "amm-venue")

// engineState is the persistence surface the controller depends on. Begin,
// Commit and Rollback bound each mutating operation so that every ledger write
// and collaborator transfer in a call lands atomically or not at all.
type engineState interface {
	Begin()
	Commit() error
	Rollback()

	LaunchPoolGet(id string) (*Pool, bool, error)
	LaunchPoolPut(pool *Pool) error
	LaunchPoolIDs() ([]string, error)
	LaunchPoolIndexAppend(id string) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// PricingEngine is the curve math consumed by the controller.
type PricingEngine interface {
	PriceToMint(balance, supply, amount *big.Int) (*big.Int, error)
	MintableForPrice(balance, supply, reserve *big.Int) (*big.Int, error)
	RefundForBurn(balance, supply, amount *big.Int) (*big.Int, error)
	BurnableForRefund(balance, supply, reserve *big.Int) (*big.Int, error)
	CurrentPrice(balance, supply *big.Int) (*big.Int, error)
	MarketCap(balance, supply *big.Int) (*big.Int, error)
}

// TokenLedger is the fungible-asset collaborator. A failed transfer is a
// fatal abort of the whole call.
type TokenLedger interface {
	MintInitial(id, name, symbol string, owner [20]byte, total *big.Int) (*token.Token, error)
	Transfer(id string, from, to [20]byte, amount *big.Int) error
	TransferFrom(id string, spender, from, to [20]byte, amount *big.Int) error
	BalanceOf(id string, holder [20]byte) (*big.Int, error)
	RevokePrivilegedRole(id string) error
}

// LiquidityVenue is the external AMM the migration deposits into.
type LiquidityVenue interface {
	AddLiquidity(tokenID string, reserveAmount, tokenAmount, minReserve, minToken *big.Int, recipient [20]byte, deadline int64) (*amm.DepositResult, error)
}

// Engine drives trade settlement and migration for every launch pool.
type Engine struct {
	state   engineState
	pricing PricingEngine
	ledger  TokenLedger
	venue   LiquidityVenue
	emitter events.Emitter
	params  Params
	nowFn   func() int64

	mu   sync.Mutex
	busy bool
}

// NewEngine constructs a controller with validated parameters and default
// dependencies.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params.Clone(),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPricing wires the curve engine used for every quote and settlement.
func (e *Engine) SetPricing(pricing PricingEngine) { e.pricing = pricing }

// SetLedger wires the fungible token ledger.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetVenue wires the AMM the migration transition deposits into.
func (e *Engine) SetVenue(venue LiquidityVenue) { e.venue = venue }

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns a copy of the current parameters.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Clone()
}

// updateParams applies an admin mutation to the parameters. The write lands
// only while no operation is in flight, so a settling trade always sees the
// parameters it started with.
func (e *Engine) updateParams(apply func(*Params)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrReentrancy
	}
	apply(&e.params)
	return nil
}

// SetFeeRecipient replaces the fee payout address.
func (e *Engine) SetFeeRecipient(recipient [20]byte) error {
	if recipient == ([20]byte{}) {
		return errInvalidRecipient
	}
	return e.updateParams(func(p *Params) { p.FeeRecipient = recipient })
}

// SetLiquidityFeeBps adjusts the migration fee, bounded at 5%.
func (e *Engine) SetLiquidityFeeBps(bps uint64) error {
	if bps > MaxLiquidityFeeBps {
		return errFeeRateTooHigh
	}
	return e.updateParams(func(p *Params) { p.LiquidityFeeBps = bps })
}

// SetReserveCap replaces the reserve cap for subsequent buys.
func (e *Engine) SetReserveCap(cap *big.Int) error {
	if cap == nil || cap.Sign() <= 0 {
		return errInvalidCap
	}
	value := new(big.Int).Set(cap)
	return e.updateParams(func(p *Params) { p.ReserveCap = value })
}

// guard acquires the reentrancy lock for a mutating operation. A nested call
// while one is in flight is a safety violation, not a retryable condition.
func (e *Engine) guard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrReentrancy
	}
	e.busy = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

func (e *Engine) checkWiring() error {
	switch {
	case e.state == nil:
		return errNilState
	case e.pricing == nil:
		return errNilPricing
	case e.ledger == nil:
		return errNilLedger
	case e.venue == nil:
		return errNilVenue
	}
	return nil
}

// Create registers a new pool, mints the full issuance to its vault and moves
// the trading allocation into controller inventory. When initialReserve is
// positive the creator's buy settles in the same atomic call.
func (e *Engine) Create(creator [20]byte, name, symbol string, initialReserve *big.Int) (*CreateResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	defer e.release()
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	trimmedName := strings.TrimSpace(name)
	sym, err := sanitizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if trimmedName == "" || len(trimmedName) > 64 {
		return nil, ErrInvalidName
	}

	vault := crypto.DeriveVaultAddress(creator, sym)
	id := hex.EncodeToString(vault[:])
	if existing, ok, err := e.state.LaunchPoolGet(id); err != nil {
		return nil, err
	} else if ok && existing != nil {
		return nil, ErrPoolExists
	}

	e.state.Begin()
	pool := &Pool{
		ID:             id,
		Name:           trimmedName,
		Symbol:         sym,
		Creator:        creator,
		Vault:          vault,
		ReserveBalance: big.NewInt(0),
		TokenInventory: new(big.Int).Set(e.params.TradingAllocation),
		Phase:          PhaseTrading,
		CreatedAt:      uint64(e.nowFn()),
	}
	if _, err := e.ledger.MintInitial(id, trimmedName, sym, vault, e.params.TotalIssuance); err != nil {
		e.state.Rollback()
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.LaunchPoolPut(pool); err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.LaunchPoolIndexAppend(id); err != nil {
		e.state.Rollback()
		return nil, err
	}

	evts := []events.Event{events.LaunchPoolCreated{
		PoolID:  id,
		Name:    trimmedName,
		Symbol:  sym,
		Creator: creator,
	}}

	var trade *TradeResult
	if initialReserve != nil && initialReserve.Sign() > 0 {
		trade, pool, err = e.buyLocked(pool, creator, initialReserve, &evts)
		if err != nil {
			e.state.Rollback()
			return nil, err
		}
	}

	if err := e.state.Commit(); err != nil {
		e.state.Rollback()
		return nil, err
	}
	for _, evt := range evts {
		e.emitter.Emit(evt)
	}
	return &CreateResult{Pool: pool.Clone(), Trade: trade}, nil
}

// Buy settles a reserve contribution against the curve.
func (e *Engine) Buy(buyer [20]byte, poolID string, reserveSent *big.Int) (*TradeResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	defer e.release()
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}

	e.state.Begin()
	evts := make([]events.Event, 0, 2)
	result, _, err := e.buyLocked(pool, buyer, reserveSent, &evts)
	if err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Rollback()
		return nil, err
	}
	for _, evt := range evts {
		e.emitter.Emit(evt)
	}
	return result, nil
}

// buyLocked runs the buy sequence inside an open transaction: cap clamp, fee
// split, curve quote, inventory clamp, commit, transfers, migration check.
func (e *Engine) buyLocked(pool *Pool, buyer [20]byte, reserveSent *big.Int, evts *[]events.Event) (*TradeResult, *Pool, error) {
	terms, err := e.computeBuyTerms(e.params, pool, reserveSent)
	if err != nil {
		return nil, nil, err
	}

	buyerAccount, err := e.getAccount(buyer)
	if err != nil {
		return nil, nil, err
	}
	if buyerAccount.Balance.Cmp(reserveSent) < 0 {
		return nil, nil, ErrInsufficientFunds
	}

	pool = pool.Clone()
	pool.ReserveBalance = new(big.Int).Add(pool.ReserveBalance, terms.forTokens)
	pool.TokenInventory = new(big.Int).Sub(pool.TokenInventory, terms.tokensOut)
	if err := e.state.LaunchPoolPut(pool); err != nil {
		return nil, nil, err
	}

	// The full amount sent moves into the vault; fee and unused excess then
	// leave it, so the vault nets exactly the reserve increase.
	if err := e.moveReserve(buyer, pool.Vault, reserveSent); err != nil {
		return nil, nil, err
	}
	if terms.fee.Sign() > 0 {
		if err := e.moveReserve(pool.Vault, e.params.FeeRecipient, terms.fee); err != nil {
			return nil, nil, err
		}
	}
	if err := e.ledger.Transfer(pool.ID, pool.Vault, buyer, terms.tokensOut); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	refund := new(big.Int).Sub(reserveSent, terms.contribution)
	if refund.Sign() > 0 {
		if err := e.moveReserve(pool.Vault, buyer, refund); err != nil {
			return nil, nil, err
		}
	}

	*evts = append(*evts, events.LaunchTradeExecuted{
		PoolID:      pool.ID,
		Direction:   events.TradeDirectionBuy,
		Trader:      buyer,
		TokenAmount: new(big.Int).Set(terms.tokensOut),
		ReserveIn:   new(big.Int).Set(terms.contribution),
		Fee:         new(big.Int).Set(terms.fee),
	})

	migrated := false
	if e.shouldMigrate(pool) {
		pool, err = e.migrateLocked(pool, true, evts)
		if err != nil {
			return nil, nil, err
		}
		migrated = true
	}

	return &TradeResult{
		PoolID:       pool.ID,
		Direction:    events.TradeDirectionBuy,
		TokenAmount:  terms.tokensOut,
		Contribution: terms.contribution,
		Fee:          terms.fee,
		Refund:       refund,
		Clamped:      terms.clamped,
		Migrated:     migrated,
	}, pool, nil
}

// Sell burns tokens back into the curve for a reserve payout. Selling never
// triggers migration.
func (e *Engine) Sell(seller [20]byte, poolID string, tokenAmount *big.Int) (*TradeResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	defer e.release()
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	terms, err := e.computeSellTerms(e.params, pool, tokenAmount)
	if err != nil {
		return nil, err
	}

	e.state.Begin()
	pool = pool.Clone()
	pool.ReserveBalance = new(big.Int).Sub(pool.ReserveBalance, terms.reserveOut)
	pool.TokenInventory = new(big.Int).Add(pool.TokenInventory, tokenAmount)
	if err := e.state.LaunchPoolPut(pool); err != nil {
		e.state.Rollback()
		return nil, err
	}

	if terms.fee.Sign() > 0 {
		if err := e.moveReserve(pool.Vault, e.params.FeeRecipient, terms.fee); err != nil {
			e.state.Rollback()
			return nil, err
		}
	}
	if err := e.ledger.TransferFrom(pool.ID, pool.Vault, seller, pool.Vault, tokenAmount); err != nil {
		e.state.Rollback()
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.moveReserve(pool.Vault, seller, terms.payout); err != nil {
		e.state.Rollback()
		return nil, err
	}

	if err := e.state.Commit(); err != nil {
		e.state.Rollback()
		return nil, err
	}
	e.emitter.Emit(events.LaunchTradeExecuted{
		PoolID:      pool.ID,
		Direction:   events.TradeDirectionSell,
		Trader:      seller,
		TokenAmount: new(big.Int).Set(tokenAmount),
		ReserveOut:  new(big.Int).Set(terms.payout),
		Fee:         new(big.Int).Set(terms.fee),
	})
	return &TradeResult{
		PoolID:      pool.ID,
		Direction:   events.TradeDirectionSell,
		TokenAmount: new(big.Int).Set(tokenAmount),
		Payout:      terms.payout,
		Fee:         terms.fee,
	}, nil
}

// Migrate lists a pool ahead of its trigger. It runs the same transition a
// buy-triggered migration does and fails once the pool is already listed.
func (e *Engine) Migrate(poolID string) (*Pool, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	defer e.release()
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}

	e.state.Begin()
	evts := make([]events.Event, 0, 1)
	pool, err = e.migrateLocked(pool.Clone(), false, &evts)
	if err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Rollback()
		return nil, err
	}
	for _, evt := range evts {
		e.emitter.Emit(evt)
	}
	return pool.Clone(), nil
}

// migrateLocked executes the one-way transition. Every ledger mutation lands
// before any external call so a reentering callee observes a consistent,
// already-listed pool.
func (e *Engine) migrateLocked(pool *Pool, triggeredByBuy bool, evts *[]events.Event) (*Pool, error) {
	if pool.Phase == PhaseListed {
		return nil, ErrInvalidPhase
	}
	reserve := new(big.Int).Set(pool.ReserveBalance)
	lpFee := mulBps(reserve, e.params.LiquidityFeeBps)
	forLiquidity := new(big.Int).Sub(reserve, lpFee)
	tokenDeposit := new(big.Int).Add(e.params.LiquidityAllocation, pool.TokenInventory)

	pool.ReserveBalance = big.NewInt(0)
	pool.TokenInventory = big.NewInt(0)
	pool.Phase = PhaseListed
	pool.ListedAt = uint64(e.nowFn())
	if err := e.state.LaunchPoolPut(pool); err != nil {
		return nil, err
	}

	if lpFee.Sign() > 0 {
		if err := e.moveReserve(pool.Vault, e.params.FeeRecipient, lpFee); err != nil {
			return nil, err
		}
	}

	var lpIssued *big.Int
	if forLiquidity.Sign() > 0 && tokenDeposit.Sign() > 0 {
		// No slippage floor and an immediate deadline: the pool itself set the
		// implied price, so the deposit takes whatever the venue honours now.
		deposit, err := e.venue.AddLiquidity(pool.ID, forLiquidity, tokenDeposit,
			big.NewInt(0), big.NewInt(0), pool.Vault, e.nowFn())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if err := e.moveReserve(pool.Vault, venueAddress, deposit.ReserveUsed); err != nil {
			return nil, err
		}
		if err := e.ledger.Transfer(pool.ID, pool.Vault, venueAddress, deposit.TokenUsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		lpIssued = deposit.LPIssued
	}

	if err := e.ledger.RevokePrivilegedRole(pool.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	*evts = append(*evts, events.LaunchMigrationExecuted{
		PoolID:         pool.ID,
		ReserveDeposit: forLiquidity,
		TokenDeposit:   tokenDeposit,
		LiquidityFee:   lpFee,
		LPSharesIssued: lpIssued,
		TriggeredByBuy: triggeredByBuy,
	})
	return pool, nil
}

// QuoteBuy recomputes a buy without mutating state, rejecting on the same
// phase, amount and cap conditions as Buy.
func (e *Engine) QuoteBuy(poolID string, reserveSent *big.Int) (*BuyQuote, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	terms, err := e.computeBuyTerms(e.Params(), pool, reserveSent)
	if err != nil {
		return nil, err
	}
	return &BuyQuote{
		PoolID:       pool.ID,
		TokensOut:    terms.tokensOut,
		Contribution: terms.contribution,
		Fee:          terms.fee,
		Refund:       new(big.Int).Sub(reserveSent, terms.contribution),
		Clamped:      terms.clamped,
	}, nil
}

// QuoteSell recomputes a sell without mutating state.
func (e *Engine) QuoteSell(poolID string, tokenAmount *big.Int) (*SellQuote, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	terms, err := e.computeSellTerms(e.Params(), pool, tokenAmount)
	if err != nil {
		return nil, err
	}
	return &SellQuote{
		PoolID:     pool.ID,
		ReserveOut: terms.reserveOut,
		Fee:        terms.fee,
		Payout:     terms.payout,
	}, nil
}

// CurrentPrice returns the marginal curve price for a trading pool.
func (e *Engine) CurrentPrice(poolID string) (*big.Int, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Phase == PhaseListed {
		return nil, ErrInvalidPhase
	}
	return e.pricing.CurrentPrice(pool.ReserveBalance, pool.CirculatingSupply(e.Params().TradingAllocation))
}

// MarketCap returns price times circulating supply for a trading pool.
func (e *Engine) MarketCap(poolID string) (*big.Int, error) {
	if err := e.checkWiring(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Phase == PhaseListed {
		return nil, ErrInvalidPhase
	}
	return e.pricing.MarketCap(pool.ReserveBalance, pool.CirculatingSupply(e.Params().TradingAllocation))
}

// GetPool returns a copy of the pool record.
func (e *Engine) GetPool(poolID string) (*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.loadPool(poolID)
}

// ListPools returns every pool in creation order.
func (e *Engine) ListPools() ([]*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.LaunchPoolIDs()
	if err != nil {
		return nil, err
	}
	pools := make([]*Pool, 0, len(ids))
	for _, id := range ids {
		pool, ok, err := e.state.LaunchPoolGet(id)
		if err != nil {
			return nil, err
		}
		if ok && pool != nil {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

type buyTerms struct {
	contribution *big.Int
	fee          *big.Int
	forTokens    *big.Int
	tokensOut    *big.Int
	clamped      bool
}

// computeBuyTerms derives the amounts a buy settles at from a single read of
// the pool record: cap clamp, fee split, curve quote and, when the quote
// exceeds the remaining inventory, the faithful re-derivation of cost and fee
// from the clamped token quantity.
func (e *Engine) computeBuyTerms(params Params, pool *Pool, reserveSent *big.Int) (*buyTerms, error) {
	if pool.Phase == PhaseListed {
		return nil, ErrInvalidPhase
	}
	if reserveSent == nil || reserveSent.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	room := new(big.Int).Sub(params.ReserveCap, pool.ReserveBalance)
	if room.Sign() <= 0 {
		return nil, ErrCapacityExceeded
	}

	// Clamp so the net-of-fee portion cannot push the reserve past the cap.
	maxContribution := new(big.Int).Mul(room, big.NewInt(feeDenominator))
	maxContribution.Quo(maxContribution, big.NewInt(feeDenominator-int64(params.TradeFeeBps)))
	contribution := new(big.Int).Set(reserveSent)
	if contribution.Cmp(maxContribution) > 0 {
		contribution.Set(maxContribution)
	}
	fee := mulBps(contribution, params.TradeFeeBps)
	forTokens := new(big.Int).Sub(contribution, fee)

	circulating := pool.CirculatingSupply(params.TradingAllocation)
	tokensOut, err := e.pricing.MintableForPrice(pool.ReserveBalance, circulating, forTokens)
	if err != nil {
		return nil, err
	}

	clamped := false
	if tokensOut.Cmp(pool.TokenInventory) > 0 {
		// Re-derive the cost from the clamped quantity rather than scaling
		// the original estimate, so the executed amounts stay on the curve.
		clamped = true
		tokensOut = new(big.Int).Set(pool.TokenInventory)
		forTokens, err = e.pricing.PriceToMint(pool.ReserveBalance, circulating, tokensOut)
		if err != nil {
			return nil, err
		}
		fee = new(big.Int).Mul(forTokens, new(big.Int).SetUint64(params.TradeFeeBps))
		fee.Quo(fee, big.NewInt(feeDenominator-int64(params.TradeFeeBps)))
		contribution = new(big.Int).Add(forTokens, fee)
	}
	if tokensOut.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	return &buyTerms{
		contribution: contribution,
		fee:          fee,
		forTokens:    forTokens,
		tokensOut:    tokensOut,
		clamped:      clamped,
	}, nil
}

type sellTerms struct {
	reserveOut *big.Int
	fee        *big.Int
	payout     *big.Int
}

func (e *Engine) computeSellTerms(params Params, pool *Pool, tokenAmount *big.Int) (*sellTerms, error) {
	if pool.Phase == PhaseListed {
		return nil, ErrInvalidPhase
	}
	if tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	circulating := pool.CirculatingSupply(params.TradingAllocation)
	if tokenAmount.Cmp(circulating) > 0 {
		return nil, ErrInvalidAmount
	}
	reserveOut, err := e.pricing.RefundForBurn(pool.ReserveBalance, circulating, tokenAmount)
	if err != nil {
		return nil, err
	}
	if pool.ReserveBalance.Cmp(reserveOut) < 0 {
		return nil, ErrInsufficientReserve
	}
	fee := mulBps(reserveOut, params.TradeFeeBps)
	return &sellTerms{
		reserveOut: reserveOut,
		fee:        fee,
		payout:     new(big.Int).Sub(reserveOut, fee),
	}, nil
}

// shouldMigrate evaluates the buy-triggered migration predicate: inventory
// sold out, or reserve within 1% of the cap.
func (e *Engine) shouldMigrate(pool *Pool) bool {
	if pool.TokenInventory.Sign() == 0 {
		return true
	}
	threshold := mulBps(e.params.ReserveCap, migrationThresholdBps)
	return pool.ReserveBalance.Cmp(threshold) >= 0
}

func (e *Engine) loadPool(id string) (*Pool, error) {
	pool, ok, err := e.state.LaunchPoolGet(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) getAccount(addr [20]byte) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return types.Ensure(account), nil
}

// moveReserve shifts reserve coin between accounts inside the transaction.
func (e *Engine) moveReserve(from, to [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromAccount, err := e.getAccount(from)
	if err != nil {
		return err
	}
	if fromAccount.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromAccount.Balance = new(big.Int).Sub(fromAccount.Balance, amount)
	if err := e.state.PutAccount(from, fromAccount); err != nil {
		return err
	}
	toAccount, err := e.getAccount(to)
	if err != nil {
		return err
	}
	toAccount.Balance = new(big.Int).Add(toAccount.Balance, amount)
	return e.state.PutAccount(to, toAccount)
}

func mulBps(v *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(feeDenominator))
}

func sanitizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if len(trimmed) < 2 || len(trimmed) > 12 {
		return "", ErrInvalidName
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", ErrInvalidName
		}
	}
	return trimmed, nil
}
