package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"launchpad/crypto"
	"launchpad/native/launch"
)

type launchCreateParams struct {
	Creator           string `json:"creator"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	InitialReserveWei string `json:"initialReserveWei,omitempty"`
}

type launchTradeParams struct {
	Caller    string `json:"caller"`
	PoolID    string `json:"poolId"`
	AmountWei string `json:"amountWei"`
}

type launchQuoteParams struct {
	PoolID    string `json:"poolId"`
	AmountWei string `json:"amountWei"`
}

type launchPoolParams struct {
	PoolID string `json:"poolId"`
}

type launchPoolResult struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	Creator           string `json:"creator"`
	Vault             string `json:"vault"`
	ReserveBalance    string `json:"reserveBalance"`
	TokenInventory    string `json:"tokenInventory"`
	CirculatingSupply string `json:"circulatingSupply"`
	Phase             string `json:"phase"`
	CreatedAt         uint64 `json:"createdAt"`
	ListedAt          uint64 `json:"listedAt,omitempty"`
}

type launchTradeResult struct {
	PoolID       string `json:"poolId"`
	Direction    string `json:"direction"`
	TokenAmount  string `json:"tokenAmount"`
	Contribution string `json:"contribution,omitempty"`
	Payout       string `json:"payout,omitempty"`
	Fee          string `json:"fee"`
	Refund       string `json:"refund,omitempty"`
	Clamped      bool   `json:"clamped,omitempty"`
	Migrated     bool   `json:"migrated,omitempty"`
}

type launchCreateResult struct {
	Pool  launchPoolResult   `json:"pool"`
	Trade *launchTradeResult `json:"trade,omitempty"`
}

type launchBuyQuoteResult struct {
	PoolID       string `json:"poolId"`
	TokensOut    string `json:"tokensOut"`
	Contribution string `json:"contribution"`
	Fee          string `json:"fee"`
	Refund       string `json:"refund"`
	Clamped      bool   `json:"clamped"`
}

type launchSellQuoteResult struct {
	PoolID     string `json:"poolId"`
	ReserveOut string `json:"reserveOut"`
	Fee        string `json:"fee"`
	Payout     string `json:"payout"`
}

func (s *Server) formatPool(pool *launch.Pool) launchPoolResult {
	circulating := pool.CirculatingSupply(s.engine.Params().TradingAllocation)
	return launchPoolResult{
		ID:                pool.ID,
		Name:              pool.Name,
		Symbol:            pool.Symbol,
		Creator:           crypto.NewAddress(pool.Creator).String(),
		Vault:             crypto.NewAddress(pool.Vault).String(),
		ReserveBalance:    bigString(pool.ReserveBalance),
		TokenInventory:    bigString(pool.TokenInventory),
		CirculatingSupply: bigString(circulating),
		Phase:             pool.Phase.String(),
		CreatedAt:         pool.CreatedAt,
		ListedAt:          pool.ListedAt,
	}
}

func formatTrade(trade *launch.TradeResult) *launchTradeResult {
	if trade == nil {
		return nil
	}
	out := &launchTradeResult{
		PoolID:      trade.PoolID,
		Direction:   trade.Direction,
		TokenAmount: bigString(trade.TokenAmount),
		Fee:         bigString(trade.Fee),
		Clamped:     trade.Clamped,
		Migrated:    trade.Migrated,
	}
	if trade.Contribution != nil {
		out.Contribution = trade.Contribution.String()
	}
	if trade.Payout != nil {
		out.Payout = trade.Payout.String()
	}
	if trade.Refund != nil {
		out.Refund = trade.Refund.String()
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return errors.New("params object required")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddressParam(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, errors.New(field + ": " + err.Error())
	}
	return addr.Raw(), nil
}

func parseAmountParam(field, value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || parsed.Sign() < 0 {
		return nil, errors.New(field + " must be a non-negative decimal wei string")
	}
	return parsed, nil
}

// callerError reports whether the failure was caused by the request rather
// than by the daemon.
func callerError(err error) bool {
	switch {
	case errors.Is(err, launch.ErrPoolNotFound),
		errors.Is(err, launch.ErrPoolExists),
		errors.Is(err, launch.ErrInvalidPhase),
		errors.Is(err, launch.ErrInvalidAmount),
		errors.Is(err, launch.ErrInvalidName),
		errors.Is(err, launch.ErrCapacityExceeded),
		errors.Is(err, launch.ErrInsufficientFunds),
		errors.Is(err, launch.ErrInsufficientReserve):
		return true
	}
	return false
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	if callerError(err) {
		s.metrics.ObserveTradeError(err.Error())
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
		return
	}
	writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
}

func (s *Server) handleLaunchCreate(w http.ResponseWriter, req *RPCRequest) {
	var params launchCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	creator, err := parseAddressParam("creator", params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var initial *big.Int
	if strings.TrimSpace(params.InitialReserveWei) != "" {
		if initial, err = parseAmountParam("initialReserveWei", params.InitialReserveWei); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}

	result, err := s.engine.Create(creator, params.Name, params.Symbol, initial)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObservePoolCreated()
	if result.Trade != nil {
		s.metrics.ObserveTrade(result.Trade.Direction)
		if result.Trade.Migrated {
			s.metrics.ObserveMigration("buy")
		}
	}
	writeResult(w, req.ID, launchCreateResult{
		Pool:  s.formatPool(result.Pool),
		Trade: formatTrade(result.Trade),
	})
}

func (s *Server) handleLaunchBuy(w http.ResponseWriter, req *RPCRequest) {
	var params launchTradeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	buyer, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam("amountWei", params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	result, err := s.engine.Buy(buyer, params.PoolID, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveTrade(result.Direction)
	if result.Migrated {
		s.metrics.ObserveMigration("buy")
	}
	writeResult(w, req.ID, formatTrade(result))
}

func (s *Server) handleLaunchSell(w http.ResponseWriter, req *RPCRequest) {
	var params launchTradeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	seller, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam("amountWei", params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	result, err := s.engine.Sell(seller, params.PoolID, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveTrade(result.Direction)
	writeResult(w, req.ID, formatTrade(result))
}

func (s *Server) handleLaunchQuoteBuy(w http.ResponseWriter, req *RPCRequest) {
	var params launchQuoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	amount, err := parseAmountParam("amountWei", params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	quote, err := s.engine.QuoteBuy(params.PoolID, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchBuyQuoteResult{
		PoolID:       quote.PoolID,
		TokensOut:    bigString(quote.TokensOut),
		Contribution: bigString(quote.Contribution),
		Fee:          bigString(quote.Fee),
		Refund:       bigString(quote.Refund),
		Clamped:      quote.Clamped,
	})
}

func (s *Server) handleLaunchQuoteSell(w http.ResponseWriter, req *RPCRequest) {
	var params launchQuoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	amount, err := parseAmountParam("amountWei", params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	quote, err := s.engine.QuoteSell(params.PoolID, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, launchSellQuoteResult{
		PoolID:     quote.PoolID,
		ReserveOut: bigString(quote.ReserveOut),
		Fee:        bigString(quote.Fee),
		Payout:     bigString(quote.Payout),
	})
}

func (s *Server) handleLaunchPrice(w http.ResponseWriter, req *RPCRequest) {
	var params launchPoolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	price, err := s.engine.CurrentPrice(params.PoolID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"poolId": params.PoolID, "priceWei": price.String()})
}

func (s *Server) handleLaunchMarketCap(w http.ResponseWriter, req *RPCRequest) {
	var params launchPoolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	mcap, err := s.engine.MarketCap(params.PoolID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"poolId": params.PoolID, "marketCapWei": mcap.String()})
}

func (s *Server) handleLaunchGet(w http.ResponseWriter, req *RPCRequest) {
	var params launchPoolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	pool, err := s.engine.GetPool(params.PoolID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, s.formatPool(pool))
}

func (s *Server) handleLaunchList(w http.ResponseWriter, req *RPCRequest) {
	pools, err := s.engine.ListPools()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	results := make([]launchPoolResult, 0, len(pools))
	for _, pool := range pools {
		results = append(results, s.formatPool(pool))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleLaunchMigrate(w http.ResponseWriter, req *RPCRequest) {
	var params launchPoolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	pool, err := s.engine.Migrate(params.PoolID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.metrics.ObserveMigration("admin")
	writeResult(w, req.ID, s.formatPool(pool))
}

type adminAddressParams struct {
	Address string `json:"address"`
}

type adminFeeParams struct {
	Bps uint64 `json:"bps"`
}

type adminCapParams struct {
	AmountWei string `json:"amountWei"`
}

func (s *Server) handleSetFeeRecipient(w http.ResponseWriter, req *RPCRequest) {
	var params adminAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	recipient, err := parseAddressParam("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetFeeRecipient(recipient); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetLiquidityFee(w http.ResponseWriter, req *RPCRequest) {
	var params adminFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	if err := s.engine.SetLiquidityFeeBps(params.Bps); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetReserveCap(w http.ResponseWriter, req *RPCRequest) {
	var params adminCapParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	amount, err := parseAmountParam("amountWei", params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetReserveCap(amount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}
