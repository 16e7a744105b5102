package rpc

import (
	"net/http"
)

type tokenApproveParams struct {
	Owner     string `json:"owner"`
	PoolID    string `json:"poolId"`
	AmountWei string `json:"amountWei"`
}

type tokenBalanceParams struct {
	PoolID  string `json:"poolId"`
	Address string `json:"address"`
}

type ammPoolResult struct {
	TokenID      string `json:"tokenId"`
	ReserveDepth string `json:"reserveDepth"`
	TokenDepth   string `json:"tokenDepth"`
	LPShares     string `json:"lpShares"`
}

// handleTokenApprove grants the pool vault an allowance over the caller's
// tokens, the step a holder performs before selling back into the curve.
func (s *Server) handleTokenApprove(w http.ResponseWriter, req *RPCRequest) {
	var params tokenApproveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	owner, err := parseAddressParam("owner", params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam("amountWei", params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pool, err := s.engine.GetPool(params.PoolID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	if err := s.ledger.Approve(pool.ID, owner, pool.Vault, amount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params tokenBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	holder, err := parseAddressParam("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.ledger.BalanceOf(params.PoolID, holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"poolId":  params.PoolID,
		"address": params.Address,
		"balance": balance.String(),
	})
}

func (s *Server) handleAMMGetPool(w http.ResponseWriter, req *RPCRequest) {
	var params launchPoolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	pool, ok, err := s.venue.PoolFor(params.PoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no venue pool for token", nil)
		return
	}
	writeResult(w, req.ID, ammPoolResult{
		TokenID:      pool.TokenID,
		ReserveDepth: bigString(pool.ReserveDepth),
		TokenDepth:   bigString(pool.TokenDepth),
		LPShares:     bigString(pool.LPShares),
	})
}
