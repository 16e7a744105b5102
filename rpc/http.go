// Package rpc exposes the launchpad over a JSON-RPC 2.0 HTTP endpoint. Query
// methods are open; trade submission is rate limited per source and admin
// methods require the bearer token from LAUNCHPAD_RPC_TOKEN.
package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"launchpad/native/amm"
	"launchpad/native/launch"
	"launchpad/native/token"
	"launchpad/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "LAUNCHPAD_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Options tunes the per-source rate limiter applied to mutating methods.
type Options struct {
	RatePerSecond float64
	Burst         int
}

type Server struct {
	engine *launch.Engine
	ledger *token.Ledger
	venue  *amm.Venue

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	authToken string
	metrics   *metrics.LaunchMetrics

	// opMu queues mutating methods so each settlement runs to completion
	// before the next begins, matching the engine's sequential model.
	opMu sync.Mutex
}

func NewServer(engine *launch.Engine, ledger *token.Ledger, venue *amm.Venue, opts Options) *Server {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 50
	}
	if opts.Burst <= 0 {
		opts.Burst = 100
	}
	return &Server{
		engine:    engine,
		ledger:    ledger,
		venue:     venue,
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(opts.RatePerSecond),
		burst:     opts.Burst,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		metrics:   metrics.Launch(),
	}
}

// Handler returns the HTTP handler so callers can mount it on their own mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

// serialized runs a mutating handler under the operation queue.
func (s *Server) serialized(fn func()) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	fn()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	started := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.ObserveRPC(req.Method, outcome, time.Since(started).Seconds())
	}()

	switch req.Method {
	case "launch_create":
		if !s.allowSource(clientSource(r)) {
			outcome = "rate_limited"
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		s.serialized(func() { s.handleLaunchCreate(w, req) })
	case "launch_buy":
		if !s.allowSource(clientSource(r)) {
			outcome = "rate_limited"
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		s.serialized(func() { s.handleLaunchBuy(w, req) })
	case "launch_sell":
		if !s.allowSource(clientSource(r)) {
			outcome = "rate_limited"
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		s.serialized(func() { s.handleLaunchSell(w, req) })
	case "launch_quoteBuy":
		s.handleLaunchQuoteBuy(w, req)
	case "launch_quoteSell":
		s.handleLaunchQuoteSell(w, req)
	case "launch_price":
		s.handleLaunchPrice(w, req)
	case "launch_marketCap":
		s.handleLaunchMarketCap(w, req)
	case "launch_get":
		s.handleLaunchGet(w, req)
	case "launch_list":
		s.handleLaunchList(w, req)
	case "launch_migrate":
		if authErr := s.requireAuth(r); authErr != nil {
			outcome = "unauthorized"
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.serialized(func() { s.handleLaunchMigrate(w, req) })
	case "launch_setFeeRecipient":
		if authErr := s.requireAuth(r); authErr != nil {
			outcome = "unauthorized"
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.serialized(func() { s.handleSetFeeRecipient(w, req) })
	case "launch_setLiquidityFee":
		if authErr := s.requireAuth(r); authErr != nil {
			outcome = "unauthorized"
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.serialized(func() { s.handleSetLiquidityFee(w, req) })
	case "launch_setReserveCap":
		if authErr := s.requireAuth(r); authErr != nil {
			outcome = "unauthorized"
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.serialized(func() { s.handleSetReserveCap(w, req) })
	case "token_approve":
		if !s.allowSource(clientSource(r)) {
			outcome = "rate_limited"
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		s.serialized(func() { s.handleTokenApprove(w, req) })
	case "token_balanceOf":
		s.handleTokenBalanceOf(w, req)
	case "amm_getPool":
		s.handleAMMGetPool(w, req)
	default:
		outcome = "not_found"
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tok == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
