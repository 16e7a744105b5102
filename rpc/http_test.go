package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/amm"
	"launchpad/native/curve"
	"launchpad/native/launch"
	"launchpad/native/token"
	"launchpad/storage"
)

const testAuthToken = "test-admin-token"

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func wei(n int64) *big.Int {
	v := big.NewInt(n)
	return v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.Manager) {
	t.Helper()
	t.Setenv("LAUNCHPAD_RPC_TOKEN", testAuthToken)

	manager := storage.NewManager(storage.NewMemDB())

	params := launch.Params{
		TradeFeeBps:         100,
		LiquidityFeeBps:     250,
		ReserveCap:          wei(20_000),
		FeeRecipient:        testAddr(0xFE),
		TotalIssuance:       wei(125),
		TradingAllocation:   wei(100),
		LiquidityAllocation: wei(25),
	}
	engine, err := launch.NewEngine(params)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(manager)

	pricing, err := curve.NewEngine(wei(1), 500_000)
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}
	engine.SetPricing(pricing)

	ledger := token.NewLedger()
	ledger.SetState(manager)
	engine.SetLedger(ledger)

	venue := amm.NewVenue()
	venue.SetState(manager)
	engine.SetVenue(venue)

	server := NewServer(engine, ledger, venue, Options{RatePerSecond: 1_000, Burst: 1_000})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, manager
}

func call(t *testing.T, url, method string, params interface{}, authToken string) *RPCResponse {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func decodeResult(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestLaunchLifecycleOverRPC(t *testing.T) {
	ts, manager := newTestServer(t)
	creatorAddr := crypto.NewAddress(testAddr(1)).String()
	buyerRaw := testAddr(2)
	buyerAddr := crypto.NewAddress(buyerRaw).String()
	if err := manager.PutAccount(buyerRaw, &types.Account{Balance: wei(500)}); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}

	var created launchCreateResult
	decodeResult(t, call(t, ts.URL, "launch_create", launchCreateParams{
		Creator: creatorAddr,
		Name:    "RPC Token",
		Symbol:  "RPCT",
	}, ""), &created)
	if created.Pool.Phase != "trading" || created.Pool.TokenInventory != wei(100).String() {
		t.Fatalf("unexpected pool: %+v", created.Pool)
	}
	poolID := created.Pool.ID

	var quote launchBuyQuoteResult
	decodeResult(t, call(t, ts.URL, "launch_quoteBuy", launchQuoteParams{
		PoolID: poolID, AmountWei: wei(101).String(),
	}, ""), &quote)

	var trade launchTradeResult
	decodeResult(t, call(t, ts.URL, "launch_buy", launchTradeParams{
		Caller: buyerAddr, PoolID: poolID, AmountWei: wei(101).String(),
	}, ""), &trade)
	if trade.TokenAmount != quote.TokensOut || trade.Fee != quote.Fee {
		t.Fatalf("trade %+v diverges from quote %+v", trade, quote)
	}

	var balance map[string]string
	decodeResult(t, call(t, ts.URL, "token_balanceOf", tokenBalanceParams{
		PoolID: poolID, Address: buyerAddr,
	}, ""), &balance)
	if balance["balance"] != trade.TokenAmount {
		t.Fatalf("balance %s, want %s", balance["balance"], trade.TokenAmount)
	}

	decodeResult(t, call(t, ts.URL, "token_approve", tokenApproveParams{
		Owner: buyerAddr, PoolID: poolID, AmountWei: trade.TokenAmount,
	}, ""), &map[string]bool{})

	var sold launchTradeResult
	decodeResult(t, call(t, ts.URL, "launch_sell", launchTradeParams{
		Caller: buyerAddr, PoolID: poolID, AmountWei: trade.TokenAmount,
	}, ""), &sold)
	if sold.Direction != "sell" || sold.Payout == "" {
		t.Fatalf("unexpected sell result: %+v", sold)
	}

	var listed []launchPoolResult
	decodeResult(t, call(t, ts.URL, "launch_list", nil, ""), &listed)
	if len(listed) != 1 || listed[0].ID != poolID {
		t.Fatalf("unexpected pool list: %+v", listed)
	}

	var price map[string]string
	decodeResult(t, call(t, ts.URL, "launch_price", launchPoolParams{PoolID: poolID}, ""), &price)
	if price["priceWei"] == "" {
		t.Fatalf("missing price: %+v", price)
	}
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	ts, manager := newTestServer(t)
	creatorAddr := crypto.NewAddress(testAddr(1)).String()
	buyerRaw := testAddr(2)
	if err := manager.PutAccount(buyerRaw, &types.Account{Balance: wei(500)}); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}

	var created launchCreateResult
	decodeResult(t, call(t, ts.URL, "launch_create", launchCreateParams{
		Creator: creatorAddr, Name: "Gated", Symbol: "GATE",
	}, ""), &created)
	var trade launchTradeResult
	decodeResult(t, call(t, ts.URL, "launch_buy", launchTradeParams{
		Caller: crypto.NewAddress(buyerRaw).String(), PoolID: created.Pool.ID, AmountWei: wei(101).String(),
	}, ""), &trade)

	resp := call(t, ts.URL, "launch_migrate", launchPoolParams{PoolID: created.Pool.ID}, "")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}
	resp = call(t, ts.URL, "launch_migrate", launchPoolParams{PoolID: created.Pool.ID}, "wrong-token")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}

	var migrated launchPoolResult
	decodeResult(t, call(t, ts.URL, "launch_migrate", launchPoolParams{PoolID: created.Pool.ID}, testAuthToken), &migrated)
	if migrated.Phase != "listed" {
		t.Fatalf("phase = %s, want listed", migrated.Phase)
	}

	var ammPool ammPoolResult
	decodeResult(t, call(t, ts.URL, "amm_getPool", launchPoolParams{PoolID: created.Pool.ID}, ""), &ammPool)
	if ammPool.ReserveDepth == "0" || ammPool.TokenDepth == "0" {
		t.Fatalf("venue pool must hold the migrated liquidity, got %+v", ammPool)
	}
}

func TestInvalidRequestsAreRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := call(t, ts.URL, "launch_unknown", nil, "")
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}

	resp = call(t, ts.URL, "launch_get", launchPoolParams{PoolID: "missing"}, "")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params for missing pool, got %+v", resp.Error)
	}

	resp = call(t, ts.URL, "launch_buy", launchTradeParams{
		Caller: "not-bech32", PoolID: "x", AmountWei: "1",
	}, "")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params for bad address, got %+v", resp.Error)
	}
}

// Concurrent trade submissions queue behind one another instead of tripping
// the engine's nested-call rejection.
func TestConcurrentTradesAreQueued(t *testing.T) {
	ts, manager := newTestServer(t)
	creatorAddr := crypto.NewAddress(testAddr(1)).String()
	buyerRaw := testAddr(2)
	buyerAddr := crypto.NewAddress(buyerRaw).String()
	if err := manager.PutAccount(buyerRaw, &types.Account{Balance: wei(100)}); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}

	var created launchCreateResult
	decodeResult(t, call(t, ts.URL, "launch_create", launchCreateParams{
		Creator: creatorAddr, Name: "Queued Token", Symbol: "QUE",
	}, ""), &created)

	const workers = 8
	errs := make(chan string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			payload, err := json.Marshal(map[string]interface{}{
				"jsonrpc": jsonRPCVersion,
				"id":      1,
				"method":  "launch_buy",
				"params": []interface{}{launchTradeParams{
					Caller: buyerAddr, PoolID: created.Pool.ID, AmountWei: wei(1).String(),
				}},
			})
			if err != nil {
				errs <- err.Error()
				return
			}
			resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(payload))
			if err != nil {
				errs <- err.Error()
				return
			}
			defer resp.Body.Close()
			decoded := &RPCResponse{}
			if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
				errs <- err.Error()
				return
			}
			if decoded.Error != nil {
				errs <- decoded.Error.Message
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Errorf("concurrent buy failed: %s", msg)
	}

	// Every buy settled exactly once: a one-coin contribution less the 1% fee.
	net := new(big.Int).Sub(wei(1), new(big.Int).Div(wei(1), big.NewInt(100)))
	expected := new(big.Int).Mul(big.NewInt(workers), net)
	var pool launchPoolResult
	decodeResult(t, call(t, ts.URL, "launch_get", launchPoolParams{PoolID: created.Pool.ID}, ""), &pool)
	if pool.ReserveBalance != expected.String() {
		t.Fatalf("reserve = %s, want %s", pool.ReserveBalance, expected)
	}
}
