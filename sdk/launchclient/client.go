// Package launchclient provides typed helpers over the launchpad JSON-RPC
// API for Go integrations.
package launchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client wraps an HTTP connection to a launchpad daemon.
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithAuthToken attaches the bearer token admin methods require.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// New builds a client for the given RPC endpoint.
func New(endpoint string, opts ...Option) *Client {
	client := &Client{endpoint: endpoint, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is the JSON-RPC error object returned by the daemon.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", Method: method, ID: 1}
	if params != nil {
		req.Params = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoded := &rpcResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

// Pool mirrors the daemon's pool representation.
type Pool struct {
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

// Trade mirrors a settled trade.
type Trade struct {
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

// CreateResult bundles a new pool with the optional creator trade.
type CreateResult struct {
	Pool  Pool   `json:"pool"`
	Trade *Trade `json:"trade,omitempty"`
}

// BuyQuote mirrors launch_quoteBuy.
type BuyQuote struct {
	PoolID       string `json:"poolId"`
	TokensOut    string `json:"tokensOut"`
	Contribution string `json:"contribution"`
	Fee          string `json:"fee"`
	Refund       string `json:"refund"`
	Clamped      bool   `json:"clamped"`
}

// SellQuote mirrors launch_quoteSell.
type SellQuote struct {
	PoolID     string `json:"poolId"`
	ReserveOut string `json:"reserveOut"`
	Fee        string `json:"fee"`
	Payout     string `json:"payout"`
}

// CreatePool registers a new pool, optionally settling a creator buy in the
// same call when initialReserveWei is non-empty.
func (c *Client) CreatePool(ctx context.Context, creator, name, symbol, initialReserveWei string) (*CreateResult, error) {
	params := map[string]string{"creator": creator, "name": name, "symbol": symbol}
	if initialReserveWei != "" {
		params["initialReserveWei"] = initialReserveWei
	}
	out := &CreateResult{}
	if err := c.call(ctx, "launch_create", params, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Buy submits a reserve contribution to a pool.
func (c *Client) Buy(ctx context.Context, caller, poolID, amountWei string) (*Trade, error) {
	out := &Trade{}
	err := c.call(ctx, "launch_buy", map[string]string{
		"caller": caller, "poolId": poolID, "amountWei": amountWei,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sell burns tokens back into a pool for reserve.
func (c *Client) Sell(ctx context.Context, caller, poolID, amountWei string) (*Trade, error) {
	out := &Trade{}
	err := c.call(ctx, "launch_sell", map[string]string{
		"caller": caller, "poolId": poolID, "amountWei": amountWei,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QuoteBuy previews a buy without submitting it.
func (c *Client) QuoteBuy(ctx context.Context, poolID, amountWei string) (*BuyQuote, error) {
	out := &BuyQuote{}
	err := c.call(ctx, "launch_quoteBuy", map[string]string{
		"poolId": poolID, "amountWei": amountWei,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QuoteSell previews a sell without submitting it.
func (c *Client) QuoteSell(ctx context.Context, poolID, amountWei string) (*SellQuote, error) {
	out := &SellQuote{}
	err := c.call(ctx, "launch_quoteSell", map[string]string{
		"poolId": poolID, "amountWei": amountWei,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPool fetches a single pool by identifier.
func (c *Client) GetPool(ctx context.Context, poolID string) (*Pool, error) {
	out := &Pool{}
	if err := c.call(ctx, "launch_get", map[string]string{"poolId": poolID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPools enumerates every pool in creation order.
func (c *Client) ListPools(ctx context.Context) ([]Pool, error) {
	var out []Pool
	if err := c.call(ctx, "launch_list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Price returns the marginal curve price for a trading pool.
func (c *Client) Price(ctx context.Context, poolID string) (string, error) {
	out := map[string]string{}
	if err := c.call(ctx, "launch_price", map[string]string{"poolId": poolID}, &out); err != nil {
		return "", err
	}
	return out["priceWei"], nil
}

// MarketCap returns the implied market capitalisation for a trading pool.
func (c *Client) MarketCap(ctx context.Context, poolID string) (string, error) {
	out := map[string]string{}
	if err := c.call(ctx, "launch_marketCap", map[string]string{"poolId": poolID}, &out); err != nil {
		return "", err
	}
	return out["marketCapWei"], nil
}

// Approve grants the pool vault an allowance ahead of a sell.
func (c *Client) Approve(ctx context.Context, owner, poolID, amountWei string) error {
	return c.call(ctx, "token_approve", map[string]string{
		"owner": owner, "poolId": poolID, "amountWei": amountWei,
	}, nil)
}

// BalanceOf returns the launched-token balance for an address.
func (c *Client) BalanceOf(ctx context.Context, poolID, address string) (string, error) {
	out := map[string]string{}
	err := c.call(ctx, "token_balanceOf", map[string]string{
		"poolId": poolID, "address": address,
	}, &out)
	if err != nil {
		return "", err
	}
	return out["balance"], nil
}

// Migrate force-lists a pool. The client must carry the admin bearer token.
func (c *Client) Migrate(ctx context.Context, poolID string) (*Pool, error) {
	out := &Pool{}
	if err := c.call(ctx, "launch_migrate", map[string]string{"poolId": poolID}, out); err != nil {
		return nil, err
	}
	return out, nil
}
