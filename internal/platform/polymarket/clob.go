package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/crypto"
	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API: order placement, cancellation, open-order listing,
// market lookups, and point price reads.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	creds      domain.CredentialProvider
}

// NewClobClient creates a CLOB REST client. baseURL is the API root, e.g.
// "https://clob.polymarket.com". creds supplies the already-derived HMAC
// credential set; it may be nil for unauthenticated read-only use.
func NewClobClient(baseURL string, creds domain.CredentialProvider) *ClobClient {
	return &ClobClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		creds: creds,
	}
}

// PostOrder submits an order and returns the venue result. The venue
// assigns the order id reported in OrderResult.OrderID.
func (c *ClobClient) PostOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	if order.TokenID == "" || order.Size <= 0 || order.Price <= 0 {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", domain.ErrInvalidOrder)
	}

	body := map[string]any{
		"order": map[string]any{
			"tokenID": order.TokenID,
			"price":   fmt.Sprintf("%g", order.Price),
			"size":    fmt.Sprintf("%g", order.Size),
			"side":    strings.ToUpper(string(order.Side)),
		},
		"clientID":  order.ClientID,
		"orderType": "GTC",
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: %w: %s", domain.ErrOrderRejected, result.Message)
	}
	return result, nil
}

// CancelOrder cancels a single order by its venue-assigned id. The venue
// reports the outcome through a status field.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{"orderID": orderID}

	respBody, err := c.doRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result APICancelResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Cancelled() {
		return fmt.Errorf("polymarket/clob: cancel %s failed: %s", orderID, result.ErrorMsg)
	}
	return nil
}

// CancelAll cancels every open order for the authenticated wallet.
func (c *ClobClient) CancelAll(ctx context.Context) error {
	respBody, err := c.doRequest(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel all: %w", err)
	}

	var result APICancelResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel-all response: %w", err)
	}
	if !result.Cancelled() {
		return fmt.Errorf("polymarket/clob: cancel-all failed: %s", result.ErrorMsg)
	}
	return nil
}

// GetOpenOrders returns the venue's authoritative open-order set for the
// authenticated wallet.
func (c *ClobClient) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get open orders: %w", err)
	}

	var apiOrders []APIOrder
	if err := json.Unmarshal(respBody, &apiOrders); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(apiOrders))
	for i := range apiOrders {
		orders = append(orders, apiOrders[i].ToDomainOrder())
	}
	return orders, nil
}

// GetMarket checks whether a market exists and returns its metadata. An
// absent market is reported as domain.ErrNotFound.
func (c *ClobClient) GetMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	path := "/markets/" + url.PathEscape(conditionID)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/clob: get market %s: %w", conditionID, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(respBody, &apiMarket); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/clob: decode market: %w", err)
	}
	return apiMarket.ToDomainMarket(), nil
}

// GetPrice reads the current venue price for one side of a token. side is
// "BUY" or "SELL". Used by the asynchronous enrichment path.
func (c *ClobClient) GetPrice(ctx context.Context, tokenID, side string) (float64, error) {
	path := "/price?token_id=" + url.QueryEscape(tokenID) + "&side=" + url.QueryEscape(side)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get price %s/%s: %w", tokenID, side, err)
	}

	var result struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode price: %w", err)
	}
	price, ok := parseFloatString(result.Price)
	if !ok {
		return 0, fmt.Errorf("polymarket/clob: unparseable price %q", result.Price)
	}
	return price, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, signs (HMAC, when credentials are available), sends,
// and reads an HTTP request against the CLOB API, returning the raw body.
func (c *ClobClient) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.creds != nil {
		creds, err := c.creds.Credentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch credentials: %w", err)
		}
		if creds.Valid() {
			auth := crypto.FromCredentials(creds)
			// The signed path excludes the query string.
			signPath := path
			if i := strings.IndexByte(signPath, '?'); i >= 0 {
				signPath = signPath[:i]
			}
			for k, v := range auth.L2Headers(creds.Wallet.Hex(), method, signPath, bodyStr) {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
