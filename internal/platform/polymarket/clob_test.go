package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

func testCreds() domain.StaticCredentials {
	return domain.StaticCredentials{
		APIKey:     "key",
		Secret:     "c2VjcmV0", // "secret"
		Passphrase: "phrase",
		Wallet:     common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
	}
}

func TestPostOrderSuccess(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/order", r.URL.Path)
		gotHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(APIOrderResult{Success: true, OrderID: "venue-1", Status: "live"})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, testCreds())
	result, err := c.PostOrder(context.Background(), domain.Order{
		ClientID: "cl-1",
		TokenID:  "tok",
		Side:     domain.OrderSideBuy,
		Price:    0.45,
		Size:     10,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "venue-1", result.OrderID)
	assert.Equal(t, domain.OrderStatusActive, result.Status)

	// Signed request carries the L2 header set.
	assert.Equal(t, "key", gotHeaders.Get("POLY_API_KEY"))
	assert.Equal(t, "phrase", gotHeaders.Get("POLY_PASSPHRASE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_SIGNATURE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_TIMESTAMP"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_ADDRESS"))

	inner, ok := gotBody["order"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tok", inner["tokenID"])
	assert.Equal(t, "BUY", inner["side"])
	assert.Equal(t, "GTC", gotBody["orderType"])
	assert.Equal(t, "cl-1", gotBody["clientID"])
}

func TestPostOrderValidatesLocally(t *testing.T) {
	c := NewClobClient("http://127.0.0.1:0", nil)

	cases := []domain.Order{
		{TokenID: "", Price: 0.5, Size: 1},
		{TokenID: "tok", Price: 0, Size: 1},
		{TokenID: "tok", Price: 0.5, Size: 0},
	}
	for _, o := range cases {
		_, err := c.PostOrder(context.Background(), o)
		require.ErrorIs(t, err, domain.ErrInvalidOrder)
	}
}

func TestPostOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(APIOrderResult{Success: false, ErrorMsg: "insufficient balance"})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	result, err := c.PostOrder(context.Background(), domain.Order{TokenID: "tok", Price: 0.5, Size: 1})
	require.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.False(t, result.Success)
	assert.Equal(t, domain.OrderStatusFailed, result.Status)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestCancelOrderStatusField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(APICancelResult{Status: "success"})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	require.NoError(t, c.CancelOrder(context.Background(), "venue-1"))
}

func TestCancelOrderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(APICancelResult{Status: "failed", ErrorMsg: "already matched"})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	err := c.CancelOrder(context.Background(), "venue-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already matched")
}

func TestCancelAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/cancel-all", r.URL.Path)
		json.NewEncoder(w).Encode(APICancelResult{Status: "success"})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	require.NoError(t, c.CancelAll(context.Background()))
}

func TestGetOpenOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		json.NewEncoder(w).Encode([]APIOrder{
			{ID: "v1", AssetID: "tok", Side: "BUY", Status: "live", Price: "0.45", OriginalSize: "10"},
			{ID: "v2", AssetID: "tok", Side: "SELL", Status: "matched", Price: "0.55", OriginalSize: "5"},
		})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	orders, err := c.GetOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, domain.OrderStatusActive, orders[0].Status)
	assert.Equal(t, domain.OrderSideBuy, orders[0].Side)
	assert.InDelta(t, 0.45, orders[0].Price, 1e-9)
	assert.Equal(t, domain.OrderStatusFilled, orders[1].Status)
}

func TestGetMarketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such market", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	_, err := c.GetMarket(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets/cond-1", r.URL.Path)
		json.NewEncoder(w).Encode(APIMarket{
			ConditionID:  "cond-1",
			Question:     "Will it rain?",
			Active:       true,
			MinOrderSize: "5",
			Tokens: []APIToken{
				{TokenID: "tokYes", Outcome: "Yes"},
				{TokenID: "tokNo", Outcome: "No"},
			},
		})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	m, err := c.GetMarket(context.Background(), "cond-1")
	require.NoError(t, err)
	assert.Equal(t, "cond-1", m.ConditionID)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Equal(t, [2]string{"tokYes", "tokNo"}, m.TokenIDs)
	assert.InDelta(t, 5, m.MinOrder, 1e-9)
}

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/price", r.URL.Path)
		require.Equal(t, "tok", r.URL.Query().Get("token_id"))
		require.Equal(t, "BUY", r.URL.Query().Get("side"))
		json.NewEncoder(w).Encode(map[string]string{"price": "0.47"})
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil)
	price, err := c.GetPrice(context.Background(), "tok", "BUY")
	require.NoError(t, err)
	assert.InDelta(t, 0.47, price, 1e-9)
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusNotFound, domain.ErrNotFound},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		c := NewClobClient(srv.URL, nil)
		_, err := c.GetOpenOrders(context.Background())
		require.ErrorIs(t, err, tc.want, "status %d", tc.code)
		srv.Close()
	}
}
