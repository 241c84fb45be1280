package polymarket

import (
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// --------------------------------------------------------------------------
// WebSocket subscription commands
// --------------------------------------------------------------------------

// WSCommand is the JSON control frame sent to the streaming endpoint.
type WSCommand struct {
	Type        string   `json:"type"`
	Assets      []string `json:"assets_ids,omitempty"`
	Markets     []string `json:"markets,omitempty"`
	TokenID     string   `json:"token_id,omitempty"`
	InitialDump *bool    `json:"initial_dump,omitempty"`
	Auth        *WSAuth  `json:"auth,omitempty"`
}

// WSAuth carries the already-derived credentials inside a user-channel
// subscription frame.
type WSAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

func marketSubscribeCommand(assetIDs []string, opts SubscribeOptions) WSCommand {
	cmd := WSCommand{Type: "market", Assets: assetIDs}
	if opts.InitialDump {
		dump := true
		cmd.InitialDump = &dump
	}
	return cmd
}

func userSubscribeCommand(creds domain.Credentials, markets []string) WSCommand {
	return WSCommand{
		Type:    "user",
		Markets: markets,
		Auth: &WSAuth{
			APIKey:     creds.APIKey,
			Secret:     creds.Secret,
			Passphrase: creds.Passphrase,
		},
	}
}

func unsubscribeCommand(tokenID string) WSCommand {
	return WSCommand{Type: "unsubscribe", TokenID: tokenID}
}

// --------------------------------------------------------------------------
// CLOB REST DTOs
// --------------------------------------------------------------------------

// APIOrder represents an order as returned by the CLOB API.
type APIOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"` // "BUY" or "SELL"
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Owner        string `json:"owner"`
	CreatedAt    string `json:"created_at"`
}

// ToDomainOrder converts an APIOrder to a domain.Order.
func (a *APIOrder) ToDomainOrder() domain.Order {
	o := domain.Order{
		VenueID: a.ID,
		TokenID: a.AssetID,
	}

	switch a.Side {
	case "BUY":
		o.Side = domain.OrderSideBuy
	case "SELL":
		o.Side = domain.OrderSideSell
	}

	switch a.Status {
	case "live", "open", "active":
		o.Status = domain.OrderStatusActive
	case "matched", "filled":
		o.Status = domain.OrderStatusFilled
	case "cancelled":
		o.Status = domain.OrderStatusCancelled
	default:
		o.Status = domain.OrderStatusPending
	}

	if p, err := strconv.ParseFloat(a.Price, 64); err == nil {
		o.Price = p
	}
	if s, err := strconv.ParseFloat(a.OriginalSize, 64); err == nil {
		o.Size = s
	}
	if t, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
		o.CreatedAt = t
	}

	return o
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	result := domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Message: r.ErrorMsg,
	}
	switch r.Status {
	case "live", "open":
		result.Status = domain.OrderStatusActive
	default:
		if r.Success {
			result.Status = domain.OrderStatusActive
		} else {
			result.Status = domain.OrderStatusFailed
		}
	}
	return result
}

// APICancelResult is the response from a cancel request. The venue reports
// the outcome through a status field.
type APICancelResult struct {
	Status   string `json:"status"`
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
}

// Cancelled reports whether the venue confirmed the cancel.
func (r *APICancelResult) Cancelled() bool {
	return r.Success || strings.EqualFold(r.Status, "success")
}

// APIMarket represents a market as returned by the CLOB market endpoint.
type APIMarket struct {
	ConditionID   string     `json:"condition_id"`
	Question      string     `json:"question"`
	MarketSlug    string     `json:"market_slug"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	NegRisk       bool       `json:"neg_risk"`
	MinOrderSize  string     `json:"minimum_order_size"`
	EndDateISO    string     `json:"end_date_iso"`
	Tokens        []APIToken `json:"tokens"`
}

// APIToken is a token entry inside the market response.
type APIToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

// ToDomainMarket converts an APIMarket to a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.MarketSlug,
		NegRisk:     m.NegRisk,
		Outcomes:    [2]string{"Yes", "No"},
	}

	if m.Closed {
		dm.Status = domain.MarketStatusClosed
	} else if m.Active {
		dm.Status = domain.MarketStatusActive
	} else {
		dm.Status = domain.MarketStatusSettled
	}

	if v, err := strconv.ParseFloat(m.MinOrderSize, 64); err == nil {
		dm.MinOrder = v
	}
	if m.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
			dm.EndDate = &t
		}
	}

	for i, tok := range m.Tokens {
		if i >= 2 {
			break
		}
		dm.TokenIDs[i] = tok.TokenID
		if tok.Outcome != "" {
			dm.Outcomes[i] = tok.Outcome
		}
	}

	return dm
}
