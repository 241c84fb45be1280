package polymarket

// The venue's message schema is not contractually stable across message
// sub-types: the same logical field has shipped under several names. Quote
// extraction therefore probes an ordered table of {field name, extractor}
// entries, first success wins. New aliases are added to a table, not as
// new branches.

// quoteProbe binds one historical field name to its value extractor.
type quoteProbe struct {
	field   string
	extract func(v any) (float64, bool)
}

// Aliases observed on price_change entries.
var (
	priceChangeBidProbes = []quoteProbe{
		{"bid", asFloat},
		{"best_bid", asFloat},
		{"buy_price", asFloat},
		{"buyPrice", asFloat},
		{"bestBuy", asFloat},
		{"best_buy", asFloat},
	}
	priceChangeAskProbes = []quoteProbe{
		{"ask", asFloat},
		{"best_ask", asFloat},
		{"sell_price", asFloat},
		{"sellPrice", asFloat},
		{"bestSell", asFloat},
		{"best_sell", asFloat},
	}
)

// Aliases observed on orderbook update/snapshot messages.
var (
	bookBidProbes = []quoteProbe{
		{"best_bid", asFloat},
		{"bestBid", asFloat},
		{"bid", asFloat},
		{"buy", asFloat},
		{"best_buy", asFloat},
	}
	bookAskProbes = []quoteProbe{
		{"best_ask", asFloat},
		{"bestAsk", asFloat},
		{"ask", asFloat},
		{"sell", asFloat},
		{"best_sell", asFloat},
	}
)

// tokenIDAliases are the field names a message may use for its token id.
var tokenIDAliases = []string{"token_id", "asset_id", "tokenId", "assetId"}

// probeQuote runs the probe table against obj in order and returns the
// first successful extraction.
func probeQuote(obj map[string]any, probes []quoteProbe) (float64, bool) {
	for _, p := range probes {
		v, ok := obj[p.field]
		if !ok || v == nil {
			continue
		}
		if f, ok := p.extract(v); ok {
			return f, true
		}
	}
	return 0, false
}

// probeTokenID returns the message's token id under any known alias.
func probeTokenID(obj map[string]any) (string, bool) {
	for _, field := range tokenIDAliases {
		if v, ok := obj[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// asFloat extracts a float from the JSON value shapes the venue has used
// for prices: a number or a numeric string.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return parseFloatString(t)
	default:
		return 0, false
	}
}

// ladderBest returns the price of the first (best) entry of a raw ladder.
// Ladder entries may be a mapping with a price field, a bare number, or a
// two-element [price, size] pair; the first element or price field wins.
func ladderBest(v any) (float64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return 0, false
	}
	return ladderEntryPrice(arr[0])
}

func ladderEntryPrice(entry any) (float64, bool) {
	switch t := entry.(type) {
	case map[string]any:
		for _, field := range []string{"price", "px"} {
			if v, ok := t[field]; ok {
				if f, ok := asFloat(v); ok {
					return f, true
				}
			}
		}
		return 0, false
	case float64:
		return t, true
	case []any:
		if len(t) >= 2 {
			return asFloat(t[0])
		}
		return 0, false
	default:
		return asFloat(entry)
	}
}
