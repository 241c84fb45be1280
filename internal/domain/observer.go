package domain

// Observer handler types. All handlers are invoked synchronously from the
// connection's read loop, so they must be fast and non-blocking: a slow
// handler stalls further frame processing on that connection.

// PriceUpdateHandler receives the best bid/ask/spread after a quote change.
type PriceUpdateHandler func(tokenID string, bestBid, bestAsk, spread float64)

// TradeHandler receives each normalized trade execution.
type TradeHandler func(tokenID string, trade TradeRecord)

// OrderbookHandler receives the raw frame of each orderbook update.
type OrderbookHandler func(tokenID string, raw RawFrame)

// LastTradeHandler receives standalone last-trade prices. These are trade
// execution prices, never quotes, and are kept out of best bid/ask.
type LastTradeHandler func(tokenID string, price float64, side string)

// UserMessageHandler receives verbatim private-channel trade/order events.
type UserMessageHandler func(raw RawFrame)

// StreamErrorHandler receives transport and decode errors from the
// streaming path. Errors delivered here never terminate the read loop.
type StreamErrorHandler func(err error)

// Observers is the set of registered extension points for the market-data
// feed. A nil handler is a valid, checked state meaning "not registered".
type Observers struct {
	OnPriceUpdate PriceUpdateHandler
	OnTrade       TradeHandler
	OnOrderbook   OrderbookHandler
	OnLastTrade   LastTradeHandler
	OnUserMessage UserMessageHandler
	OnError       StreamErrorHandler
}

// EmitPriceUpdate invokes OnPriceUpdate when registered.
func (o *Observers) EmitPriceUpdate(tokenID string, bid, ask, spread float64) {
	if o != nil && o.OnPriceUpdate != nil {
		o.OnPriceUpdate(tokenID, bid, ask, spread)
	}
}

// EmitTrade invokes OnTrade when registered.
func (o *Observers) EmitTrade(tokenID string, trade TradeRecord) {
	if o != nil && o.OnTrade != nil {
		o.OnTrade(tokenID, trade)
	}
}

// EmitOrderbook invokes OnOrderbook when registered.
func (o *Observers) EmitOrderbook(tokenID string, raw RawFrame) {
	if o != nil && o.OnOrderbook != nil {
		o.OnOrderbook(tokenID, raw)
	}
}

// EmitLastTrade invokes OnLastTrade when registered.
func (o *Observers) EmitLastTrade(tokenID string, price float64, side string) {
	if o != nil && o.OnLastTrade != nil {
		o.OnLastTrade(tokenID, price, side)
	}
}

// EmitUserMessage invokes OnUserMessage when registered.
func (o *Observers) EmitUserMessage(raw RawFrame) {
	if o != nil && o.OnUserMessage != nil {
		o.OnUserMessage(raw)
	}
}

// EmitError invokes OnError when registered.
func (o *Observers) EmitError(err error) {
	if o != nil && o.OnError != nil {
		o.OnError(err)
	}
}
