package api

// JSON types for REST endpoints and WebSocket messages.

// PriceLevelInfo is one aggregated (price, quantity) row of book depth.
type PriceLevelInfo struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// BookResponse is the depth snapshot returned by GET /api/v1/book and
// broadcast on the "book" WebSocket channel.
type BookResponse struct {
	Bids      []PriceLevelInfo `json:"bids"` // best bid first
	Asks      []PriceLevelInfo `json:"asks"` // best ask first
	LastPrice int64            `json:"lastPrice"`
	Timestamp int64            `json:"timestamp"` // unix milliseconds
}

// TradeInfo is one execution record.
type TradeInfo struct {
	Seq         uint64 `json:"seq"`
	Price       int64  `json:"price"`
	Qty         int64  `json:"qty"`
	TakerSide   string `json:"takerSide"` // "buy" or "sell"
	BuyOrderID  uint64 `json:"buyOrderId"`
	SellOrderID uint64 `json:"sellOrderId"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders.
type SubmitOrderRequest struct {
	Side  string `json:"side"`            // "buy" or "sell"
	Type  string `json:"type"`            // "limit" or "market"
	Price int64  `json:"price,omitempty"` // ticks; ignored for market orders
	Qty   int64  `json:"qty"`
	Owner string `json:"owner"`
}

// SubmitOrderResponse reports the assigned id and any immediate fills.
type SubmitOrderResponse struct {
	OrderID uint64      `json:"orderId"`
	Trades  []TradeInfo `json:"trades"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	OrderID uint64 `json:"orderId"`
}

// StatusResponse is a generic ack.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
// Channels: "book", "trades".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// BookUpdate is broadcast on the "book" channel.
type BookUpdate struct {
	Type string       `json:"type"` // "book"
	Book BookResponse `json:"book"`
}

// TradeUpdate is broadcast on the "trades" channel.
type TradeUpdate struct {
	Type  string    `json:"type"` // "trade"
	Trade TradeInfo `json:"trade"`
}
