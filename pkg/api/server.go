package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/marketgym/dmarket/pkg/engine"
)

// Server exposes one matching engine over REST and WebSocket. It is a
// thin observer/submitter layer; all market semantics live in the engine.
type Server struct {
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
}

// NewServer wires the routes over the given engine.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/book", s.handleGetBook).Methods("GET")
	v1.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	v1.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	v1.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	v1.HandleFunc("/reset", s.handleReset).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	depth := 0 // full book by default
	if q := r.URL.Query().Get("depth"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid depth", q)
			return
		}
		depth = n
	}
	respondJSON(w, s.bookResponse(depth))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.eng.Trades()
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", q)
			return
		}
		if len(trades) > n {
			trades = trades[len(trades)-n:]
		}
	}

	out := make([]TradeInfo, len(trades))
	for i, tr := range trades {
		out[i] = tradeInfo(tr)
	}
	respondJSON(w, out)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var side engine.Side
	switch req.Side {
	case "buy":
		side = engine.Buy
	case "sell":
		side = engine.Sell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}

	var typ engine.OrderType
	switch req.Type {
	case "limit", "":
		typ = engine.Limit
	case "market":
		typ = engine.Market
	default:
		respondError(w, http.StatusBadRequest, "invalid order type", req.Type)
		return
	}

	id, trades, err := s.eng.Submit(side, typ, req.Price, req.Qty, req.Owner)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	resp := SubmitOrderResponse{OrderID: id, Trades: make([]TradeInfo, len(trades))}
	for i, tr := range trades {
		resp.Trades[i] = tradeInfo(tr)
	}
	respondJSON(w, resp)

	s.BroadcastBook()
	for _, tr := range trades {
		s.BroadcastTrade(tr)
	}
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.eng.Cancel(req.OrderID); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "cancelled"})
	s.BroadcastBook()
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.eng.Reset()
	respondJSON(w, StatusResponse{Status: "reset"})
	s.BroadcastBook()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Halted(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "engine halted", err.Error())
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

// BroadcastBook pushes the current depth snapshot to "book" subscribers.
func (s *Server) BroadcastBook() {
	s.hub.BroadcastToChannel("book", BookUpdate{Type: "book", Book: s.bookResponse(0)})
}

// BroadcastTrade pushes one execution to "trades" subscribers.
func (s *Server) BroadcastTrade(tr engine.Trade) {
	s.hub.BroadcastToChannel("trades", TradeUpdate{Type: "trade", Trade: tradeInfo(tr)})
}

func (s *Server) bookResponse(depth int) BookResponse {
	bids, asks := s.eng.Depth(depth)
	resp := BookResponse{
		Bids:      make([]PriceLevelInfo, len(bids)),
		Asks:      make([]PriceLevelInfo, len(asks)),
		LastPrice: s.eng.LastPrice(),
		Timestamp: time.Now().UnixMilli(),
	}
	for i, lvl := range bids {
		resp.Bids[i] = PriceLevelInfo{Price: lvl.Price, Qty: lvl.Qty}
	}
	for i, lvl := range asks {
		resp.Asks[i] = PriceLevelInfo{Price: lvl.Price, Qty: lvl.Qty}
	}
	return resp
}

func tradeInfo(tr engine.Trade) TradeInfo {
	return TradeInfo{
		Seq:         tr.Seq,
		Price:       tr.Price,
		Qty:         tr.Qty,
		TakerSide:   tr.TakerSide.String(),
		BuyOrderID:  tr.BuyOrderID,
		SellOrderID: tr.SellOrderID,
		Buyer:       tr.Buyer,
		Seller:      tr.Seller,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Message: detail})
}

// respondEngineError maps engine errors onto HTTP status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, engine.ErrInvalidOrder),
		errors.Is(err, engine.ErrSelfTrade),
		errors.Is(err, engine.ErrMarketUnfillable):
		respondError(w, http.StatusBadRequest, "order rejected", err.Error())
	case errors.Is(err, engine.ErrEngineHalted):
		respondError(w, http.StatusServiceUnavailable, "engine halted", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
