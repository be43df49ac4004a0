package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bridgectl/internal/backend"
	"bridgectl/internal/domain"
	"bridgectl/internal/engine"
)

// Server serves the order-routing HTTP API. Each request runs on its own
// handler goroutine; the server itself keeps no mutable state between
// requests.
type Server struct {
	engine         *engine.Orchestrator
	backend        backend.Backend
	defaultAccount string
	log            *slog.Logger
}

// NewServer creates the HTTP server over the given orchestrator and backend.
func NewServer(e *engine.Orchestrator, b backend.Backend, defaultAccount string, log *slog.Logger) *Server {
	if defaultAccount == "" {
		defaultAccount = backend.DefaultAccount
	}
	return &Server{
		engine:         e,
		backend:        b,
		defaultAccount: defaultAccount,
		log:            log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /order/place", s.handlePlaceOrder)
	mux.HandleFunc("POST /position/flatten", s.handleFlatten)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("GET /orders", s.handleOrders)
	mux.HandleFunc("GET /account", s.handleAccount)
	mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeError writes the bare {error} shape used by the read-only endpoints.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure writes the {success:false, error} shape used by the order
// endpoints.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, FailureResponse{Success: false, Error: msg})
}

// handledStatus maps an orchestration error to the HTTP status callers
// expect: taxonomy failures stay 200 with success:false, anything else is a
// backend call failure surfacing as 500.
func handledStatus(err error) int {
	switch {
	case errors.Is(err, backend.ErrAccountNotFound),
		errors.Is(err, backend.ErrInstrumentNotFound),
		errors.Is(err, engine.ErrInvalidParameters),
		errors.Is(err, engine.ErrSubmissionFailed):
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusOK, "invalid request body: "+err.Error())
		return
	}

	side, err := domain.ParseSide(req.Action)
	if err != nil {
		writeFailure(w, http.StatusOK, err.Error())
		return
	}
	orderType, err := domain.ParseOrderType(req.OrderType)
	if err != nil {
		writeFailure(w, http.StatusOK, err.Error())
		return
	}

	params := engine.PlaceParams{
		Account:  req.Account,
		Symbol:   req.Symbol,
		Side:     side,
		Quantity: req.Quantity,
		Type:     orderType,
	}
	if req.LimitPrice != nil {
		params.LimitPrice = *req.LimitPrice
	}
	if req.StopPrice != nil {
		params.StopPrice = *req.StopPrice
	}
	if req.TP != nil {
		params.TakeProfit = *req.TP
	}
	if req.SL != nil {
		params.StopLoss = *req.SL
	}

	result, err := s.engine.PlaceBracketOrder(r.Context(), params)
	if err != nil {
		s.log.Error("place order failed", "symbol", req.Symbol, "error", err)
		writeFailure(w, handledStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PlaceOrderResponse{
		Success: true,
		OrderID: result.OrderID,
		OCO:     result.OCOGroup,
	})
}

func (s *Server) handleFlatten(w http.ResponseWriter, r *http.Request) {
	var req FlattenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusOK, "invalid request body: "+err.Error())
		return
	}

	result, err := s.engine.FlattenPosition(r.Context(), req.Account, req.Symbol)
	if err != nil {
		s.log.Error("flatten failed", "symbol", req.Symbol, "error", err)
		writeFailure(w, handledStatus(err), err.Error())
		return
	}

	if result.Flat {
		writeJSON(w, http.StatusOK, FlattenResponse{Success: true, Message: "No position to close"})
		return
	}
	writeJSON(w, http.StatusOK, FlattenResponse{
		Success:         true,
		OrderID:         result.OrderID,
		Quantity:        result.Quantity,
		CancelledOrders: result.CancelledOrders,
	})
}

// resolveQueryAccount resolves the ?account= query parameter, applying the
// default account when it is omitted.
func (s *Server) resolveQueryAccount(r *http.Request) (string, error) {
	name := r.URL.Query().Get("account")
	if name == "" {
		name = s.defaultAccount
	}
	return s.backend.ResolveAccount(r.Context(), name)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	account, err := s.resolveQueryAccount(r)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	positions, err := s.backend.Positions(r.Context(), account)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	out := make([]PositionJSON, 0, len(positions))
	for i := range positions {
		if positions[i].Quantity == 0 {
			continue
		}
		out = append(out, convertPosition(&positions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	account, err := s.resolveQueryAccount(r)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	orders, err := s.backend.Orders(r.Context(), account)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	out := make([]OrderJSON, 0, len(orders))
	for i := range orders {
		if !orders[i].State.Open() {
			continue
		}
		out = append(out, convertOrder(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.resolveQueryAccount(r)
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	info, err := s.backend.AccountSummary(r.Context(), account)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertAccount(info))
}

// writeReadError maps failures on the read-only endpoints to the bare
// {error} shape: resolution misses stay 200, backend call failures are 500.
func (s *Server) writeReadError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, backend.ErrAccountNotFound) {
		status = http.StatusOK
	}
	if status == http.StatusInternalServerError {
		s.log.Error("read endpoint failed", "error", err)
	}
	writeError(w, status, err.Error())
}
