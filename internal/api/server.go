// Package api provides the HTTP handlers for the settlement engine:
// platform initialization, bet creation, oracle price recording, and
// settlement, plus the read surface and the WebSocket event feed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moonflip/settlement-engine/internal/engine"
	"github.com/moonflip/settlement-engine/internal/ledger"
	"github.com/moonflip/settlement-engine/internal/model"
)

// Server handles lifecycle operations over HTTP. Caller identities arrive
// as hex strings in request bodies; the engine performs the capability
// checks. Signature verification is the host's concern, not ours.
type Server struct {
	engine *engine.Engine
}

// NewServer creates a new API server around the engine.
func NewServer(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// Routes mounts all handlers on a chi router group.
func (s *Server) Routes(r chi.Router) {
	r.Post("/platform", s.InitializePlatform)
	r.Get("/platform", s.GetPlatform)
	r.Post("/platform/status", s.SetPlatformStatus)

	r.Post("/bets", s.CreateBet)
	r.Get("/bets", s.ListBets)
	r.Get("/bets/{betID}", s.GetBet)
	r.Post("/bets/{betID}/price", s.RecordStartPrice)
	r.Post("/bets/{betID}/settle", s.SettleBet)
}

// --- Request types ---

// InitializePlatformRequest is the JSON body for POST /platform.
type InitializePlatformRequest struct {
	Admin       string `json:"admin"`
	HouseWallet string `json:"house_wallet"`
	HouseFeeBps uint16 `json:"house_fee_bps"`
	MinBet      uint64 `json:"min_bet"`
	MaxBet      uint64 `json:"max_bet"`
}

// SetPlatformStatusRequest is the JSON body for POST /platform/status.
type SetPlatformStatusRequest struct {
	Admin    string `json:"admin"`
	IsActive bool   `json:"is_active"`
}

// CreateBetRequest is the JSON body for POST /bets.
type CreateBetRequest struct {
	Player          string `json:"player"`
	Amount          uint64 `json:"amount"`
	Prediction      bool   `json:"prediction"` // true = price will rise
	DurationSeconds int64  `json:"duration_seconds"`
	TokenMint       string `json:"token_mint"`
}

// RecordPriceRequest is the JSON body for POST /bets/{betID}/price.
type RecordPriceRequest struct {
	Authority  string `json:"authority"`
	StartPrice uint64 `json:"start_price"`
}

// SettleBetRequest is the JSON body for POST /bets/{betID}/settle.
type SettleBetRequest struct {
	Authority string `json:"authority"`
	EndPrice  uint64 `json:"end_price"`
}

// --- Handlers ---

// InitializePlatform handles POST /api/v1/platform.
func (s *Server) InitializePlatform(w http.ResponseWriter, r *http.Request) {
	var req InitializePlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	admin, err := model.ParseIdentity(req.Admin)
	if err != nil {
		writeError(w, "invalid admin identity", http.StatusBadRequest)
		return
	}
	houseWallet, err := model.ParseIdentity(req.HouseWallet)
	if err != nil {
		writeError(w, "invalid house wallet identity", http.StatusBadRequest)
		return
	}

	p, err := s.engine.InitializePlatform(r.Context(), admin, houseWallet, req.HouseFeeBps, req.MinBet, req.MaxBet)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// GetPlatform handles GET /api/v1/platform.
func (s *Server) GetPlatform(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Platform(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetPlatformStatus handles POST /api/v1/platform/status.
func (s *Server) SetPlatformStatus(w http.ResponseWriter, r *http.Request) {
	var req SetPlatformStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	admin, err := model.ParseIdentity(req.Admin)
	if err != nil {
		writeError(w, "invalid admin identity", http.StatusBadRequest)
		return
	}

	if err := s.engine.SetActive(r.Context(), admin, req.IsActive); err != nil {
		writeEngineError(w, err)
		return
	}

	p, err := s.engine.Platform(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateBet handles POST /api/v1/bets.
func (s *Server) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	player, err := model.ParseIdentity(req.Player)
	if err != nil {
		writeError(w, "invalid player identity", http.StatusBadRequest)
		return
	}
	mint, err := model.ParseIdentity(req.TokenMint)
	if err != nil {
		writeError(w, "invalid token mint", http.StatusBadRequest)
		return
	}

	bet, err := s.engine.CreateBet(r.Context(), player, req.Amount, req.Prediction, req.DurationSeconds, mint)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// GetBet handles GET /api/v1/bets/{betID}.
func (s *Server) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.engine.Bet(r.Context(), chi.URLParam(r, "betID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// ListBets handles GET /api/v1/bets.
// Returns all bets, optionally filtered by ?status=open|settled.
func (s *Server) ListBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.engine.Bets(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := []model.Bet{}
		for _, b := range bets {
			if b.Status == status {
				filtered = append(filtered, b)
			}
		}
		bets = filtered
	}

	writeJSON(w, http.StatusOK, bets)
}

// RecordStartPrice handles POST /api/v1/bets/{betID}/price.
func (s *Server) RecordStartPrice(w http.ResponseWriter, r *http.Request) {
	var req RecordPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	authority, err := model.ParseIdentity(req.Authority)
	if err != nil {
		writeError(w, "invalid authority identity", http.StatusBadRequest)
		return
	}

	bet, err := s.engine.RecordStartPrice(r.Context(), authority, chi.URLParam(r, "betID"), req.StartPrice)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// SettleBet handles POST /api/v1/bets/{betID}/settle.
func (s *Server) SettleBet(w http.ResponseWriter, r *http.Request) {
	var req SettleBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	authority, err := model.ParseIdentity(req.Authority)
	if err != nil {
		writeError(w, "invalid authority identity", http.StatusBadRequest)
		return
	}

	bet, err := s.engine.SettleBet(r.Context(), authority, chi.URLParam(r, "betID"), req.EndPrice)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// --- Error mapping ---

// writeEngineError maps engine sentinels onto HTTP status codes: validation
// failures are 400, missing records 404, capability failures 403, and
// precondition violations 409 so callers can distinguish "retry later"
// (BetNotExpired) from "never going to work" (BetAlreadySettled) by body.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidFee),
		errors.Is(err, engine.ErrInvalidBounds),
		errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, engine.ErrBetTooSmall),
		errors.Is(err, engine.ErrBetTooLarge):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrPlatformNotFound),
		errors.Is(err, engine.ErrBetNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrUnauthorized):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, engine.ErrPlatformExists),
		errors.Is(err, engine.ErrPlatformInactive),
		errors.Is(err, engine.ErrBetAlreadySettled),
		errors.Is(err, engine.ErrBetNotExpired),
		errors.Is(err, engine.ErrPriceAlreadySet),
		errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
