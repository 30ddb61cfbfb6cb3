/*
handlers.go - HTTP API handlers for the progression engine

PURPOSE:
  Exposes one progression.Manager via REST API. Handles HTTP
  request/response, JSON serialization, and delegates every state
  change to the Manager.

ENDPOINTS:
  Session:
    POST   /api/session/login             Login via identity provider
    POST   /api/session/logout            Logout, clears all progress keys
    GET    /api/session                   Current identity and wallet

  Stats:
    GET    /api/stats                     xp, level, completed quests
    PUT    /api/stats                     Overwrite stats verbatim
    GET    /api/live-stats                Earnings, completions, streak
    PUT    /api/live-stats                Overwrite live stats

  Quests:
    GET    /api/quests                    Catalog (?category=)
    POST   /api/quests/{id}/complete      Record a completion atomically
    POST   /api/quests/{id}/complete-onchain  Reward-only completion

  Wallet:
    GET    /api/wallet                    Derived wallet (?source=ledger)
    POST   /api/wallet/refresh            Re-derive wallet
    POST   /api/wallet/transfer           Ledger transfer
    GET    /api/transactions              Transaction log, newest first
    GET    /api/leaderboard               Board (?type=&limit=)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No session
  - 404: Unknown quest
  - 409: Quest already completed or in flight
  - 422: Canister rejected the call
  - 503: Canisters unreachable
  - 500: Internal errors

  An unsuccessful reward decision is not an error: the completion
  endpoints answer 200 with "success": false.

SEE ALSO:
  - dto.go: Request/response data structures
  - presets.go: Demo player presets
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/progression"
	"github.com/warp/gami-engine/quests"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Manager *progression.Manager

	// Optional health probes.
	Greeter canister.Greeter
	Pinger  progression.Pinger

	mu            sync.Mutex
	currentPreset string
}

// NewHandler creates a new handler over mgr.
func NewHandler(mgr *progression.Manager) *Handler {
	return &Handler{Manager: mgr}
}

// =============================================================================
// HEALTH / SESSION
// =============================================================================

// Health reports storage and canister reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HealthDTO{Status: "ok", Storage: "ok", Canisters: "not configured"}
	status := http.StatusOK

	if h.Pinger != nil {
		if err := h.Pinger.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Storage = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.Greeter != nil {
		if msg, err := h.Greeter.Greet(ctx, "gami"); err != nil {
			resp.Status = "degraded"
			resp.Canisters = err.Error()
		} else {
			resp.Canisters = msg
		}
	}
	writeJSON(w, status, resp)
}

// Login runs the identity provider. A failed login is 401 with the
// result as body.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	res := h.Manager.Login(r.Context())
	if !res.Success {
		writeJSON(w, http.StatusUnauthorized, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Logout clears the session and all stored progress.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Manager.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// GetSession returns the current identity and wallet.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionDTO{
		Identity: h.Manager.Identity(),
		Wallet:   h.Manager.Wallet(),
	})
}

// =============================================================================
// STATS
// =============================================================================

// GetStats returns stats after a storage round-trip.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.GetUserStats(r.Context()))
}

// UpdateStats overwrites stats and returns what storage now holds.
func (h *Handler) UpdateStats(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CompletedQuestIDs == nil {
		req.CompletedQuestIDs = []string{}
	}

	ctx := r.Context()
	err := h.Manager.UpdateUserStats(ctx, progression.ProgressionState{
		XP:                req.XP,
		Level:             req.Level,
		CompletedQuestIDs: req.CompletedQuestIDs,
	})
	if err != nil {
		writeDomainError(w, "Failed to update stats", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.GetUserStats(ctx))
}

// GetLiveStats returns the accumulated completion stats.
func (h *Handler) GetLiveStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.LiveStats(r.Context()))
}

// UpdateLiveStats overwrites the live stats.
func (h *Handler) UpdateLiveStats(w http.ResponseWriter, r *http.Request) {
	var req progression.LiveStats
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()
	if err := h.Manager.SaveLiveStats(ctx, req); err != nil {
		writeDomainError(w, "Failed to save live stats", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.LiveStats(ctx))
}

// =============================================================================
// QUESTS
// =============================================================================

// ListQuests returns the catalog with completion flags.
func (h *Handler) ListQuests(w http.ResponseWriter, r *http.Request) {
	catalog := h.Manager.Catalog()
	list := catalog.All()
	if c := r.URL.Query().Get("category"); c != "" {
		cat := quests.Category(c)
		if !cat.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown category", nil)
			return
		}
		list = catalog.ByCategory(cat)
	}

	stats := h.Manager.GetUserStats(r.Context())
	dtos := make([]QuestDTO, len(list))
	for i, q := range list {
		dtos[i] = QuestDTO{
			Quest:     q,
			Completed: stats.HasCompleted(q.ID),
			InFlight:  h.Manager.InFlight(q.ID),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CompleteQuest records a completion: xp, level, live stats and the
// reward transaction in one write.
func (h *Handler) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.Manager.RecordQuestCompletion(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to complete quest", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CompleteQuestOnChain asks for the reward only.
func (h *Handler) CompleteQuestOnChain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.Manager.CompleteQuestOnChain(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to complete quest on chain", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// WALLET
// =============================================================================

// GetWallet returns the derived wallet. ?source=ledger adds the ledger
// canister's balances.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet := h.Manager.Wallet()
	if wallet == nil {
		writeDomainError(w, "No wallet connected", progression.ErrNotAuthenticated)
		return
	}
	dto := toWalletDTO(*wallet)

	if r.URL.Query().Get("source") == "ledger" {
		balances, err := h.Manager.LedgerBalances(r.Context())
		if err != nil {
			writeDomainError(w, "Failed to read ledger balances", err)
			return
		}
		dto.LedgerBalances = balances
	}
	writeJSON(w, http.StatusOK, dto)
}

// RefreshWallet re-derives the wallet.
func (h *Handler) RefreshWallet(w http.ResponseWriter, r *http.Request) {
	wallet := h.Manager.RefreshBalance(r.Context())
	if wallet == nil {
		writeDomainError(w, "No wallet connected", progression.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(*wallet))
}

// Transfer sends tokens through the ledger canister.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.To == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "to and token are required", nil)
		return
	}

	tx, err := h.Manager.TransferTokens(r.Context(), progression.TransferRequest{
		To:     req.To,
		Token:  req.Token,
		Amount: req.Amount,
		Memo:   req.Memo,
	})
	if err != nil {
		writeDomainError(w, "Transfer failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions returns the transaction log, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Transactions(r.Context()))
}

// GetLeaderboard returns one board and the caller's rank.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := canister.ParseLeaderboardType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leaderboard type", err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
	}

	ctx := r.Context()
	entries, err := h.Manager.Leaderboard(ctx, board, limit)
	if err != nil {
		writeDomainError(w, "Failed to load leaderboard", err)
		return
	}
	rank, err := h.Manager.Rank(ctx, board)
	if err != nil {
		writeDomainError(w, "Failed to load rank", err)
		return
	}
	if entries == nil {
		entries = []canister.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, LeaderboardDTO{Type: board, Entries: entries, MyRank: rank})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps Manager and canister errors to a status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, progression.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case progression.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, progression.ErrQuestInFlight),
		errors.Is(err, progression.ErrQuestAlreadyCompleted):
		return http.StatusConflict
	case progression.IsClientError(err):
		return http.StatusBadRequest
	case canister.IsRemote(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, progression.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
