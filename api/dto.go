/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Most responses
  embed the progression types directly; DTOs exist where the API adds
  fields (quest completion flags, portfolio value) or accepts input.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the Manager, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/identity"
	"github.com/warp/gami-engine/progression"
	"github.com/warp/gami-engine/quests"
)

// =============================================================================
// SESSION / HEALTH
// =============================================================================

// SessionDTO is the current login.
type SessionDTO struct {
	Identity identity.Identity   `json:"identity"`
	Wallet   *progression.Wallet `json:"wallet,omitempty"`
}

// HealthDTO reports storage and canister reachability.
type HealthDTO struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	Canisters string `json:"canisters"`
}

// =============================================================================
// STATS
// =============================================================================

// UpdateStatsRequest is the PUT /api/stats body.
type UpdateStatsRequest struct {
	XP                int64    `json:"xp"`
	Level             int      `json:"level"`
	CompletedQuestIDs []string `json:"completedQuestIds"`
}

// =============================================================================
// QUESTS
// =============================================================================

// QuestDTO is a catalog quest with the player's status.
type QuestDTO struct {
	quests.Quest
	Completed bool `json:"completed"`
	InFlight  bool `json:"inFlight"`
}

// =============================================================================
// WALLET
// =============================================================================

// WalletDTO is the derived wallet plus its USD total. LedgerBalances is
// filled only for ?source=ledger.
type WalletDTO struct {
	progression.Wallet
	PortfolioValue decimal.Decimal            `json:"portfolioValue"`
	LedgerBalances map[string]decimal.Decimal `json:"ledgerBalances,omitempty"`
}

func toWalletDTO(w progression.Wallet) WalletDTO {
	return WalletDTO{Wallet: w, PortfolioValue: w.PortfolioValue()}
}

// TransferRequest is the POST /api/wallet/transfer body. Amount accepts
// a JSON number or string.
type TransferRequest struct {
	To     string          `json:"to"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo,omitempty"`
}

// =============================================================================
// LEADERBOARD
// =============================================================================

// LeaderboardDTO is one board and the caller's rank on it.
type LeaderboardDTO struct {
	Type    canister.LeaderboardType    `json:"type"`
	Entries []canister.LeaderboardEntry `json:"entries"`
	MyRank  *int                        `json:"myRank"`
}

// =============================================================================
// PRESETS
// =============================================================================

// PresetDTO describes a demo player preset.
type PresetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadPresetRequest is the POST /api/presets/load body.
type LoadPresetRequest struct {
	PresetID string `json:"preset_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
