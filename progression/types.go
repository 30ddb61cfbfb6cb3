/*
Package progression owns a player's XP, level, completed quests, live stats,
the token wallet derived from them, and the quest transaction log.

PURPOSE:
  Single source of truth for progression state on the client side. The
  Manager persists everything to a string key/value Store and mediates
  every quest-completion transaction. UI layers (HTTP, CLI) only read and
  call operations; they never write the persisted keys themselves.

KEY CONCEPTS IN THIS FILE (types.go):
  - ProgressionState: xp, level, completed quest ids
  - LiveStats: money earned, quests completed, streak
  - Wallet / RewardToken: derived view, never persisted
  - Transaction: newest-first log entry persisted as a full list

DESIGN PRINCIPLES:
  1. Derivation: wallet balances are a pure function of ProgressionState
  2. Precision: money and token amounts use decimal.Decimal
  3. Degradation: storage failures fall back to defaults and get logged

SEE ALSO:
  - wallet.go: Wallet derivation
  - manager.go: Stateful operations
  - store.go: Persisted keys and encoding
*/
package progression

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultXP and DefaultLevel seed a fresh install.
	DefaultXP    int64 = 2847
	DefaultLevel       = 12

	// XPPerLevel is the XP width of one level.
	XPPerLevel int64 = 1000

	// Network is the chain every wallet is displayed on.
	Network = "ICP"
)

// =============================================================================
// PROGRESSION STATE
// =============================================================================

// ProgressionState is the persisted xp/level/completion triple.
type ProgressionState struct {
	XP                int64    `json:"xp"`
	Level             int      `json:"level"`
	CompletedQuestIDs []string `json:"completedQuestIds"`
}

// DefaultState returns the seed state used when nothing is persisted.
func DefaultState() ProgressionState {
	return ProgressionState{
		XP:                DefaultXP,
		Level:             DefaultLevel,
		CompletedQuestIDs: []string{},
	}
}

// HasCompleted reports whether questID is in the completed set.
func (s ProgressionState) HasCompleted(questID string) bool {
	for _, id := range s.CompletedQuestIDs {
		if id == questID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slice storage with s.
func (s ProgressionState) Clone() ProgressionState {
	ids := make([]string, len(s.CompletedQuestIDs))
	copy(ids, s.CompletedQuestIDs)
	s.CompletedQuestIDs = ids
	return s
}

// uniqueIDs drops empty and repeated ids, keeping first occurrence order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// =============================================================================
// LIVE STATS
// =============================================================================

// LiveStats accumulates quest-completion events. Persisted apart from
// ProgressionState.
type LiveStats struct {
	TotalEarned     decimal.Decimal `json:"totalEarned"`
	QuestsCompleted int             `json:"questsCompleted"`
	CurrentStreak   int             `json:"currentStreak"`
}

// =============================================================================
// WALLET
// =============================================================================

// RewardToken is one token line in a derived wallet.
type RewardToken struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
	Value      decimal.Decimal `json:"value"`
	CanisterID string          `json:"canisterId"`
}

// USDValue is balance times unit value.
func (t RewardToken) USDValue() decimal.Decimal {
	return t.Balance.Mul(t.Value)
}

// Wallet is the view derived from ProgressionState for an authenticated
// principal.
type Wallet struct {
	Principal string          `json:"principal"`
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	Network   string          `json:"network"`
	Connected bool            `json:"connected"`
	Tokens    []RewardToken   `json:"tokens"`
}

// Token returns the token line for symbol.
func (w Wallet) Token(symbol string) (RewardToken, bool) {
	for _, t := range w.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return RewardToken{}, false
}

// PortfolioValue sums the USD value of every token line.
func (w Wallet) PortfolioValue() decimal.Decimal {
	total := decimal.Zero
	for _, t := range w.Tokens {
		total = total.Add(t.USDValue())
	}
	return total
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

type TransactionType string

const (
	TxRewardEarned   TransactionType = "reward_earned"
	TxQuestCompleted TransactionType = "quest_completed"
	TxTokenTransfer  TransactionType = "token_transfer"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is one entry of the persisted log. The log is newest first.
type Transaction struct {
	ID          string            `json:"id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Token       string            `json:"token"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      TransactionStatus `json:"status"`
	BlockHeight *int64            `json:"blockHeight,omitempty"`
	QuestID     string            `json:"questId,omitempty"`
	To          string            `json:"to,omitempty"`
	Memo        string            `json:"memo,omitempty"`
}
