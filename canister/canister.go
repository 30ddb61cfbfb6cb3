/*
Package canister describes the remote Internet Computer services the
client talks to: user profiles, leaderboard, token ledger, and quest
rewards.

PURPOSE:
  The canisters' implementations live elsewhere. This package holds the
  typed method sets the client consumes, the Result envelope every
  mutating call returns, and an Actors bundle bound to one caller
  principal.

RESULT ENVELOPE:
  Mutating calls answer {"ok": T} or {"err": "message"}. The err variant
  surfaces as *RemoteError. Queries answer a bare value; optional values
  are null when absent.

IMPLEMENTATIONS:
  - canister/gateway: JSON over HTTP to a canister gateway
  - canister/memory:  In-process simulation for dev and tests

SEE ALSO:
  - result.go: Envelope decoding
  - progression/session.go: Holds an Actors bundle per login
*/
package canister

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROFILES
// =============================================================================

type Preferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
	Privacy       string `json:"privacy"`
}

type UserProfile struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        *string         `json:"email,omitempty"`
	XP           int64           `json:"xp"`
	Level        int             `json:"level"`
	Streak       int             `json:"streak"`
	TotalRewards decimal.Decimal `json:"totalRewards"`
	Achievements []string        `json:"achievements"`
	Preferences  Preferences     `json:"preferences"`
	JoinDate     time.Time       `json:"joinDate"`
	LastActive   time.Time       `json:"lastActive"`
}

type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	XPReward    int64      `json:"xpReward"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// Profiles is the user profile canister.
type Profiles interface {
	CreateProfile(ctx context.Context, username string) (UserProfile, error)
	// GetProfile returns nil when the profile does not exist. An empty
	// principal means the caller.
	GetProfile(ctx context.Context, principal string) (*UserProfile, error)
	UpdateXP(ctx context.Context, delta int64) (UserProfile, error)
	UnlockAchievement(ctx context.Context, user, achievementID string) (Achievement, error)
}

// =============================================================================
// LEADERBOARD
// =============================================================================

type LeaderboardType string

const (
	BoardLocal   LeaderboardType = "Local"
	BoardWeekly  LeaderboardType = "Weekly"
	BoardMonthly LeaderboardType = "Monthly"
	BoardGlobal  LeaderboardType = "Global"
)

// ParseLeaderboardType accepts the canonical names case-sensitively and
// defaults empty input to Global.
func ParseLeaderboardType(s string) (LeaderboardType, error) {
	switch LeaderboardType(s) {
	case "":
		return BoardGlobal, nil
	case BoardLocal, BoardWeekly, BoardMonthly, BoardGlobal:
		return LeaderboardType(s), nil
	}
	return "", errors.New("unknown leaderboard type: " + s)
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	XP         int64     `json:"xp"`
	Level      int       `json:"level"`
	Streak     int       `json:"streak"`
	Change     int       `json:"change"`
	LastActive time.Time `json:"lastActive"`
}

// Leaderboard is the ranking canister.
type Leaderboard interface {
	// GetLeaderboard returns at most limit entries; limit <= 0 means the
	// canister default.
	GetLeaderboard(ctx context.Context, board LeaderboardType, limit int) ([]LeaderboardEntry, error)
	// GetUserRank returns nil when the user is unranked.
	GetUserRank(ctx context.Context, user string, board LeaderboardType) (*int, error)
	UpdateRankings(ctx context.Context) error
}

// =============================================================================
// TOKEN LEDGER
// =============================================================================

type TransferArgs struct {
	To     string          `json:"to"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo,omitempty"`
}

// LedgerTransaction is a ledger canister record. Distinct from the
// client's progression.Transaction log.
type LedgerTransaction struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to"`
	Token       string          `json:"token"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockHeight int64           `json:"blockHeight"`
}

const (
	KindTransfer = "transfer"
	KindMint     = "mint"
)

// TokenLedger is the token ledger canister.
type TokenLedger interface {
	BalanceOf(ctx context.Context, user, symbol string) (decimal.Decimal, error)
	Transfer(ctx context.Context, args TransferArgs) (LedgerTransaction, error)
	Mint(ctx context.Context, user, token string, amount decimal.Decimal, memo string) (LedgerTransaction, error)
	// GetTransactionHistory filters by user when non-empty; limit <= 0 is unbounded.
	GetTransactionHistory(ctx context.Context, user string, limit int) ([]LedgerTransaction, error)
}

// =============================================================================
// QUEST REWARDS
// =============================================================================

type RewardAmount struct {
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

// QuestRewards is the reward distribution canister.
type QuestRewards interface {
	AwardQuestReward(ctx context.Context, user, questID string, rewards []RewardAmount) ([]LedgerTransaction, error)
}

// =============================================================================
// ACTORS
// =============================================================================

// Actors is every canister bound to one caller principal.
type Actors struct {
	Principal   string
	Profiles    Profiles
	Leaderboard Leaderboard
	Ledger      TokenLedger
	Rewards     QuestRewards
}

// Connector creates Actors for a principal.
type Connector interface {
	Connect(ctx context.Context, principal string) (Actors, error)
}

// Greeter answers the backend health probe.
type Greeter interface {
	Greet(ctx context.Context, name string) (string, error)
}
