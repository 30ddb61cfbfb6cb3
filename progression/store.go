/*
store.go - Persisted keys and the key/value Store interface

PURPOSE:
  Progression state lives in a flat string-keyed, string-valued store.
  The key names and value encodings are shared with existing installs,
  so they are fixed:

    icp_principal            principal string
    userXP                   decimal string
    userLevel                decimal string
    completedQuests          JSON array of quest ids
    liveStats                JSON {totalEarned, questsCompleted, currentStreak}
    blockchain_transactions  JSON array of Transaction, newest first

ATOMIC WRITES:
  SetMany writes several keys all-or-nothing. RecordQuestCompletion
  relies on it to update xp, level, completions, live stats and the
  transaction log together.

IMPLEMENTATIONS:
  - store/sqlite: Default, file or :memory:
  - store/bolt:   Embedded bbolt file
  - store/redis:  Shared Redis
  - store/memory: Tests and dev

SEE ALSO:
  - manager.go: Sole writer of these keys
*/
package progression

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	KeyPrincipal       = "icp_principal"
	KeyXP              = "userXP"
	KeyLevel           = "userLevel"
	KeyCompletedQuests = "completedQuests"
	KeyLiveStats       = "liveStats"
	KeyTransactions    = "blockchain_transactions"
)

// AllKeys lists every key the manager writes. Logout removes all of them.
var AllKeys = []string{
	KeyPrincipal,
	KeyXP,
	KeyLevel,
	KeyCompletedQuests,
	KeyLiveStats,
	KeyTransactions,
}

// =============================================================================
// STORE
// =============================================================================

// Store is string key/value persistence.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes one key.
	Set(ctx context.Context, key, value string) error

	// SetMany writes all values atomically: all or none.
	SetMany(ctx context.Context, values map[string]string) error

	// Remove deletes keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}

// Pinger is implemented by stores that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// ENCODING
// =============================================================================

func encodeStats(s ProgressionState) (map[string]string, error) {
	ids, err := json.Marshal(uniqueIDs(s.CompletedQuestIDs))
	if err != nil {
		return nil, fmt.Errorf("encode completed quests: %w", err)
	}
	return map[string]string{
		KeyXP:              strconv.FormatInt(s.XP, 10),
		KeyLevel:           strconv.Itoa(s.Level),
		KeyCompletedQuests: string(ids),
	}, nil
}

func decodeXP(raw string) (int64, error) {
	xp, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", KeyXP, err)
	}
	if xp < 0 {
		return 0, fmt.Errorf("decode %s: negative xp %d", KeyXP, xp)
	}
	return xp, nil
}

func decodeLevel(raw string) (int, error) {
	level, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", KeyLevel, err)
	}
	if level < 1 {
		return 0, fmt.Errorf("decode %s: level %d below 1", KeyLevel, level)
	}
	return level, nil
}

func decodeCompleted(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyCompletedQuests, err)
	}
	return uniqueIDs(ids), nil
}

func encodeLiveStats(s LiveStats) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", KeyLiveStats, err)
	}
	return string(b), nil
}

func decodeLiveStats(raw string) (LiveStats, error) {
	var s LiveStats
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return LiveStats{}, fmt.Errorf("decode %s: %w", KeyLiveStats, err)
	}
	return s, nil
}

func encodeTransactions(txs []Transaction) (string, error) {
	if txs == nil {
		txs = []Transaction{}
	}
	b, err := json.Marshal(txs)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", KeyTransactions, err)
	}
	return string(b), nil
}

func decodeTransactions(raw string) ([]Transaction, error) {
	var txs []Transaction
	if err := json.Unmarshal([]byte(raw), &txs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyTransactions, err)
	}
	return txs, nil
}
