package progression

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/canister"
)

// TransferRequest moves tokens from the logged-in principal to To.
type TransferRequest struct {
	To     string          `json:"to"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo,omitempty"`
}

// ensureProfile creates user_<unix ms> when the caller has no profile
// and seeds it with the local xp, so later pushes of xp gains add up to
// the local total.
func (m *Manager) ensureProfile(ctx context.Context, s *Session) error {
	profiles := s.Actors().Profiles
	if profiles == nil {
		return nil
	}
	existing, err := profiles.GetProfile(ctx, "")
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if existing != nil {
		return nil
	}
	username := fmt.Sprintf("user_%d", m.now().UnixMilli())
	if _, err := profiles.CreateProfile(ctx, username); err != nil {
		return fmt.Errorf("create profile %s: %w", username, err)
	}

	m.mu.RLock()
	xp := m.state.XP
	m.mu.RUnlock()
	if xp > 0 {
		if _, err := profiles.UpdateXP(ctx, xp); err != nil {
			return fmt.Errorf("seed profile %s xp: %w", username, err)
		}
	}
	m.log.WithFields(logrus.Fields{
		"username": username,
		"xp":       xp,
	}).Info("created remote profile")
	return nil
}

// actors returns the current session's actors or the reason there are none.
func (m *Manager) actors() (*Session, canister.Actors, error) {
	s := m.Session()
	if s == nil {
		return nil, canister.Actors{}, ErrNotAuthenticated
	}
	return s, s.Actors(), nil
}

// SyncProfile fetches the caller's remote profile and adopts its xp, with
// the level derived from it. Completed quests stay local. Local xp never
// goes down: a profile behind local state is logged and left alone.
// Returns nil when the profile does not exist.
func (m *Manager) SyncProfile(ctx context.Context) (*canister.UserProfile, error) {
	s, actors, err := m.actors()
	if err != nil {
		return nil, err
	}
	if actors.Profiles == nil {
		return nil, ErrRemoteUnavailable
	}
	profile, err := actors.Profiles.GetProfile(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s {
		return nil, ErrNotAuthenticated
	}
	if profile.XP < m.state.XP {
		m.log.WithFields(logrus.Fields{
			"local_xp":  m.state.XP,
			"remote_xp": profile.XP,
		}).Warn("remote profile behind local xp, not adopting")
		return profile, nil
	}
	if profile.XP == m.state.XP && m.state.Level == LevelForXP(profile.XP) {
		return profile, nil
	}

	next := m.state.Clone()
	next.XP = profile.XP
	next.Level = LevelForXP(profile.XP)
	values, err := encodeStats(next)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetMany(ctx, values); err != nil {
		m.storageError("set", "stats", err)
		return nil, fmt.Errorf("persist synced stats: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"from_xp": m.state.XP,
		"to_xp":   next.XP,
	}).Info("adopted remote profile xp")
	m.state = next
	m.deriveLocked()
	return profile, nil
}

// TransferTokens sends tokens through the ledger canister and prepends a
// token_transfer transaction. A ledger rejection comes back as
// *canister.RemoteError.
func (m *Manager) TransferTokens(ctx context.Context, req TransferRequest) (Transaction, error) {
	if !req.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	s, actors, err := m.actors()
	if err != nil {
		return Transaction{}, err
	}
	if actors.Ledger == nil {
		return Transaction{}, ErrRemoteUnavailable
	}

	ltx, err := actors.Ledger.Transfer(ctx, canister.TransferArgs{
		To:     req.To,
		Token:  req.Token,
		Amount: req.Amount,
		Memo:   req.Memo,
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("transfer %s %s: %w", req.Amount, req.Token, err)
	}

	height := ltx.BlockHeight
	tx := Transaction{
		ID:          ltx.ID,
		Type:        TxTokenTransfer,
		Amount:      ltx.Amount,
		Token:       ltx.Token,
		Timestamp:   ltx.Timestamp.UTC(),
		Status:      StatusCompleted,
		BlockHeight: &height,
		To:          ltx.To,
		Memo:        ltx.Memo,
	}
	if tx.ID == "" {
		tx.ID = m.newID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s {
		return tx, nil
	}
	txs := prepend(m.txs, tx)
	if raw, err := encodeTransactions(txs); err != nil {
		m.log.WithError(err).Error("encode transactions")
	} else if err := m.store.Set(ctx, KeyTransactions, raw); err != nil {
		m.storageError("set", KeyTransactions, err)
	}
	m.txs = txs
	return tx, nil
}

// LedgerBalances asks the ledger canister for the caller's balance of
// every wallet token, as opposed to the derived wallet.
func (m *Manager) LedgerBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	s, actors, err := m.actors()
	if err != nil {
		return nil, err
	}
	if actors.Ledger == nil {
		return nil, ErrRemoteUnavailable
	}
	out := make(map[string]decimal.Decimal, len(TokenSymbols))
	for _, sym := range TokenSymbols {
		bal, err := actors.Ledger.BalanceOf(ctx, s.Principal(), sym)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", sym, err)
		}
		out[sym] = bal
	}
	return out, nil
}

// LedgerHistory returns the caller's ledger records, newest first.
func (m *Manager) LedgerHistory(ctx context.Context, limit int) ([]canister.LedgerTransaction, error) {
	s, actors, err := m.actors()
	if err != nil {
		return nil, err
	}
	if actors.Ledger == nil {
		return nil, ErrRemoteUnavailable
	}
	return actors.Ledger.GetTransactionHistory(ctx, s.Principal(), limit)
}

// Leaderboard passes through to the leaderboard canister.
func (m *Manager) Leaderboard(ctx context.Context, board canister.LeaderboardType, limit int) ([]canister.LeaderboardEntry, error) {
	_, actors, err := m.actors()
	if err != nil {
		return nil, err
	}
	if actors.Leaderboard == nil {
		return nil, ErrRemoteUnavailable
	}
	return actors.Leaderboard.GetLeaderboard(ctx, board, limit)
}

// Rank is the caller's position on board, nil when unranked.
func (m *Manager) Rank(ctx context.Context, board canister.LeaderboardType) (*int, error) {
	s, actors, err := m.actors()
	if err != nil {
		return nil, err
	}
	if actors.Leaderboard == nil {
		return nil, ErrRemoteUnavailable
	}
	return actors.Leaderboard.GetUserRank(ctx, s.Principal(), board)
}

// RefreshRankings asks the leaderboard canister to recompute rankings.
func (m *Manager) RefreshRankings(ctx context.Context) error {
	_, actors, err := m.actors()
	if err != nil {
		return err
	}
	if actors.Leaderboard == nil {
		return ErrRemoteUnavailable
	}
	return actors.Leaderboard.UpdateRankings(ctx)
}
