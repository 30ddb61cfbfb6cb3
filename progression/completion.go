/*
completion.go - Quest completion

PURPOSE:
  Two entry points complete a quest:

  CompleteQuestOnChain(questID)
    Asks the reward oracle and, on success, prepends one quest_completed
    transaction to the log. XP and level are not touched. Kept for
    callers that update stats themselves.

  RecordQuestCompletion(questID)
    The whole completion in one write: xp, derived level, completed set,
    live stats and (for on-chain quests) the transaction go to the store
    in a single SetMany. Either all of it lands or none of it does.

DEDUPLICATION:
  Each quest id can be in flight once. A second call for the same id
  while the first is still waiting on the oracle gets *InFlightError.
  The marker is cleared on every exit path.

FAILURE:
  Oracle errors and timeouts count as an unsuccessful outcome, never as
  an error. Nothing is mutated on an unsuccessful outcome and nothing is
  retried.

SEE ALSO:
  - oracle.go: Reward decisions
*/
package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/metrics"
	"github.com/warp/gami-engine/quests"
)

// QuestOutcome is the result of CompleteQuestOnChain.
type QuestOutcome struct {
	Success     bool            `json:"success"`
	Reward      decimal.Decimal `json:"reward"`
	Transaction *Transaction    `json:"transaction,omitempty"`
	Wallet      *Wallet         `json:"wallet,omitempty"`
}

// CompletionResult is the result of RecordQuestCompletion.
type CompletionResult struct {
	Success     bool             `json:"success"`
	QuestID     string           `json:"questId"`
	XPGained    int64            `json:"xpGained"`
	LeveledUp   bool             `json:"leveledUp"`
	Stats       ProgressionState `json:"stats"`
	LiveStats   LiveStats        `json:"liveStats"`
	Transaction *Transaction     `json:"transaction,omitempty"`
	Wallet      *Wallet          `json:"wallet,omitempty"`
}

const (
	modeOnChain = "onchain"
	modeRecord  = "record"
)

// =============================================================================
// IN-FLIGHT SET
// =============================================================================

// acquire marks questID in flight and returns the release func.
func (m *Manager) acquire(questID string) (func(), error) {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if _, busy := m.inflight[questID]; busy {
		return nil, &InFlightError{QuestID: questID}
	}
	m.inflight[questID] = struct{}{}
	return func() {
		m.inflightMu.Lock()
		delete(m.inflight, questID)
		m.inflightMu.Unlock()
	}, nil
}

// InFlight reports whether questID is being completed right now.
func (m *Manager) InFlight(questID string) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	_, busy := m.inflight[questID]
	return busy
}

// =============================================================================
// ON-CHAIN
// =============================================================================

// CompleteQuestOnChain asks the oracle to reward questID. See file header.
func (m *Manager) CompleteQuestOnChain(ctx context.Context, questID string) (QuestOutcome, error) {
	release, err := m.acquire(questID)
	if err != nil {
		metrics.RecordQuestCompletion(modeOnChain, "rejected")
		return QuestOutcome{}, err
	}
	defer release()

	session := m.Session()
	if session == nil {
		metrics.RecordQuestCompletion(modeOnChain, "rejected")
		return QuestOutcome{}, ErrNotAuthenticated
	}

	var rewards []canister.RewardAmount
	if q, ok := m.catalog.Get(questID); ok {
		rewards = rewardAmounts(q)
	}

	decision := m.decide(ctx, session, questID, rewards)
	if !decision.Success {
		metrics.RecordQuestCompletion(modeOnChain, "failed")
		return QuestOutcome{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != session {
		metrics.RecordQuestCompletion(modeOnChain, "rejected")
		return QuestOutcome{}, ErrNotAuthenticated
	}

	tx := m.questTx(questID, decision)
	txs := prepend(m.txs, tx)
	if raw, err := encodeTransactions(txs); err != nil {
		m.log.WithError(err).Error("encode transactions")
	} else if err := m.store.Set(ctx, KeyTransactions, raw); err != nil {
		m.storageError("set", KeyTransactions, err)
	}
	m.txs = txs
	m.deriveLocked()

	metrics.RecordQuestCompletion(modeOnChain, "success")
	m.log.WithFields(logrus.Fields{
		"quest":  questID,
		"reward": decision.Reward.String(),
	}).Info("quest completed on chain")

	return QuestOutcome{
		Success:     true,
		Reward:      decision.Reward,
		Transaction: &tx,
		Wallet:      m.walletCopyLocked(),
	}, nil
}

// =============================================================================
// RECORD
// =============================================================================

// RecordQuestCompletion completes questID and applies every state change
// in one atomic write. See file header.
func (m *Manager) RecordQuestCompletion(ctx context.Context, questID string) (CompletionResult, error) {
	quest, ok := m.catalog.Get(questID)
	if !ok {
		return CompletionResult{}, fmt.Errorf("quest %s: %w", questID, ErrUnknownQuest)
	}

	release, err := m.acquire(questID)
	if err != nil {
		metrics.RecordQuestCompletion(modeRecord, "rejected")
		return CompletionResult{}, err
	}
	defer release()

	m.mu.RLock()
	done := m.state.HasCompleted(questID)
	session := m.session
	m.mu.RUnlock()
	if done {
		metrics.RecordQuestCompletion(modeRecord, "rejected")
		return CompletionResult{}, &AlreadyCompletedError{QuestID: questID}
	}

	var decision RewardDecision
	if quest.OnChain {
		if session == nil {
			metrics.RecordQuestCompletion(modeRecord, "rejected")
			return CompletionResult{}, ErrNotAuthenticated
		}
		decision = m.decide(ctx, session, questID, rewardAmounts(quest))
		if !decision.Success {
			metrics.RecordQuestCompletion(modeRecord, "failed")
			return CompletionResult{QuestID: questID}, nil
		}
	}

	result, err := m.commitCompletion(ctx, quest, session, decision)
	if err != nil {
		metrics.RecordQuestCompletion(modeRecord, "failed")
		return CompletionResult{}, err
	}
	metrics.RecordQuestCompletion(modeRecord, "success")

	m.pushXP(ctx, session, quest.XPReward)
	return result, nil
}

func (m *Manager) commitCompletion(ctx context.Context, quest quests.Quest, session *Session, decision RewardDecision) (CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.HasCompleted(quest.ID) {
		return CompletionResult{}, &AlreadyCompletedError{QuestID: quest.ID}
	}
	if quest.OnChain && m.session != session {
		return CompletionResult{}, ErrNotAuthenticated
	}

	next := m.state.Clone()
	next.XP += quest.XPReward
	next.Level = LevelForXP(next.XP)
	next.CompletedQuestIDs = append(next.CompletedQuestIDs, quest.ID)

	live := m.live
	live.TotalEarned = live.TotalEarned.Add(quest.Money())
	live.QuestsCompleted++
	live.CurrentStreak++

	values, err := encodeStats(next)
	if err != nil {
		return CompletionResult{}, err
	}
	if values[KeyLiveStats], err = encodeLiveStats(live); err != nil {
		return CompletionResult{}, err
	}

	txs := m.txs
	var tx *Transaction
	if quest.OnChain {
		t := m.questTx(quest.ID, decision)
		tx = &t
		txs = prepend(m.txs, t)
		if values[KeyTransactions], err = encodeTransactions(txs); err != nil {
			return CompletionResult{}, err
		}
	}

	if err := m.store.SetMany(ctx, values); err != nil {
		m.storageError("set", "completion", err)
		return CompletionResult{}, fmt.Errorf("record quest %s: %w", quest.ID, err)
	}

	leveledUp := next.Level > m.state.Level
	m.state = next
	m.live = live
	m.txs = txs
	m.deriveLocked()

	m.log.WithFields(logrus.Fields{
		"quest": quest.ID,
		"xp":    next.XP,
		"level": next.Level,
	}).Info("quest recorded")

	return CompletionResult{
		Success:     true,
		QuestID:     quest.ID,
		XPGained:    quest.XPReward,
		LeveledUp:   leveledUp,
		Stats:       next.Clone(),
		LiveStats:   live,
		Transaction: tx,
		Wallet:      m.walletCopyLocked(),
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// decide runs the oracle; errors count as an unsuccessful decision.
func (m *Manager) decide(ctx context.Context, session *Session, questID string, rewards []canister.RewardAmount) RewardDecision {
	start := time.Now()
	decision, err := m.oracle.Determine(ctx, session, RewardRequest{QuestID: questID, Rewards: rewards})
	if err != nil {
		m.log.WithError(err).WithField("quest", questID).Warn("reward oracle")
		decision = RewardDecision{}
	}
	metrics.RecordOracleDecision(time.Since(start), decision.Success)
	return decision
}

// pushXP mirrors an XP gain to the profile canister. Best effort.
func (m *Manager) pushXP(ctx context.Context, session *Session, delta int64) {
	if session == nil || delta == 0 {
		return
	}
	profiles := session.Actors().Profiles
	if profiles == nil {
		return
	}
	if _, err := profiles.UpdateXP(ctx, delta); err != nil {
		m.log.WithError(err).WithField("delta", delta).Warn("push xp to profile canister")
	}
}

func (m *Manager) questTx(questID string, d RewardDecision) Transaction {
	return Transaction{
		ID:          m.newID(),
		Type:        TxQuestCompleted,
		Amount:      d.Reward,
		Token:       gamiToken.Symbol,
		Timestamp:   m.now().UTC(),
		Status:      StatusCompleted,
		BlockHeight: d.BlockHeight,
		QuestID:     questID,
	}
}

func rewardAmounts(q quests.Quest) []canister.RewardAmount {
	if len(q.BlockchainRewards) == 0 {
		return nil
	}
	out := make([]canister.RewardAmount, len(q.BlockchainRewards))
	for i, r := range q.BlockchainRewards {
		out[i] = canister.RewardAmount{Token: r.Token, Amount: r.Amount}
	}
	return out
}

// prepend returns a new slice with tx first.
func prepend(txs []Transaction, tx Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}
