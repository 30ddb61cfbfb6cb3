/*
oracle.go - Reward determination for on-chain quest completion

PURPOSE:
  Whether a quest completion earns a reward, and how much, is decided
  outside the manager. The manager only sees an async call that returns
  success plus an amount, and treats errors and timeouts as failure.

IMPLEMENTATIONS:
  - SimulatedOracle: Local draw with a 1-2s delay, 90% success, reward
    in [25,125), block height in [50000,60000). Dev and demo only.
  - CanisterOracle:  Asks the quest rewards canister to award the quest.
    The canister's answer is authoritative.

SEE ALSO:
  - completion.go: Calls Determine
*/
package progression

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gami-engine/canister"
)

// RewardRequest asks for a reward decision on one quest.
type RewardRequest struct {
	QuestID string
	Rewards []canister.RewardAmount
}

// RewardDecision is the oracle's answer.
type RewardDecision struct {
	Success     bool
	Reward      decimal.Decimal
	BlockHeight *int64
}

// RewardOracle decides quest rewards for an authenticated session.
type RewardOracle interface {
	Determine(ctx context.Context, s *Session, req RewardRequest) (RewardDecision, error)
}

// =============================================================================
// SIMULATED
// =============================================================================

const (
	simRewardFloor = 25
	simRewardSpan  = 100
	simBlockBase   = 50000
	simBlockSpan   = 10000
)

// SimulatedOracle draws outcomes locally.
type SimulatedOracle struct {
	SuccessRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration

	// Sleep waits d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedOracle returns the default 90%, 1-2s oracle seeded with seed.
func NewSimulatedOracle(seed int64) *SimulatedOracle {
	return &SimulatedOracle{
		SuccessRate: 0.9,
		MinDelay:    time.Second,
		MaxDelay:    2 * time.Second,
		Sleep:       sleepContext,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (o *SimulatedOracle) Determine(ctx context.Context, _ *Session, _ RewardRequest) (RewardDecision, error) {
	o.mu.Lock()
	delay := o.MinDelay
	if span := o.MaxDelay - o.MinDelay; span > 0 {
		delay += time.Duration(o.rng.Int63n(int64(span)))
	}
	success := o.rng.Float64() < o.SuccessRate
	reward := int64(o.rng.Float64()*simRewardSpan) + simRewardFloor
	height := int64(simBlockBase + o.rng.Intn(simBlockSpan))
	o.mu.Unlock()

	sleep := o.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if err := sleep(ctx, delay); err != nil {
		return RewardDecision{}, err
	}

	if !success {
		return RewardDecision{}, nil
	}
	return RewardDecision{
		Success:     true,
		Reward:      decimal.NewFromInt(reward),
		BlockHeight: &height,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// CANISTER
// =============================================================================

// DefaultQuestReward is awarded for quests that list no blockchain rewards.
var DefaultQuestReward = canister.RewardAmount{Token: "GAMI", Amount: decimal.NewFromInt(50)}

// CanisterOracle delegates to the session's quest rewards canister.
type CanisterOracle struct{}

func (CanisterOracle) Determine(ctx context.Context, s *Session, req RewardRequest) (RewardDecision, error) {
	rewards := s.Actors().Rewards
	if rewards == nil {
		return RewardDecision{}, ErrRemoteUnavailable
	}

	amounts := req.Rewards
	if len(amounts) == 0 {
		amounts = []canister.RewardAmount{DefaultQuestReward}
	}

	txs, err := rewards.AwardQuestReward(ctx, s.Principal(), req.QuestID, amounts)
	if err != nil {
		return RewardDecision{}, fmt.Errorf("award quest %s: %w", req.QuestID, err)
	}

	gami, all := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		all = all.Add(tx.Amount)
		if tx.Token == gamiToken.Symbol {
			gami = gami.Add(tx.Amount)
		}
	}
	reward := gami
	if reward.IsZero() {
		reward = all
	}

	decision := RewardDecision{Success: true, Reward: reward}
	if len(txs) > 0 {
		height := txs[0].BlockHeight
		decision.BlockHeight = &height
	}
	return decision, nil
}
