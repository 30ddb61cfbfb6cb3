package progression_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/progression"
)

func instantOracle(successRate float64, seed int64) *progression.SimulatedOracle {
	o := progression.NewSimulatedOracle(seed)
	o.SuccessRate = successRate
	o.MinDelay, o.MaxDelay = 0, 0
	return o
}

// =============================================================================
// COMPLETE ON CHAIN
// =============================================================================

func TestCompleteQuestOnChain_SuccessPrependsOneTransaction(t *testing.T) {
	// GIVEN a logged-in player and an oracle that always succeeds
	f := loggedIn(t, instantOracle(1, 7))
	ctx := context.Background()
	walletBefore := f.mgr.Wallet()

	// WHEN completing two quests
	first, err := f.mgr.CompleteQuestOnChain(ctx, "1")
	require.NoError(t, err)
	second, err := f.mgr.CompleteQuestOnChain(ctx, "2")
	require.NoError(t, err)

	// THEN each call prepended exactly one GAMI quest_completed tx
	require.True(t, first.Success)
	require.True(t, second.Success)
	txs := f.mgr.Transactions(ctx)
	require.Len(t, txs, 2)
	assert.Equal(t, "2", txs[0].QuestID, "newest first")
	assert.Equal(t, "1", txs[1].QuestID)

	for _, tx := range txs {
		assert.Equal(t, progression.TxQuestCompleted, tx.Type)
		assert.Equal(t, "GAMI", tx.Token)
		assert.Equal(t, progression.StatusCompleted, tx.Status)
		assert.True(t, tx.Amount.GreaterThanOrEqual(decimal.NewFromInt(25)), "amount %s", tx.Amount)
		assert.True(t, tx.Amount.LessThan(decimal.NewFromInt(125)), "amount %s", tx.Amount)
		require.NotNil(t, tx.BlockHeight)
		assert.GreaterOrEqual(t, *tx.BlockHeight, int64(50000))
		assert.Less(t, *tx.BlockHeight, int64(60000))
	}

	// AND xp/level did not move, so the wallet is unchanged
	assert.Equal(t, progression.DefaultState(), f.mgr.GetUserStats(ctx))
	assert.Equal(t, walletBefore, f.mgr.Wallet())

	// AND the log was persisted
	raw, ok, err := f.store.Get(ctx, progression.KeyTransactions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"questId":"2"`)
}

func TestCompleteQuestOnChain_RewardRange(t *testing.T) {
	f := loggedIn(t, instantOracle(1, 99))
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		out, err := f.mgr.CompleteQuestOnChain(ctx, "q")
		require.NoError(t, err)
		require.True(t, out.Success)
		assert.True(t, out.Reward.GreaterThanOrEqual(decimal.NewFromInt(25)))
		assert.True(t, out.Reward.LessThan(decimal.NewFromInt(125)))
		assert.True(t, out.Reward.Equal(out.Reward.Floor()), "whole units")
	}
}

func TestCompleteQuestOnChain_FailureMutatesNothing(t *testing.T) {
	// GIVEN one earlier success, then an oracle that always fails
	oracle := successOracle(30)
	f := loggedIn(t, oracle)
	ctx := context.Background()
	_, err := f.mgr.CompleteQuestOnChain(ctx, "1")
	require.NoError(t, err)
	logBefore := f.mgr.Transactions(ctx)
	walletBefore := f.mgr.Wallet()
	storedBefore := f.store.Snapshot()

	oracle.decision = progression.RewardDecision{}

	// WHEN the next completion fails
	out, err := f.mgr.CompleteQuestOnChain(ctx, "2")

	// THEN the failure is reported as an outcome and nothing changed
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, logBefore, f.mgr.Transactions(ctx))
	assert.Equal(t, walletBefore, f.mgr.Wallet())
	assert.Equal(t, storedBefore, f.store.Snapshot())
}

func TestCompleteQuestOnChain_OracleErrorIsFailure(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("replica timeout")}
	f := loggedIn(t, oracle)

	out, err := f.mgr.CompleteQuestOnChain(context.Background(), "1")

	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Empty(t, f.mgr.Transactions(context.Background()))
}

func TestCompleteQuestOnChain_RequiresSession(t *testing.T) {
	oracle := successOracle(30)
	f := newFixture(t, oracle)

	_, err := f.mgr.CompleteQuestOnChain(context.Background(), "1")

	assert.ErrorIs(t, err, progression.ErrNotAuthenticated)
	assert.Zero(t, oracle.Calls())
	assert.False(t, f.mgr.InFlight("1"))
}

func TestCompleteQuestOnChain_ContextCancelledDuringDelay(t *testing.T) {
	o := progression.NewSimulatedOracle(1)
	o.SuccessRate = 1
	o.MinDelay, o.MaxDelay = time.Hour, time.Hour
	f := loggedIn(t, o)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out, err := f.mgr.CompleteQuestOnChain(ctx, "1")

	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestCompleteQuestOnChain_DeduplicatesInFlight(t *testing.T) {
	// GIVEN an oracle that holds the first call open
	oracle := successOracle(30)
	oracle.entered = make(chan struct{}, 1)
	oracle.gate = make(chan struct{})
	f := loggedIn(t, oracle)
	ctx := context.Background()

	done := make(chan progression.QuestOutcome, 1)
	go func() {
		out, _ := f.mgr.CompleteQuestOnChain(ctx, "1")
		done <- out
	}()
	<-oracle.entered

	// WHEN the same quest is completed again while in flight
	_, err := f.mgr.CompleteQuestOnChain(ctx, "1")

	// THEN it is rejected without reaching the oracle
	var inFlight *progression.InFlightError
	require.ErrorAs(t, err, &inFlight)
	assert.Equal(t, "1", inFlight.QuestID)
	assert.ErrorIs(t, err, progression.ErrQuestInFlight)
	assert.True(t, progression.IsRetryable(err))
	assert.True(t, f.mgr.InFlight("1"))

	// AND once the first call finishes the marker is cleared
	close(oracle.gate)
	assert.True(t, (<-done).Success)
	assert.False(t, f.mgr.InFlight("1"))
	assert.Equal(t, 1, oracle.Calls())
	assert.Len(t, f.mgr.Transactions(ctx), 1)
}

// =============================================================================
// RECORD COMPLETION
// =============================================================================

func TestRecordQuestCompletion_OffChainQuest(t *testing.T) {
	// GIVEN a logged-out player and the off-chain Productivity Master quest
	oracle := successOracle(30)
	f := newFixture(t, oracle)
	ctx := context.Background()
	f.mgr.Initialize(ctx)

	// WHEN recording it
	res, err := f.mgr.RecordQuestCompletion(ctx, "3")

	// THEN xp, level, completions and live stats move together
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(400), res.XPGained)
	assert.Zero(t, oracle.Calls())
	assert.Nil(t, res.Transaction)

	stats := f.mgr.GetUserStats(ctx)
	assert.Equal(t, int64(3247), stats.XP)
	assert.Equal(t, 4, stats.Level, "level derived from xp")
	assert.Equal(t, []string{"3"}, stats.CompletedQuestIDs)

	live := f.mgr.LiveStats(ctx)
	assert.True(t, live.TotalEarned.IsZero())
	assert.Equal(t, 1, live.QuestsCompleted)
	assert.Equal(t, 1, live.CurrentStreak)
	assert.Empty(t, f.mgr.Transactions(ctx))
}

func TestRecordQuestCompletion_OnChainWithCanisterOracle(t *testing.T) {
	// GIVEN the canister-backed oracle against the simulated network
	f := loggedIn(t, progression.CanisterOracle{})
	ctx := context.Background()

	// WHEN recording Morning Workout Streak (50 GAMI + 25 FIT, $10)
	res, err := f.mgr.RecordQuestCompletion(ctx, "1")

	// THEN the reward is the GAMI amount minted by the canister
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Transaction)
	assert.True(t, decimal.NewFromInt(50).Equal(res.Transaction.Amount))
	assert.Equal(t, "1", res.Transaction.QuestID)
	require.NotNil(t, res.Transaction.BlockHeight)
	assert.Greater(t, *res.Transaction.BlockHeight, int64(50000))

	assert.Equal(t, int64(3347), res.Stats.XP)
	assert.True(t, decimal.NewFromInt(10).Equal(res.LiveStats.TotalEarned))
	require.NotNil(t, res.Wallet)
	gami, _ := res.Wallet.Token("GAMI")
	assert.True(t, decimal.NewFromInt(50).Equal(gami.Balance), "level 4*10 + 1 quest*10")

	// AND the canister saw the mint and the xp push
	balances, err := f.mgr.LedgerBalances(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(balances["GAMI"]))
	profile, err := f.mgr.SyncProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3347), profile.XP, "seeded 2847 plus the 500 pushed")
	assert.Equal(t, int64(3347), f.mgr.GetUserStats(ctx).XP)
}

func TestRecordQuestCompletion_Rejections(t *testing.T) {
	f := loggedIn(t, successOracle(30))
	ctx := context.Background()

	_, err := f.mgr.RecordQuestCompletion(ctx, "404")
	assert.ErrorIs(t, err, progression.ErrUnknownQuest)
	assert.True(t, progression.IsNotFound(err))

	_, err = f.mgr.RecordQuestCompletion(ctx, "3")
	require.NoError(t, err)
	_, err = f.mgr.RecordQuestCompletion(ctx, "3")
	var done *progression.AlreadyCompletedError
	require.ErrorAs(t, err, &done)
	assert.True(t, progression.IsClientError(err))
}

func TestRecordQuestCompletion_OnChainRequiresSession(t *testing.T) {
	f := newFixture(t, successOracle(30))
	_, err := f.mgr.RecordQuestCompletion(context.Background(), "2")
	assert.ErrorIs(t, err, progression.ErrNotAuthenticated)
}

func TestRecordQuestCompletion_OracleFailureChangesNothing(t *testing.T) {
	f := loggedIn(t, &scriptedOracle{})
	ctx := context.Background()
	before := f.store.Snapshot()

	res, err := f.mgr.RecordQuestCompletion(ctx, "5")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, before, f.store.Snapshot())
	assert.Equal(t, progression.DefaultState(), f.mgr.GetUserStats(ctx))
}

func TestRecordQuestCompletion_StoreFailureIsAtomic(t *testing.T) {
	// GIVEN a store that rejects writes
	f := loggedIn(t, successOracle(30))
	ctx := context.Background()
	statsBefore := f.mgr.GetUserStats(ctx)
	liveBefore := f.mgr.LiveStats(ctx)
	walletBefore := f.mgr.Wallet()
	storedBefore := f.store.Snapshot()
	f.store.FailWrites(errors.New("disk full"))

	// WHEN recording an on-chain quest
	_, err := f.mgr.RecordQuestCompletion(ctx, "1")

	// THEN the error surfaces and neither memory nor storage moved
	require.Error(t, err)
	f.store.FailWrites(nil)
	assert.Equal(t, storedBefore, f.store.Snapshot())
	assert.Equal(t, statsBefore, f.mgr.GetUserStats(ctx))
	assert.Equal(t, liveBefore, f.mgr.LiveStats(ctx))
	assert.Equal(t, walletBefore, f.mgr.Wallet())
	assert.Empty(t, f.mgr.Transactions(ctx))
	assert.False(t, f.mgr.InFlight("1"))
}
