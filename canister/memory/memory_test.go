package memory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/canister/memory"
)

func connect(t *testing.T, n *memory.Network, principal string) canister.Actors {
	t.Helper()
	actors, err := n.Connect(context.Background(), principal)
	require.NoError(t, err)
	return actors
}

func TestProfiles_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	n := memory.New()
	alice := connect(t, n, "alice-cai")

	p, err := alice.Profiles.GetProfile(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, p, "no profile before creation")

	created, err := alice.Profiles.CreateProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-cai", created.ID)
	assert.Equal(t, 1, created.Level)

	_, err = alice.Profiles.CreateProfile(ctx, "alice2")
	assert.True(t, canister.IsRemote(err), "second profile for same principal is rejected")

	bob := connect(t, n, "bob-cai")
	_, err = bob.Profiles.CreateProfile(ctx, "ALICE")
	assert.True(t, canister.IsRemote(err), "usernames are unique case-insensitively")
}

func TestProfiles_UpdateXPRecomputesLevel(t *testing.T) {
	ctx := context.Background()
	n := memory.New()
	a := connect(t, n, "p1")
	_, err := a.Profiles.CreateProfile(ctx, "p1")
	require.NoError(t, err)

	p, err := a.Profiles.UpdateXP(ctx, 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.XP)
	assert.Equal(t, 3, p.Level)

	p, err = a.Profiles.UpdateXP(ctx, -9000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.XP)
	assert.Equal(t, 1, p.Level)
}

func TestProfiles_UnlockAchievement(t *testing.T) {
	ctx := context.Background()
	n := memory.New()
	a := connect(t, n, "p1")
	_, err := a.Profiles.CreateProfile(ctx, "p1")
	require.NoError(t, err)

	ach, err := a.Profiles.UnlockAchievement(ctx, "p1", "first_quest")
	require.NoError(t, err)
	assert.NotNil(t, ach.UnlockedAt)

	_, err = a.Profiles.UnlockAchievement(ctx, "p1", "first_quest")
	assert.True(t, canister.IsRemote(err))

	_, err = a.Profiles.UnlockAchievement(ctx, "p1", "nope")
	assert.True(t, canister.IsRemote(err))

	p, err := a.Profiles.GetProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.XP)
}

func TestLedger_TransferChecksBalance(t *testing.T) {
	ctx := context.Background()
	n := memory.New()
	a := connect(t, n, "alice")
	n.SeedBalance("alice", "GAMI", decimal.NewFromInt(40))

	_, err := a.Ledger.Transfer(ctx, canister.TransferArgs{To: "bob", Token: "GAMI", Amount: decimal.NewFromInt(50)})
	var remote *canister.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Insufficient balance", remote.Message)

	tx, err := a.Ledger.Transfer(ctx, canister.TransferArgs{To: "bob", Token: "GAMI", Amount: decimal.NewFromInt(15), Memo: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, canister.KindTransfer, tx.Kind)

	aliceBal, _ := a.Ledger.BalanceOf(ctx, "alice", "GAMI")
	bobBal, _ := a.Ledger.BalanceOf(ctx, "bob", "GAMI")
	assert.True(t, aliceBal.Equal(decimal.NewFromInt(25)))
	assert.True(t, bobBal.Equal(decimal.NewFromInt(15)))

	history, err := a.Ledger.GetTransactionHistory(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "thanks", history[0].Memo)
}

func TestRewards_AwardMintsOncePerQuest(t *testing.T) {
	ctx := context.Background()
	n := memory.New()
	a := connect(t, n, "alice")
	rewards := []canister.RewardAmount{
		{Token: "GAMI", Amount: decimal.NewFromInt(50)},
		{Token: "FIT", Amount: decimal.NewFromInt(25)},
	}

	txs, err := a.Rewards.AwardQuestReward(ctx, "alice", "1", rewards)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Greater(t, txs[1].BlockHeight, txs[0].BlockHeight)

	fit, _ := a.Ledger.BalanceOf(ctx, "alice", "FIT")
	assert.True(t, fit.Equal(decimal.NewFromInt(25)))

	_, err = a.Rewards.AwardQuestReward(ctx, "alice", "1", rewards)
	assert.True(t, canister.IsRemote(err), "same quest cannot be claimed twice")

	_, err = a.Rewards.AwardQuestReward(ctx, "alice", "2", nil)
	assert.True(t, canister.IsRemote(err))
}

func TestLeaderboard_RanksByXPAndTracksChange(t *testing.T) {
	ctx := context.Background()
	n := memory.New()
	n.SeedProfile(canister.UserProfile{ID: "a", Username: "ana", XP: 500})
	n.SeedProfile(canister.UserProfile{ID: "b", Username: "ben", XP: 900})
	n.SeedProfile(canister.UserProfile{ID: "c", Username: "cy", XP: 100})
	a := connect(t, n, "a")

	require.NoError(t, a.Leaderboard.UpdateRankings(ctx))

	// ana overtakes ben
	_, err := a.Profiles.UpdateXP(ctx, 1000)
	require.NoError(t, err)

	board, err := a.Leaderboard.GetLeaderboard(ctx, canister.BoardGlobal, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "a", board[0].UserID)
	assert.Equal(t, 1, board[0].Change)
	assert.Equal(t, "b", board[1].UserID)
	assert.Equal(t, -1, board[1].Change)

	rank, err := a.Leaderboard.GetUserRank(ctx, "c", canister.BoardWeekly)
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 3, *rank)

	rank, err = a.Leaderboard.GetUserRank(ctx, "ghost", canister.BoardWeekly)
	require.NoError(t, err)
	assert.Nil(t, rank)
}

func TestGreet(t *testing.T) {
	msg, err := memory.New().Greet(context.Background(), "healthcheck")
	require.NoError(t, err)
	assert.Equal(t, "Hello, healthcheck!", msg)
}
