package progression_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/progression"
	"github.com/warp/gami-engine/store/memory"
)

func TestSimulatedOracle_NeverSucceedsAtZeroRate(t *testing.T) {
	o := instantOracle(0, 3)
	for i := 0; i < 50; i++ {
		d, err := o.Determine(context.Background(), nil, progression.RewardRequest{QuestID: "1"})
		require.NoError(t, err)
		assert.False(t, d.Success)
		assert.Nil(t, d.BlockHeight)
	}
}

func TestSimulatedOracle_DelayWithinBounds(t *testing.T) {
	o := progression.NewSimulatedOracle(11)
	var slept []time.Duration
	o.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 20; i++ {
		_, err := o.Determine(context.Background(), nil, progression.RewardRequest{})
		require.NoError(t, err)
	}

	require.Len(t, slept, 20)
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
}

func TestSimulatedOracle_SameSeedSameOutcomes(t *testing.T) {
	a, b := instantOracle(0.9, 42), instantOracle(0.9, 42)
	for i := 0; i < 20; i++ {
		da, _ := a.Determine(context.Background(), nil, progression.RewardRequest{})
		db, _ := b.Determine(context.Background(), nil, progression.RewardRequest{})
		assert.Equal(t, da, db)
	}
}

func TestCanisterOracle_NoActors(t *testing.T) {
	// GIVEN a session without a canister connector
	logger, _ := test.NewNullLogger()
	mgr := progression.NewManager(progression.Deps{
		Store:    memory.New(),
		Provider: &stubProvider{principal: "p"},
		Logger:   logger,
	})
	require.True(t, mgr.Login(context.Background()).Success)

	_, err := progression.CanisterOracle{}.Determine(context.Background(), mgr.Session(), progression.RewardRequest{QuestID: "1"})
	assert.ErrorIs(t, err, progression.ErrRemoteUnavailable)
}

func TestCanisterOracle_DefaultRewardAndDoubleClaim(t *testing.T) {
	f := loggedIn(t, nil)
	ctx := context.Background()
	session := f.mgr.Session()

	// quest without listed rewards gets the default GAMI award
	d, err := progression.CanisterOracle{}.Determine(ctx, session, progression.RewardRequest{QuestID: "3"})
	require.NoError(t, err)
	assert.True(t, d.Success)
	assert.True(t, progression.DefaultQuestReward.Amount.Equal(d.Reward))

	// a second claim is a remote rejection
	_, err = progression.CanisterOracle{}.Determine(ctx, session, progression.RewardRequest{QuestID: "3"})
	assert.True(t, canister.IsRemote(err))
}

func TestCanisterOracle_NonGamiRewardsSumAll(t *testing.T) {
	f := loggedIn(t, nil)
	d, err := progression.CanisterOracle{}.Determine(context.Background(), f.mgr.Session(), progression.RewardRequest{
		QuestID: "2",
		Rewards: []canister.RewardAmount{{Token: "LOCAL", Amount: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(d.Reward))
}
