package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/canister/gateway"
)

type recorded struct {
	path      string
	principal string
	args      map[string]any
}

func newGateway(t *testing.T, reply func(path string) (int, string)) (*gateway.Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var args map[string]any
		_ = json.Unmarshal(body, &args)
		calls = append(calls, recorded{path: r.URL.Path, principal: r.Header.Get("X-Principal"), args: args})
		status, out := reply(r.URL.Path)
		w.WriteHeader(status)
		io.WriteString(w, out)
	}))
	t.Cleanup(srv.Close)

	log, _ := test.NewNullLogger()
	c, err := gateway.New(gateway.Options{BaseURL: srv.URL + "/", Log: log})
	require.NoError(t, err)
	return c, &calls
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := gateway.New(gateway.Options{})
	assert.Error(t, err)
}

func TestGreet(t *testing.T) {
	c, calls := newGateway(t, func(string) (int, string) { return 200, `"Hello, healthcheck!"` })

	msg, err := c.Greet(context.Background(), "healthcheck")
	require.NoError(t, err)
	assert.Equal(t, "Hello, healthcheck!", msg)
	require.Len(t, *calls, 1)
	assert.Equal(t, "/gami_backend/greet", (*calls)[0].path)
	assert.Equal(t, "", (*calls)[0].principal)
}

func TestTransfer_OkAndErr(t *testing.T) {
	// GIVEN: A gateway that accepts the first transfer and rejects the second
	n := 0
	c, calls := newGateway(t, func(string) (int, string) {
		n++
		if n == 1 {
			return 200, `{"ok":{"id":"t1","kind":"transfer","to":"bob","token":"GAMI","amount":"5","blockHeight":50001}}`
		}
		return 200, `{"err":"Insufficient balance"}`
	})
	actors, err := c.Connect(context.Background(), "alice-cai")
	require.NoError(t, err)

	// WHEN: Transferring twice
	args := canister.TransferArgs{To: "bob", Token: "GAMI", Amount: decimal.NewFromInt(5), Memo: "gg"}
	tx, err := actors.Ledger.Transfer(context.Background(), args)
	require.NoError(t, err)
	_, err2 := actors.Ledger.Transfer(context.Background(), args)

	// THEN: First decodes, second is a RemoteError, principal header is sent
	assert.Equal(t, int64(50001), tx.BlockHeight)
	assert.True(t, canister.IsRemote(err2))
	require.Len(t, *calls, 2)
	assert.Equal(t, "/token_ledger/transfer", (*calls)[0].path)
	assert.Equal(t, "alice-cai", (*calls)[0].principal)
	assert.Equal(t, "bob", (*calls)[0].args["to"])
}

func TestGetProfile_NullIsAbsent(t *testing.T) {
	c, calls := newGateway(t, func(string) (int, string) { return 200, `null` })
	actors, err := c.Connect(context.Background(), "p1")
	require.NoError(t, err)

	p, err := actors.Profiles.GetProfile(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, (*calls)[0].args["principal"], "empty principal is sent as null")
}

func TestAwardQuestReward(t *testing.T) {
	c, calls := newGateway(t, func(string) (int, string) {
		return 200, `{"ok":[{"id":"m1","kind":"mint","to":"p1","token":"GAMI","amount":"50","blockHeight":50010}]}`
	})
	actors, err := c.Connect(context.Background(), "p1")
	require.NoError(t, err)

	txs, err := actors.Rewards.AwardQuestReward(context.Background(), "p1", "1",
		[]canister.RewardAmount{{Token: "GAMI", Amount: decimal.NewFromInt(50)}})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "/quest_rewards/awardQuestReward", (*calls)[0].path)
	assert.Equal(t, "1", (*calls)[0].args["questId"])
}

func TestNon200IsStatusError(t *testing.T) {
	c, _ := newGateway(t, func(string) (int, string) { return 503, "replica down" })
	actors, err := c.Connect(context.Background(), "p1")
	require.NoError(t, err)

	_, err = actors.Leaderboard.GetLeaderboard(context.Background(), canister.BoardGlobal, 5)
	var se *gateway.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.StatusCode)
	assert.False(t, canister.IsRemote(err))
}

func TestRateLimitHonorsContext(t *testing.T) {
	// GIVEN: One token per minute, already spent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `"hi"`)
	}))
	defer srv.Close()
	c, err := gateway.New(gateway.Options{BaseURL: srv.URL, RatePerSec: 1.0 / 60, Burst: 1})
	require.NoError(t, err)
	_, err = c.Greet(context.Background(), "a")
	require.NoError(t, err)

	// WHEN: Calling again with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Greet(ctx, "b")

	// THEN: The limiter gives up instead of blocking
	assert.Error(t, err)
}
