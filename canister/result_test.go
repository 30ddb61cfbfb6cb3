package canister_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/canister"
)

func TestDecodeResult_Ok(t *testing.T) {
	raw := []byte(`{"ok":{"id":"tx-1","kind":"transfer","to":"bob","token":"GAMI","amount":"12.5","blockHeight":50123}}`)

	tx, err := canister.DecodeResult[canister.LedgerTransaction]("transfer", raw)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(50123), tx.BlockHeight)
}

func TestDecodeResult_Err(t *testing.T) {
	raw := []byte(`{"err":"Insufficient balance"}`)

	_, err := canister.DecodeResult[canister.LedgerTransaction]("transfer", raw)

	var remote *canister.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "Insufficient balance", remote.Message)
	assert.Equal(t, "transfer", remote.Method)
	assert.True(t, canister.IsRemote(err))
}

func TestDecodeResult_Malformed(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":    `{"ok":`,
		"no variant":  `{"value":1}`,
		"wrong shape": `{"ok":"not-an-object"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := canister.DecodeResult[canister.UserProfile]("getProfile", []byte(raw))
			assert.ErrorIs(t, err, canister.ErrMalformedResult)
			assert.False(t, canister.IsRemote(err))
		})
	}
}

func TestDecodeOptional(t *testing.T) {
	p, err := canister.DecodeOptional[canister.UserProfile]("getProfile", []byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = canister.DecodeOptional[canister.UserProfile]("getProfile", []byte(`[]`))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = canister.DecodeOptional[canister.UserProfile]("getProfile", []byte(`[{"id":"p1","username":"ana","xp":1200,"level":2}]`))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ana", p.Username)
	assert.Equal(t, int64(1200), p.XP)

	rank, err := canister.DecodeOptional[int]("getUserRank", []byte(`3`))
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 3, *rank)
}

func TestParseLeaderboardType(t *testing.T) {
	b, err := canister.ParseLeaderboardType("")
	require.NoError(t, err)
	assert.Equal(t, canister.BoardGlobal, b)

	b, err = canister.ParseLeaderboardType("Weekly")
	require.NoError(t, err)
	assert.Equal(t, canister.BoardWeekly, b)

	_, err = canister.ParseLeaderboardType("daily")
	assert.Error(t, err)
}
