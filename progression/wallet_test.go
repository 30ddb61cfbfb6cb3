package progression_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/progression"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tokenBalance(t *testing.T, w progression.Wallet, symbol string) decimal.Decimal {
	t.Helper()
	tok, ok := w.Token(symbol)
	require.True(t, ok, "token %s missing", symbol)
	return tok.Balance
}

func TestLevelForXP(t *testing.T) {
	assert.Equal(t, 1, progression.LevelForXP(0))
	assert.Equal(t, 1, progression.LevelForXP(999))
	assert.Equal(t, 2, progression.LevelForXP(1000))
	assert.Equal(t, 3, progression.LevelForXP(2847))
	assert.Equal(t, 1, progression.LevelForXP(-50))
}

func TestDeriveWallet_DefaultState(t *testing.T) {
	// GIVEN the seed state (xp=2847, level=12, no completions)
	w := progression.DeriveWallet("abcdefghij-cai", progression.DefaultState())

	// THEN balance = 2847*0.05 and LOCAL = floor(2847/100)
	assert.True(t, dec("142.35").Equal(w.Balance), "balance %s", w.Balance)
	assert.True(t, dec("120").Equal(tokenBalance(t, w, "GAMI")))
	assert.True(t, tokenBalance(t, w, "QUEST").IsZero())
	assert.True(t, dec("28").Equal(tokenBalance(t, w, "LOCAL")))

	assert.Equal(t, "abcdefgh...", w.Address)
	assert.Equal(t, progression.Network, w.Network)
	assert.True(t, w.Connected)
}

func TestDeriveWallet_WithCompletions(t *testing.T) {
	state := progression.ProgressionState{XP: 2847, Level: 12, CompletedQuestIDs: []string{"1", "2", "3"}}
	w := progression.DeriveWallet("p", state)

	assert.True(t, dec("150").Equal(tokenBalance(t, w, "GAMI")))
	assert.True(t, dec("15").Equal(tokenBalance(t, w, "QUEST")))
	assert.True(t, dec("157.35").Equal(w.Balance))
}

func TestDeriveWallet_TokenOrderAndValues(t *testing.T) {
	w := progression.DeriveWallet("p", progression.DefaultState())

	require.Len(t, w.Tokens, 3)
	for i, sym := range progression.TokenSymbols {
		assert.Equal(t, sym, w.Tokens[i].Symbol)
	}
	assert.Equal(t, "Gami Token", w.Tokens[0].Name)
	assert.Equal(t, "gami-token", w.Tokens[0].CanisterID)
	assert.True(t, dec("0.50").Equal(w.Tokens[0].Value))
	assert.True(t, dec("0.25").Equal(w.Tokens[1].Value))
	assert.True(t, dec("0.10").Equal(w.Tokens[2].Value))
}

func TestDeriveWallet_Pure(t *testing.T) {
	state := progression.ProgressionState{XP: 12345, Level: 13, CompletedQuestIDs: []string{"a", "b"}}
	first := progression.DeriveWallet("p", state)
	second := progression.DeriveWallet("p", state)
	assert.Equal(t, first, second)
}

func TestWallet_PortfolioValue(t *testing.T) {
	// GAMI 120*0.5 + QUEST 0 + LOCAL 28*0.1 = 62.8
	w := progression.DeriveWallet("p", progression.DefaultState())
	assert.True(t, dec("62.8").Equal(w.PortfolioValue()), "got %s", w.PortfolioValue())
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "abc...", progression.ShortAddress("abc"))
	assert.Equal(t, "user-123...", progression.ShortAddress("user-12345678-cai"))
}
