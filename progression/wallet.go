/*
wallet.go - Wallet derivation from progression state

PURPOSE:
  Balances are not ledger entries. They are recomputed from xp, level and
  the completed-quest count every time state changes or a refresh is
  requested. Same input, same wallet.

FORMULAS:
  balance       = xp*0.05 + completed*5
  GAMI          = level*10 + completed*10
  QUEST         = completed*5
  LOCAL         = floor(xp/100)

  Unit values: GAMI 0.50, QUEST 0.25, LOCAL 0.10 (USD)

SEE ALSO:
  - manager.go: RefreshBalance and the post-completion re-derivation
*/
package progression

import (
	"github.com/shopspring/decimal"
)

// LevelForXP is floor(xp/1000)+1. Negative xp counts as zero.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// tokenSpec is the static part of a token line.
type tokenSpec struct {
	Symbol     string
	Name       string
	Value      decimal.Decimal
	CanisterID string
}

var (
	gamiToken  = tokenSpec{"GAMI", "Gami Token", decimal.RequireFromString("0.50"), "gami-token"}
	questToken = tokenSpec{"QUEST", "Quest Token", decimal.RequireFromString("0.25"), "quest-token"}
	localToken = tokenSpec{"LOCAL", "Local Rewards", decimal.RequireFromString("0.10"), "local-token"}

	xpBalanceRate     = decimal.RequireFromString("0.05")
	questBalanceBonus = decimal.NewFromInt(5)
)

// TokenSymbols lists wallet tokens in display order.
var TokenSymbols = []string{gamiToken.Symbol, questToken.Symbol, localToken.Symbol}

// DeriveWallet builds the wallet for principal from state. Pure.
func DeriveWallet(principal string, state ProgressionState) Wallet {
	completed := decimal.NewFromInt(int64(len(state.CompletedQuestIDs)))
	xp := decimal.NewFromInt(state.XP)
	level := decimal.NewFromInt(int64(state.Level))

	balance := xp.Mul(xpBalanceRate).Add(completed.Mul(questBalanceBonus))

	ten := decimal.NewFromInt(10)
	gami := level.Mul(ten).Add(completed.Mul(ten))
	quest := completed.Mul(decimal.NewFromInt(5))
	local := xp.Div(decimal.NewFromInt(100)).Floor()

	return Wallet{
		Principal: principal,
		Address:   ShortAddress(principal),
		Balance:   balance,
		Network:   Network,
		Connected: true,
		Tokens: []RewardToken{
			gamiToken.line(gami),
			questToken.line(quest),
			localToken.line(local),
		},
	}
}

func (t tokenSpec) line(balance decimal.Decimal) RewardToken {
	return RewardToken{
		Symbol:     t.Symbol,
		Name:       t.Name,
		Balance:    balance,
		Value:      t.Value,
		CanisterID: t.CanisterID,
	}
}

// ShortAddress is the display form of a principal: first 8 chars + "...".
func ShortAddress(principal string) string {
	r := []rune(principal)
	if len(r) > 8 {
		r = r[:8]
	}
	return string(r) + "..."
}
