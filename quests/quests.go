/*
Package quests provides the quest catalog.

PURPOSE:
  Quests are static definitions. Nothing here is persisted or mutated:
  completion is tracked by the progression package as a set of quest ids.

CATEGORIES:
  fitness, productivity, local, social

DIFFICULTY:
  easy, medium, hard

ON-CHAIN QUESTS:
  OnChain quests go through the reward oracle and need a connected wallet.
  BlockchainRewards lists the token amounts requested from the quest
  rewards canister. Off-chain quests only move XP and live stats.

SEE ALSO:
  - factory.go: Catalogs from JSON/YAML
  - progression/completion.go: Consumes Quest
*/
package quests

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

type Category string

const (
	CategoryFitness      Category = "fitness"
	CategoryProductivity Category = "productivity"
	CategoryLocal        Category = "local"
	CategorySocial       Category = "social"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFitness, CategoryProductivity, CategoryLocal, CategorySocial:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// =============================================================================
// QUEST
// =============================================================================

// RewardLine is one token amount paid by an on-chain quest.
type RewardLine struct {
	Token  string          `json:"token" yaml:"token"`
	Amount decimal.Decimal `json:"amount" yaml:"amount"`
}

type Quest struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Category     Category         `json:"category"`
	XPReward     int64            `json:"xpReward"`
	MoneyReward  *decimal.Decimal `json:"moneyReward,omitempty"`
	TimeLimit    string           `json:"timeLimit"` // descriptive, not enforced
	Participants int              `json:"participants"`
	Difficulty   Difficulty       `json:"difficulty"`
	Sponsor      string           `json:"sponsor"`
	OnChain      bool             `json:"onChain"`

	BlockchainRewards []RewardLine `json:"blockchainRewards,omitempty"`
}

// Money returns MoneyReward or zero.
func (q Quest) Money() decimal.Decimal {
	if q.MoneyReward == nil {
		return decimal.Zero
	}
	return *q.MoneyReward
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable set of quests keyed by id.
type Catalog struct {
	byID  map[string]Quest
	order []string
}

// NewCatalog indexes quests. Later duplicates replace earlier ones; use
// ParseCatalog when duplicates must be rejected.
func NewCatalog(qs []Quest) *Catalog {
	c := &Catalog{byID: make(map[string]Quest, len(qs))}
	for _, q := range qs {
		if _, dup := c.byID[q.ID]; !dup {
			c.order = append(c.order, q.ID)
		}
		c.byID[q.ID] = q
	}
	return c
}

// Get returns the quest with id.
func (c *Catalog) Get(id string) (Quest, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// All returns quests in catalog order.
func (c *Catalog) All() []Quest {
	out := make([]Quest, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// ByCategory returns quests of one category in catalog order.
func (c *Catalog) ByCategory(cat Category) []Quest {
	var out []Quest
	for _, id := range c.order {
		if q := c.byID[id]; q.Category == cat {
			out = append(out, q)
		}
	}
	return out
}

// Categories lists the categories present, sorted.
func (c *Catalog) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, q := range c.byID {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len is the number of quests.
func (c *Catalog) Len() int { return len(c.order) }
