package quests_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/quests"
)

// =============================================================================
// SEED CATALOG
// =============================================================================

func TestSeedCatalog(t *testing.T) {
	c := quests.SeedCatalog()
	require.Equal(t, 5, c.Len())

	q, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Morning Workout Streak", q.Title)
	assert.Equal(t, int64(500), q.XPReward)
	assert.True(t, q.Money().Equal(decimal.NewFromInt(10)))
	assert.True(t, q.OnChain)
	require.Len(t, q.BlockchainRewards, 2)

	offChain, ok := c.Get("3")
	require.True(t, ok)
	assert.False(t, offChain.OnChain)
	assert.True(t, offChain.Money().IsZero(), "no money reward means zero")

	local := c.ByCategory(quests.CategoryLocal)
	require.Len(t, local, 2)
	assert.Equal(t, "2", local[0].ID)
	assert.Equal(t, "4", local[1].ID)

	assert.Equal(t, []quests.Category{
		quests.CategoryFitness, quests.CategoryLocal, quests.CategoryProductivity, quests.CategorySocial,
	}, c.Categories())
}

func TestSeedCatalog_PassesValidation(t *testing.T) {
	// Every built-in quest must survive the same checks as a sponsor document.
	for _, q := range quests.Seed() {
		assert.True(t, q.Category.Valid(), q.ID)
		assert.True(t, q.Difficulty.Valid(), q.ID)
		if q.OnChain {
			assert.NotEmpty(t, q.BlockchainRewards, q.ID)
		}
	}
}

// =============================================================================
// FACTORY
// =============================================================================

const yamlCatalog = `
quests:
  - id: "6"
    title: Sunrise Run
    category: Fitness
    xp_reward: 350
    money_reward: 5.5
    on_chain: true
    blockchain_rewards:
      - {token: GAMI, amount: 30}
  - id: "7"
    title: Inbox Zero
    category: productivity
    difficulty: easy
    xp_reward: 100
`

func TestParseCatalog_YAML(t *testing.T) {
	c, err := quests.ParseCatalog([]byte(yamlCatalog), quests.FormatYAML)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	run, _ := c.Get("6")
	assert.Equal(t, quests.CategoryFitness, run.Category, "category is case-insensitive")
	assert.Equal(t, quests.DifficultyMedium, run.Difficulty, "difficulty defaults to medium")
	assert.True(t, run.Money().Equal(decimal.RequireFromString("5.5")))
	assert.True(t, run.BlockchainRewards[0].Amount.Equal(decimal.NewFromInt(30)))
}

func TestParseCatalog_JSONList(t *testing.T) {
	doc := `[{"id":"a","title":"A","category":"social","difficulty":"hard","xp_reward":10}]`
	c, err := quests.ParseCatalog([]byte(doc), quests.FormatJSON)
	require.NoError(t, err)
	q, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, quests.DifficultyHard, q.Difficulty)
}

func TestParseCatalog_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":            `{"quests":[]}`,
		"missing id":       `[{"title":"A","category":"social"}]`,
		"missing title":    `[{"id":"a","category":"social"}]`,
		"unknown category": `[{"id":"a","title":"A","category":"gaming"}]`,
		"bad difficulty":   `[{"id":"a","title":"A","category":"social","difficulty":"epic"}]`,
		"negative xp":      `[{"id":"a","title":"A","category":"social","xp_reward":-1}]`,
		"duplicate id":     `[{"id":"a","title":"A","category":"social"},{"id":"a","title":"B","category":"local"}]`,
		"on chain no pay":  `[{"id":"a","title":"A","category":"social","on_chain":true}]`,
		"zero reward":      `[{"id":"a","title":"A","category":"social","on_chain":true,"blockchain_rewards":[{"token":"GAMI","amount":0}]}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := quests.ParseCatalog([]byte(doc), quests.FormatJSON)
			assert.ErrorIs(t, err, quests.ErrInvalidQuest)
		})
	}
}

func TestParseCatalog_Malformed(t *testing.T) {
	_, err := quests.ParseCatalog([]byte(`{"quests":`), quests.FormatJSON)
	assert.Error(t, err)

	_, err = quests.ParseCatalog([]byte("quests: [\n"), quests.FormatYAML)
	assert.Error(t, err)

	_, err = quests.ParseCatalog([]byte(`[]`), quests.Format("toml"))
	assert.Error(t, err)
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlCatalog), 0o600))

	c, err := quests.LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = quests.LoadCatalogFile(filepath.Join(dir, "catalog.txt"))
	assert.Error(t, err)
}
