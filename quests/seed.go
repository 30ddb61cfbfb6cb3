package quests

import "github.com/shopspring/decimal"

func usd(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func line(token string, amount int64) RewardLine {
	return RewardLine{Token: token, Amount: decimal.NewFromInt(amount)}
}

// Seed returns the built-in quests.
func Seed() []Quest {
	return []Quest{
		{
			ID:                "1",
			Title:             "Morning Workout Streak",
			Description:       "Complete a 30-minute workout for 7 consecutive days",
			Category:          CategoryFitness,
			XPReward:          500,
			MoneyReward:       usd(10),
			TimeLimit:         "7 days",
			Participants:      1247,
			Difficulty:        DifficultyMedium,
			Sponsor:           "FitApp Pro",
			OnChain:           true,
			BlockchainRewards: []RewardLine{line("GAMI", 50), line("FIT", 25)},
		},
		{
			ID:                "2",
			Title:             "Local Explorer",
			Description:       "Visit 5 new local businesses in your neighborhood",
			Category:          CategoryLocal,
			XPReward:          300,
			MoneyReward:       usd(15),
			TimeLimit:         "2 weeks",
			Participants:      856,
			Difficulty:        DifficultyEasy,
			Sponsor:           "Local Chamber",
			OnChain:           true,
			BlockchainRewards: []RewardLine{line("LOCAL", 100)},
		},
		{
			ID:           "3",
			Title:        "Productivity Master",
			Description:  "Complete 25 focused work sessions using Pomodoro technique",
			Category:     CategoryProductivity,
			XPReward:     400,
			TimeLimit:    "1 week",
			Participants: 2341,
			Difficulty:   DifficultyMedium,
			Sponsor:      "Focus Timer",
		},
		{
			ID:                "4",
			Title:             "Coffee Connoisseur",
			Description:       "Try specialty drinks at 3 different coffee shops",
			Category:          CategoryLocal,
			XPReward:          250,
			MoneyReward:       usd(8),
			TimeLimit:         "10 days",
			Participants:      634,
			Difficulty:        DifficultyEasy,
			Sponsor:           "Starbucks",
			OnChain:           true,
			BlockchainRewards: []RewardLine{line("LOCAL", 50)},
		},
		{
			ID:                "5",
			Title:             "Team Challenge",
			Description:       "Collaborate with 4 friends to reach group fitness goals",
			Category:          CategorySocial,
			XPReward:          600,
			MoneyReward:       usd(20),
			TimeLimit:         "3 weeks",
			Participants:      423,
			Difficulty:        DifficultyHard,
			Sponsor:           "TeamFit",
			OnChain:           true,
			BlockchainRewards: []RewardLine{line("GAMI", 100), line("FIT", 50)},
		},
	}
}

// SeedCatalog indexes Seed.
func SeedCatalog() *Catalog {
	return NewCatalog(Seed())
}
