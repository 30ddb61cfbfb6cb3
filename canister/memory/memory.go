// Package memory simulates the profile, leaderboard, token ledger and quest
// reward canisters in process. Dev mode and tests use it in place of a
// gateway.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/gami-engine/canister"
)

// DefaultLeaderboardLimit applies when a caller passes limit <= 0.
const DefaultLeaderboardLimit = 10

// firstBlockHeight matches the height range the client shows for
// simulated completions.
const firstBlockHeight int64 = 50000

// =============================================================================
// NETWORK
// =============================================================================

// Network holds the state of every simulated canister.
type Network struct {
	mu  sync.Mutex
	now func() time.Time

	profiles     map[string]*canister.UserProfile
	ranks        map[string]int
	balances     map[string]map[string]decimal.Decimal
	ledger       []canister.LedgerTransaction
	height       int64
	achievements map[string]canister.Achievement
	claimed      map[string]bool
}

// New returns an empty network with the default achievement catalog.
func New() *Network {
	n := &Network{
		now:          time.Now,
		profiles:     make(map[string]*canister.UserProfile),
		ranks:        make(map[string]int),
		balances:     make(map[string]map[string]decimal.Decimal),
		height:       firstBlockHeight,
		achievements: make(map[string]canister.Achievement),
		claimed:      make(map[string]bool),
	}
	for _, a := range DefaultAchievements() {
		n.achievements[a.ID] = a
	}
	return n
}

// WithClock replaces the clock. Returns n for chaining.
func (n *Network) WithClock(now func() time.Time) *Network {
	n.mu.Lock()
	n.now = now
	n.mu.Unlock()
	return n
}

// DefaultAchievements is the built-in achievement catalog.
func DefaultAchievements() []canister.Achievement {
	return []canister.Achievement{
		{ID: "first_quest", Name: "First Steps", Description: "Complete your first quest", XPReward: 100},
		{ID: "streak_7", Name: "Week Warrior", Description: "Keep a 7 day streak", XPReward: 250},
		{ID: "level_10", Name: "Rising Star", Description: "Reach level 10", XPReward: 500},
	}
}

// Connect binds the canisters to principal.
func (n *Network) Connect(ctx context.Context, principal string) (canister.Actors, error) {
	if err := ctx.Err(); err != nil {
		return canister.Actors{}, err
	}
	if strings.TrimSpace(principal) == "" {
		return canister.Actors{}, fmt.Errorf("principal is required")
	}
	c := &caller{n: n, principal: principal}
	return canister.Actors{
		Principal:   principal,
		Profiles:    c,
		Leaderboard: c,
		Ledger:      c,
		Rewards:     c,
	}, nil
}

// Greet answers the health probe.
func (n *Network) Greet(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Hello, %s!", name), nil
}

// SeedProfile inserts or replaces a profile.
func (n *Network) SeedProfile(p canister.UserProfile) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := p
	n.profiles[p.ID] = &cp
}

// SeedBalance sets a balance directly.
func (n *Network) SeedBalance(user, token string, amount decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.account(user)[token] = amount
}

func (n *Network) account(user string) map[string]decimal.Decimal {
	acct, ok := n.balances[user]
	if !ok {
		acct = make(map[string]decimal.Decimal)
		n.balances[user] = acct
	}
	return acct
}

func (n *Network) record(kind, from, to, token string, amount decimal.Decimal, memo string) canister.LedgerTransaction {
	n.height++
	tx := canister.LedgerTransaction{
		ID:          uuid.NewString(),
		Kind:        kind,
		From:        from,
		To:          to,
		Token:       token,
		Amount:      amount,
		Memo:        memo,
		Timestamp:   n.now(),
		BlockHeight: n.height,
	}
	n.ledger = append(n.ledger, tx)
	return tx
}

func (n *Network) mintLocked(user, token string, amount decimal.Decimal, memo string) canister.LedgerTransaction {
	acct := n.account(user)
	acct[token] = acct[token].Add(amount)
	return n.record(canister.KindMint, "", user, token, amount, memo)
}

// ranked returns profiles ordered by xp desc, username asc.
func (n *Network) ranked() []*canister.UserProfile {
	out := make([]*canister.UserProfile, 0, len(n.profiles))
	for _, p := range n.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].Username < out[j].Username
	})
	return out
}

// =============================================================================
// CALLER - canisters bound to one principal
// =============================================================================

type caller struct {
	n         *Network
	principal string
}

// ----- Profiles -----

func (c *caller) CreateProfile(ctx context.Context, username string) (canister.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return canister.UserProfile{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return canister.UserProfile{}, canister.Err("createProfile", "Username cannot be empty")
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	if _, exists := c.n.profiles[c.principal]; exists {
		return canister.UserProfile{}, canister.Err("createProfile", "Profile already exists")
	}
	for _, p := range c.n.profiles {
		if strings.EqualFold(p.Username, username) {
			return canister.UserProfile{}, canister.Err("createProfile", "Username already taken")
		}
	}

	now := c.n.now()
	p := &canister.UserProfile{
		ID:           c.principal,
		Username:     username,
		Level:        1,
		TotalRewards: decimal.Zero,
		Achievements: []string{},
		Preferences:  canister.Preferences{Theme: "dark", Notifications: true, Language: "en", Privacy: "public"},
		JoinDate:     now,
		LastActive:   now,
	}
	c.n.profiles[c.principal] = p
	return *p, nil
}

func (c *caller) GetProfile(ctx context.Context, principal string) (*canister.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if principal == "" {
		principal = c.principal
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	p, ok := c.n.profiles[principal]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (c *caller) UpdateXP(ctx context.Context, delta int64) (canister.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return canister.UserProfile{}, err
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	p, ok := c.n.profiles[c.principal]
	if !ok {
		return canister.UserProfile{}, canister.Err("updateXP", "Profile not found")
	}
	p.XP += delta
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = int(p.XP/1000) + 1
	p.LastActive = c.n.now()
	return *p, nil
}

func (c *caller) UnlockAchievement(ctx context.Context, user, achievementID string) (canister.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return canister.Achievement{}, err
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	p, ok := c.n.profiles[user]
	if !ok {
		return canister.Achievement{}, canister.Err("unlockAchievement", "Profile not found")
	}
	a, ok := c.n.achievements[achievementID]
	if !ok {
		return canister.Achievement{}, canister.Err("unlockAchievement", "Achievement not found")
	}
	for _, id := range p.Achievements {
		if id == achievementID {
			return canister.Achievement{}, canister.Err("unlockAchievement", "Achievement already unlocked")
		}
	}

	now := c.n.now()
	p.Achievements = append(p.Achievements, achievementID)
	p.XP += a.XPReward
	p.Level = int(p.XP/1000) + 1
	a.UnlockedAt = &now
	return a, nil
}

// ----- Leaderboard -----

func (c *caller) GetLeaderboard(ctx context.Context, board canister.LeaderboardType, limit int) ([]canister.LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	// Every board ranks by xp; the simulation keeps no time windows.
	ranked := c.n.ranked()
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	entries := make([]canister.LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		rank := i + 1
		change := 0
		if prev, ok := c.n.ranks[p.ID]; ok {
			change = prev - rank
		}
		entries[i] = canister.LeaderboardEntry{
			Rank:       rank,
			UserID:     p.ID,
			Username:   p.Username,
			XP:         p.XP,
			Level:      p.Level,
			Streak:     p.Streak,
			Change:     change,
			LastActive: p.LastActive,
		}
	}
	return entries, nil
}

func (c *caller) GetUserRank(ctx context.Context, user string, _ canister.LeaderboardType) (*int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	for i, p := range c.n.ranked() {
		if p.ID == user {
			rank := i + 1
			return &rank, nil
		}
	}
	return nil, nil
}

// UpdateRankings snapshots current ranks; later boards report Change
// against this snapshot.
func (c *caller) UpdateRankings(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	c.n.ranks = make(map[string]int, len(c.n.profiles))
	for i, p := range c.n.ranked() {
		c.n.ranks[p.ID] = i + 1
	}
	return nil
}

// ----- Token ledger -----

func (c *caller) BalanceOf(ctx context.Context, user, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	return c.n.account(user)[symbol], nil
}

func (c *caller) Transfer(ctx context.Context, args canister.TransferArgs) (canister.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return canister.LedgerTransaction{}, err
	}
	if strings.TrimSpace(args.To) == "" {
		return canister.LedgerTransaction{}, canister.Err("transfer", "Invalid recipient")
	}
	if !args.Amount.IsPositive() {
		return canister.LedgerTransaction{}, canister.Err("transfer", "Amount must be positive")
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	from := c.n.account(c.principal)
	if from[args.Token].LessThan(args.Amount) {
		return canister.LedgerTransaction{}, canister.Err("transfer", "Insufficient balance")
	}
	from[args.Token] = from[args.Token].Sub(args.Amount)
	to := c.n.account(args.To)
	to[args.Token] = to[args.Token].Add(args.Amount)
	return c.n.record(canister.KindTransfer, c.principal, args.To, args.Token, args.Amount, args.Memo), nil
}

func (c *caller) Mint(ctx context.Context, user, token string, amount decimal.Decimal, memo string) (canister.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return canister.LedgerTransaction{}, err
	}
	if !amount.IsPositive() {
		return canister.LedgerTransaction{}, canister.Err("mint", "Amount must be positive")
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	return c.n.mintLocked(user, token, amount, memo), nil
}

func (c *caller) GetTransactionHistory(ctx context.Context, user string, limit int) ([]canister.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	var out []canister.LedgerTransaction
	for i := len(c.n.ledger) - 1; i >= 0; i-- {
		tx := c.n.ledger[i]
		if user != "" && tx.From != user && tx.To != user {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ----- Quest rewards -----

func (c *caller) AwardQuestReward(ctx context.Context, user, questID string, rewards []canister.RewardAmount) ([]canister.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rewards) == 0 {
		return nil, canister.Err("awardQuestReward", "No rewards specified")
	}
	for _, r := range rewards {
		if !r.Amount.IsPositive() {
			return nil, canister.Err("awardQuestReward", "Reward amounts must be positive")
		}
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()

	key := user + "/" + questID
	if c.n.claimed[key] {
		return nil, canister.Err("awardQuestReward", "Quest reward already claimed")
	}
	c.n.claimed[key] = true

	txs := make([]canister.LedgerTransaction, 0, len(rewards))
	for _, r := range rewards {
		txs = append(txs, c.n.mintLocked(user, r.Token, r.Amount, "quest:"+questID))
	}
	if p, ok := c.n.profiles[user]; ok {
		p.TotalRewards = p.TotalRewards.Add(sumAmounts(rewards))
		p.LastActive = c.n.now()
	}
	return txs, nil
}

func sumAmounts(rewards []canister.RewardAmount) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rewards {
		total = total.Add(r.Amount)
	}
	return total
}
