/*
Package gateway talks to the canisters through a JSON HTTP gateway.

WIRE FORMAT:
  POST {BaseURL}/{canisterID}/{method}
  X-Principal: <caller principal>
  Content-Type: application/json

  Body is a JSON object of named arguments. Replies are the canister's
  value: {"ok":..}|{"err":..} for mutating calls, bare JSON for queries.

THROTTLING:
  All calls share one token bucket (golang.org/x/time/rate). A call that
  cannot get a token before its context ends fails with the context error.

SEE ALSO:
  - canister/result.go: Reply decoding
  - config/config.go: Canister ids and gateway URL
*/
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/canister"
	"golang.org/x/time/rate"
)

// CanisterIDs names the canister behind each service.
type CanisterIDs struct {
	Backend     string
	Profiles    string
	Leaderboard string
	Ledger      string
	Rewards     string
}

// DefaultCanisterIDs are the local replica names.
func DefaultCanisterIDs() CanisterIDs {
	return CanisterIDs{
		Backend:     "gami_backend",
		Profiles:    "user_profiles",
		Leaderboard: "leaderboard",
		Ledger:      "token_ledger",
		Rewards:     "quest_rewards",
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Canisters  CanisterIDs
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	HTTPClient *http.Client
	Log        logrus.FieldLogger
}

// Client is a canister gateway client. Safe for concurrent use.
type Client struct {
	baseURL string
	ids     CanisterIDs
	http    *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// New builds a Client. Zero options get sane defaults.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if opts.Canisters == (CanisterIDs{}) {
		opts.Canisters = DefaultCanisterIDs()
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: base,
		ids:     opts.Canisters,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.WithField("component", "canister-gateway"),
	}, nil
}

// Connect binds every canister to principal.
func (c *Client) Connect(ctx context.Context, principal string) (canister.Actors, error) {
	if err := ctx.Err(); err != nil {
		return canister.Actors{}, err
	}
	if strings.TrimSpace(principal) == "" {
		return canister.Actors{}, fmt.Errorf("principal is required")
	}
	return canister.Actors{
		Principal:   principal,
		Profiles:    &profiles{c: c, id: c.ids.Profiles, principal: principal},
		Leaderboard: &leaderboard{c: c, id: c.ids.Leaderboard, principal: principal},
		Ledger:      &ledger{c: c, id: c.ids.Ledger, principal: principal},
		Rewards:     &rewards{c: c, id: c.ids.Rewards, principal: principal},
	}, nil
}

// Greet calls greet on the backend canister as the anonymous caller.
func (c *Client) Greet(ctx context.Context, name string) (string, error) {
	raw, err := c.call(ctx, c.ids.Backend, "greet", "", map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	return canister.DecodeValue[string]("greet", raw)
}

// call performs one gateway request and returns the raw reply body.
func (c *Client) call(ctx context.Context, canisterID, method, principal string, args any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", method, err)
	}

	url := c.baseURL + "/" + canisterID + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set("X-Principal", principal)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", canisterID, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", method, err)
	}

	c.log.WithFields(logrus.Fields{
		"canister": canisterID,
		"method":   method,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("canister call")

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: method, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

// StatusError is a non-200 gateway reply.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.Method, e.StatusCode, e.Body)
}

// =============================================================================
// BOUND SERVICES
// =============================================================================

type profiles struct {
	c         *Client
	id        string
	principal string
}

func (p *profiles) CreateProfile(ctx context.Context, username string) (canister.UserProfile, error) {
	raw, err := p.c.call(ctx, p.id, "createProfile", p.principal, map[string]any{"username": username})
	if err != nil {
		return canister.UserProfile{}, err
	}
	return canister.DecodeResult[canister.UserProfile]("createProfile", raw)
}

func (p *profiles) GetProfile(ctx context.Context, principal string) (*canister.UserProfile, error) {
	args := map[string]any{"principal": nil}
	if principal != "" {
		args["principal"] = principal
	}
	raw, err := p.c.call(ctx, p.id, "getProfile", p.principal, args)
	if err != nil {
		return nil, err
	}
	return canister.DecodeOptional[canister.UserProfile]("getProfile", raw)
}

func (p *profiles) UpdateXP(ctx context.Context, delta int64) (canister.UserProfile, error) {
	raw, err := p.c.call(ctx, p.id, "updateXP", p.principal, map[string]any{"delta": delta})
	if err != nil {
		return canister.UserProfile{}, err
	}
	return canister.DecodeResult[canister.UserProfile]("updateXP", raw)
}

func (p *profiles) UnlockAchievement(ctx context.Context, user, achievementID string) (canister.Achievement, error) {
	raw, err := p.c.call(ctx, p.id, "unlockAchievement", p.principal, map[string]any{"user": user, "achievementId": achievementID})
	if err != nil {
		return canister.Achievement{}, err
	}
	return canister.DecodeResult[canister.Achievement]("unlockAchievement", raw)
}

type leaderboard struct {
	c         *Client
	id        string
	principal string
}

func (l *leaderboard) GetLeaderboard(ctx context.Context, board canister.LeaderboardType, limit int) ([]canister.LeaderboardEntry, error) {
	args := map[string]any{"type": board, "limit": nil}
	if limit > 0 {
		args["limit"] = limit
	}
	raw, err := l.c.call(ctx, l.id, "getLeaderboard", l.principal, args)
	if err != nil {
		return nil, err
	}
	return canister.DecodeValue[[]canister.LeaderboardEntry]("getLeaderboard", raw)
}

func (l *leaderboard) GetUserRank(ctx context.Context, user string, board canister.LeaderboardType) (*int, error) {
	raw, err := l.c.call(ctx, l.id, "getUserRank", l.principal, map[string]any{"user": user, "type": board})
	if err != nil {
		return nil, err
	}
	return canister.DecodeOptional[int]("getUserRank", raw)
}

func (l *leaderboard) UpdateRankings(ctx context.Context) error {
	_, err := l.c.call(ctx, l.id, "updateRankings", l.principal, map[string]any{})
	return err
}

type ledger struct {
	c         *Client
	id        string
	principal string
}

func (l *ledger) BalanceOf(ctx context.Context, user, symbol string) (decimal.Decimal, error) {
	raw, err := l.c.call(ctx, l.id, "balanceOf", l.principal, map[string]any{"user": user, "token": symbol})
	if err != nil {
		return decimal.Zero, err
	}
	return canister.DecodeValue[decimal.Decimal]("balanceOf", raw)
}

func (l *ledger) Transfer(ctx context.Context, args canister.TransferArgs) (canister.LedgerTransaction, error) {
	raw, err := l.c.call(ctx, l.id, "transfer", l.principal, args)
	if err != nil {
		return canister.LedgerTransaction{}, err
	}
	return canister.DecodeResult[canister.LedgerTransaction]("transfer", raw)
}

func (l *ledger) Mint(ctx context.Context, user, token string, amount decimal.Decimal, memo string) (canister.LedgerTransaction, error) {
	raw, err := l.c.call(ctx, l.id, "mint", l.principal, map[string]any{
		"to": user, "token": token, "amount": amount, "memo": memo,
	})
	if err != nil {
		return canister.LedgerTransaction{}, err
	}
	return canister.DecodeResult[canister.LedgerTransaction]("mint", raw)
}

func (l *ledger) GetTransactionHistory(ctx context.Context, user string, limit int) ([]canister.LedgerTransaction, error) {
	args := map[string]any{"user": nil, "limit": nil}
	if user != "" {
		args["user"] = user
	}
	if limit > 0 {
		args["limit"] = limit
	}
	raw, err := l.c.call(ctx, l.id, "getTransactionHistory", l.principal, args)
	if err != nil {
		return nil, err
	}
	return canister.DecodeValue[[]canister.LedgerTransaction]("getTransactionHistory", raw)
}

type rewards struct {
	c         *Client
	id        string
	principal string
}

func (r *rewards) AwardQuestReward(ctx context.Context, user, questID string, amounts []canister.RewardAmount) ([]canister.LedgerTransaction, error) {
	raw, err := r.c.call(ctx, r.id, "awardQuestReward", r.principal, map[string]any{
		"user": user, "questId": questID, "rewards": amounts,
	})
	if err != nil {
		return nil, err
	}
	return canister.DecodeResult[[]canister.LedgerTransaction]("awardQuestReward", raw)
}
