/*
factory.go - Quest catalogs from JSON or YAML

PURPOSE:
  Sponsors ship quest lists as documents instead of code. The factory
  decodes a document into quest definitions, fills defaults, and
  validates every entry before anything reaches a Catalog.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  quests:
    - id: "6"
      title: Sunrise Run
      description: Run 5k before 7am
      category: fitness
      xp_reward: 350
      money_reward: 5
      time_limit: 3 days
      difficulty: medium
      sponsor: RunClub
      on_chain: true
      blockchain_rewards:
        - {token: GAMI, amount: 30}

  A bare top-level list is accepted as well.

VALIDATION:
  - id and title are required, ids are unique
  - category and difficulty must be known values
  - xp_reward, money_reward and reward amounts are non-negative
  - on_chain quests need at least one blockchain reward

SEE ALSO:
  - quests.go: Quest and Catalog types
  - seed.go: Built-in catalog
*/
package quests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks a Format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
}

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

type questDoc struct {
	ID                string           `json:"id" yaml:"id"`
	Title             string           `json:"title" yaml:"title"`
	Description       string           `json:"description" yaml:"description"`
	Category          string           `json:"category" yaml:"category"`
	XPReward          int64            `json:"xp_reward" yaml:"xp_reward"`
	MoneyReward       *decimal.Decimal `json:"money_reward" yaml:"money_reward"`
	TimeLimit         string           `json:"time_limit" yaml:"time_limit"`
	Participants      int              `json:"participants" yaml:"participants"`
	Difficulty        string           `json:"difficulty" yaml:"difficulty"`
	Sponsor           string           `json:"sponsor" yaml:"sponsor"`
	OnChain           bool             `json:"on_chain" yaml:"on_chain"`
	BlockchainRewards []RewardLine     `json:"blockchain_rewards" yaml:"blockchain_rewards"`
}

type catalogDoc struct {
	Quests []questDoc `json:"quests" yaml:"quests"`
}

// ErrInvalidQuest wraps every validation failure.
var ErrInvalidQuest = errors.New("invalid quest definition")

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte, format Format) (*Catalog, error) {
	docs, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: catalog has no quests", ErrInvalidQuest)
	}

	seen := make(map[string]bool, len(docs))
	qs := make([]Quest, 0, len(docs))
	for i, d := range docs {
		q, err := d.toQuest()
		if err != nil {
			return nil, fmt.Errorf("quest #%d: %w", i+1, err)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("quest #%d: %w: duplicate id %q", i+1, ErrInvalidQuest, q.ID)
		}
		seen[q.ID] = true
		qs = append(qs, q)
	}
	return NewCatalog(qs), nil
}

// LoadCatalogFile reads a catalog from path, format by extension.
func LoadCatalogFile(path string) (*Catalog, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data, format)
}

func decode(data []byte, format Format) ([]questDoc, error) {
	trimmed := bytes.TrimSpace(data)
	switch format {
	case FormatJSON:
		if bytes.HasPrefix(trimmed, []byte("[")) {
			var list []questDoc
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("invalid JSON: %w", err)
			}
			return list, nil
		}
		var doc catalogDoc
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return doc.Quests, nil
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(trimmed, &node); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			var list []questDoc
			if err := node.Decode(&list); err != nil {
				return nil, fmt.Errorf("invalid YAML: %w", err)
			}
			return list, nil
		}
		var doc catalogDoc
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return doc.Quests, nil
	}
	return nil, fmt.Errorf("unsupported catalog format %q", format)
}

func (d questDoc) toQuest() (Quest, error) {
	q := Quest{
		ID:                strings.TrimSpace(d.ID),
		Title:             strings.TrimSpace(d.Title),
		Description:       d.Description,
		Category:          Category(strings.ToLower(d.Category)),
		XPReward:          d.XPReward,
		MoneyReward:       d.MoneyReward,
		TimeLimit:         d.TimeLimit,
		Participants:      d.Participants,
		Difficulty:        Difficulty(strings.ToLower(d.Difficulty)),
		Sponsor:           d.Sponsor,
		OnChain:           d.OnChain,
		BlockchainRewards: d.BlockchainRewards,
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}

	switch {
	case q.ID == "":
		return Quest{}, fmt.Errorf("%w: id is required", ErrInvalidQuest)
	case q.Title == "":
		return Quest{}, fmt.Errorf("%w: %s: title is required", ErrInvalidQuest, q.ID)
	case !q.Category.Valid():
		return Quest{}, fmt.Errorf("%w: %s: unknown category %q", ErrInvalidQuest, q.ID, d.Category)
	case !q.Difficulty.Valid():
		return Quest{}, fmt.Errorf("%w: %s: unknown difficulty %q", ErrInvalidQuest, q.ID, d.Difficulty)
	case q.XPReward < 0:
		return Quest{}, fmt.Errorf("%w: %s: negative xp_reward", ErrInvalidQuest, q.ID)
	case q.MoneyReward != nil && q.MoneyReward.IsNegative():
		return Quest{}, fmt.Errorf("%w: %s: negative money_reward", ErrInvalidQuest, q.ID)
	case q.Participants < 0:
		return Quest{}, fmt.Errorf("%w: %s: negative participants", ErrInvalidQuest, q.ID)
	case q.OnChain && len(q.BlockchainRewards) == 0:
		return Quest{}, fmt.Errorf("%w: %s: on_chain quest needs blockchain_rewards", ErrInvalidQuest, q.ID)
	}
	for _, r := range q.BlockchainRewards {
		if strings.TrimSpace(r.Token) == "" {
			return Quest{}, fmt.Errorf("%w: %s: reward token is required", ErrInvalidQuest, q.ID)
		}
		if !r.Amount.IsPositive() {
			return Quest{}, fmt.Errorf("%w: %s: reward amount for %s must be positive", ErrInvalidQuest, q.ID, r.Token)
		}
	}
	return q, nil
}
