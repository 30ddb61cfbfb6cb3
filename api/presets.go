/*
presets.go - Demo player presets

PURPOSE:
  Overwrites the stored progression with a known player so the API and
  frontend can be demonstrated without completing quests by hand.

AVAILABLE PRESETS:
  new-player:  xp 0, level 1, nothing completed
  seed:        The fresh-install defaults
  veteran:     High xp, most on-chain quests done
  streaker:    Mid xp with a long completion streak

HOW PRESETS WORK:
 1. Overwrite xp, level and completed quests via UpdateUserStats
 2. Overwrite live stats via SaveLiveStats
 3. Remember the preset id for GET /api/presets/current

  The transaction log and the session are left alone.

USAGE VIA API:

	POST /api/presets/load
	{"preset_id": "veteran"}

SEE ALSO:
  - handlers.go: Stats handlers share the same Manager calls
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/gami-engine/progression"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

type preset struct {
	PresetDTO
	stats progression.ProgressionState
	live  progression.LiveStats
}

var presets = []preset{
	{
		PresetDTO: PresetDTO{
			ID:          "new-player",
			Name:        "New Player",
			Description: "Level 1 with no quests completed",
		},
		stats: progression.ProgressionState{XP: 0, Level: 1, CompletedQuestIDs: []string{}},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "seed",
			Name:        "Fresh Install",
			Description: "The defaults a new install starts from",
		},
		stats: progression.DefaultState(),
	},
	{
		PresetDTO: PresetDTO{
			ID:          "veteran",
			Name:        "Veteran",
			Description: "12,500 xp with three on-chain quests done",
		},
		stats: progression.ProgressionState{
			XP:                12500,
			Level:             progression.LevelForXP(12500),
			CompletedQuestIDs: []string{"1", "2", "4"},
		},
		live: progression.LiveStats{
			TotalEarned:     decimal.NewFromInt(33),
			QuestsCompleted: 3,
			CurrentStreak:   3,
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "streaker",
			Name:        "Streaker",
			Description: "Two quests done and a 14 day streak",
		},
		stats: progression.ProgressionState{
			XP:                4200,
			Level:             progression.LevelForXP(4200),
			CompletedQuestIDs: []string{"1", "3"},
		},
		live: progression.LiveStats{
			TotalEarned:     decimal.NewFromInt(10),
			QuestsCompleted: 2,
			CurrentStreak:   14,
		},
	},
}

func findPreset(id string) (preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return preset{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListPresets returns available presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	out := make([]PresetDTO, len(presets))
	for i, p := range presets {
		out[i] = p.PresetDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentPreset returns the last loaded preset, if any.
func (h *Handler) GetCurrentPreset(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id := h.currentPreset
	h.mu.Unlock()

	if p, ok := findPreset(id); ok {
		writeJSON(w, http.StatusOK, p.PresetDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadPreset overwrites stats and live stats with a preset.
func (h *Handler) LoadPreset(w http.ResponseWriter, r *http.Request) {
	var req LoadPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, ok := findPreset(req.PresetID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown preset", nil)
		return
	}

	if err := h.applyPreset(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load preset: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentPreset = p.ID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "preset": p.ID})
}

func (h *Handler) applyPreset(ctx context.Context, p preset) error {
	if err := h.Manager.UpdateUserStats(ctx, p.stats.Clone()); err != nil {
		return err
	}
	return h.Manager.SaveLiveStats(ctx, p.live)
}
