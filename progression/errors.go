/*
errors.go - Error types for progression operations

PURPOSE:
  Most manager operations never fail: storage errors are logged and
  degrade to defaults. The errors here cover the few places where the
  caller has to react (no session, duplicate completion, bad input).

SEE ALSO:
  - manager.go, completion.go, remote.go: Return these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package progression

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotAuthenticated is returned when an operation needs a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrQuestInFlight is returned when the same quest is already being
	// completed by another call.
	ErrQuestInFlight = errors.New("quest completion already in flight")

	// ErrQuestAlreadyCompleted is returned when a quest is in the completed set.
	ErrQuestAlreadyCompleted = errors.New("quest already completed")

	// ErrUnknownQuest is returned when a quest id is not in the catalog.
	ErrUnknownQuest = errors.New("unknown quest")

	// ErrInvalidAmount is returned for non-positive transfer amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidStats is returned for stats that can never be valid (negative xp).
	ErrInvalidStats = errors.New("invalid stats")

	// ErrRemoteUnavailable is returned when no canister connector is configured.
	ErrRemoteUnavailable = errors.New("remote canisters unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InFlightError names the quest that is already being completed.
type InFlightError struct {
	QuestID string
}

func (e *InFlightError) Error() string {
	return fmt.Sprintf("quest %s: completion already in flight", e.QuestID)
}

func (e *InFlightError) Unwrap() error {
	return ErrQuestInFlight
}

// AlreadyCompletedError names the quest that was completed before.
type AlreadyCompletedError struct {
	QuestID string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("quest %s: already completed", e.QuestID)
}

func (e *AlreadyCompletedError) Unwrap() error {
	return ErrQuestAlreadyCompleted
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same call may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrQuestInFlight) || errors.Is(err, ErrRemoteUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrQuestAlreadyCompleted) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidStats) ||
		errors.Is(err, ErrNotAuthenticated)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownQuest)
}
