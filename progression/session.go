package progression

import (
	"context"
	"sync"
	"time"

	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/identity"
)

// Session is one authenticated login: the identity plus the canister
// actors bound to its principal. The Manager creates one per login and
// closes it on logout; nothing else holds it.
type Session struct {
	Identity  identity.Identity
	StartedAt time.Time

	mu     sync.RWMutex
	actors canister.Actors
	closed bool
}

// newSession binds id to actors from connector. A nil connector or a
// failed connect yields a session without actors; remote operations then
// report ErrRemoteUnavailable.
func newSession(ctx context.Context, id identity.Identity, connector canister.Connector, now time.Time) (*Session, error) {
	s := &Session{Identity: id, StartedAt: now}
	if connector == nil {
		return s, nil
	}
	actors, err := connector.Connect(ctx, id.Principal)
	if err != nil {
		return s, err
	}
	s.actors = actors
	return s, nil
}

// Principal is the session's principal, "" on a nil session.
func (s *Session) Principal() string {
	if s == nil {
		return ""
	}
	return s.Identity.Principal
}

// Actors returns the bound actors. Zero after Close.
func (s *Session) Actors() canister.Actors {
	if s == nil {
		return canister.Actors{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actors
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close drops the actor handles. Safe to call twice.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors = canister.Actors{}
	s.closed = true
}
