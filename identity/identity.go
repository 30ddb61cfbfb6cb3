// Package identity authenticates a player against an identity provider and
// hands back the resulting principal. The handshake itself belongs to the
// provider; this package only drives it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Identity is an authentication handle. Only Principal is ever persisted.
type Identity struct {
	Principal       string `json:"principal"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Anonymous is the unauthenticated identity.
var Anonymous = Identity{}

// Authenticated returns an identity for principal.
func Authenticated(principal string) Identity {
	return Identity{Principal: principal, IsAuthenticated: principal != ""}
}

// Provider runs a login handshake.
type Provider interface {
	// Login blocks until the handshake finishes, fails, or ctx ends.
	Login(ctx context.Context) (Identity, error)

	// Logout drops whatever the provider holds for the current identity.
	Logout(ctx context.Context) error
}

var (
	// ErrLoginTimeout is returned when the callback never arrives.
	ErrLoginTimeout = errors.New("login timed out waiting for callback")

	// ErrLoginRejected is returned when the provider reports no principal.
	ErrLoginRejected = errors.New("login rejected by identity provider")
)

// =============================================================================
// DEV PROVIDER
// =============================================================================

// DevProvider issues mock principals of the form user-XXXXXXXX-cai, where
// the digits are the last eight of the current unix millisecond clock.
type DevProvider struct {
	Now func() time.Time
}

// NewDevProvider returns a DevProvider on the wall clock.
func NewDevProvider() *DevProvider {
	return &DevProvider{Now: time.Now}
}

func (p *DevProvider) Login(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Anonymous, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Authenticated(MockPrincipal(now())), nil
}

func (p *DevProvider) Logout(context.Context) error {
	return nil
}

// MockPrincipal formats the dev principal for t.
func MockPrincipal(t time.Time) string {
	ms := strconv.FormatInt(t.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return fmt.Sprintf("user-%s-cai", ms)
}
