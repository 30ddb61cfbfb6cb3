/*
manager.go - Progression & wallet state manager

PURPOSE:
  The Manager is the single owner of a player's progression state. It
  loads and persists the six keys in store.go, holds the current login
  Session, derives the wallet, and serializes writes.

LIFECYCLE:
  NewManager -> Initialize -> (Login | operations)* -> Logout

  Initialize and Login never fail; storage and provider errors are
  logged and leave defaults in place.

CONCURRENCY:
  mu guards all in-memory state and every store write, so memory and
  storage move together. Quest completion does not hold mu while the
  reward oracle runs; a per-quest in-flight set rejects duplicates
  instead (see completion.go).

SEE ALSO:
  - completion.go: Quest completion paths
  - remote.go:     Canister-backed operations
*/
package progression

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/canister"
	"github.com/warp/gami-engine/identity"
	"github.com/warp/gami-engine/metrics"
	"github.com/warp/gami-engine/quests"
)

// Deps are the Manager's collaborators. Store and Provider are required;
// the rest have defaults.
type Deps struct {
	Store     Store
	Provider  identity.Provider
	Connector canister.Connector
	Oracle    RewardOracle
	Catalog   *quests.Catalog
	Logger    logrus.FieldLogger
	Now       func() time.Time
	NewID     func() string
}

// LoginResult reports a login attempt. Failed logins carry no error; the
// reason is for display.
type LoginResult struct {
	Success  bool              `json:"success"`
	Identity identity.Identity `json:"identity"`
	Wallet   *Wallet           `json:"wallet,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// Manager owns progression state for one player.
type Manager struct {
	store     Store
	provider  identity.Provider
	connector canister.Connector
	oracle    RewardOracle
	catalog   *quests.Catalog
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string

	mu      sync.RWMutex
	state   ProgressionState
	live    LiveStats
	session *Session
	wallet  *Wallet
	txs     []Transaction

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewManager builds a Manager in the default, logged-out state. Call
// Initialize to load persisted state.
func NewManager(deps Deps) *Manager {
	m := &Manager{
		store:     deps.Store,
		provider:  deps.Provider,
		connector: deps.Connector,
		oracle:    deps.Oracle,
		catalog:   deps.Catalog,
		log:       deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
		state:     DefaultState(),
		inflight:  make(map[string]struct{}),
	}
	if m.oracle == nil {
		m.oracle = NewSimulatedOracle(time.Now().UnixNano())
	}
	if m.catalog == nil {
		m.catalog = quests.SeedCatalog()
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Catalog is the quest catalog the manager resolves quest ids against.
func (m *Manager) Catalog() *quests.Catalog {
	return m.catalog
}

// =============================================================================
// INITIALIZE
// =============================================================================

// Initialize loads persisted state and restores a stored login.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = m.readStats(ctx, DefaultState())
	m.live = m.readLiveStats(ctx, LiveStats{})

	principal, ok, err := m.store.Get(ctx, KeyPrincipal)
	if err != nil {
		m.storageError("get", KeyPrincipal, err)
		return
	}
	if !ok || principal == "" {
		return
	}

	session := m.openSession(ctx, identity.Authenticated(principal))
	m.session = session
	m.txs = m.readTransactions(ctx)
	m.deriveLocked()

	m.log.WithField("principal", principal).Info("restored session")
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login runs the identity provider. On success the principal is
// persisted, a new Session replaces any previous one, a remote profile is
// created if missing, and the wallet is derived. Progress stored for a
// different principal is discarded first.
func (m *Manager) Login(ctx context.Context) LoginResult {
	id, err := m.provider.Login(ctx)
	if err != nil || !id.IsAuthenticated {
		metrics.RecordLogin(false)
		reason := "identity provider returned no principal"
		if err != nil {
			reason = err.Error()
		}
		m.log.WithField("reason", reason).Warn("login failed")
		return LoginResult{Identity: identity.Anonymous, Reason: reason}
	}
	metrics.RecordLogin(true)

	m.resetIfPrincipalChanged(ctx, id.Principal)
	session := m.openSession(ctx, id)
	if err := m.ensureProfile(ctx, session); err != nil {
		m.log.WithError(err).WithField("principal", id.Principal).Warn("ensure remote profile")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, KeyPrincipal, id.Principal); err != nil {
		m.storageError("set", KeyPrincipal, err)
	}
	if m.session != nil {
		m.session.Close()
	}
	m.session = session
	m.txs = m.readTransactions(ctx)
	m.deriveLocked()

	m.log.WithField("principal", id.Principal).Info("logged in")
	return LoginResult{Success: true, Identity: id, Wallet: m.walletCopyLocked()}
}

// resetIfPrincipalChanged clears stored progress and resets memory when the
// persisted principal belongs to someone else.
func (m *Manager) resetIfPrincipalChanged(ctx context.Context, principal string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok, err := m.store.Get(ctx, KeyPrincipal)
	if err != nil {
		m.storageError("get", KeyPrincipal, err)
		return
	}
	if !ok || stored == "" || stored == principal {
		return
	}
	if err := m.store.Remove(ctx, AllKeys...); err != nil {
		m.storageError("remove", "all", err)
	}
	m.state = DefaultState()
	m.live = LiveStats{}
	m.txs = nil
	m.wallet = nil
	m.log.WithFields(logrus.Fields{"previous": stored, "principal": principal}).Info("principal changed, progress reset")
}

// ConnectWallet logs in when needed; an existing session just gets its
// wallet re-derived.
func (m *Manager) ConnectWallet(ctx context.Context) LoginResult {
	m.mu.Lock()
	if m.session != nil {
		m.deriveLocked()
		res := LoginResult{Success: true, Identity: m.session.Identity, Wallet: m.walletCopyLocked()}
		m.mu.Unlock()
		return res
	}
	m.mu.Unlock()
	return m.Login(ctx)
}

// Logout closes the session, clears every persisted key and resets
// memory to defaults. Calling it while logged out re-clears storage.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.wallet = nil
	m.txs = nil
	m.state = DefaultState()
	m.live = LiveStats{}
	if err := m.store.Remove(ctx, AllKeys...); err != nil {
		m.storageError("remove", "all", err)
	}
	m.mu.Unlock()

	if session != nil {
		session.Close()
		m.log.WithField("principal", session.Principal()).Info("logged out")
	}
	if err := m.provider.Logout(ctx); err != nil {
		m.log.WithError(err).Warn("identity provider logout")
	}
}

// DisconnectWallet is Logout.
func (m *Manager) DisconnectWallet(ctx context.Context) {
	m.Logout(ctx)
}

// Identity is the current login, Anonymous when logged out.
func (m *Manager) Identity() identity.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return identity.Anonymous
	}
	return m.session.Identity
}

// Session is the current login session, nil when logged out.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// =============================================================================
// STATS
// =============================================================================

// GetUserStats re-reads the stats keys from storage and returns them.
// Absent keys keep the in-memory value; a failed read returns memory.
func (m *Manager) GetUserStats(ctx context.Context) ProgressionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.readStats(ctx, m.state)
	return m.state.Clone()
}

// UpdateUserStats persists s verbatim, level included, and re-derives the
// wallet. A level that disagrees with xp is logged, not corrected.
// Negative xp, a level below 1, and empty or repeated quest ids return
// ErrInvalidStats. A storage failure is logged and leaves everything
// unchanged.
func (m *Manager) UpdateUserStats(ctx context.Context, s ProgressionState) error {
	if s.XP < 0 || s.Level < 1 {
		return ErrInvalidStats
	}
	if len(uniqueIDs(s.CompletedQuestIDs)) != len(s.CompletedQuestIDs) {
		return fmt.Errorf("%w: empty or repeated quest ids", ErrInvalidStats)
	}
	s = s.Clone()

	if derived := LevelForXP(s.XP); derived != s.Level {
		m.log.WithFields(logrus.Fields{
			"xp":      s.XP,
			"level":   s.Level,
			"derived": derived,
		}).Warn("stored level disagrees with xp")
	}

	values, err := encodeStats(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SetMany(ctx, values); err != nil {
		m.storageError("set", "stats", err)
		return nil
	}
	m.state = s
	m.deriveLocked()
	return nil
}

// LiveStats returns the accumulated completion stats.
func (m *Manager) LiveStats(context.Context) LiveStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

// SaveLiveStats replaces the live stats. A storage failure is logged and
// leaves them unchanged.
func (m *Manager) SaveLiveStats(ctx context.Context, s LiveStats) error {
	if s.TotalEarned.IsNegative() || s.QuestsCompleted < 0 || s.CurrentStreak < 0 {
		return ErrInvalidStats
	}
	raw, err := encodeLiveStats(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(ctx, KeyLiveStats, raw); err != nil {
		m.storageError("set", KeyLiveStats, err)
		return nil
	}
	m.live = s
	return nil
}

// =============================================================================
// WALLET / TRANSACTIONS
// =============================================================================

// RefreshBalance re-derives the wallet. Returns nil when logged out.
func (m *Manager) RefreshBalance(context.Context) *Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deriveLocked()
	return m.walletCopyLocked()
}

// Wallet returns the current wallet, nil when logged out.
func (m *Manager) Wallet() *Wallet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.walletCopyLocked()
}

// Transactions returns the transaction log, newest first.
func (m *Manager) Transactions(context.Context) []Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transaction, len(m.txs))
	copy(out, m.txs)
	return out
}

// =============================================================================
// INTERNAL
// =============================================================================

func (m *Manager) openSession(ctx context.Context, id identity.Identity) *Session {
	session, err := newSession(ctx, id, m.connector, m.now())
	if err != nil {
		m.log.WithError(err).WithField("principal", id.Principal).Warn("connect canisters")
	}
	return session
}

// deriveLocked recomputes the wallet from state. No session, no wallet.
func (m *Manager) deriveLocked() {
	if m.session == nil {
		m.wallet = nil
		return
	}
	w := DeriveWallet(m.session.Principal(), m.state)
	m.wallet = &w
}

func (m *Manager) walletCopyLocked() *Wallet {
	if m.wallet == nil {
		return nil
	}
	w := *m.wallet
	w.Tokens = append([]RewardToken(nil), m.wallet.Tokens...)
	return &w
}

// readStats reads the three stats keys, keeping fallback values for any
// key that is absent, unreadable or malformed.
func (m *Manager) readStats(ctx context.Context, fallback ProgressionState) ProgressionState {
	out := fallback.Clone()

	if raw, ok := m.get(ctx, KeyXP); ok {
		if xp, err := decodeXP(raw); err != nil {
			m.malformed(KeyXP, err)
		} else {
			out.XP = xp
		}
	}
	if raw, ok := m.get(ctx, KeyLevel); ok {
		if level, err := decodeLevel(raw); err != nil {
			m.malformed(KeyLevel, err)
		} else {
			out.Level = level
		}
	}
	if raw, ok := m.get(ctx, KeyCompletedQuests); ok {
		if ids, err := decodeCompleted(raw); err != nil {
			m.malformed(KeyCompletedQuests, err)
		} else {
			out.CompletedQuestIDs = ids
		}
	}
	return out
}

func (m *Manager) readLiveStats(ctx context.Context, fallback LiveStats) LiveStats {
	raw, ok := m.get(ctx, KeyLiveStats)
	if !ok {
		return fallback
	}
	s, err := decodeLiveStats(raw)
	if err != nil {
		m.malformed(KeyLiveStats, err)
		return fallback
	}
	return s
}

func (m *Manager) readTransactions(ctx context.Context) []Transaction {
	raw, ok := m.get(ctx, KeyTransactions)
	if !ok {
		return nil
	}
	txs, err := decodeTransactions(raw)
	if err != nil {
		m.malformed(KeyTransactions, err)
		return nil
	}
	return txs
}

// get reports ok only for a present, readable key.
func (m *Manager) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.storageError("get", key, err)
		return "", false
	}
	return raw, ok
}

func (m *Manager) storageError(op, key string, err error) {
	metrics.RecordStorageError(op)
	m.log.WithError(err).WithFields(logrus.Fields{"op": op, "key": key}).Error("storage")
}

func (m *Manager) malformed(key string, err error) {
	metrics.RecordStorageError("decode")
	m.log.WithError(err).WithField("key", key).Warn("malformed stored value, using fallback")
}
