package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"fruition-api/internal/freshness"
	"fruition-api/internal/model"
	"fruition-api/internal/notify"
	"fruition-api/internal/pubsub"
	"fruition-api/internal/scope"
	"fruition-api/internal/synchronizer"
	"fruition-api/pkg/clock"
)

// DefaultPresenceInterval bounds how often lastActive is written.
const DefaultPresenceInterval = 5 * time.Minute

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Identity   *IdentityService
	Households *HouseholdService
	Ledger     *Ledger
	Source     synchronizer.Source
	Broker     pubsub.Broker
	ShelfLife  freshness.ShelfLife
	Notify     notify.Config
	Clock      clock.Clock

	// DefaultLocation is used for profiles without a time zone.
	DefaultLocation  *time.Location
	PresenceInterval time.Duration
}

// SessionManager keeps one live session per signed-in identity.
type SessionManager struct {
	deps SessionDeps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(deps SessionDeps) *SessionManager {
	if deps.DefaultLocation == nil {
		deps.DefaultLocation = time.UTC
	}
	if deps.PresenceInterval <= 0 {
		deps.PresenceInterval = DefaultPresenceInterval
	}
	return &SessionManager{deps: deps, sessions: make(map[string]*Session)}
}

// Open returns the live session of id, creating it on first use. Creating
// a session ensures the profile, rejects disabled accounts and subscribes
// to the resolved inventory scope. An existing session whose subscription
// failed is re-subscribed.
func (m *SessionManager) Open(ctx context.Context, id model.Identity, clientIP string) (*Session, error) {
	if id.UserID == "" {
		return nil, ErrAnonymous
	}

	if s, ok := m.Get(id.UserID); ok {
		if s.sync.Err() != nil {
			if err := s.rescope(ctx); err != nil {
				log.Printf("[SessionManager] Re-subscribe for %s failed: %v", id.UserID, err)
			}
		}
		s.touch(ctx)
		return s, nil
	}

	p, err := m.deps.Identity.EnsureProfile(ctx, id, clientIP)
	if err != nil {
		return nil, err
	}
	if p.Disabled {
		log.Printf("[SessionManager] Rejected suspended account %s", id.UserID)
		return nil, ErrIdentityDisabled
	}

	s := m.newSession(p)
	if err := s.rescope(ctx); err != nil {
		// The list stays empty until the scope changes or the session is reopened.
		log.Printf("[SessionManager] Initial subscription for %s failed: %v", id.UserID, err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id.UserID]; ok {
		m.mu.Unlock()
		s.close()
		existing.touch(ctx)
		return existing, nil
	}
	m.sessions[id.UserID] = s
	m.mu.Unlock()

	s.touch(ctx)
	log.Printf("[SessionManager] Opened session for %s (member #%d, scope %s)", p.UserID, p.MemberID, s.Path())
	return s, nil
}

func (m *SessionManager) newSession(p *model.UserProfile) *Session {
	d := m.deps
	s := &Session{
		deps:    &m.deps,
		profile: p,
		sync:    synchronizer.New(d.Source, d.Broker, d.ShelfLife, d.Clock),
	}
	s.watcher = notify.NewWatcher(d.Notify, p.UserID, p.TimeLocation(d.DefaultLocation), s.Foreground)
	s.stopWatch = s.sync.Inventory().Observe(s.watcher.Observe)
	s.lastSeen.Store(d.Clock.Now().UnixNano())
	return s
}

// Get returns the live session of userID.
func (m *SessionManager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Close signs userID out: the subscription is torn down and the list
// cleared.
func (m *SessionManager) Close(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.close()
		log.Printf("[SessionManager] Closed session for %s", userID)
	}
	return ok
}

// CloseIdle closes sessions without live streams that have not been used
// for longer than idle. Returns the number closed.
func (m *SessionManager) CloseIdle(idle time.Duration) int {
	cutoff := m.deps.Clock.Now().Add(-idle).UnixNano()

	m.mu.Lock()
	var stale []*Session
	for uid, s := range m.sessions {
		if !s.Foreground() && s.lastSeen.Load() < cutoff {
			stale = append(stale, s)
			delete(m.sessions, uid)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Session is the live state of one signed-in identity: its profile, its
// inventory subscription and its expiry watcher.
type Session struct {
	deps *SessionDeps

	// opMu serializes scope changes against writes so a write never targets
	// a scope the session is leaving.
	opMu sync.RWMutex

	mu      sync.RWMutex
	profile *model.UserProfile

	sync      *synchronizer.Synchronizer
	watcher   *notify.Watcher
	stopWatch func()

	streams   atomic.Int32
	lastSeen  atomic.Int64
	lastTouch atomic.Int64
}

// Profile returns a copy of the session profile.
func (s *Session) Profile() model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.profile
}

func (s *Session) actor() *model.UserProfile {
	p := s.Profile()
	return &p
}

// Location returns the time zone of the session profile.
func (s *Session) Location() *time.Location {
	p := s.Profile()
	return p.TimeLocation(s.deps.DefaultLocation)
}

// UserID returns the identity of the session.
func (s *Session) UserID() string {
	return s.Profile().UserID
}

// Path returns the scope path of the live subscription.
func (s *Session) Path() string {
	return s.sync.Path()
}

// Inventory returns the published inventory list.
func (s *Session) Inventory() *synchronizer.Inventory {
	return s.sync.Inventory()
}

// SubscriptionErr returns the error that ended the last subscription.
func (s *Session) SubscriptionErr() error {
	return s.sync.Err()
}

// Watcher returns the expiry watcher of the session.
func (s *Session) Watcher() *notify.Watcher {
	return s.watcher
}

// Foreground reports whether a live event stream is attached.
func (s *Session) Foreground() bool {
	return s.streams.Load() > 0
}

// AttachStream marks the session as foreground until the returned func
// is called.
func (s *Session) AttachStream() func() {
	s.streams.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.streams.Add(-1)
			s.lastSeen.Store(s.deps.Clock.Now().UnixNano())
		})
	}
}

// touch records activity and refreshes lastActive at most once per
// presence interval.
func (s *Session) touch(ctx context.Context) {
	now := s.deps.Clock.Now()
	s.lastSeen.Store(now.UnixNano())

	last := s.lastTouch.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < s.deps.PresenceInterval {
		return
	}
	if !s.lastTouch.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	s.deps.Identity.TouchLastActive(ctx, s.UserID())
}

// rescope subscribes to the inventory path of the current profile,
// tearing down the previous subscription first.
func (s *Session) rescope(ctx context.Context) error {
	return s.sync.Subscribe(ctx, scope.InventoryPath(s.actor()))
}

func (s *Session) close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.sync.Clear()
}

// AddItem adds an item to the session's scope.
func (s *Session) AddItem(ctx context.Context, in model.NewItem) (*model.InventoryItem, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	s.touch(ctx)
	return s.deps.Ledger.AddItem(ctx, s.actor(), in)
}

// RemoveItem deletes an item from the session's scope.
func (s *Session) RemoveItem(ctx context.Context, itemID string) error {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	s.touch(ctx)
	return s.deps.Ledger.RemoveItem(ctx, s.actor(), itemID)
}

// Consume records consumption of an item of the published list.
func (s *Session) Consume(ctx context.Context, itemID string, amount int) (*model.ConsumptionEvent, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	s.touch(ctx)
	return s.deps.Ledger.Consume(ctx, s.actor(), s.sync.Inventory(), itemID, amount)
}

// Waste records waste of an item of the published list.
func (s *Session) Waste(ctx context.Context, itemID string, amount int, reason string) (*model.WasteEvent, error) {
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	s.touch(ctx)
	return s.deps.Ledger.Waste(ctx, s.actor(), s.sync.Inventory(), itemID, amount, reason)
}

func (s *Session) setHousehold(id string) {
	s.mu.Lock()
	s.profile.HouseholdID = id
	s.mu.Unlock()
}

// CreateHousehold creates a household, joins it and moves the
// subscription to the shared scope before returning.
func (s *Session) CreateHousehold(ctx context.Context, name string) (*model.Household, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	h, err := s.deps.Households.Create(ctx, s.UserID(), name)
	if err != nil {
		return nil, err
	}
	s.setHousehold(h.ID)
	return h, s.rescope(ctx)
}

// JoinHousehold joins the household identified by code and moves the
// subscription to the shared scope before returning.
func (s *Session) JoinHousehold(ctx context.Context, code string) (*model.Household, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	h, err := s.deps.Households.Join(ctx, s.UserID(), code)
	if err != nil {
		return nil, err
	}
	s.setHousehold(h.ID)
	return h, s.rescope(ctx)
}

// LeaveHousehold returns to the personal scope.
func (s *Session) LeaveHousehold(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	p := s.Profile()
	if err := s.deps.Households.Leave(ctx, p.UserID, p.HouseholdID); err != nil {
		return err
	}
	s.setHousehold("")
	return s.rescope(ctx)
}

// UpdateSettings stores new settings and applies the time zone to the
// expiry watcher.
func (s *Session) UpdateSettings(ctx context.Context, settings model.Settings) (model.UserProfile, error) {
	p := s.Profile()
	if err := s.deps.Identity.UpdateSettings(ctx, p.UserID, settings); err != nil {
		return p, err
	}

	s.mu.Lock()
	s.profile.Settings = settings
	updated := *s.profile
	s.mu.Unlock()

	s.watcher.SetLocation(updated.TimeLocation(s.deps.DefaultLocation))
	return updated, nil
}

// Reload re-reads the stored profile, picking up administrative changes.
// A scope change re-subscribes.
func (s *Session) Reload(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	fresh, err := s.deps.Identity.GetProfile(ctx, s.UserID())
	if err != nil {
		return err
	}

	s.mu.Lock()
	oldHousehold := s.profile.HouseholdID
	s.profile = fresh
	s.mu.Unlock()

	s.watcher.SetLocation(fresh.TimeLocation(s.deps.DefaultLocation))
	if fresh.HouseholdID != oldHousehold {
		return s.rescope(ctx)
	}
	return nil
}
