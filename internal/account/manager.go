// ABOUTME: Process-wide current user manager with change notifications
// ABOUTME: Loads lazily from the Store and notifies subscribers when the user changes

package account

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Listener is told about a current-user change. prev or next may be nil.
type Listener func(prev, next *Account)

// Manager owns the current account. Safe for concurrent use.
type Manager struct {
	store Store

	mu        sync.RWMutex
	current   *Account
	loaded    bool
	listeners map[uint64]Listener
	nextID    uint64
}

// NewManager creates a manager over store
func NewManager(store Store) *Manager {
	return &Manager{
		store:     store,
		listeners: make(map[uint64]Listener),
	}
}

// Current returns a copy of the current account, or nil when logged out.
func (m *Manager) Current() *Account {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.current.clone()
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	return m.current.clone()
}

func (m *Manager) loadLocked() {
	if m.loaded {
		return
	}
	a, err := m.store.Load()
	if err != nil && !errors.Is(err, ErrNoAccount) {
		slog.Warn("Failed to load current account", "error", err)
	}
	m.current = a
	m.loaded = true
}

// SetCurrent persists a as the current account. Subscribers are notified
// when a is a different user from the previous one.
func (m *Manager) SetCurrent(a *Account) error {
	if a == nil {
		return m.Logout()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.loadLocked()
	if err := m.store.Save(a); err != nil {
		m.mu.Unlock()
		return err
	}
	prev := m.current
	m.current = a.clone()
	listeners := m.snapshotLocked()
	m.mu.Unlock()

	if !SameUser(prev, a) {
		slog.Info("Current user changed", "user_id", a.UserID, "org_id", a.OrgID)
		notify(listeners, prev, a.clone())
	}
	return nil
}

// UpdateToken persists refreshed credentials for the current account without
// notifying subscribers.
func (m *Manager) UpdateToken(tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()

	if m.current == nil {
		return ErrNoAccount
	}
	next := m.current.clone()
	next.SetToken(tok)
	if err := m.store.Save(next); err != nil {
		return err
	}
	m.current = next
	return nil
}

// Logout forgets the current account. The in-memory account is cleared even
// when the store fails, and subscribers are notified if someone was logged in.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.loadLocked()
	err := m.store.Clear()
	prev := m.current
	m.current = nil
	listeners := m.snapshotLocked()
	m.mu.Unlock()

	if prev != nil {
		slog.Info("User logged out", "user_id", prev.UserID, "org_id", prev.OrgID)
		notify(listeners, prev, nil)
	}
	return err
}

// DeviceID returns the stable installation id from the store.
func (m *Manager) DeviceID() (string, error) {
	return m.store.DeviceID()
}

// Subscribe registers fn for current-user changes and returns an unsubscribe
// func. fn runs on the goroutine that made the change; callers that own a UI
// loop must hand the event over to it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, prev, next *Account) {
	for _, fn := range listeners {
		fn(prev.clone(), next.clone())
	}
}
