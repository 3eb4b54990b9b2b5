package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"golang.org/x/sync/singleflight"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager is the in-memory session registry.
// Turn-level exclusion uses per-conversation mutexes that are reference counted,
// so the lock map only holds entries for conversations currently in use.
type Manager struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	smu      sync.RWMutex
	sessions map[string]*domain.Session
	group    singleflight.Group

	onCreate func(conversationID string)
	logger   *slog.Logger
}

var _ ports.SessionStore = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithCreateHook registers a callback run once per created session.
func WithCreateHook(fn func(conversationID string)) Option {
	return func(m *Manager) {
		m.onCreate = fn
	}
}

// NewManager creates an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*domain.Session),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

func (m *Manager) lookup(id string) (*domain.Session, bool) {
	m.smu.RLock()
	defer m.smu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// LookupOrCreate returns the registered session or creates it with factory.
// Concurrent callers for the same missing id share a single factory run and its result.
// The factory sees ctx values but not its cancellation.
func (m *Manager) LookupOrCreate(ctx context.Context, conversationID string, factory ports.SessionFactory) (*domain.Session, error) {
	if s, ok := m.lookup(conversationID); ok {
		return s, nil
	}

	v, err, _ := m.group.Do(conversationID, func() (any, error) {
		// A caller that finished Do before us may already have inserted it.
		if s, ok := m.lookup(conversationID); ok {
			return s, nil
		}
		// Shared by every waiter: the first caller giving up must not fail the others.
		s, err := factory(context.WithoutCancel(ctx), conversationID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, fmt.Errorf("factory returned no session")
		}

		m.smu.Lock()
		m.sessions[conversationID] = s
		m.smu.Unlock()

		m.logger.Debug("Session created", "conversation_id", conversationID)
		if m.onCreate != nil {
			m.onCreate(conversationID)
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", conversationID, err)
	}
	return v.(*domain.Session), nil
}

// Replace upserts the session record. It does not take the conversation lock,
// so it is safe to call from inside WithLock.
func (m *Manager) Replace(conversationID string, session *domain.Session) {
	m.smu.Lock()
	defer m.smu.Unlock()
	m.sessions[conversationID] = session
}

// Get returns the session or domain.ErrSessionNotFound.
func (m *Manager) Get(conversationID string) (*domain.Session, error) {
	if s, ok := m.lookup(conversationID); ok {
		return s, nil
	}
	return nil, domain.ErrSessionNotFound
}

// Delete drops the session from the registry.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		m.smu.Lock()
		defer m.smu.Unlock()
		delete(m.sessions, conversationID)
		return nil
	})
}

// List returns the registered conversation ids, sorted.
func (m *Manager) List() []string {
	m.smu.RLock()
	defer m.smu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.smu.RLock()
	defer m.smu.RUnlock()
	return len(m.sessions)
}

// WithLock executes fn while holding the lock for the conversation.
// It gives up with ctx.Err() if ctx is done before fn gets to run.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
