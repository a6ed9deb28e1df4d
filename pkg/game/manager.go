package game

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourusername/bsengine/pkg/record"
	"github.com/yourusername/bsengine/pkg/store"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bsengine_sessions_active",
		Help: "Sessions currently held in memory",
	})
	sessionsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsengine_sessions_persisted_total",
		Help: "Session store operations by result",
	}, []string{"operation", "result"})
)

// Manager keeps the sessions of a server. It is safe for concurrent use.
//
// With a store, every session is saved after creation and after each
// change applied through Update, and sessions missing from memory are
// loaded on demand.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store  store.Store
	logger *slog.Logger
}

// NewManager creates a manager. st may be nil for an in-memory manager.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    st,
		logger:   logger,
	}
}

// Create starts a new session with a fresh id.
func (m *Manager) Create(ctx context.Context, width, height int, fleet Fleet) (*Session, error) {
	s, err := NewSession(uuid.NewString(), width, height, fleet, m.logger)
	if err != nil {
		return nil, err
	}
	if err := m.add(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Import starts a new session by replaying rec.
func (m *Manager) Import(ctx context.Context, rec *record.Record) (*Session, error) {
	s, err := Replay(uuid.NewString(), rec, m.logger)
	if err != nil {
		return nil, err
	}
	if err := m.add(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) add(ctx context.Context, s *Session) error {
	if err := m.save(ctx, s); err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	sessionsActive.Inc()

	m.logger.Info("session started", slog.String("session", s.ID()))
	return nil
}

// Get returns the session with the given id, loading it from the store if needed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	data, err := m.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		sessionsPersisted.WithLabelValues("load", "missing").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err != nil {
		sessionsPersisted.WithLabelValues("load", "error").Inc()
		return nil, err
	}
	rec, err := record.Import(bytes.NewReader(data))
	if err != nil {
		sessionsPersisted.WithLabelValues("load", "error").Inc()
		return nil, fmt.Errorf("stored session %s: %w", id, err)
	}
	loaded, err := Replay(id, rec, m.logger)
	if err != nil {
		sessionsPersisted.WithLabelValues("load", "error").Inc()
		return nil, fmt.Errorf("stored session %s: %w", id, err)
	}
	sessionsPersisted.WithLabelValues("load", "ok").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it meanwhile
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	m.sessions[id] = loaded
	sessionsActive.Inc()
	m.logger.Debug("session loaded from store", slog.String("session", id))
	return loaded, nil
}

// Update runs fn on the session and saves it afterwards.
// The session is saved even when fn fails, since fn may have applied part of its work.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	fnErr := fn(s)
	if err := m.save(ctx, s); err != nil {
		return errors.Join(fnErr, err)
	}
	return fnErr
}

// save writes a snapshot of s to the store. Snapshot and write happen under
// the session's persist lock, so a later save never loses to an earlier one
// and a deleted session is not written back.
func (m *Manager) save(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.removed {
		return nil
	}

	var buf bytes.Buffer
	if err := record.Export(&buf, s.Record()); err != nil {
		return fmt.Errorf("export session %s: %w", s.ID(), err)
	}
	if err := m.store.Save(ctx, s.ID(), buf.Bytes()); err != nil {
		sessionsPersisted.WithLabelValues("save", "error").Inc()
		return err
	}
	sessionsPersisted.WithLabelValues("save", "ok").Inc()
	return nil
}

// List returns the ids of every known session, in memory or stored, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	if m.store != nil {
		stored, err := m.store.List(ctx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, stored...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Delete closes the session and removes it from memory and the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, inMemory := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if inMemory {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		s.removed = true
		s.Close()
		sessionsActive.Dec()
	}

	if m.store != nil {
		err := m.store.Delete(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if !inMemory {
				return fmt.Errorf("%w: %s", ErrUnknownSession, id)
			}
		case err != nil:
			return err
		}
	} else if !inMemory {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	m.logger.Info("session deleted", slog.String("session", id))
	return nil
}

// Close closes every in-memory session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
		sessionsActive.Dec()
	}
}
