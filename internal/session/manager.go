package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lyric-companion/backend/internal/model"
	"github.com/lyric-companion/backend/internal/repository"
)

// Manager tracks state hub connections. It keeps the live set in memory and
// mirrors every open and close into the audit repository.
type Manager struct {
	repo *repository.ConnectionRepository

	defaultListLimit int
	maxListLimit     int

	mu       sync.RWMutex
	sessions map[string]*model.ConnectionRecord
}

// Config holds configuration for the session manager.
type Config struct {
	DefaultListLimit int
	MaxListLimit     int
}

// NewManager creates a new session manager.
func NewManager(repo *repository.ConnectionRepository, config Config) *Manager {
	if config.DefaultListLimit <= 0 {
		config.DefaultListLimit = 50
	}
	if config.MaxListLimit <= 0 {
		config.MaxListLimit = 500
	}
	if config.DefaultListLimit > config.MaxListLimit {
		config.DefaultListLimit = config.MaxListLimit
	}

	return &Manager{
		repo:             repo,
		defaultListLimit: config.DefaultListLimit,
		maxListLimit:     config.MaxListLimit,
		sessions:         make(map[string]*model.ConnectionRecord),
	}
}

// Recover closes records a previous process left open and returns how many
// there were. Call it once before serving connections.
func (m *Manager) Recover(ctx context.Context) (int64, error) {
	n, err := m.repo.MarkStaleClosed(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale connections: %w", err)
	}
	return n, nil
}

// Create records a newly accepted connection.
func (m *Manager) Create(ctx context.Context, rec *model.ConnectionRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("connection record requires an id")
	}
	if rec.ConnectedAt.IsZero() {
		rec.ConnectedAt = time.Now()
	}
	rec.Status = model.SessionStatusOpen

	if err := m.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist connection: %w", err)
	}

	live := *rec
	m.mu.Lock()
	m.sessions[rec.ID] = &live
	m.mu.Unlock()

	return nil
}

// Finish records the end of a connection. The session leaves the live set
// even if the repository write fails.
func (m *Manager) Finish(ctx context.Context, id string, summary model.ConnectionSummary) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if summary.ClosedAt.IsZero() {
		summary.ClosedAt = time.Now()
	}
	if err := m.repo.Finish(ctx, id, summary); err != nil {
		return fmt.Errorf("failed to finish connection %s: %w", id, err)
	}
	return nil
}

// Get returns a connection record, live or historical.
func (m *Manager) Get(ctx context.Context, id string) (*model.ConnectionRecord, error) {
	m.mu.RLock()
	live, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		rec := *live
		return &rec, nil
	}

	return m.repo.GetByID(ctx, id)
}

// List returns the most recent connection records. A non-positive limit
// selects the default; larger limits are capped.
func (m *Manager) List(ctx context.Context, limit int) ([]*model.ConnectionRecord, error) {
	if limit <= 0 {
		limit = m.defaultListLimit
	}
	if limit > m.maxListLimit {
		limit = m.maxListLimit
	}
	return m.repo.List(ctx, limit)
}

// Active returns the live connections, oldest first.
func (m *Manager) Active() []*model.ConnectionRecord {
	m.mu.RLock()
	records := make([]*model.ConnectionRecord, 0, len(m.sessions))
	for _, live := range m.sessions {
		rec := *live
		records = append(records, &rec)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].ConnectedAt.Equal(records[j].ConnectedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].ConnectedAt.Before(records[j].ConnectedAt)
	})
	return records
}

// ActiveCount returns the number of live connections.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IsLive reports whether the connection is currently open.
func (m *Manager) IsLive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// MaxListLimit returns the cap applied by List.
func (m *Manager) MaxListLimit() int {
	return m.maxListLimit
}
