// Package table hosts the sandbox games served by this process. Each table owns one
// game session.
package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTooManyTables = errors.New("table limit reached")
	ErrNotFound      = errors.New("table not found")
)

// Table is one running sandbox game.
type Table struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Session   *game.Session
}

// Info is a read-only summary of a table.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Cards     int       `json:"cards"`
	Seq       uint64    `json:"seq"`
}

// Info summarizes the table's current state.
func (t *Table) Info() Info {
	s, seq := t.Session.Current()
	return Info{
		ID:        t.ID,
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
		Cards:     s.Total(),
		Seq:       seq,
	}
}

// Options configures a Manager.
type Options struct {
	MaxTables int
	// ShuffleSeed gives every table a deterministic shuffler when non-zero.
	ShuffleSeed uint64
	Bus         *game.EventBus
	Recorder    *game.ReplayRecorder
	Now         func() time.Time
}

// Manager manages tables
type Manager struct {
	tables map[string]*Table
	mu     sync.RWMutex
	opts   Options
	logger *zap.Logger
}

// NewManager creates a table manager. A nil bus is replaced with a fresh one so
// subscribers always have somewhere to listen.
func NewManager(opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = game.NewEventBus()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		tables: make(map[string]*Table),
		opts:   opts,
		logger: logger,
	}
}

// Bus returns the event bus shared by every table's session.
func (m *Manager) Bus() *game.EventBus {
	return m.opts.Bus
}

// Recorder returns the replay recorder, or nil when recording is off.
func (m *Manager) Recorder() *game.ReplayRecorder {
	return m.opts.Recorder
}

func (m *Manager) newReducer() game.Reducer {
	shuffler := game.NewRandomShuffler()
	if m.opts.ShuffleSeed != 0 {
		shuffler = game.NewSeededShuffler(m.opts.ShuffleSeed)
	}
	return game.Reducer{IDs: game.UUIDSource{}, Shuffler: shuffler}
}

// Create opens a new table with an empty game.
func (m *Manager) Create(name string) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Sandbox"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.MaxTables > 0 && len(m.tables) >= m.opts.MaxTables {
		return nil, fmt.Errorf("%w: %d", ErrTooManyTables, m.opts.MaxTables)
	}

	id := uuid.NewString()
	sessionOpts := []game.SessionOption{game.WithEventBus(m.opts.Bus), game.WithClock(m.opts.Now)}
	if m.opts.Recorder != nil {
		m.opts.Recorder.StartRecording(id)
		sessionOpts = append(sessionOpts, game.WithRecorder(m.opts.Recorder))
	}

	t := &Table{
		ID:        id,
		Name:      name,
		CreatedAt: m.opts.Now(),
		Session:   game.NewSession(id, m.newReducer(), m.logger, sessionOpts...),
	}
	m.tables[id] = t

	m.logger.Info("table created",
		zap.String("table_id", id),
		zap.String("name", name),
		zap.Int("open_tables", len(m.tables)),
	)
	return t, nil
}

// Get retrieves a table by ID
func (m *Manager) Get(id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// List returns every table, oldest first.
func (m *Manager) List() []*Table {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	slices.SortFunc(tables, func(a, b *Table) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tables
}

// Remove closes a table. With recording on, its replay is written to disk unless no
// command was ever applied.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	_, ok := m.tables[id]
	delete(m.tables, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if rec := m.opts.Recorder; rec != nil {
		if replay, ok := rec.GetReplay(id); ok && replay.Size() == 0 {
			rec.ClearReplay(id)
		} else if err := rec.SaveReplay(id); err != nil {
			m.logger.Warn("failed to save replay", zap.String("table_id", id), zap.Error(err))
		}
	}

	m.logger.Info("table removed", zap.String("table_id", id))
	return nil
}

// CloseAll removes every table.
func (m *Manager) CloseAll() {
	for _, t := range m.List() {
		_ = m.Remove(t.ID)
	}
}

// Count returns the number of open tables.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}
