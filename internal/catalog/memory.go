package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/gasandbox/sandbox-server/internal/game"
)

// MemoryStore keeps definitions in a map. It is used by tests and the "memory" driver.
type MemoryStore struct {
	mu    sync.RWMutex
	cards map[string]game.CardDefinition
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cards: make(map[string]game.CardDefinition)}
}

func (m *MemoryStore) Upsert(ctx context.Context, defs []game.CardDefinition) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateAll(defs); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range defs {
		m.cards[def.ID] = cloneDefinition(def)
	}
	return len(defs), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (game.CardDefinition, error) {
	defs, err := m.GetMany(ctx, []string{id})
	if err != nil {
		return game.CardDefinition{}, err
	}
	return defs[0], nil
}

func (m *MemoryStore) GetMany(ctx context.Context, ids []string) ([]game.CardDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return orderByIDs(ids, m.cards)
}

func (m *MemoryStore) Search(ctx context.Context, q Query) ([]game.CardDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(q.Name)

	m.mu.RLock()
	matches := make([]game.CardDefinition, 0)
	for _, def := range m.cards {
		if strings.Contains(strings.ToLower(def.Name), needle) {
			matches = append(matches, cloneDefinition(def))
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matches, func(a, b game.CardDefinition) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(matches) > q.limit() {
		matches = matches[:q.limit()]
	}
	return matches, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cards), nil
}

func (m *MemoryStore) Close() error { return nil }
