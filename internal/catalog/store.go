// Package catalog fetches card definitions from the remote card API and keeps them in a
// local store for deck building.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/game"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a card id is not in the store.
var ErrNotFound = errors.New("card not found")

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// Query filters a Search. Name matches as a case-insensitive substring; an empty name
// matches every card.
type Query struct {
	Name  string
	Limit int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultSearchLimit
	case q.Limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return q.Limit
	}
}

// Store persists card definitions keyed by id.
type Store interface {
	// Upsert inserts or replaces definitions and returns how many were written.
	Upsert(ctx context.Context, defs []game.CardDefinition) (int, error)
	Get(ctx context.Context, id string) (game.CardDefinition, error)
	// GetMany returns one definition per requested id, in request order. Repeated ids
	// yield repeated definitions.
	GetMany(ctx context.Context, ids []string) ([]game.CardDefinition, error)
	// Search returns matches ordered by name, then id.
	Search(ctx context.Context, q Query) ([]game.CardDefinition, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.CatalogConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory card catalog")
		return NewMemoryStore(), nil
	case "sqlite":
		store, err := OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite card catalog", zap.String("path", cfg.DSN))
		return store, nil
	case "postgres":
		store, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("opened postgres card catalog")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}

func validateAll(defs []game.CardDefinition) error {
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
	}
	return nil
}

// orderByIDs expands found into request order, failing on the first unknown id.
func orderByIDs(ids []string, found map[string]game.CardDefinition) ([]game.CardDefinition, error) {
	out := make([]game.CardDefinition, 0, len(ids))
	for _, id := range ids {
		def, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = append(out, cloneDefinition(def))
	}
	return out, nil
}

func cloneDefinition(def game.CardDefinition) game.CardDefinition {
	def.Types = append([]string(nil), def.Types...)
	return def
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// likePattern escapes LIKE wildcards in s and wraps it for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
