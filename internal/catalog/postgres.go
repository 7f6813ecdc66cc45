package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	types      TEXT[] NOT NULL DEFAULT '{}',
	element    TEXT NOT NULL,
	cost       INTEGER NOT NULL,
	image      TEXT NOT NULL,
	text       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cards_name_idx ON cards (lower(name));
`

// upsertBatchSize bounds the rows written per transaction.
const upsertBatchSize = 1000

// PostgresStore persists the catalog in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Upsert writes definitions in batches, one transaction per batch. Rows from batches
// committed before a failure stay written.
func (s *PostgresStore) Upsert(ctx context.Context, defs []game.CardDefinition) (int, error) {
	if err := validateAll(defs); err != nil {
		return 0, err
	}

	written := 0
	for i := 0; i < len(defs); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(defs))
		if err := s.upsertBatch(ctx, defs[i:end]); err != nil {
			return written, err
		}
		written += end - i
	}
	return written, nil
}

func (s *PostgresStore) upsertBatch(ctx context.Context, batch []game.CardDefinition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, def := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO cards (id, name, types, element, cost, image, text, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				types = EXCLUDED.types,
				element = EXCLUDED.element,
				cost = EXCLUDED.cost,
				image = EXCLUDED.image,
				text = EXCLUDED.text,
				updated_at = EXCLUDED.updated_at`,
			def.ID, def.Name, typesOrEmpty(def.Types), def.Element, def.Cost, def.Image, def.Text,
		)
		if err != nil {
			return fmt.Errorf("upsert card %s: %w", def.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get returns one definition.
func (s *PostgresStore) Get(ctx context.Context, id string) (game.CardDefinition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, types, element, cost, image, text FROM cards WHERE id = $1`, id)
	var def game.CardDefinition
	err := row.Scan(&def.ID, &def.Name, &def.Types, &def.Element, &def.Cost, &def.Image, &def.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.CardDefinition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return game.CardDefinition{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return def, nil
}

// GetMany returns definitions in request order.
func (s *PostgresStore) GetMany(ctx context.Context, ids []string) ([]game.CardDefinition, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []game.CardDefinition{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, types, element, cost, image, text FROM cards WHERE id = ANY($1)`, unique)
	if err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	defs, err := collectCards(rows)
	if err != nil {
		return nil, err
	}

	found := make(map[string]game.CardDefinition, len(defs))
	for _, def := range defs {
		found[def.ID] = def
	}
	return orderByIDs(ids, found)
}

// Search matches names case-insensitively.
func (s *PostgresStore) Search(ctx context.Context, q Query) ([]game.CardDefinition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, types, element, cost, image, text FROM cards
		WHERE lower(name) LIKE $1 ESCAPE '\'
		ORDER BY lower(name) COLLATE "C", id COLLATE "C"
		LIMIT $2`, likePattern(q.Name), q.limit())
	if err != nil {
		return nil, fmt.Errorf("search cards: %w", err)
	}
	return collectCards(rows)
}

// Count returns the number of stored definitions.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return int(n), nil
}

func collectCards(rows pgx.Rows) ([]game.CardDefinition, error) {
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.CardDefinition, error) {
		var def game.CardDefinition
		err := row.Scan(&def.ID, &def.Name, &def.Types, &def.Element, &def.Cost, &def.Image, &def.Text)
		return def, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan cards: %w", err)
	}
	return defs, nil
}
