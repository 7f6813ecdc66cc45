package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gasandbox/sandbox-server/internal/game"
	_ "modernc.org/sqlite"
)

// SQLite's lower() only folds ASCII, so the folded name is computed in Go and stored in
// name_lower to match the other stores for names like "Éclair".
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_lower TEXT NOT NULL DEFAULT '',
	types      TEXT NOT NULL,
	element    TEXT NOT NULL,
	cost       INTEGER NOT NULL,
	image      TEXT NOT NULL,
	text       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const sqliteIndexes = `
DROP INDEX IF EXISTS cards_name_idx;
CREATE INDEX IF NOT EXISTS cards_name_lower_idx ON cards (name_lower);
`

// SQLiteStore persists the catalog in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// migrateSQLite creates the schema and brings catalogs written before name_lower existed
// up to date.
func migrateSQLite(db *sql.DB) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return err
	}
	ok, err := sqliteHasColumn(db, "cards", "name_lower")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE cards ADD COLUMN name_lower TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add name_lower: %w", err)
		}
	}
	if err := backfillNameLower(db); err != nil {
		return err
	}
	_, err = db.Exec(sqliteIndexes)
	return err
}

func sqliteHasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// backfillNameLower fills name_lower for rows that predate the column.
func backfillNameLower(db *sql.DB) error {
	rows, err := db.Query(`SELECT id, name FROM cards WHERE name_lower = '' AND name <> ''`)
	if err != nil {
		return fmt.Errorf("scan names: %w", err)
	}
	pending := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		pending[id] = strings.ToLower(name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for id, lower := range pending {
		if _, err := tx.Exec(`UPDATE cards SET name_lower = ? WHERE id = ?`, lower, id); err != nil {
			return fmt.Errorf("backfill %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert writes all definitions in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, defs []game.CardDefinition) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateAll(defs); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (id, name, name_lower, types, element, cost, image, text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_lower = excluded.name_lower,
			types = excluded.types,
			element = excluded.element,
			cost = excluded.cost,
			image = excluded.image,
			text = excluded.text,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	for _, def := range defs {
		types, err := json.Marshal(typesOrEmpty(def.Types))
		if err != nil {
			return 0, fmt.Errorf("encode types for %s: %w", def.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, def.ID, def.Name, strings.ToLower(def.Name), string(types), def.Element, def.Cost, def.Image, def.Text, now); err != nil {
			return 0, fmt.Errorf("upsert card %s: %w", def.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(defs), nil
}

// Get returns one definition.
func (s *SQLiteStore) Get(ctx context.Context, id string) (game.CardDefinition, error) {
	if err := ctx.Err(); err != nil {
		return game.CardDefinition{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, types, element, cost, image, text FROM cards WHERE id = ?`, id)
	def, err := scanSQLiteCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return game.CardDefinition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return game.CardDefinition{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return def, nil
}

// GetMany returns definitions in request order.
func (s *SQLiteStore) GetMany(ctx context.Context, ids []string) ([]game.CardDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []game.CardDefinition{}, nil
	}

	args := make([]any, len(unique))
	for i, id := range unique {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unique)), ",")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, types, element, cost, image, text FROM cards WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	defer rows.Close()

	found := make(map[string]game.CardDefinition, len(unique))
	for rows.Next() {
		def, err := scanSQLiteCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		found[def.ID] = def
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return orderByIDs(ids, found)
}

// Search matches names case-insensitively.
func (s *SQLiteStore) Search(ctx context.Context, q Query) ([]game.CardDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, types, element, cost, image, text FROM cards
		WHERE name_lower LIKE ? ESCAPE '\'
		ORDER BY name_lower, id
		LIMIT ?`, likePattern(q.Name), q.limit())
	if err != nil {
		return nil, fmt.Errorf("search cards: %w", err)
	}
	defer rows.Close()

	out := make([]game.CardDefinition, 0)
	for rows.Next() {
		def, err := scanSQLiteCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return out, nil
}

// Count returns the number of stored definitions.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCard(row rowScanner) (game.CardDefinition, error) {
	var def game.CardDefinition
	var types string
	if err := row.Scan(&def.ID, &def.Name, &types, &def.Element, &def.Cost, &def.Image, &def.Text); err != nil {
		return game.CardDefinition{}, err
	}
	if err := json.Unmarshal([]byte(types), &def.Types); err != nil {
		return game.CardDefinition{}, fmt.Errorf("decode types for %s: %w", def.ID, err)
	}
	return def, nil
}

func typesOrEmpty(types []string) []string {
	if types == nil {
		return []string{}
	}
	return types
}
