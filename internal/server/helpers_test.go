package server

import (
	"context"
	"testing"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/deck"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/gasandbox/sandbox-server/internal/table"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testDecks = `
decks:
  - name: Starter
    material:
      - {id: champ, count: 1}
    main:
      - {id: strike, count: 2}
      - {id: guard, count: 1}
`

func def(id string, types ...string) game.CardDefinition {
	return game.CardDefinition{ID: id, Name: "Card " + id, Types: types, Element: "NORM", Cost: 1}
}

func newTestService(t *testing.T, maxTables int) *Service {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := catalog.NewMemoryStore()
	_, err := store.Upsert(context.Background(), []game.CardDefinition{
		def("champ", "CHAMPION"),
		def("strike", "ACTION"),
		def("guard", "ALLY"),
	})
	require.NoError(t, err)

	lib, err := deck.ParseLibrary([]byte(testDecks))
	require.NoError(t, err)

	tables := table.NewManager(table.Options{MaxTables: maxTables, ShuffleSeed: 42}, logger)
	return NewService(tables, store, lib, logger)
}

func uidsIn(cards []game.CardInstance) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.UID
	}
	return out
}
