package deck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(id string, types ...string) game.CardDefinition {
	return game.CardDefinition{ID: id, Name: "Card " + id, Types: types, Element: "NORM"}
}

func TestIsMaterial(t *testing.T) {
	assert.True(t, IsMaterial(card("a", "CHAMPION")))
	assert.True(t, IsMaterial(card("b", "ALLY", "REGALIA")))
	assert.True(t, IsMaterial(card("c", "UNIQUE CHAMPION")), "substring match")
	assert.False(t, IsMaterial(card("d", "ACTION")))
	assert.False(t, IsMaterial(card("e")))
}

func TestBuilderRoutesAndLimits(t *testing.T) {
	var b Builder
	assert.ErrorIs(t, b.Validate(), ErrEmptyDeck)

	for i := 0; i < MaxMaterial; i++ {
		require.NoError(t, b.Add(card(fmt.Sprintf("m%d", i), "CHAMPION")))
	}
	assert.ErrorIs(t, b.Add(card("extra", "REGALIA")), ErrMaterialFull)

	for i := 0; i < MaxMain; i++ {
		require.NoError(t, b.Add(card(fmt.Sprintf("c%d", i), "ACTION")))
	}
	assert.ErrorIs(t, b.Add(card("extra", "ACTION")), ErrMainFull)

	material, main := b.Lists()
	assert.Len(t, material, MaxMaterial)
	assert.Len(t, main, MaxMain)
	assert.NoError(t, b.Validate())
}

func TestBuilderListsAreCopies(t *testing.T) {
	var b Builder
	require.NoError(t, b.Add(card("c1", "ACTION")))

	_, main := b.Lists()
	main[0].ID = "mutated"

	_, again := b.Lists()
	assert.Equal(t, "c1", again[0].ID)
}

func TestCheck(t *testing.T) {
	assert.ErrorIs(t, Check(nil, nil), ErrEmptyDeck)
	assert.NoError(t, Check([]game.CardDefinition{card("m")}, nil))
	assert.NoError(t, Check(nil, []game.CardDefinition{card("c")}))
	assert.ErrorIs(t, Check(make([]game.CardDefinition, MaxMaterial+1), nil), ErrMaterialFull)
	assert.ErrorIs(t, Check(nil, make([]game.CardDefinition, MaxMain+1)), ErrMainFull)
}

const libraryYAML = `
decks:
  - name: Starter
    material:
      - {id: m1, count: 1}
      - {id: m2, count: 1}
    main:
      - {id: c1, count: 3}
      - {id: c2, count: 2}
  - name: Broken
    main:
      - {id: ghost, count: 1}
  - name: Oversized
    material:
      - {id: m1, count: 13}
`

func testLibrary(t *testing.T) (*Library, *catalog.MemoryStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(libraryYAML), 0o644))

	lib, err := LoadLibrary(path)
	require.NoError(t, err)

	store := catalog.NewMemoryStore()
	_, err = store.Upsert(context.Background(), []game.CardDefinition{
		card("m1", "CHAMPION"), card("m2", "REGALIA"), card("c1", "ACTION"), card("c2", "ALLY"),
	})
	require.NoError(t, err)
	return lib, store
}

func TestLibraryNames(t *testing.T) {
	lib, _ := testLibrary(t)
	assert.Equal(t, []string{"Starter", "Broken", "Oversized"}, lib.Names())
}

func TestLibraryResolve(t *testing.T) {
	lib, store := testLibrary(t)
	ctx := context.Background()

	material, main, err := lib.Resolve(ctx, "Starter", store)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(material))
	assert.Equal(t, []string{"c1", "c1", "c1", "c2", "c2"}, ids(main))

	_, _, err = lib.Resolve(ctx, "Missing", store)
	assert.ErrorIs(t, err, ErrDeckNotFound)

	_, _, err = lib.Resolve(ctx, "Broken", store)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, _, err = lib.Resolve(ctx, "Oversized", store)
	assert.ErrorIs(t, err, ErrMaterialFull)
}

func TestBuildSortsCardsByType(t *testing.T) {
	_, store := testLibrary(t)
	ctx := context.Background()

	material, main, err := Build(ctx, []string{"c1", "m1", "c2", "c1", "m2"}, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(material))
	assert.Equal(t, []string{"c1", "c2", "c1"}, ids(main), "main keeps request order")

	_, _, err = Build(ctx, nil, store)
	assert.ErrorIs(t, err, ErrEmptyDeck)

	_, _, err = Build(ctx, []string{"c1", "ghost"}, store)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestBuildEnforcesLimits(t *testing.T) {
	_, store := testLibrary(t)

	tooMany := make([]string, MaxMaterial+1)
	for i := range tooMany {
		tooMany[i] = "m1"
	}
	_, _, err := Build(context.Background(), tooMany, store)
	require.ErrorIs(t, err, ErrMaterialFull)
	assert.Contains(t, err.Error(), "add m1")

	onlyMaterial, main, err := Build(context.Background(), []string{"m2"}, store)
	require.NoError(t, err)
	assert.Len(t, onlyMaterial, 1)
	assert.Empty(t, main)
}

func TestParseLibraryRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"malformed":    "decks: [",
		"unnamed deck": "decks:\n  - main: [{id: c1, count: 1}]\n",
		"duplicate":    "decks:\n  - name: A\n  - name: A\n",
		"zero count":   "decks:\n  - name: A\n    main: [{id: c1, count: 0}]\n",
		"missing id":   "decks:\n  - name: A\n    material: [{count: 1}]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLibrary([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadLibraryMissingFile(t *testing.T) {
	_, err := LoadLibrary(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func ids(defs []game.CardDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}
