package game

import (
	"fmt"
	"testing"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
	"github.com/stretchr/testify/require"
)

// identityShuffler leaves the order untouched.
type identityShuffler struct{}

func (identityShuffler) Shuffle(int, func(i, j int)) {}

func def(id string, types ...string) CardDefinition {
	if len(types) == 0 {
		types = []string{"ALLY"}
	}
	return CardDefinition{
		ID:      id,
		Name:    "Card " + id,
		Types:   types,
		Element: "NORM",
		Cost:    1,
		Image:   "https://img.example/" + id + ".jpg",
		Text:    "",
	}
}

func defs(ids ...string) []CardDefinition {
	out := make([]CardDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, def(id))
	}
	return out
}

func inst(uid, id string) CardInstance {
	return CardInstance{CardDefinition: def(id), UID: uid}
}

// newTestReducer mints u-1, u-2, ... and never shuffles.
func newTestReducer() Reducer {
	return Reducer{IDs: NewSequenceSource("u"), Shuffler: identityShuffler{}}
}

func mustState(t *testing.T, b Board) GameState {
	t.Helper()
	s, err := NewGameState(b)
	require.NoError(t, err)
	return s
}

func uids(cards []CardInstance) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.UID
	}
	return out
}

func definitionIDs(cards []CardInstance) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

// requireInvariants checks uid uniqueness and that exactly want instances exist.
func requireInvariants(t *testing.T, s GameState, want int) {
	t.Helper()
	seen := map[string]zone.Zone{}
	for _, z := range zone.All() {
		for _, c := range s.Cards(z) {
			prev, dup := seen[c.UID]
			require.False(t, dup, fmt.Sprintf("uid %s in both %s and %s", c.UID, prev, z))
			seen[c.UID] = z
		}
	}
	require.Equal(t, want, len(seen))
	require.Equal(t, want, s.Total())
}
