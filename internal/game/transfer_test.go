package game

import (
	"testing"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) GameState {
	return mustState(t, Board{
		MaterialDeck: []CardInstance{inst("m1", "A"), inst("m2", "B")},
		MainDeck:     []CardInstance{inst("c1", "X"), inst("c2", "Y"), inst("c3", "Z")},
		Hand:         []CardInstance{inst("h1", "H")},
		BattleZone:   []CardInstance{inst("b1", "P"), inst("b2", "Q")},
		Graveyard:    []CardInstance{inst("g1", "G")},
	})
}

func TestMoveCardMissingUIDIsNoOp(t *testing.T) {
	s := sampleState(t)
	before := s.Board()

	next := Move(s, "nonexistent-uid", zone.Hand)

	assert.Equal(t, s, next)
	assert.Equal(t, before, next.Board())
}

func TestMoveCardIsAtomic(t *testing.T) {
	s := sampleState(t)

	next := Move(s, "b1", zone.Graveyard)

	assert.Equal(t, []string{"b2"}, uids(next.Cards(zone.BattleZone)))
	assert.Equal(t, []string{"g1", "b1"}, uids(next.Cards(zone.Graveyard)))
	for _, z := range zone.All() {
		if z == zone.BattleZone || z == zone.Graveyard {
			continue
		}
		assert.Equal(t, s.Cards(z), next.Cards(z), "zone %s changed", z)
	}
	requireInvariants(t, next, s.Total())

	// the source snapshot is untouched
	assert.Equal(t, []string{"b1", "b2"}, uids(s.Cards(zone.BattleZone)))
	assert.Equal(t, []string{"g1"}, uids(s.Cards(zone.Graveyard)))
}

func TestMoveCardPreservesInstanceState(t *testing.T) {
	s := FlipRest(sampleState(t), "h1")
	require.True(t, mustInstance(t, s, "h1").Rested)

	next := Move(s, "h1", zone.Memory)

	moved := mustInstance(t, next, "h1")
	assert.True(t, moved.Rested)
	assert.Equal(t, "H", moved.ID)
	z, idx, ok := next.Locate("h1")
	require.True(t, ok)
	assert.Equal(t, zone.Memory, z)
	assert.Equal(t, 0, idx)
}

func TestMoveCardIntoSameZoneAppendsToTail(t *testing.T) {
	s := sampleState(t)

	next := Move(s, "b1", zone.BattleZone)

	assert.Equal(t, []string{"b2", "b1"}, uids(next.Cards(zone.BattleZone)))
}

func TestMoveCardOutOfDeckKeepsRemainingOrder(t *testing.T) {
	s := sampleState(t)

	next := Move(s, "c2", zone.Banished)

	assert.Equal(t, []string{"c1", "c3"}, uids(next.Cards(zone.MainDeck)))
	assert.Equal(t, []string{"c2"}, uids(next.Cards(zone.Banished)))
}

func TestMoveCardInvalidZonePanics(t *testing.T) {
	s := sampleState(t)
	assert.Panics(t, func() { Move(s, "h1", zone.Zone(99)) })
}

func TestDrawCardTakesHead(t *testing.T) {
	s := sampleState(t)

	next := Draw(s)

	assert.Equal(t, []string{"c2", "c3"}, uids(next.Cards(zone.MainDeck)))
	assert.Equal(t, []string{"h1", "c1"}, uids(next.Cards(zone.Hand)))
	assert.Equal(t, s.Cards(zone.MaterialDeck), next.Cards(zone.MaterialDeck))
}

func TestDrawCardEmptyDeckIsNoOp(t *testing.T) {
	s := mustState(t, Board{Hand: []CardInstance{inst("h1", "H")}})

	assert.Equal(t, s, Draw(s))
	assert.Equal(t, s, PlaceMaterial(s))
}

func TestDrawMaterial(t *testing.T) {
	s := sampleState(t)

	next := PlaceMaterial(s)
	next = PlaceMaterial(next)

	assert.Empty(t, next.Cards(zone.MaterialDeck))
	assert.Equal(t, []string{"m1", "m2"}, uids(next.Cards(zone.MaterialZone)))
	assert.Equal(t, s.Cards(zone.MainDeck), next.Cards(zone.MainDeck))
}

func TestToggleRestIsPureFlip(t *testing.T) {
	s := sampleState(t)

	once := FlipRest(s, "b2")
	twice := FlipRest(once, "b2")

	assert.True(t, mustInstance(t, once, "b2").Rested)
	assert.Equal(t, []string{"b1", "b2"}, uids(once.Cards(zone.BattleZone)))
	assert.Equal(t, s.Board(), twice.Board())
	assert.Equal(t, Checksum(s), Checksum(twice))
}

func TestToggleRestIgnoresNonRestableZones(t *testing.T) {
	s := sampleState(t)

	for _, uid := range []string{"m1", "c1", "g1", "missing"} {
		assert.Equal(t, s, FlipRest(s, uid), uid)
	}
}

func TestToggleRestInEveryRestableZone(t *testing.T) {
	for _, z := range zone.All() {
		if !z.Restable() {
			continue
		}
		s := Move(sampleState(t), "g1", z)
		next := FlipRest(s, "g1")
		assert.True(t, mustInstance(t, next, "g1").Rested, "zone %s", z)
	}
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	s := sampleState(t)

	hand := s.Cards(zone.Hand)
	hand[0].Rested = true
	hand[0].Types[0] = "MUTATED"

	assert.False(t, mustInstance(t, s, "h1").Rested)
	assert.Equal(t, []string{"ALLY"}, mustInstance(t, s, "h1").Types)

	board := s.Board()
	board.Hand = append(board.Hand, inst("x", "X"))
	assert.Equal(t, 1, s.Len(zone.Hand))

	c, ok := s.Instance("h1")
	require.True(t, ok)
	c.Types[0] = "MUTATED"
	assert.Equal(t, []string{"ALLY"}, mustInstance(t, s, "h1").Types)

	// later snapshots share untouched backing arrays with s
	later := Move(s, "h1", zone.Graveyard)
	moved, _ := later.Instance("h1")
	moved.Types[0] = "MUTATED"
	assert.Equal(t, []string{"ALLY"}, mustInstance(t, later, "h1").Types)
	assert.Equal(t, []string{"ALLY"}, mustInstance(t, s, "h1").Types)
}

func TestNewGameStateRejectsDuplicates(t *testing.T) {
	_, err := NewGameState(Board{
		Hand:      []CardInstance{inst("dup", "A")},
		Graveyard: []CardInstance{inst("dup", "A")},
	})
	assert.Error(t, err)

	_, err = NewGameState(Board{Hand: []CardInstance{inst("", "A")}})
	assert.Error(t, err)
}

func mustInstance(t *testing.T, s GameState, uid string) CardInstance {
	t.Helper()
	c, ok := s.Instance(uid)
	require.True(t, ok, "instance %s not found", uid)
	return c
}
