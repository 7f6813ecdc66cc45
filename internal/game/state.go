package game

import (
	"fmt"
	"slices"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
)

// GameState is an immutable snapshot of every zone. The zero value is the empty state.
//
// Transitions never write into a slice they did not allocate, so snapshots may share
// the backing arrays of zones they did not touch.
type GameState struct {
	zones [zone.Count][]CardInstance
}

// Board is the exported, named view of a GameState used by transports and replays.
type Board struct {
	MaterialDeck []CardInstance `json:"materialDeck"`
	MainDeck     []CardInstance `json:"mainDeck"`
	Hand         []CardInstance `json:"hand"`
	MaterialZone []CardInstance `json:"materialZone"`
	BattleZone   []CardInstance `json:"battleZone"`
	Graveyard    []CardInstance `json:"graveyard"`
	Banished     []CardInstance `json:"banished"`
	Memory       []CardInstance `json:"memory"`
}

// field maps a zone to its Board slot. Panics on an invalid zone.
func (b *Board) field(z zone.Zone) *[]CardInstance {
	switch z {
	case zone.MaterialDeck:
		return &b.MaterialDeck
	case zone.MainDeck:
		return &b.MainDeck
	case zone.Hand:
		return &b.Hand
	case zone.MaterialZone:
		return &b.MaterialZone
	case zone.BattleZone:
		return &b.BattleZone
	case zone.Graveyard:
		return &b.Graveyard
	case zone.Banished:
		return &b.Banished
	case zone.Memory:
		return &b.Memory
	default:
		panic(fmt.Sprintf("game: invalid zone %d", int(z)))
	}
}

// Cards returns the named zone of the board.
func (b Board) Cards(z zone.Zone) []CardInstance {
	return *b.field(z)
}

// NewGameState rebuilds a snapshot from a board, rejecting empty or duplicated uids.
func NewGameState(b Board) (GameState, error) {
	var s GameState
	seen := make(map[string]zone.Zone)
	for _, z := range zone.All() {
		cards := b.Cards(z)
		for _, c := range cards {
			if c.UID == "" {
				return GameState{}, fmt.Errorf("card %q in %s has no uid", c.ID, z)
			}
			if prev, dup := seen[c.UID]; dup {
				return GameState{}, fmt.Errorf("uid %s present in both %s and %s", c.UID, prev, z)
			}
			seen[c.UID] = z
		}
		s.zones[z] = cloneCards(cards)
	}
	return s, nil
}

func (s GameState) cardsIn(z zone.Zone) []CardInstance {
	if !z.Valid() {
		panic(fmt.Sprintf("game: invalid zone %d", int(z)))
	}
	return s.zones[z]
}

// with returns a copy of s whose zone z is replaced by cards.
func (s GameState) with(z zone.Zone, cards []CardInstance) GameState {
	if !z.Valid() {
		panic(fmt.Sprintf("game: invalid zone %d", int(z)))
	}
	s.zones[z] = cards
	return s
}

// Cards returns a copy of the zone's contents, head first.
func (s GameState) Cards(z zone.Zone) []CardInstance {
	return cloneCards(s.cardsIn(z))
}

// Len returns the number of cards in the zone.
func (s GameState) Len(z zone.Zone) int {
	return len(s.cardsIn(z))
}

// Total returns the number of instances across all zones.
func (s GameState) Total() int {
	n := 0
	for _, cards := range s.zones {
		n += len(cards)
	}
	return n
}

// Locate finds the zone and position of an instance.
func (s GameState) Locate(uid string) (zone.Zone, int, bool) {
	for _, z := range searchOrder {
		if i := indexOf(s.zones[z], uid); i >= 0 {
			return z, i, true
		}
	}
	return 0, -1, false
}

// Instance returns the instance with the given uid.
func (s GameState) Instance(uid string) (CardInstance, bool) {
	z, i, ok := s.Locate(uid)
	if !ok {
		return CardInstance{}, false
	}
	c := s.zones[z][i]
	c.Types = slices.Clone(c.Types)
	return c, true
}

// Board returns a deep copy of the snapshot as named zones.
func (s GameState) Board() Board {
	var b Board
	for _, z := range zone.All() {
		cards := cloneCards(s.zones[z])
		if cards == nil {
			cards = []CardInstance{}
		}
		*b.field(z) = cards
	}
	return b
}

// cloneBoard deep-copies every zone of b.
func cloneBoard(b Board) Board {
	var out Board
	for _, z := range zone.All() {
		*out.field(z) = cloneCards(b.Cards(z))
	}
	return out
}

func indexOf(cards []CardInstance, uid string) int {
	return slices.IndexFunc(cards, func(c CardInstance) bool { return c.UID == uid })
}

func cloneCards(cards []CardInstance) []CardInstance {
	if cards == nil {
		return nil
	}
	out := make([]CardInstance, len(cards))
	for i, c := range cards {
		c.Types = slices.Clone(c.Types)
		out[i] = c
	}
	return out
}
