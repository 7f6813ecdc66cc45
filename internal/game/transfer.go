package game

import (
	"slices"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
)

// searchOrder is the fixed order in which zones are scanned for an instance.
var searchOrder = [zone.Count]zone.Zone{
	zone.Hand,
	zone.MaterialZone,
	zone.BattleZone,
	zone.Graveyard,
	zone.Banished,
	zone.Memory,
	zone.MaterialDeck,
	zone.MainDeck,
}

// Outcome describes what a transition did. Changed is false for no-ops.
type Outcome struct {
	Changed bool
	UID     string
	From    zone.Zone
	To      zone.Zone
}

// removeInstance excises uid from the first zone containing it. ok is false when no zone does.
func removeInstance(s GameState, uid string) (card CardInstance, next GameState, from zone.Zone, ok bool) {
	for _, z := range searchOrder {
		cards := s.zones[z]
		i := indexOf(cards, uid)
		if i < 0 {
			continue
		}
		card = cards[i]
		rest := make([]CardInstance, 0, len(cards)-1)
		rest = append(rest, cards[:i]...)
		rest = append(rest, cards[i+1:]...)
		return card, s.with(z, rest), z, true
	}
	return CardInstance{}, s, 0, false
}

// appendCard returns a new slice with c at the tail; cards is left untouched.
func appendCard(cards []CardInstance, c CardInstance) []CardInstance {
	out := make([]CardInstance, 0, len(cards)+1)
	out = append(out, cards...)
	return append(out, c)
}

func moveCard(s GameState, uid string, target zone.Zone) (GameState, Outcome) {
	if !target.Valid() {
		panic("game: move to invalid zone " + target.String())
	}
	card, next, from, ok := removeInstance(s, uid)
	if !ok {
		return s, Outcome{UID: uid, To: target}
	}
	next = next.with(target, appendCard(next.zones[target], card))
	return next, Outcome{Changed: true, UID: uid, From: from, To: target}
}

func drawFrom(s GameState, from, to zone.Zone) (GameState, Outcome) {
	deck := s.zones[from]
	if len(deck) == 0 {
		return s, Outcome{From: from, To: to}
	}
	top := deck[0]
	next := s.with(from, slices.Clone(deck[1:]))
	next = next.with(to, appendCard(next.zones[to], top))
	return next, Outcome{Changed: true, UID: top.UID, From: from, To: to}
}

func toggleRest(s GameState, uid string) (GameState, Outcome) {
	for _, z := range searchOrder {
		if !z.Restable() {
			continue
		}
		cards := s.zones[z]
		i := indexOf(cards, uid)
		if i < 0 {
			continue
		}
		flipped := slices.Clone(cards)
		flipped[i].Rested = !flipped[i].Rested
		return s.with(z, flipped), Outcome{Changed: true, UID: uid, From: z, To: z}
	}
	return s, Outcome{UID: uid}
}

// Move moves the instance to the tail of target. Unknown uids leave the state unchanged.
// An invalid target zone panics.
func Move(s GameState, uid string, target zone.Zone) GameState {
	next, _ := moveCard(s, uid, target)
	return next
}

// Draw moves the top of the main deck to the tail of the hand.
func Draw(s GameState) GameState {
	next, _ := drawFrom(s, zone.MainDeck, zone.Hand)
	return next
}

// PlaceMaterial moves the top of the material deck to the tail of the material zone.
func PlaceMaterial(s GameState) GameState {
	next, _ := drawFrom(s, zone.MaterialDeck, zone.MaterialZone)
	return next
}

// FlipRest flips the rested flag of an instance in a restable zone, keeping its position.
func FlipRest(s GameState, uid string) GameState {
	next, _ := toggleRest(s, uid)
	return next
}
