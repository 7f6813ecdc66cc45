package game

import (
	"fmt"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
)

// Command is one of the five sandbox operations. The set is closed: only types in
// this package implement it.
type Command interface {
	Name() string
	isCommand()
}

// LoadDeck replaces the whole state with fresh instances of the two lists.
type LoadDeck struct {
	Material []CardDefinition
	Main     []CardDefinition
}

// DrawCard draws the top of the main deck into the hand.
type DrawCard struct{}

// DrawMaterial draws the top of the material deck into the material zone.
type DrawMaterial struct{}

// MoveCard relocates an instance to the tail of Target.
type MoveCard struct {
	UID    string
	Target zone.Zone
}

// ToggleRest flips an instance's rested flag.
type ToggleRest struct {
	UID string
}

func (LoadDeck) Name() string     { return "LoadDeck" }
func (DrawCard) Name() string     { return "DrawCard" }
func (DrawMaterial) Name() string { return "DrawMaterial" }
func (MoveCard) Name() string     { return "MoveCard" }
func (ToggleRest) Name() string   { return "ToggleRest" }

func (LoadDeck) isCommand()     {}
func (DrawCard) isCommand()     {}
func (DrawMaterial) isCommand() {}
func (MoveCard) isCommand()     {}
func (ToggleRest) isCommand()   {}

// Describe renders a command for logs and replay frames.
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case LoadDeck:
		return fmt.Sprintf("LoadDeck(material=%d, main=%d)", len(c.Material), len(c.Main))
	case MoveCard:
		return fmt.Sprintf("MoveCard(%s -> %s)", c.UID, c.Target)
	case ToggleRest:
		return fmt.Sprintf("ToggleRest(%s)", c.UID)
	default:
		return cmd.Name()
	}
}

// Reducer applies commands to snapshots. It holds no game state of its own.
type Reducer struct {
	IDs      IDSource
	Shuffler Shuffler
}

// NewReducer returns a reducer minting UUIDs and shuffling from the global random source.
func NewReducer() Reducer {
	return Reducer{IDs: UUIDSource{}, Shuffler: NewRandomShuffler()}
}

// Apply returns the state that results from applying cmd to s.
func (r Reducer) Apply(s GameState, cmd Command) GameState {
	next, _ := r.Step(s, cmd)
	return next
}

// Step is Apply plus a description of what changed.
func (r Reducer) Step(s GameState, cmd Command) (GameState, Outcome) {
	switch c := cmd.(type) {
	case LoadDeck:
		return r.load(c), Outcome{Changed: true, To: zone.MainDeck}
	case DrawCard:
		return drawFrom(s, zone.MainDeck, zone.Hand)
	case DrawMaterial:
		return drawFrom(s, zone.MaterialDeck, zone.MaterialZone)
	case MoveCard:
		return moveCard(s, c.UID, c.Target)
	case ToggleRest:
		return toggleRest(s, c.UID)
	default:
		panic(fmt.Sprintf("game: unknown command %T", cmd))
	}
}

func (r Reducer) load(c LoadDeck) GameState {
	var s GameState
	s.zones[zone.MaterialDeck] = instantiateAll(c.Material, r.IDs)
	s.zones[zone.MainDeck] = shuffled(instantiateAll(c.Main, r.IDs), r.Shuffler)
	return s
}
