// Package zone defines the closed set of card zones a sandbox game tracks.
package zone

import (
	"errors"
	"fmt"
)

// Zone identifies one of the eight named card containers.
type Zone int

const (
	MaterialDeck Zone = iota
	MainDeck
	Hand
	MaterialZone
	BattleZone
	Graveyard
	Banished
	Memory
)

// Count is the number of zones.
const Count = 8

// ErrUnknownZone is returned when a zone name is not one of the eight zones.
var ErrUnknownZone = errors.New("unknown zone")

// All returns every zone in declaration order.
func All() []Zone {
	return []Zone{MaterialDeck, MainDeck, Hand, MaterialZone, BattleZone, Graveyard, Banished, Memory}
}

// String returns the wire name used by clients.
func (z Zone) String() string {
	switch z {
	case MaterialDeck:
		return "materialDeck"
	case MainDeck:
		return "mainDeck"
	case Hand:
		return "hand"
	case MaterialZone:
		return "materialZone"
	case BattleZone:
		return "battleZone"
	case Graveyard:
		return "graveyard"
	case Banished:
		return "banished"
	case Memory:
		return "memory"
	default:
		return fmt.Sprintf("Zone(%d)", int(z))
	}
}

// Valid reports whether z is one of the eight zones.
func (z Zone) Valid() bool {
	return z >= MaterialDeck && z <= Memory
}

// Restable reports whether cards in the zone carry a meaningful rested flag.
// Deck zones and the graveyard are excluded.
func (z Zone) Restable() bool {
	switch z {
	case Hand, MaterialZone, BattleZone, Memory, Banished:
		return true
	default:
		return false
	}
}

// Parse resolves a wire name (camelCase or kebab-case) to a Zone.
func Parse(name string) (Zone, error) {
	switch name {
	case "materialDeck", "material-deck":
		return MaterialDeck, nil
	case "mainDeck", "main-deck":
		return MainDeck, nil
	case "hand":
		return Hand, nil
	case "materialZone", "material-zone":
		return MaterialZone, nil
	case "battleZone", "battle-zone":
		return BattleZone, nil
	case "graveyard":
		return Graveyard, nil
	case "banished":
		return Banished, nil
	case "memory":
		return Memory, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (z Zone) MarshalText() ([]byte, error) {
	if !z.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownZone, int(z))
	}
	return []byte(z.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (z *Zone) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}
