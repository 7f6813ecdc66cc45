package deck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/gasandbox/sandbox-server/internal/game"
	"gopkg.in/yaml.v3"
)

// ErrDeckNotFound is returned by Resolve for unknown deck names.
var ErrDeckNotFound = errors.New("deck not found")

// File is the top-level YAML structure of a deck library.
type File struct {
	Decks []Entry `yaml:"decks"`
}

// Entry is one named deck.
type Entry struct {
	Name     string      `yaml:"name"`
	Material []CardEntry `yaml:"material"`
	Main     []CardEntry `yaml:"main"`
}

// CardEntry is a card id and how many copies the deck holds.
type CardEntry struct {
	ID    string `yaml:"id"`
	Count int    `yaml:"count"`
}

// CardLookup resolves card ids to definitions.
type CardLookup interface {
	GetMany(ctx context.Context, ids []string) ([]game.CardDefinition, error)
}

// Library is a set of named decks read from YAML.
type Library struct {
	decks map[string]Entry
	order []string
}

// LoadLibrary reads a deck library from path.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLibrary(data)
}

// ParseLibrary parses a deck library document.
func ParseLibrary(data []byte) (*Library, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse deck YAML: %w", err)
	}

	lib := &Library{decks: make(map[string]Entry, len(f.Decks))}
	for _, entry := range f.Decks {
		if entry.Name == "" {
			return nil, errors.New("deck without a name")
		}
		if _, dup := lib.decks[entry.Name]; dup {
			return nil, fmt.Errorf("duplicate deck %q", entry.Name)
		}
		for _, c := range slices.Concat(entry.Material, entry.Main) {
			if c.ID == "" || c.Count <= 0 {
				return nil, fmt.Errorf("deck %q: invalid entry id=%q count=%d", entry.Name, c.ID, c.Count)
			}
		}
		lib.decks[entry.Name] = entry
		lib.order = append(lib.order, entry.Name)
	}
	return lib, nil
}

// Names returns deck names in file order.
func (l *Library) Names() []string {
	return slices.Clone(l.order)
}

// Resolve expands a deck's counts and looks up every card.
func (l *Library) Resolve(ctx context.Context, name string, cards CardLookup) (material, main []game.CardDefinition, err error) {
	entry, ok := l.decks[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrDeckNotFound, name)
	}

	material, err = cards.GetMany(ctx, expand(entry.Material))
	if err != nil {
		return nil, nil, fmt.Errorf("deck %q material: %w", name, err)
	}
	main, err = cards.GetMany(ctx, expand(entry.Main))
	if err != nil {
		return nil, nil, fmt.Errorf("deck %q main: %w", name, err)
	}
	if err := Check(material, main); err != nil {
		return nil, nil, fmt.Errorf("deck %q: %w", name, err)
	}
	return material, main, nil
}

func expand(entries []CardEntry) []string {
	var ids []string
	for _, e := range entries {
		for i := 0; i < e.Count; i++ {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
