// Package deck assembles material and main lists for loading into a game.
package deck

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gasandbox/sandbox-server/internal/game"
)

const (
	MaxMaterial = 12
	MaxMain     = 60
)

var (
	ErrMaterialFull = errors.New("material deck full")
	ErrMainFull     = errors.New("main deck full")
	ErrEmptyDeck    = errors.New("deck is empty")
)

// IsMaterial reports whether def belongs in the material deck: any type tag containing
// CHAMPION or REGALIA.
func IsMaterial(def game.CardDefinition) bool {
	return slices.ContainsFunc(def.Types, func(t string) bool {
		return strings.Contains(t, "CHAMPION") || strings.Contains(t, "REGALIA")
	})
}

// Check validates a pair of lists against the deck limits.
func Check(material, main []game.CardDefinition) error {
	if len(material) == 0 && len(main) == 0 {
		return ErrEmptyDeck
	}
	if len(material) > MaxMaterial {
		return fmt.Errorf("%w: %d cards, limit %d", ErrMaterialFull, len(material), MaxMaterial)
	}
	if len(main) > MaxMain {
		return fmt.Errorf("%w: %d cards, limit %d", ErrMainFull, len(main), MaxMain)
	}
	return nil
}

// Builder accumulates a deck one card at a time. The zero value is ready to use.
type Builder struct {
	material []game.CardDefinition
	main     []game.CardDefinition
}

// Add routes def to the material or main list.
func (b *Builder) Add(def game.CardDefinition) error {
	if IsMaterial(def) {
		if len(b.material) >= MaxMaterial {
			return ErrMaterialFull
		}
		b.material = append(b.material, def)
		return nil
	}
	if len(b.main) >= MaxMain {
		return ErrMainFull
	}
	b.main = append(b.main, def)
	return nil
}

// Lists returns copies of the material and main lists.
func (b *Builder) Lists() (material, main []game.CardDefinition) {
	return slices.Clone(b.material), slices.Clone(b.main)
}

// Validate checks the builder's lists with Check.
func (b *Builder) Validate() error {
	return Check(b.material, b.main)
}

// Build looks up ids in order and sorts each card into the material or main list. An id
// may repeat to add several copies.
func Build(ctx context.Context, ids []string, cards CardLookup) (material, main []game.CardDefinition, err error) {
	if len(ids) == 0 {
		return nil, nil, ErrEmptyDeck
	}
	defs, err := cards.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("look up cards: %w", err)
	}
	var b Builder
	for _, def := range defs {
		if err := b.Add(def); err != nil {
			return nil, nil, fmt.Errorf("add %s: %w", def.ID, err)
		}
	}
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	material, main = b.Lists()
	return material, main, nil
}
