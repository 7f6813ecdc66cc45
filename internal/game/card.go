package game

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
)

// CardDefinition is immutable catalog data for a card.
type CardDefinition struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Types   []string `json:"types"`
	Element string   `json:"element"`
	Cost    int      `json:"cost"`
	Image   string   `json:"img"`
	Text    string   `json:"text"`
}

// Validate rejects definitions that could never come from the catalog.
func (d CardDefinition) Validate() error {
	if d.ID == "" {
		return errors.New("card definition id is required")
	}
	if d.Cost < 0 {
		return fmt.Errorf("card %s has negative cost %d", d.ID, d.Cost)
	}
	return nil
}

// HasType reports whether any type tag equals t.
func (d CardDefinition) HasType(t string) bool {
	return slices.Contains(d.Types, t)
}

// CardInstance is a definition put into play. UID and Rested survive every zone transfer.
type CardInstance struct {
	CardDefinition
	UID    string `json:"uid"`
	Rested bool   `json:"isRested"`
}

// IDSource mints instance identifiers.
type IDSource interface {
	NewID() string
}

// UUIDSource mints random v4 UUIDs.
type UUIDSource struct{}

// NewID implements IDSource.
func (UUIDSource) NewID() string {
	return uuid.NewString()
}

// SequenceSource mints prefix-1, prefix-2, ... and is safe for concurrent use.
// The counter is scoped to the source, so share one source per session.
type SequenceSource struct {
	Prefix string
	next   atomic.Uint64
}

// NewSequenceSource creates a counter-backed IDSource.
func NewSequenceSource(prefix string) *SequenceSource {
	return &SequenceSource{Prefix: prefix}
}

// NewID implements IDSource.
func (s *SequenceSource) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.next.Add(1))
}

// Instantiate puts a definition into play with a fresh uid, not rested.
func Instantiate(def CardDefinition, ids IDSource) CardInstance {
	def.Types = slices.Clone(def.Types)
	return CardInstance{
		CardDefinition: def,
		UID:            ids.NewID(),
		Rested:         false,
	}
}

func instantiateAll(defs []CardDefinition, ids IDSource) []CardInstance {
	if len(defs) == 0 {
		return nil
	}
	cards := make([]CardInstance, 0, len(defs))
	for _, def := range defs {
		cards = append(cards, Instantiate(def, ids))
	}
	return cards
}
