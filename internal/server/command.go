package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gasandbox/sandbox-server/internal/deck"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/gasandbox/sandbox-server/internal/game/zone"
)

// Command types accepted on the wire.
const (
	CommandLoadDeck     = "load_deck"
	CommandDrawCard     = "draw_card"
	CommandDrawMaterial = "draw_material"
	CommandMoveCard     = "move_card"
	CommandToggleRest   = "toggle_rest"
)

var (
	ErrUnknownCommand = errors.New("unknown command type")
	ErrInvalidCommand = errors.New("invalid command")
)

// CommandRequest is the wire form of a game command. Which fields apply depends on Type.
type CommandRequest struct {
	Type     string                `json:"type"`
	UID      string                `json:"uid,omitempty"`
	Zone     string                `json:"zone,omitempty"`
	Material []game.CardDefinition `json:"material,omitempty"`
	Main     []game.CardDefinition `json:"main,omitempty"`
	// Deck names a deck from the library. It takes precedence over Cards, which in turn
	// takes precedence over Material and Main.
	Deck string `json:"deck,omitempty"`
	// Cards lists catalog ids; each card is sorted into the material or main deck by type.
	Cards []string `json:"cards,omitempty"`
}

// Decoder turns wire requests into engine commands. Library and Cards may be nil, in
// which case named decks and catalog id lists are rejected.
type Decoder struct {
	Library *deck.Library
	Cards   deck.CardLookup
}

// Decode validates req and builds the matching command.
func (d Decoder) Decode(ctx context.Context, req CommandRequest) (game.Command, error) {
	switch req.Type {
	case CommandLoadDeck:
		return d.loadDeck(ctx, req)
	case CommandDrawCard:
		return game.DrawCard{}, nil
	case CommandDrawMaterial:
		return game.DrawMaterial{}, nil
	case CommandMoveCard:
		if req.UID == "" {
			return nil, fmt.Errorf("%w: move_card requires uid", ErrInvalidCommand)
		}
		target, err := zone.Parse(req.Zone)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return game.MoveCard{UID: req.UID, Target: target}, nil
	case CommandToggleRest:
		if req.UID == "" {
			return nil, fmt.Errorf("%w: toggle_rest requires uid", ErrInvalidCommand)
		}
		return game.ToggleRest{UID: req.UID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Type)
	}
}

func (d Decoder) loadDeck(ctx context.Context, req CommandRequest) (game.Command, error) {
	if req.Deck != "" {
		if d.Library == nil || d.Cards == nil {
			return nil, fmt.Errorf("%w: no deck library configured", ErrInvalidCommand)
		}
		material, main, err := d.Library.Resolve(ctx, req.Deck, d.Cards)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return game.LoadDeck{Material: material, Main: main}, nil
	}

	if len(req.Cards) > 0 {
		if d.Cards == nil {
			return nil, fmt.Errorf("%w: no card catalog configured", ErrInvalidCommand)
		}
		material, main, err := deck.Build(ctx, req.Cards, d.Cards)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return game.LoadDeck{Material: material, Main: main}, nil
	}

	for _, def := range append(append([]game.CardDefinition(nil), req.Material...), req.Main...) {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	}
	if err := deck.Check(req.Material, req.Main); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return game.LoadDeck{Material: req.Material, Main: req.Main}, nil
}
