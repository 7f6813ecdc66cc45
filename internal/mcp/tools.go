// Package mcp exposes a single sandbox table as MCP tools so an assistant can play
// solitaire against the same engine the HTTP and WebSocket fronts use.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sandbox "github.com/gasandbox/sandbox-server/internal/server"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Tools binds the MCP tool handlers to one table of a service.
type Tools struct {
	svc     *sandbox.Service
	tableID string
	logger  *zap.Logger
}

// NewTools creates the table the tools operate on.
func NewTools(svc *sandbox.Service, logger *zap.Logger) (*Tools, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := svc.CreateTable("mcp")
	if err != nil {
		return nil, fmt.Errorf("create mcp table: %w", err)
	}
	return &Tools{svc: svc, tableID: info.ID, logger: logger.With(zap.String("table_id", info.ID))}, nil
}

// TableID returns the id of the table behind the tools.
func (t *Tools) TableID() string {
	return t.tableID
}

// Register adds every tool to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(loadDeckTool(), t.handleLoadDeck)
	s.AddTool(drawCardTool(), t.handleDrawCard)
	s.AddTool(drawMaterialTool(), t.handleDrawMaterial)
	s.AddTool(moveCardTool(), t.handleMoveCard)
	s.AddTool(toggleRestTool(), t.handleToggleRest)
	s.AddTool(getStateTool(), t.handleGetState)
	s.AddTool(listDecksTool(), t.handleListDecks)
}

// --- Tool definitions ---

func loadDeckTool() mcp.Tool {
	return mcp.NewTool("load_deck",
		mcp.WithDescription("Discard the current game and deal a deck, either a named deck from the library "+
			"or a list of catalog card ids. Material cards go to the material deck in list order; the main deck is shuffled."),
		mcp.WithString("deck", mcp.Description("Deck name as returned by list_decks")),
		mcp.WithString("cards", mcp.Description("Catalog card ids separated by commas or spaces; repeat an id for extra copies. Used when deck is empty")),
	)
}

func drawCardTool() mcp.Tool {
	return mcp.NewTool("draw_card",
		mcp.WithDescription("Draw the top card of the main deck into the hand. Does nothing when the deck is empty."),
	)
}

func drawMaterialTool() mcp.Tool {
	return mcp.NewTool("draw_material",
		mcp.WithDescription("Move the top card of the material deck into the material zone."),
	)
}

func moveCardTool() mcp.Tool {
	return mcp.NewTool("move_card",
		mcp.WithDescription("Move a card instance to the end of another zone. Unknown uids are ignored."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Instance uid from the board")),
		mcp.WithString("zone", mcp.Required(), mcp.Description(
			"Target zone: materialDeck, mainDeck, hand, materialZone, battleZone, graveyard, banished or memory")),
	)
}

func toggleRestTool() mcp.Tool {
	return mcp.NewTool("toggle_rest",
		mcp.WithDescription("Flip the rested flag of a card in the hand, material zone, battle zone, memory or banishment."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Instance uid from the board")),
	)
}

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Get the current board without changing it. Read-only."),
	)
}

func listDecksTool() mcp.Tool {
	return mcp.NewTool("list_decks",
		mcp.WithDescription("List the deck names load_deck accepts."),
	)
}

// --- Tool handlers ---

func (t *Tools) handleLoadDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("deck", "")
	ids := strings.FieldsFunc(request.GetString("cards", ""), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	if name == "" && len(ids) == 0 {
		return mcp.NewToolResultError("deck or cards is required"), nil
	}
	return t.apply(ctx, sandbox.CommandRequest{Type: sandbox.CommandLoadDeck, Deck: name, Cards: ids})
}

func (t *Tools) handleDrawCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.apply(ctx, sandbox.CommandRequest{Type: sandbox.CommandDrawCard})
}

func (t *Tools) handleDrawMaterial(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.apply(ctx, sandbox.CommandRequest{Type: sandbox.CommandDrawMaterial})
}

func (t *Tools) handleMoveCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := request.GetString("uid", "")
	zoneName := request.GetString("zone", "")
	if uid == "" || zoneName == "" {
		return mcp.NewToolResultError("uid and zone are required"), nil
	}
	return t.apply(ctx, sandbox.CommandRequest{Type: sandbox.CommandMoveCard, UID: uid, Zone: zoneName})
}

func (t *Tools) handleToggleRest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := request.GetString("uid", "")
	if uid == "" {
		return mcp.NewToolResultError("uid is required"), nil
	}
	return t.apply(ctx, sandbox.CommandRequest{Type: sandbox.CommandToggleRest, UID: uid})
}

func (t *Tools) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := t.svc.State(t.tableID)
	if err != nil {
		return mcp.NewToolResultErrorf("Failed to read state: %v", err), nil
	}
	return respondJSON(state)
}

func (t *Tools) handleListDecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respondJSON(map[string][]string{"decks": t.svc.DeckNames()})
}

func (t *Tools) apply(ctx context.Context, req sandbox.CommandRequest) (*mcp.CallToolResult, error) {
	state, err := t.svc.Apply(ctx, t.tableID, req)
	if err != nil {
		t.logger.Debug("rejected mcp command", zap.String("type", req.Type), zap.Error(err))
		return mcp.NewToolResultErrorf("Command %s rejected: %v", req.Type, err), nil
	}
	return respondJSON(state)
}

func respondJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
