package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/deck"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/gasandbox/sandbox-server/internal/table"
	sandbox "github.com/gasandbox/sandbox-server/internal/server"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const decks = `
decks:
  - name: Duo
    material:
      - {id: champ, count: 1}
    main:
      - {id: strike, count: 2}
`

func newTools(t *testing.T) *Tools {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := catalog.NewMemoryStore()
	_, err := store.Upsert(context.Background(), []game.CardDefinition{
		{ID: "champ", Name: "Champ", Types: []string{"CHAMPION"}, Element: "NORM"},
		{ID: "strike", Name: "Strike", Types: []string{"ACTION"}, Element: "FIRE", Cost: 1},
	})
	require.NoError(t, err)
	lib, err := deck.ParseLibrary([]byte(decks))
	require.NoError(t, err)

	tables := table.NewManager(table.Options{MaxTables: 1, ShuffleSeed: 3}, logger)
	tools, err := NewTools(sandbox.NewService(tables, store, lib, logger), logger)
	require.NoError(t, err)
	return tools
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func stateOf(t *testing.T, result *mcp.CallToolResult) sandbox.StateResponse {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	var state sandbox.StateResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &state))
	return state
}

func TestToolsPlayThroughATurn(t *testing.T) {
	tools := newTools(t)
	ctx := t.Context()

	result, err := tools.handleLoadDeck(ctx, callRequest(map[string]any{"deck": "Duo"}))
	require.NoError(t, err)
	state := stateOf(t, result)
	assert.Equal(t, tools.TableID(), state.TableID)
	assert.Len(t, state.Board.MaterialDeck, 1)
	assert.Len(t, state.Board.MainDeck, 2)

	result, err = tools.handleDrawMaterial(ctx, callRequest(nil))
	require.NoError(t, err)
	champ := stateOf(t, result).Board.MaterialZone[0].UID

	result, err = tools.handleDrawCard(ctx, callRequest(nil))
	require.NoError(t, err)
	drawn := stateOf(t, result).Board.Hand[0].UID

	result, err = tools.handleMoveCard(ctx, callRequest(map[string]any{"uid": drawn, "zone": "battleZone"}))
	require.NoError(t, err)
	state = stateOf(t, result)
	assert.Empty(t, state.Board.Hand)
	require.Len(t, state.Board.BattleZone, 1)
	assert.Equal(t, drawn, state.Board.BattleZone[0].UID)

	result, err = tools.handleToggleRest(ctx, callRequest(map[string]any{"uid": champ}))
	require.NoError(t, err)
	assert.True(t, stateOf(t, result).Board.MaterialZone[0].Rested)

	result, err = tools.handleGetState(ctx, callRequest(nil))
	require.NoError(t, err)
	state = stateOf(t, result)
	assert.Equal(t, uint64(5), state.Seq)
	assert.Len(t, state.Board.MainDeck, 1)
}

func TestToolsRejectBadArguments(t *testing.T) {
	tools := newTools(t)
	ctx := t.Context()

	cases := map[string]func() (*mcp.CallToolResult, error){
		"unknown zone": func() (*mcp.CallToolResult, error) {
			return tools.handleMoveCard(ctx, callRequest(map[string]any{"uid": "u", "zone": "exile"}))
		},
		"missing zone": func() (*mcp.CallToolResult, error) {
			return tools.handleMoveCard(ctx, callRequest(map[string]any{"uid": "u"}))
		},
		"missing uid": func() (*mcp.CallToolResult, error) {
			return tools.handleToggleRest(ctx, callRequest(nil))
		},
		"unknown deck": func() (*mcp.CallToolResult, error) {
			return tools.handleLoadDeck(ctx, callRequest(map[string]any{"deck": "Nope"}))
		},
		"missing deck": func() (*mcp.CallToolResult, error) {
			return tools.handleLoadDeck(ctx, callRequest(nil))
		},
		"blank cards": func() (*mcp.CallToolResult, error) {
			return tools.handleLoadDeck(ctx, callRequest(map[string]any{"cards": " , "}))
		},
		"unknown card": func() (*mcp.CallToolResult, error) {
			return tools.handleLoadDeck(ctx, callRequest(map[string]any{"cards": "strike,ghost"}))
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := call()
			require.NoError(t, err)
			assert.True(t, result.IsError, resultText(t, result))
		})
	}

	result, err := tools.handleGetState(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Zero(t, stateOf(t, result).Seq, "rejected commands never reach the table")
}

func TestToolsLoadDeckFromCardIDs(t *testing.T) {
	tools := newTools(t)

	result, err := tools.handleLoadDeck(t.Context(), callRequest(map[string]any{"cards": "strike, champ strike,strike"}))
	require.NoError(t, err)
	state := stateOf(t, result)
	require.Len(t, state.Board.MaterialDeck, 1)
	assert.Equal(t, "champ", state.Board.MaterialDeck[0].ID)
	assert.Len(t, state.Board.MainDeck, 3)
	assert.Equal(t, uint64(1), state.Seq)
}

func TestToolsStaleUIDIsNoOp(t *testing.T) {
	tools := newTools(t)

	result, err := tools.handleMoveCard(t.Context(), callRequest(map[string]any{"uid": "stale", "zone": "hand"}))
	require.NoError(t, err)
	state := stateOf(t, result)
	assert.Equal(t, uint64(1), state.Seq)
	assert.Empty(t, state.Board.Hand)
}

func TestToolsListDecks(t *testing.T) {
	tools := newTools(t)

	result, err := tools.handleListDecks(t.Context(), callRequest(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"decks":["Duo"]}`, resultText(t, result))
}

func TestRegisterAddsEveryTool(t *testing.T) {
	tools := newTools(t)
	s := server.NewMCPServer("sandbox-test", "0.0.0", server.WithToolCapabilities(false))
	tools.Register(s)

	resp := s.HandleMessage(t.Context(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var listed struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &listed))
	names := make([]string, 0, len(listed.Result.Tools))
	for _, tool := range listed.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"load_deck", "draw_card", "draw_material", "move_card", "toggle_rest", "get_state", "list_decks",
	}, names)
}

func TestNewToolsNeedsAFreeTable(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tables := table.NewManager(table.Options{MaxTables: 1}, logger)
	_, err := tables.Create("taken")
	require.NoError(t, err)

	_, err = NewTools(sandbox.NewService(tables, nil, nil, logger), logger)
	assert.ErrorIs(t, err, table.ErrTooManyTables)
}
