package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSplitSets(t *testing.T) {
	assert.Equal(t, []string{"DOASD"}, splitSets("", "DOASD"))
	assert.Equal(t, []string{"ALC", "MRC"}, splitSets(" ALC, ,MRC ", "DOASD"))
}

func TestRunImportsIntoSQLite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			_ = json.NewEncoder(w).Encode([]any{})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"uuid": "a1", "name": "Lorraine", "types": []string{"CHAMPION"}, "element": "NORM"},
			{"uuid": "b2", "name": "Spark", "types": []string{"ACTION"}, "element": "FIRE", "stats": map[string]int{"cost_memory": 1}},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Catalog.Driver = "sqlite"
	cfg.Catalog.DSN = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Catalog.API.BaseURL = srv.URL
	cfg.Catalog.API.PageDelay = 0

	require.NoError(t, run(t.Context(), cfg, []string{"DOASD"}, zaptest.NewLogger(t)))

	store, err := catalog.OpenSQLite(cfg.Catalog.DSN)
	require.NoError(t, err)
	defer store.Close()
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunRefusesMemoryCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Driver = "memory"
	assert.Error(t, run(t.Context(), cfg, []string{"DOASD"}, zaptest.NewLogger(t)))
}
