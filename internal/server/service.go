// Package server exposes sandbox tables over HTTP, WebSocket and gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/deck"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/gasandbox/sandbox-server/internal/table"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrReplayDisabled  = errors.New("replay recording is disabled")
	ErrReplayNotFound  = errors.New("replay not found")
	ErrSyncUnavailable = errors.New("catalog sync is not configured")
	ErrSyncInProgress  = errors.New("catalog sync already running")
	ErrSetRequired     = errors.New("set prefix is required")
)

// StateResponse is the wire form of a table's current state.
type StateResponse struct {
	TableID  string     `json:"table_id"`
	Seq      uint64     `json:"seq"`
	Checksum string     `json:"checksum"`
	Board    game.Board `json:"board"`
}

func stateOf(t *table.Table) StateResponse {
	s, seq := t.Session.Current()
	return StateResponse{
		TableID:  t.ID,
		Seq:      seq,
		Checksum: game.Checksum(s),
		Board:    s.Board(),
	}
}

// ReplayResponse is a window of a table's recorded frames.
type ReplayResponse struct {
	TableID   string `json:"table_id"`
	Recording bool   `json:"recording"`
	Frames    int    `json:"frames"`
	// Verified is false when a frame's board no longer matches its checksum.
	Verified    bool               `json:"verified"`
	VerifyError string             `json:"verify_error,omitempty"`
	From        int                `json:"from"`
	Window      []game.ReplayFrame `json:"window"`
}

func replayResponse(id string, recording bool, replay *game.Replay, from, count int) ReplayResponse {
	resp := ReplayResponse{
		TableID:   id,
		Recording: recording,
		Frames:    replay.Size(),
		Verified:  true,
		From:      max(from, 0),
		Window:    replay.Window(from, count),
	}
	if err := replay.Verify(); err != nil {
		resp.Verified = false
		resp.VerifyError = err.Error()
	}
	return resp
}

// SyncResponse reports a catalog sync.
type SyncResponse struct {
	Set    string `json:"set"`
	Stored int    `json:"stored"`
	Total  int    `json:"total"`
}

// Service is the transport-independent API shared by the HTTP, WebSocket and gRPC
// front ends.
type Service struct {
	tables  *table.Manager
	cards   catalog.Store
	library *deck.Library
	decoder Decoder
	logger  *zap.Logger

	api        *catalog.Client
	defaultSet string
	syncMu     sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCatalogClient enables SyncCatalog. defaultSet is used when a sync names no set.
func WithCatalogClient(client *catalog.Client, defaultSet string) ServiceOption {
	return func(s *Service) {
		s.api = client
		s.defaultSet = defaultSet
	}
}

// NewService wires the table manager to the card catalog and deck library. cards and
// library may be nil.
func NewService(tables *table.Manager, cards catalog.Store, library *deck.Library, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		tables:  tables,
		cards:   cards,
		library: library,
		decoder: Decoder{Library: library, Cards: cards},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tables returns the table manager.
func (s *Service) Tables() *table.Manager {
	return s.tables
}

// CreateTable opens a table.
func (s *Service) CreateTable(name string) (table.Info, error) {
	t, err := s.tables.Create(name)
	if err != nil {
		return table.Info{}, err
	}
	return t.Info(), nil
}

// ListTables summarizes every open table.
func (s *Service) ListTables() []table.Info {
	tables := s.tables.List()
	out := make([]table.Info, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Info())
	}
	return out
}

// RemoveTable closes a table.
func (s *Service) RemoveTable(id string) error {
	return s.tables.Remove(id)
}

// State returns a table's current state.
func (s *Service) State(id string) (StateResponse, error) {
	t, err := s.tables.Get(id)
	if err != nil {
		return StateResponse{}, err
	}
	return stateOf(t), nil
}

// Apply decodes req, dispatches it to the table's session and returns the new state.
// Commands that match nothing still succeed and leave the state as it was.
func (s *Service) Apply(ctx context.Context, id string, req CommandRequest) (StateResponse, error) {
	t, err := s.tables.Get(id)
	if err != nil {
		return StateResponse{}, err
	}
	cmd, err := s.decoder.Decode(ctx, req)
	if err != nil {
		s.logger.Debug("rejected command",
			zap.String("table_id", id),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		return StateResponse{}, err
	}
	t.Session.Dispatch(cmd)
	return stateOf(t), nil
}

// SearchCards queries the card catalog.
func (s *Service) SearchCards(ctx context.Context, q catalog.Query) ([]game.CardDefinition, error) {
	if s.cards == nil {
		return []game.CardDefinition{}, nil
	}
	return s.cards.Search(ctx, q)
}

// DeckNames lists the decks in the library.
func (s *Service) DeckNames() []string {
	if s.library == nil {
		return []string{}
	}
	return s.library.Names()
}

// Replay returns frames [from, from+count) recorded for an open table, checked against
// their checksums. A non-positive count returns every frame from from on.
func (s *Service) Replay(id string, from, count int) (ReplayResponse, error) {
	recorder := s.tables.Recorder()
	if recorder == nil {
		return ReplayResponse{}, ErrReplayDisabled
	}
	if _, err := s.tables.Get(id); err != nil {
		return ReplayResponse{}, err
	}
	replay, ok := recorder.GetReplay(id)
	if !ok {
		return ReplayResponse{}, fmt.Errorf("%w: %s", ErrReplayNotFound, id)
	}
	return replayResponse(id, recorder.IsRecording(id), replay, from, count), nil
}

// SavedReplay reads the replay a closed table left on disk.
func (s *Service) SavedReplay(id string, from, count int) (ReplayResponse, error) {
	recorder := s.tables.Recorder()
	if recorder == nil {
		return ReplayResponse{}, ErrReplayDisabled
	}
	// Table ids are UUIDs; anything else cannot name a replay file.
	if _, err := uuid.Parse(id); err != nil {
		return ReplayResponse{}, fmt.Errorf("%w: %s", ErrReplayNotFound, id)
	}
	replay, err := recorder.LoadReplay(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ReplayResponse{}, fmt.Errorf("%w: %s", ErrReplayNotFound, id)
		}
		return ReplayResponse{}, err
	}
	return replayResponse(id, false, replay, from, count), nil
}

// SyncCatalog fetches a set from the card API into the catalog. An empty set falls back
// to the configured default. Only one sync runs at a time.
func (s *Service) SyncCatalog(ctx context.Context, set string) (SyncResponse, error) {
	if s.api == nil || s.cards == nil {
		return SyncResponse{}, ErrSyncUnavailable
	}
	set = strings.TrimSpace(set)
	if set == "" {
		set = s.defaultSet
	}
	if set == "" {
		return SyncResponse{}, ErrSetRequired
	}
	if !s.syncMu.TryLock() {
		return SyncResponse{}, ErrSyncInProgress
	}
	defer s.syncMu.Unlock()

	stored, err := catalog.Sync(ctx, s.api, s.cards, set)
	if err != nil {
		return SyncResponse{}, err
	}
	total, err := s.cards.Count(ctx)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("count catalog: %w", err)
	}
	s.logger.Info("catalog synced",
		zap.String("set", set),
		zap.Int("stored", stored),
		zap.Int("total", total),
	)
	return SyncResponse{Set: set, Stored: stored, Total: total}, nil
}
