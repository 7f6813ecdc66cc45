package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/table"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a full deck of definitions fits comfortably.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type createTableRequest struct {
	Name string `json:"name"`
}

type syncRequest struct {
	Set string `json:"set"`
}

// NewHTTPHandler builds the REST API. When hub is non-nil its endpoint is mounted at /ws.
func NewHTTPHandler(svc *Service, hub *Hub, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &httpAPI{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("POST /api/tables", h.createTable)
	mux.HandleFunc("GET /api/tables", h.listTables)
	mux.HandleFunc("GET /api/tables/{id}/state", h.getState)
	mux.HandleFunc("POST /api/tables/{id}/commands", h.applyCommand)
	mux.HandleFunc("DELETE /api/tables/{id}", h.removeTable)
	mux.HandleFunc("GET /api/tables/{id}/replay", h.tableReplay)
	mux.HandleFunc("GET /api/replays/{id}", h.savedReplay)
	mux.HandleFunc("GET /api/cards", h.searchCards)
	mux.HandleFunc("POST /api/catalog/sync", h.syncCatalog)
	mux.HandleFunc("GET /api/decks", h.listDecks)
	if hub != nil {
		mux.Handle("GET /ws", hub)
	}
	return requestLogger(logger, mux)
}

type httpAPI struct {
	svc    *Service
	logger *zap.Logger
}

func (h *httpAPI) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tables": h.svc.Tables().Count(),
	})
}

func (h *httpAPI) createTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := h.svc.CreateTable(req.Name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *httpAPI) listTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListTables())
}

func (h *httpAPI) getState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.State(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *httpAPI) applyCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := h.svc.Apply(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *httpAPI) removeTable(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveTable(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpAPI) tableReplay(w http.ResponseWriter, r *http.Request) {
	from, count, err := windowParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	replay, err := h.svc.Replay(r.PathValue("id"), from, count)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, replay)
}

func (h *httpAPI) savedReplay(w http.ResponseWriter, r *http.Request) {
	from, count, err := windowParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	replay, err := h.svc.SavedReplay(r.PathValue("id"), from, count)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("load replay failed", zap.String("table_id", r.PathValue("id")), zap.Error(err))
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, replay)
}

func (h *httpAPI) searchCards(w http.ResponseWriter, r *http.Request) {
	q := catalog.Query{Name: r.URL.Query().Get("q")}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q.Limit = limit
	cards, err := h.svc.SearchCards(r.Context(), q)
	if err != nil {
		h.logger.Error("card search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("card search failed"))
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *httpAPI) syncCatalog(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := h.svc.SyncCatalog(r.Context(), req.Set)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("catalog sync failed", zap.String("set", req.Set), zap.Error(err))
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *httpAPI) listDecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.DeckNames())
}

// intParam reads an optional integer query parameter; absent means zero.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func windowParams(r *http.Request) (from, count int, err error) {
	if from, err = intParam(r, "from"); err != nil {
		return 0, 0, err
	}
	if count, err = intParam(r, "count"); err != nil {
		return 0, 0, err
	}
	return from, count, nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, table.ErrNotFound), errors.Is(err, ErrReplayNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrTooManyTables), errors.Is(err, ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrSetRequired):
		return http.StatusBadRequest
	case errors.Is(err, ErrReplayDisabled), errors.Is(err, ErrSyncUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
