package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReplayFrame is the state of a session right after one command.
type ReplayFrame struct {
	Seq      uint64 `json:"seq"`
	Command  string `json:"command"`
	Board    Board  `json:"board"`
	Checksum string `json:"checksum"`
}

func (f ReplayFrame) clone() ReplayFrame {
	f.Board = cloneBoard(f.Board)
	return f
}

// Replay is an ordered record of frames for one session.
type Replay struct {
	SessionID string
	Frames    []ReplayFrame
	mu        sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(sessionID string) *Replay {
	return &Replay{
		SessionID: sessionID,
		Frames:    make([]ReplayFrame, 0),
	}
}

// Record appends a frame.
func (r *Replay) Record(frame ReplayFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Frames = append(r.Frames, frame)
}

// Window returns copies of up to count frames starting at index from. A non-positive
// count means every frame from there on.
func (r *Replay) Window(from, count int) []ReplayFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from = max(from, 0)
	if from >= len(r.Frames) {
		return []ReplayFrame{}
	}
	end := len(r.Frames)
	if count > 0 {
		end = min(end, from+count)
	}
	out := make([]ReplayFrame, 0, end-from)
	for _, f := range r.Frames[from:end] {
		out = append(out, f.clone())
	}
	return out
}

// Size returns the number of recorded frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Frames)
}

// Verify rebuilds every frame's state and checks it against the recorded checksum.
func (r *Replay) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, frame := range r.Frames {
		state, err := NewGameState(frame.Board)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if got := Checksum(state); got != frame.Checksum {
			return fmt.Errorf("frame %d: checksum mismatch: recorded=%s computed=%s", i, frame.Checksum, got)
		}
	}
	return nil
}

type replayMetadata struct {
	SessionID  string
	Timestamp  time.Time
	Version    int
	FrameCount int
}

// SaveToFile writes the replay to {directory}/{session}.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", r.SessionID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		SessionID:  r.SessionID,
		Timestamp:  time.Now(),
		Version:    1,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range r.Frames {
		if err := encoder.Encode(&r.Frames[i]); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}

	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, sessionID string) (*Replay, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", sessionID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.SessionID)
	for i := 0; i < metadata.FrameCount; i++ {
		var frame ReplayFrame
		if err := decoder.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, frame)
	}

	return replay, nil
}

// ReplayRecorder keeps replays for sessions that have recording enabled.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a recorder that saves into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins a fresh replay for the session.
func (rr *ReplayRecorder) StartRecording(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[sessionID] = NewReplay(sessionID)
	rr.enabled[sessionID] = true

	if rr.logger != nil {
		rr.logger.Info("started replay recording", zap.String("session_id", sessionID))
	}
}

// Record appends a frame if recording is enabled for the session.
func (rr *ReplayRecorder) Record(sessionID string, frame ReplayFrame) {
	rr.mu.RLock()
	enabled := rr.enabled[sessionID]
	replay := rr.replays[sessionID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}

	replay.Record(frame)

	if rr.logger != nil {
		rr.logger.Debug("recorded replay frame",
			zap.String("session_id", sessionID),
			zap.Uint64("seq", frame.Seq),
			zap.Int("frame_count", replay.Size()),
		)
	}
}

// GetReplay returns the in-memory replay for a session.
func (rr *ReplayRecorder) GetReplay(sessionID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, exists := rr.replays[sessionID]
	return replay, exists
}

// SaveReplay writes the replay to disk and forgets it.
func (rr *ReplayRecorder) SaveReplay(sessionID string) error {
	rr.mu.Lock()
	replay, exists := rr.replays[sessionID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for session %s", sessionID)
	}
	delete(rr.replays, sessionID)
	delete(rr.enabled, sessionID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("session_id", sessionID),
			zap.Int("frame_count", replay.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(sessionID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(rr.saveDir, sessionID)
	if err != nil {
		return nil, err
	}

	if rr.logger != nil {
		rr.logger.Info("loaded replay from disk",
			zap.String("session_id", sessionID),
			zap.Int("frame_count", replay.Size()),
		)
	}
	return replay, nil
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, sessionID)
	delete(rr.enabled, sessionID)

	if rr.logger != nil {
		rr.logger.Debug("cleared replay from memory", zap.String("session_id", sessionID))
	}
}

// IsRecording reports whether recording is enabled for a session.
func (rr *ReplayRecorder) IsRecording(sessionID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.enabled[sessionID]
}
