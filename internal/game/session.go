package game

import (
	"sync"
	"time"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
	"go.uber.org/zap"
)

// Session owns the single writable GameState of one sandbox game. Commands are applied
// one at a time in arrival order; readers get immutable snapshots.
type Session struct {
	id       string
	reducer  Reducer
	logger   *zap.Logger
	bus      *EventBus
	recorder *ReplayRecorder
	now      func() time.Time

	mu    sync.RWMutex
	state GameState
	seq   uint64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEventBus publishes an Event for every command that changes the state.
func WithEventBus(bus *EventBus) SessionOption {
	return func(s *Session) { s.bus = bus }
}

// WithRecorder records a replay frame after every applied command.
func WithRecorder(recorder *ReplayRecorder) SessionOption {
	return func(s *Session) { s.recorder = recorder }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session with an empty state.
func NewSession(id string, reducer Reducer, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:      id,
		reducer: reducer,
		logger:  logger.With(zap.String("session_id", id)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current state. The result is never modified by later commands.
func (s *Session) Snapshot() GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns the snapshot together with the number of commands that produced it.
func (s *Session) Current() (GameState, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.seq
}

// Seq returns the number of commands applied so far, no-ops included.
func (s *Session) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// LoadDeck discards the current game and deals the two lists.
func (s *Session) LoadDeck(material, main []CardDefinition) {
	s.Dispatch(LoadDeck{Material: material, Main: main})
}

// DrawCard draws from the main deck into the hand.
func (s *Session) DrawCard() {
	s.Dispatch(DrawCard{})
}

// DrawMaterial draws from the material deck into the material zone.
func (s *Session) DrawMaterial() {
	s.Dispatch(DrawMaterial{})
}

// MoveCard moves an instance to the tail of target.
func (s *Session) MoveCard(uid string, target zone.Zone) {
	s.Dispatch(MoveCard{UID: uid, Target: target})
}

// ToggleRest flips an instance's rested flag.
func (s *Session) ToggleRest(uid string) {
	s.Dispatch(ToggleRest{UID: uid})
}

// Dispatch applies cmd and replaces the snapshot atomically. The event is published
// after the lock is released, so concurrent dispatches may deliver events out of Seq order.
func (s *Session) Dispatch(cmd Command) {
	s.mu.Lock()
	next, outcome := s.reducer.Step(s.state, cmd)
	s.state = next
	s.seq++
	seq := s.seq
	if s.recorder != nil {
		s.recorder.Record(s.id, ReplayFrame{
			Seq:      seq,
			Command:  Describe(cmd),
			Board:    next.Board(),
			Checksum: Checksum(next),
		})
	}
	s.mu.Unlock()

	if !outcome.Changed {
		s.logger.Debug("command had no effect",
			zap.String("command", Describe(cmd)),
			zap.Uint64("seq", seq),
		)
	} else {
		s.logger.Debug("applied command",
			zap.String("command", Describe(cmd)),
			zap.Uint64("seq", seq),
			zap.Int("total_cards", next.Total()),
		)
	}

	if s.bus != nil && outcome.Changed {
		evt := Event{
			Type:      eventTypeFor(cmd),
			SessionID: s.id,
			Seq:       seq,
			UID:       outcome.UID,
			From:      outcome.From,
			To:        outcome.To,
			Timestamp: s.now(),
		}
		if card, ok := next.Instance(outcome.UID); ok {
			evt.Rested = card.Rested
		}
		s.bus.Publish(evt)
	}
}
