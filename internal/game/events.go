package game

import (
	"sync"
	"time"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
)

// EventType indicates what kind of state change a session applied.
type EventType string

const (
	EventDeckLoaded    EventType = "DECK_LOADED"
	EventCardDrawn     EventType = "CARD_DRAWN"
	EventMaterialDrawn EventType = "MATERIAL_DRAWN"
	EventCardMoved     EventType = "CARD_MOVED"
	EventRestToggled   EventType = "REST_TOGGLED"
)

// eventTypeFor maps a command to the event it produces when it changes the state.
func eventTypeFor(cmd Command) EventType {
	switch cmd.(type) {
	case LoadDeck:
		return EventDeckLoaded
	case DrawCard:
		return EventCardDrawn
	case DrawMaterial:
		return EventMaterialDrawn
	case MoveCard:
		return EventCardMoved
	default:
		return EventRestToggled
	}
}

// Event reports a state change applied by a session.
type Event struct {
	Type      EventType
	SessionID string
	Seq       uint64 // Number of commands applied when the event fired
	UID       string
	From      zone.Zone
	To        zone.Zone
	Rested    bool
	Timestamp time.Time
}

// Listener reacts to events.
type Listener func(Event)

// EventBus is a synchronous publish/subscribe hub.
//
// Sessions publish after releasing their own lock, so when commands on one session run
// concurrently a listener may observe their events out of Seq order. Listeners that
// care about ordering must compare Seq themselves.
type EventBus struct {
	mu         sync.RWMutex
	listeners  map[int]Listener
	nextHandle int
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener for all events and returns its handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
}

// Publish delivers the event synchronously. Listeners run outside the bus lock, so they
// may subscribe or unsubscribe.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	targets := make([]Listener, 0, len(bus.listeners))
	for _, listener := range bus.listeners {
		targets = append(targets, listener)
	}
	bus.mu.RUnlock()

	for _, listener := range targets {
		listener(event)
	}
}
