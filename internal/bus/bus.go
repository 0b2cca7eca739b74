// Package bus provides an in-process event bus for avatar lifecycle events.
package bus

import (
	"sync"
	"time"
)

// EventType identifies different event types
type EventType string

const (
	// Turn boundary events
	EventTypeTurnReceived EventType = "turn.received"
	EventTypeReset        EventType = "turn.reset"

	// Speech playback events
	EventTypeSpeakingStarted EventType = "speech.started"
	EventTypeSpeakingStopped EventType = "speech.stopped"

	// Avatar events
	EventTypeEmotionChanged   EventType = "avatar.emotion_changed"
	EventTypeUnknownEmotion   EventType = "avatar.unknown_emotion"
	EventTypeOverrideStarted  EventType = "avatar.override_started"
	EventTypeOverrideEnded    EventType = "avatar.override_ended"
	EventTypeTuningChanged    EventType = "avatar.tuning_changed"
	EventTypeMissingModelPart EventType = "avatar.missing_model_part"

	// Interaction effect events
	EventTypeHeadTap        EventType = "interaction.head_tap"
	EventTypeEffectFinished EventType = "interaction.effect_finished"

	// Feed connection events
	EventTypeFeedConnected    EventType = "feed.connected"
	EventTypeFeedDisconnected EventType = "feed.disconnected"
)

// Event represents a bus event. Time is stamped on publish when zero.
type Event struct {
	Type EventType
	Time time.Time
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Publish delivers an event to every handler on its own goroutine, so a
// slow subscriber never stalls the frame loop.
func (b *EventBus) Publish(event Event) {
	event = stamp(event)
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	event = stamp(event)
	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

func stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
