package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventScenarioGenerated EventType = "SCENARIO_GENERATED"
	EventAttemptSubmitted  EventType = "ATTEMPT_SUBMITTED"
	EventAnalysisRun       EventType = "ANALYSIS_RUN"
	EventPatienceSignal    EventType = "PATIENCE_SIGNAL"
	EventPlaybackStarted   EventType = "PLAYBACK_STARTED"
	EventPlaybackFinished  EventType = "PLAYBACK_FINISHED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishScenarioGenerated publishes a scenario generated event
func (eb *EventBus) PublishScenarioGenerated(scenarioID, setupType, difficulty string, barCount int) {
	eb.Publish(Event{
		Type: EventScenarioGenerated,
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
			"setup_type":  setupType,
			"difficulty":  difficulty,
			"bar_count":   barCount,
		},
	})
}

// PublishAttemptSubmitted publishes an attempt submitted event
func (eb *EventBus) PublishAttemptSubmitted(scenarioID, userID, action string, correct bool) {
	eb.Publish(Event{
		Type: EventAttemptSubmitted,
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
			"user_id":     userID,
			"action":      action,
			"correct":     correct,
		},
	})
}

// PublishAnalysisRun publishes an analysis run event
func (eb *EventBus) PublishAnalysisRun(kind string, barCount int, durationMs int64) {
	eb.Publish(Event{
		Type: EventAnalysisRun,
		Data: map[string]interface{}{
			"kind":        kind,
			"bar_count":   barCount,
			"duration_ms": durationMs,
		},
	})
}

// PublishPatienceSignal publishes a patience signal event
func (eb *EventBus) PublishPatienceSignal(pattern, level string, confidence float64) {
	eb.Publish(Event{
		Type: EventPatienceSignal,
		Data: map[string]interface{}{
			"pattern":    pattern,
			"level":      level,
			"confidence": confidence,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
