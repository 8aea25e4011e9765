package utilities

import "sync"

// Events published by the quiz services.
const (
	EventAttemptRecorded    = "attempt.recorded"
	EventAssessmentFinished = "assessment.finished"
	EventPromotionOffered   = "promotion.offered"
	EventLevelChanged       = "level.changed"
)

type EventHandler func(interface{})

type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	inflight sync.WaitGroup
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

func (eb *EventBus) Subscribe(event string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[event] = append(eb.handlers[event], handler)
}

// Publish runs every handler of event on its own goroutine. A panicking
// handler is logged and does not take the publisher down.
func (eb *EventBus) Publish(event string, data interface{}) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, handler := range eb.handlers[event] {
		eb.inflight.Add(1)
		go func(h EventHandler) {
			defer eb.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					Error("event handler panicked", "event", event, "panic", r)
				}
			}()
			h(data)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}

// Global instance
var GlobalEventBus = NewEventBus()
