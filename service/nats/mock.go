package nats

import (
	"context"
	"sync"
)

// MockPublisher records trade events in memory instead of sending them to NATS.
type MockPublisher struct {
	mu     sync.Mutex
	events []TradeEvent
	err    error
	closed bool
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishTrade stores a copy of event, or fails with the error set by SetPublishError.
func (m *MockPublisher) PublishTrade(ctx context.Context, event *TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Events returns the recorded events in publish order.
func (m *MockPublisher) Events() []TradeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeEvent(nil), m.events...)
}

// EventsOfType returns the recorded events of one lifecycle stage.
func (m *MockPublisher) EventsOfType(eventType string) []TradeEvent {
	var out []TradeEvent
	for _, e := range m.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
