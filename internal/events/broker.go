// Package events fans pipeline progress out to websocket clients and webhooks.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the pipeline.
const (
	TypeInstanceBound   = "instance.bound"
	TypeSolveStarted    = "solve.started"
	TypeSolveFinished   = "solve.finished"
	TypeResultPersisted = "result.persisted"
	TypeRunFailed       = "run.failed"
)

// Wildcard receives every event regardless of instance.
const Wildcard = "*"

type Event struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	RunID    string         `json:"runId,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Model    string         `json:"model,omitempty"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

// New stamps an event with an id and the current time.
func New(typ, runID, instance, model string, data map[string]any) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		RunID:    runID,
		Instance: instance,
		Model:    model,
		At:       time.Now().UTC(),
		Data:     data,
	}
}

type Publisher interface {
	Publish(topic string, evt Event)
}

type EventBroker interface {
	Publisher
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
}

// Broker is the in-process EventBroker. Slow subscribers drop events instead of
// blocking the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

// Publish delivers evt to subscribers of topic and of Wildcard.
func (b *Broker) Publish(topic string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver(topic, evt)
	if topic != Wildcard {
		b.deliver(Wildcard, evt)
	}
}

func (b *Broker) deliver(topic string, evt Event) {
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Multi publishes to several publishers, e.g. a broker and a webhook notifier.
type Multi []Publisher

func (m Multi) Publish(topic string, evt Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(topic, evt)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(string, Event) {}
