package webhooks

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
)

// Subscription is one configured receiver. An empty Events list means result.persisted only.
type Subscription struct {
	URL    string   `yaml:"url"`
	Secret string   `yaml:"secret"`
	Events []string `yaml:"events"`
}

func (s Subscription) wants(eventType string) bool {
	if len(s.Events) == 0 {
		return eventType == events.TypeResultPersisted
	}
	for _, e := range s.Events {
		if e == eventType || e == events.Wildcard {
			return true
		}
	}
	return false
}

// Delivery is one pending POST of an event to a subscription.
type Delivery struct {
	ID        string
	URL       string
	Secret    string
	EventType string
	Payload   []byte
	Attempts  int
	NextAt    time.Time
}

// Queue holds pending deliveries in memory. Deliveries are lost on restart.
type Queue struct {
	mu    sync.Mutex
	items []*Delivery
}

func (q *Queue) Enqueue(d *Delivery) {
	q.mu.Lock()
	q.items = append(q.items, d)
	q.mu.Unlock()
}

// Due removes and returns up to limit deliveries whose NextAt has passed.
func (q *Queue) Due(now time.Time, limit int) []*Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*Delivery
	kept := q.items[:0]
	for _, d := range q.items {
		if len(due) < limit && !d.NextAt.After(now) {
			due = append(due, d)
			continue
		}
		kept = append(kept, d)
	}
	q.items = kept
	return due
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notifier turns published events into queued deliveries. It implements events.Publisher.
type Notifier struct {
	Subs  []Subscription
	Queue *Queue
	Log   *zap.Logger
}

func NewNotifier(subs []Subscription, q *Queue, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{Subs: subs, Queue: q, Log: log}
}

func (n *Notifier) Publish(topic string, evt events.Event) {
	var body []byte
	for _, s := range n.Subs {
		if !s.wants(evt.Type) {
			continue
		}
		if body == nil {
			var err error
			if body, err = json.Marshal(evt); err != nil {
				n.Log.Warn("encode webhook payload", zap.String("type", evt.Type), zap.Error(err))
				return
			}
		}
		n.Queue.Enqueue(&Delivery{
			ID:        uuid.NewString(),
			URL:       s.URL,
			Secret:    s.Secret,
			EventType: evt.Type,
			Payload:   body,
			NextAt:    time.Now(),
		})
	}
}
