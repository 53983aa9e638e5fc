package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// EventType tags the record carried by an Event.
type EventType string

const (
	EventDecision EventType = "decision"
	EventAudit    EventType = "audit"

	// EventResync tells a subscriber that buffered events were dropped and
	// it should reload current state.
	EventResync EventType = "resync"
)

// Event is one published state change.
type Event struct {
	Type       EventType `json:"type"`
	Sequence   uint64    `json:"sequence"`
	DecisionID string    `json:"decision_id,omitempty"`
	Record     any       `json:"record,omitempty"`

	// Dropped is set on resync events only.
	Dropped int `json:"dropped,omitempty"`
}

// Publisher is the publish side of the Broadcaster.
type Publisher interface {
	PublishDecision(d *moderation.Decision)
	PublishAudit(e *audit.Entry)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) PublishDecision(*moderation.Decision) {}
func (discard) PublishAudit(*audit.Entry)            {}

// DefaultBufferSize is the per-subscriber queue length used when none is configured.
const DefaultBufferSize = 256

// Broadcaster fans events out to subscribers. Publishing never blocks: each
// subscriber has a bounded queue and a full queue drops its oldest event.
type Broadcaster struct {
	bufferSize int
	metrics    *metrics.Collector
	logger     *slog.Logger

	mu       sync.Mutex
	sequence uint64
	subs     map[string]*Subscription
	closed   bool
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithMetrics records publish and drop counts on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(b *Broadcaster) { b.metrics = collector }
}

// New creates a Broadcaster whose subscribers buffer up to bufferSize events.
func New(bufferSize int, opts ...Option) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &Broadcaster{
		bufferSize: bufferSize,
		logger:     slog.Default().With("component", "broadcast"),
		subs:       make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PublishDecision publishes a snapshot of d.
func (b *Broadcaster) PublishDecision(d *moderation.Decision) {
	if d == nil {
		return
	}
	b.Publish(Event{Type: EventDecision, DecisionID: d.ID, Record: d.Clone()})
}

// PublishAudit publishes a snapshot of e.
func (b *Broadcaster) PublishAudit(e *audit.Entry) {
	if e == nil {
		return
	}
	b.Publish(Event{Type: EventAudit, DecisionID: e.DecisionID, Record: e.Clone()})
}

// Publish assigns the next sequence number to event and queues it for every
// subscriber. Subscribers see events in sequence order.
func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.sequence++
	event.Sequence = b.sequence

	dropped := 0
	for _, sub := range b.subs {
		if sub.deliver(event) {
			dropped++
		}
	}

	b.metrics.RecordBroadcastEvent(string(event.Type))
	if dropped > 0 {
		b.metrics.RecordBroadcastDropped(dropped)
		b.logger.Debug("subscriber queues overflowed",
			"sequence", event.Sequence,
			"subscribers", dropped,
		)
	}
}

// Subscribe registers a new subscriber. The caller must Close it.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id:       uuid.NewString(),
		owner:    b,
		capacity: b.bufferSize,
		queue:    make([]Event, 0, b.bufferSize),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	b.metrics.SetBroadcastSubscribers(len(b.subs))
	b.logger.Debug("subscriber added", "subscriber_id", sub.id, "subscribers", len(b.subs))

	return sub
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Sequence returns the sequence number of the last published event.
func (b *Broadcaster) Sequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sequence
}

// Close closes every subscription. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
	b.metrics.SetBroadcastSubscribers(0)
}

func (b *Broadcaster) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	b.metrics.SetBroadcastSubscribers(len(b.subs))
	b.logger.Debug("subscriber removed", "subscriber_id", id, "subscribers", len(b.subs))
}
