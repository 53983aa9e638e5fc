package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next once the subscription is closed and drained.
var ErrClosed = errors.New("subscription closed")

// Subscription is one subscriber's bounded view of the event stream.
type Subscription struct {
	id       string
	owner    *Broadcaster
	capacity int

	mu      sync.Mutex
	queue   []Event
	dropped int
	closed  bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the subscriber id.
func (s *Subscription) ID() string {
	return s.id
}

// deliver queues event and reports whether an older event had to be dropped.
func (s *Subscription) deliver(event Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	overflow := len(s.queue) >= s.capacity
	if overflow {
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return overflow
}

// Next blocks until an event is available, ctx is done or the subscription
// is closed. After an overflow the next call returns a resync event carrying
// the number of dropped events, followed by the events still queued.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.dropped > 0 {
			n := s.dropped
			s.dropped = 0
			s.mu.Unlock()
			return Event{Type: EventResync, Dropped: n}, nil
		}
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return event, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Event{}, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.notify:
		case <-s.done:
		}
	}
}

// Pending returns the number of queued events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Done is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription. Queued events can still be read.
func (s *Subscription) Close() {
	s.owner.remove(s.id)
	s.close()
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
