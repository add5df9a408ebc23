package app

import (
	"context"
	"sync"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultSubscriberBacklog bounds how many undelivered events a subscriber may hold.
const DefaultSubscriberBacklog = 256

// Hub fans activity events out to subscribers. Publish never blocks on a
// subscriber: events are queued per subscription and pulled with Next.
type Hub struct {
	backlog int

	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultSubscriberBacklog
	}
	return &Hub{
		backlog: backlog,
		topics:  make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber whose stream starts with snapshot. Only
// events with a higher sequence number than the snapshot are delivered afterwards.
func (h *Hub) Subscribe(activityID string, role domain.Role, snapshot domain.Event) *Subscription {
	sub := &Subscription{
		hub:        h,
		activityID: activityID,
		role:       role,
		floor:      snapshot.Seq,
		backlog:    h.backlog,
		queue:      []domain.Event{snapshot},
		notify:     make(chan struct{}, 1),
	}
	sub.notify <- struct{}{}

	h.mu.Lock()
	subs, ok := h.topics[activityID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[activityID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish queues the event for every current subscriber of the activity.
func (h *Hub) Publish(activityID string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[activityID]
	for sub := range subs {
		if !sub.enqueue(event) {
			delete(subs, sub)
			log.Warn().
				Str("activity_id", activityID).
				Str("role", string(sub.role)).
				Msg("dropping lagging subscriber")
		}
	}
}

// CloseTopic ends every subscription of the activity. Queued events are still
// delivered before Next reports ErrSubscriptionClosed.
func (h *Hub) CloseTopic(activityID string) {
	h.mu.Lock()
	subs := h.topics[activityID]
	delete(h.topics, activityID)
	h.mu.Unlock()

	for sub := range subs {
		sub.finish(domain.ErrSubscriptionClosed)
	}
}

// SubscriberCount reports how many subscribers an activity currently has.
func (h *Hub) SubscriberCount(activityID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[activityID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[sub.activityID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.activityID)
		}
	}
}

// Subscription is one subscriber's ordered view of an activity's events.
type Subscription struct {
	hub        *Hub
	activityID string
	role       domain.Role
	floor      uint64
	backlog    int

	mu     sync.Mutex
	queue  []domain.Event
	err    error
	notify chan struct{}
}

func (s *Subscription) Role() domain.Role {
	return s.role
}

// Next blocks until an event is available, the subscription ends, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (domain.Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue[0] = domain.Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return event, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return domain.Event{}, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		}
	}
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.finish(domain.ErrSubscriptionClosed)
}

// enqueue returns false when the subscriber must be dropped for lagging.
func (s *Subscription) enqueue(event domain.Event) bool {
	if event.Seq <= s.floor {
		return true
	}

	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return true
	}
	n := len(s.queue)
	switch {
	case event.Type == domain.EventStatsUpdate && n > 0 && s.queue[n-1].Type == domain.EventStatsUpdate:
		// Only the newest stats matter; older ones still queued are replaced in place.
		s.queue[n-1] = event
	case n >= s.backlog:
		s.queue = nil
		s.err = domain.ErrSubscriberLagging
		s.mu.Unlock()
		s.signal()
		return false
	default:
		s.queue = append(s.queue, event)
	}
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
