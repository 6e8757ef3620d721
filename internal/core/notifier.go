package core

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is the handle returned by Notifier.Subscribe. Events are
// delivered on the Events channel in publication order. Each subscription
// owns an unbounded FIFO queue drained by its own goroutine, so a consumer
// that reads slowly only grows its own queue; it never delays the publisher
// or other subscribers.
type Subscription struct {
	id     string
	events chan ChangeEvent
	wake   chan struct{}
	done   chan struct{}

	mu    sync.Mutex
	queue []ChangeEvent
}

// Events returns the channel the subscription's events arrive on. It is
// closed after Unsubscribe.
func (s *Subscription) Events() <-chan ChangeEvent { return s.events }

func (s *Subscription) enqueue(ev ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		var ev ChangeEvent
		ok := len(s.queue) > 0
		if ok {
			ev = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Notifier delivers ChangeEvents to all current subscribers. The relative
// order of events is the same for every subscriber; order across
// subscribers is unspecified. A subscriber that stops reading, or fails
// while handling an event on its own goroutine, affects nobody else.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]*Subscription)}
}

// Subscribe registers a new listener and returns its handle.
func (n *Notifier) Subscribe() *Subscription {
	s := &Subscription{
		id:     uuid.NewString(),
		events: make(chan ChangeEvent),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	n.mu.Lock()
	n.subs[s.id] = s
	n.mu.Unlock()
	go s.pump()
	return s
}

// Unsubscribe removes a listener and closes its Events channel. Calling it
// twice, or with nil, is a no-op.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	_, ok := n.subs[sub.id]
	delete(n.subs, sub.id)
	n.mu.Unlock()
	if ok {
		close(sub.done)
	}
}

// Close unsubscribes every listener.
func (n *Notifier) Close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[string]*Subscription)
	n.mu.Unlock()
	for _, s := range subs {
		close(s.done)
	}
}

// publish enqueues ev for every current subscriber. Only the Processor
// calls it, under its submit lock, which is what fixes the relative order
// all subscribers observe.
func (n *Notifier) publish(ev ChangeEvent) {
	n.mu.RLock()
	subs := make([]*Subscription, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.RUnlock()
	for _, s := range subs {
		s.enqueue(ev)
	}
}
