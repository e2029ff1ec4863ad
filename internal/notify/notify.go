// Package notify is the in-process change notifier of the passport ledger.
// It broadcasts stamps-changed and points-changed events so independent views
// stay consistent without polling.
package notify

import (
	"sync"
	"sync/atomic"

	"emirates-passport/internal/model"
)

// Topic names as seen by UI collaborators.
const (
	TopicStampsChanged = "stamps-changed"
	TopicPointsChanged = "points-changed"
)

// StampsChanged carries the full updated stamp book of one user.
type StampsChanged struct {
	UserKey model.UserKey
	Stamps  model.StampBook
}

// PointsChanged carries the new balance of one user.
type PointsChanged struct {
	UserKey model.UserKey
	Balance int64
}

// Unsubscribe stops deliveries to a handler. Calling it more than once is a no-op.
type Unsubscribe func()

type subscriber[T any] struct {
	id      uint64
	handler func(T)
	active  atomic.Bool
}

// Hub delivers events of one topic to its subscribers.
// Delivery is synchronous and in subscription order; there is no replay for
// late subscribers.
type Hub[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*subscriber[T]
}

// Subscribe registers handler and returns the capability that removes it.
func (h *Hub[T]) Subscribe(handler func(T)) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	sub := &subscriber[T]{id: h.nextID, handler: handler}
	sub.active.Store(true)
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			h.remove(sub.id)
		})
	}
}

// Publish delivers event to every current subscriber, then returns.
// A handler unsubscribed during delivery receives nothing further.
func (h *Hub[T]) Publish(event T) {
	h.publishWith(func() T { return event })
}

// publishWith builds the event separately for every subscriber.
func (h *Hub[T]) publishWith(build func() T) {
	h.mu.Lock()
	subs := make([]*subscriber[T], len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.handler(build())
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subs {
		if sub.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// Notifier owns the two ledger topics.
type Notifier struct {
	stamps Hub[StampsChanged]
	points Hub[PointsChanged]
}

// New creates a Notifier with no subscribers.
func New() *Notifier {
	return &Notifier{}
}

// OnStampsChanged subscribes to stamps-changed.
func (n *Notifier) OnStampsChanged(handler func(StampsChanged)) Unsubscribe {
	return n.stamps.Subscribe(handler)
}

// OnPointsChanged subscribes to points-changed.
func (n *Notifier) OnPointsChanged(handler func(PointsChanged)) Unsubscribe {
	return n.points.Subscribe(handler)
}

// PublishStampsChanged delivers a stamps-changed event.
// Each subscriber receives its own copy of the stamp book.
func (n *Notifier) PublishStampsChanged(user model.UserKey, stamps model.StampBook) {
	n.stamps.publishWith(func() StampsChanged {
		return StampsChanged{UserKey: user, Stamps: stamps.Clone()}
	})
}

// PublishPointsChanged delivers a points-changed event.
func (n *Notifier) PublishPointsChanged(user model.UserKey, balance int64) {
	n.points.Publish(PointsChanged{UserKey: user, Balance: balance})
}

// Subscribers returns the number of subscribers per topic.
func (n *Notifier) Subscribers() map[string]int {
	return map[string]int{
		TopicStampsChanged: n.stamps.Len(),
		TopicPointsChanged: n.points.Len(),
	}
}
