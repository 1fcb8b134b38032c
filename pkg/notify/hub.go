package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
)

const (
	// DefaultBufferSize is how many notifications a subscriber may fall behind
	// before new ones are dropped for it.
	DefaultBufferSize = 16
	// DefaultRecentSize is how many notifications are kept per user.
	DefaultRecentSize = 20
)

// Subscription receives the notifications of one user.
type Subscription struct {
	hub    *Hub
	userID string
	ch     chan Notification
	once   sync.Once
}

// C returns the channel notifications arrive on. It is closed by Close.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub fans notifications out to per-user subscribers and remembers the most
// recent ones for each user.
type Hub struct {
	bufferSize int
	recentSize int

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	recent map[string][]Notification
}

// NewHub returns an empty Hub with the default sizes.
func NewHub() *Hub {
	return &Hub{
		bufferSize: DefaultBufferSize,
		recentSize: DefaultRecentSize,
		subs:       make(map[string]map[*Subscription]struct{}),
		recent:     make(map[string][]Notification),
	}
}

// Publish delivers n to every subscriber of userID. Subscribers whose buffer
// is full miss the notification.
func (h *Hub) Publish(ctx context.Context, userID string, n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	recent := append(h.recent[userID], n)
	if len(recent) > h.recentSize {
		recent = append([]Notification(nil), recent[len(recent)-h.recentSize:]...)
	}
	h.recent[userID] = recent

	for sub := range h.subs[userID] {
		select {
		case sub.ch <- n:
		default:
			log.Ctx(ctx).WarnContext(
				ctx,
				"dropping notification for slow subscriber",
				slog.String("userID", userID),
				slog.String("notificationID", n.ID),
			)
		}
	}
}

// Subscribe registers a new subscriber for userID.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		hub:    h,
		userID: userID,
		ch:     make(chan Notification, h.bufferSize),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	close(sub.ch)
}

// Subscribers returns the number of live subscribers for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Recent returns the most recent notifications for userID, oldest first.
func (h *Hub) Recent(userID string) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.recent[userID]...)
}

// Forget drops the remembered notifications of userID.
func (h *Hub) Forget(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.recent, userID)
}

// ForUser returns a Sink publishing to userID.
func (h *Hub) ForUser(userID string) Sink {
	return SinkFunc(func(ctx context.Context, n Notification) {
		h.Publish(ctx, userID, n)
	})
}
