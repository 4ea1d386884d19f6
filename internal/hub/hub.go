// Package hub provides in-process fan-out of chat messages to the live
// connections joined to a room group.
package hub

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/metrics"
)

// GroupName derives the broadcast group identifier for a room.
func GroupName(roomID int64) string {
	return "chat_" + strconv.FormatInt(roomID, 10)
}

// Broadcaster delivers a payload to every subscription currently joined to a
// group. The in-memory Hub implements it directly; RedisLayer implements it
// over a shared Redis channel.
type Broadcaster interface {
	Join(group string, sub *Subscription)
	Leave(group string, sub *Subscription)
	Broadcast(ctx context.Context, group string, payload []byte) error
}

// Subscription is an opaque connection handle registered with a Hub. Payloads
// broadcast to a joined group arrive on C; Done is closed when the hub drops
// the subscription (slow consumer or hub shutdown).
type Subscription struct {
	C    chan []byte
	done chan struct{}
	once sync.Once
}

// NewSubscription creates a subscription with the given delivery buffer size.
func NewSubscription(buffer int) *Subscription {
	return &Subscription{
		C:    make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Done is closed when the subscription has been dropped by the hub.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close marks the subscription dropped. Safe to call more than once and
// concurrently with hub operations.
func (s *Subscription) Close() {
	s.drop()
}

func (s *Subscription) drop() {
	s.once.Do(func() { close(s.done) })
}

// Stats reports a snapshot of hub occupancy.
type Stats struct {
	Groups        int `json:"groups"`
	Subscriptions int `json:"subscriptions"`
}

// Hub is the process-wide registry mapping group identifiers to the set of
// subscriptions currently joined. It has no persistence and no cross-process
// visibility; it is created at process start and torn down at shutdown.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
	closed bool
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Join adds sub to the group's set. Idempotent if already present.
func (h *Hub) Join(group string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.drop()
		return
	}

	set, ok := h.groups[group]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.groups[group] = set
	}
	set[sub] = struct{}{}
}

// Leave removes sub from the group's set. No-op if absent. The group slot is
// discarded when its last subscription leaves.
func (h *Hub) Leave(group string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(group, sub)
}

func (h *Hub) removeLocked(group string, sub *Subscription) {
	set, ok := h.groups[group]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.groups, group)
	}
}

// Broadcast delivers payload to every subscription in the group at call time.
// Delivery to one dead or slow subscription never aborts delivery to the
// rest; a subscription whose buffer is full is dropped from the group and its
// Done channel closed so its connection can tear itself down.
func (h *Hub) Broadcast(ctx context.Context, group string, payload []byte) error {
	// Snapshot the membership so subscriptions joining or leaving during
	// delivery don't interact with this broadcast.
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.groups[group]))
	for sub := range h.groups[group] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	var dead []*Subscription
	for _, sub := range subs {
		select {
		case sub.C <- payload:
		default:
			dead = append(dead, sub)
		}
	}

	metrics.BroadcastsTotal.Inc()
	metrics.BroadcastRecipients.Observe(float64(len(subs) - len(dead)))

	if len(dead) > 0 {
		h.mu.Lock()
		for _, sub := range dead {
			h.removeLocked(group, sub)
		}
		h.mu.Unlock()

		for _, sub := range dead {
			sub.drop()
		}

		metrics.BroadcastDropped.Add(float64(len(dead)))
		h.logger.Warn().
			Str("group", group).
			Int("dropped", len(dead)).
			Msg("dropped slow subscriptions during broadcast")
	}

	return nil
}

// Stats returns the current number of groups and subscriptions.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.groups {
		total += len(set)
	}
	return Stats{Groups: len(h.groups), Subscriptions: total}
}

// Shutdown drops every subscription and rejects subsequent joins.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	var subs []*Subscription
	for group, set := range h.groups {
		for sub := range set {
			subs = append(subs, sub)
		}
		delete(h.groups, group)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.drop()
	}

	h.logger.Info().Int("subscriptions", len(subs)).Msg("hub shut down")
}
