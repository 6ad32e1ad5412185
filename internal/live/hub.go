// Package live keeps track of connected leaderboard viewers and their topic
// subscriptions, and pushes rank events to them.
package live

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"flexboard/internal/metrics"
	"flexboard/internal/model"
)

// Sender delivers one message to a connected client.
type Sender interface {
	Send(msg any) error
}

type client struct {
	id     string
	userID string
	sender Sender
	topics map[string]struct{}
}

type target struct {
	id     string
	sender Sender
}

// Hub is the registry of live clients. All methods are safe for concurrent use.
// Sends happen outside the registry lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHub creates an empty Hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		metrics: m,
		now:     time.Now,
	}
}

// Register adds a client and returns its generated id. userID is empty for
// anonymous viewers.
func (h *Hub) Register(sender Sender, userID string) string {
	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		sender: sender,
		topics: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetClients(n)
	log.Debug().Str("client_id", c.id).Str("user_id", userID).Int("clients", n).Msg("Live client connected")
	return c.id
}

// Unregister removes a client. Unknown ids are ignored.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	_, ok := h.clients[clientID]
	delete(h.clients, clientID)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetClients(n)
		log.Debug().Str("client_id", clientID).Int("clients", n).Msg("Live client disconnected")
	}
}

// Subscribe adds scope's topic to the client. It reports false if the client
// is no longer registered.
func (h *Hub) Subscribe(clientID string, scope model.Scope) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	c.topics[scope.Key()] = struct{}{}
	return true
}

// Unsubscribe removes scope's topic from the client.
func (h *Hub) Unsubscribe(clientID string, scope model.Scope) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	delete(c.topics, scope.Key())
	return true
}

// BroadcastRankChange sends the change to the user's own connections and to
// every subscriber of scope's topic. A client matching both gets it once.
func (h *Hub) BroadcastRankChange(userID string, scope model.Scope, change *model.RankChange) {
	msg := RankChangeMessage{
		Type:            TypeRankChange,
		UserID:          userID,
		LeaderboardType: scope.Type,
		Region:          scope.RegionPtr(),
		OldRank:         change.PreviousRank,
		NewRank:         change.CurrentRank,
		TotalFlexPoints: change.Entry.TotalFlexPoints,
		Timestamp:       h.now(),
	}
	if change.RankChange != nil {
		msg.RankChange = *change.RankChange
	}

	topic := scope.Key()
	targets := h.collect(func(c *client) bool {
		if c.userID != "" && c.userID == userID {
			return true
		}
		_, ok := c.topics[topic]
		return ok
	})

	sent := h.deliver(targets, TypeRankChange, msg)
	log.Debug().Str("user_id", userID).Str("topic", topic).Int("sent", sent).Msg("Rank change broadcast")
}

// BroadcastLeaderboardUpdate sends the affected ranks to subscribers of scope.
func (h *Hub) BroadcastLeaderboardUpdate(scope model.Scope, affectedRanks []int64) {
	msg := LeaderboardUpdateMessage{
		Type:            TypeLeaderboardUpdate,
		LeaderboardType: scope.Type,
		Region:          scope.RegionPtr(),
		AffectedRanks:   affectedRanks,
		Timestamp:       h.now(),
	}

	topic := scope.Key()
	targets := h.collect(func(c *client) bool {
		_, ok := c.topics[topic]
		return ok
	})

	sent := h.deliver(targets, TypeLeaderboardUpdate, msg)
	log.Debug().Str("topic", topic).Int("sent", sent).Msg("Leaderboard update broadcast")
}

// SendToUser sends msg to every connection of userID and reports whether
// at least one delivery succeeded.
func (h *Hub) SendToUser(userID string, msgType string, msg any) bool {
	if userID == "" {
		return false
	}
	targets := h.collect(func(c *client) bool { return c.userID == userID })
	return h.deliver(targets, msgType, msg) > 0
}

// Broadcast sends msg to every connected client.
func (h *Hub) Broadcast(msgType string, msg any) {
	h.deliver(h.collect(func(*client) bool { return true }), msgType, msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to scope's topic.
func (h *Hub) SubscriberCount(scope model.Scope) int {
	topic := scope.Key()
	return len(h.collect(func(c *client) bool {
		_, ok := c.topics[topic]
		return ok
	}))
}

func (h *Hub) collect(match func(*client) bool) []target {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []target
	for _, c := range h.clients {
		if match(c) {
			out = append(out, target{id: c.id, sender: c.sender})
		}
	}
	return out
}

// deliver sends msg to each target and returns the number of successful
// sends. A failing client is logged and skipped.
func (h *Hub) deliver(targets []target, msgType string, msg any) int {
	sent := 0
	for _, t := range targets {
		if err := t.sender.Send(msg); err != nil {
			h.metrics.SendFailed()
			log.Warn().Err(err).Str("client_id", t.id).Str("type", msgType).Msg("Failed to send live message")
			continue
		}
		h.metrics.MessageSent(msgType)
		sent++
	}
	return sent
}
