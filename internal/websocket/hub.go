package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/asynkron/protoactor-go/actor"
)

// ViewCloser stops the live view behind a client.
type ViewCloser interface {
	CloseView(pid *actor.PID)
}

// Hub tracks the connected clients of every community. Unregistering a
// client closes its view before its send channel, so a view never publishes
// into a closed channel.
type Hub struct {
	// Registered clients. Maps community ID to the clients viewing it.
	Clients map[int64]map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	views  ViewCloser
	logger *slog.Logger
	done   chan struct{}

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex
}

func NewHub(views ViewCloser, logger *slog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		views:      views,
		logger:     logger.With("component", "hub"),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	defer close(h.done)

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.CommunityID]; !ok {
				h.Clients[client.CommunityID] = make(map[*Client]bool)
			}
			h.Clients[client.CommunityID][client] = true
			total := len(h.Clients[client.CommunityID])
			h.mu.Unlock()
			h.logger.Info("client registered", "community_id", client.CommunityID, "user_id", client.Session.UserID, "viewers", total)

		case client := <-h.Unregister:
			h.mu.Lock()
			communityClients, ok := h.Clients[client.CommunityID]
			registered := ok && communityClients[client]
			if registered {
				delete(communityClients, client)
				if len(communityClients) == 0 {
					delete(h.Clients, client.CommunityID)
				}
			}
			h.mu.Unlock()

			if registered {
				h.release(client)
				h.logger.Info("client unregistered", "community_id", client.CommunityID, "user_id", client.Session.UserID)
			}

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.Clients
			h.Clients = make(map[int64]map[*Client]bool)
			h.mu.Unlock()

			for _, communityClients := range clients {
				for client := range communityClients {
					h.release(client)
				}
			}
			h.logger.Info("websocket hub stopped")
			return
		}
	}
}

// ClientCount reports how many clients view a community.
func (h *Hub) ClientCount(communityID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[communityID])
}

func (h *Hub) release(client *Client) {
	h.views.CloseView(client.View)
	client.closeSend()
}
