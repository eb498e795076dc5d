// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/logging"
	"github.com/affectlab/resonate/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was
	// canceled, the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded, which may point at a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to clients.
const (
	MessageTypePolicyUpdate = "policy_update"
	MessageTypeProgress     = "progress_update"
	MessageTypeStatsUpdate  = "stats_update"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is the envelope for every frame exchanged with a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub with no connected clients.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub event loop until the context is canceled,
// then closes all connected clients and returns ctx.Err().
//
// Channels are drained in priority order: shutdown first, then client
// lifecycle, then broadcasts. Go's select picks randomly among ready
// cases, so without the staged selects a burst of broadcasts could be
// fanned out to a client the hub was about to unregister.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.SetWSConnections(total)
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.SetWSConnections(total)
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// shutdown closes every client and logs the reason. ctx.Err() is not
// logged as an error field: cancellation is the expected stop signal, and
// an error-level entry here would trip operators watching error logs.
func (h *Hub) shutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients sends a message to all connected clients in client-ID
// order. Map iteration order is random per run; sorting keeps delivery
// order reproducible across runs and in tests.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	// A client with a full send buffer is dropped rather than awaited; a
	// stalled reader must not hold up delivery to everyone else.
	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.RecordWSMessageSent()
		default:
			metrics.RecordWSMessageDropped()
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}

	if len(toRemove) > 0 {
		metrics.SetWSConnections(len(h.clients))
	}
}

// closeAllClients closes every connected client in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.SetWSConnections(0)
}

// BroadcastPolicyUpdate pushes an applied policy update to all clients.
func (h *Hub) BroadcastPolicyUpdate(result engine.PolicyUpdateResult) {
	message := Message{
		Type: MessageTypePolicyUpdate,
		Data: result,
	}

	select {
	case h.broadcast <- message:
		logging.Debug().
			Str("user_id", logging.MaskID(result.UserID)).
			Str("content_id", result.ContentID).
			Float64("reward", result.Reward.Reward).
			Msg("broadcast policy_update")
	default:
		logging.Warn().Msg("broadcast channel full, dropping policy_update message")
	}
}

// BroadcastProgress pushes a learning-progress snapshot to all clients.
func (h *Hub) BroadcastProgress(progress engine.LearningProgress) {
	message := Message{
		Type: MessageTypeProgress,
		Data: progress,
	}

	select {
	case h.broadcast <- message:
		logging.Debug().
			Str("user_id", logging.MaskID(progress.UserID)).
			Str("stage", string(progress.Stage)).
			Msg("broadcast progress_update")
	default:
		logging.Warn().Msg("broadcast channel full, dropping progress_update message")
	}
}

// StatsUpdateData is the payload of a stats_update message.
type StatsUpdateData struct {
	Timestamp string             `json:"timestamp"`
	Clients   int                `json:"clients"`
	Engine    engine.EngineStats `json:"engine"`
}

// BroadcastStatsUpdate pushes an engine stats snapshot to all clients.
func (h *Hub) BroadcastStatsUpdate(stats engine.EngineStats) {
	data := StatsUpdateData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Clients:   h.GetClientCount(),
		Engine:    stats,
	}

	message := Message{
		Type: MessageTypeStatsUpdate,
		Data: data,
	}

	select {
	case h.broadcast <- message:
		logging.Info().
			Int("clients", data.Clients).
			Int64("feedback_applied", stats.FeedbackApplied).
			Msg("broadcast stats_update")
	default:
		logging.Warn().Msg("broadcast channel full, dropping stats_update message")
	}
}

// BroadcastJSON sends an arbitrary typed payload to all clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping JSON message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

var _ engine.Broadcaster = (*Hub)(nil)
