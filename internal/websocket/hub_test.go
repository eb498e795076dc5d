// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub starts a hub under a test-scoped context and stops it in cleanup.
func setupHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("hub did not stop after context cancellation")
		}
	})

	time.Sleep(10 * time.Millisecond)
	return hub
}

// createTestClient builds a client without a network connection.
func createTestClient(hub *Hub) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, conn: nil, send: make(chan Message, 256)}
}

// registerClient registers a client and waits for registration to complete.
func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func samplePolicyUpdate() engine.PolicyUpdateResult {
	return engine.PolicyUpdateResult{
		UserID:    "u-live",
		ContentID: "calm-oceans",
		Reward: engine.RewardResult{
			Reward:   0.72,
			Strategy: "emotional_distance",
		},
		Update: engine.PolicyUpdate{
			StateKey:     "v1:a3:s2",
			NextStateKey: "v3:a1:s0",
			OldQ:         0.5,
			NewQ:         0.53,
			TDError:      0.3,
			VisitCount:   1,
		},
		ExplorationRate: 0.27,
		Timestamp:       time.Now().UTC(),
	}
}

func sampleProgress() engine.LearningProgress {
	return engine.LearningProgress{
		UserID:           "u-live",
		ExperienceCount:  42,
		AverageReward:    0.61,
		RewardTrend:      engine.TrendImproving,
		ExplorationRate:  0.27,
		ConvergenceScore: 38.5,
		Stage:            engine.StageLearning,
		ComputedAt:       time.Now().UTC(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"empty clients", len(hub.clients) == 0, "clients map should be empty"},
	}

	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

func TestHubGetClientCount(t *testing.T) {
	hub := NewHub()

	if hub.GetClientCount() != 0 {
		t.Errorf("got %d clients initially, want 0", hub.GetClientCount())
	}

	for i := 0; i < 5; i++ {
		hub.clients[createTestClient(hub)] = true
	}

	if hub.GetClientCount() != 5 {
		t.Errorf("got %d clients, want 5", hub.GetClientCount())
	}
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	t.Run("policy update", func(t *testing.T) {
		hub := setupHub(t)
		hub.BroadcastPolicyUpdate(samplePolicyUpdate())
		time.Sleep(10 * time.Millisecond)
	})

	t.Run("progress", func(t *testing.T) {
		hub := setupHub(t)
		hub.BroadcastProgress(sampleProgress())
		time.Sleep(10 * time.Millisecond)
	})

	t.Run("stats", func(t *testing.T) {
		hub := setupHub(t)
		hub.BroadcastStatsUpdate(engine.EngineStats{FeedbackApplied: 7})
		time.Sleep(10 * time.Millisecond)
	})

	t.Run("raw JSON", func(t *testing.T) {
		hub := setupHub(t)
		hub.BroadcastJSON("test_type", map[string]interface{}{"test_key": "test_value", "count": 42})
		time.Sleep(10 * time.Millisecond)
	})
}

func TestHubClientRegistration(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(hub, client)

	if hub.GetClientCount() != 1 {
		t.Errorf("got %d clients, want 1", hub.GetClientCount())
	}

	hub.mu.RLock()
	if !hub.clients[client] {
		t.Error("client should be registered")
	}
	hub.mu.RUnlock()

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)

	if hub.GetClientCount() != 0 {
		t.Errorf("got %d clients after unregister, want 0", hub.GetClientCount())
	}
}

func TestHubUnregisterUnknownClient(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)

	if hub.GetClientCount() != 0 {
		t.Errorf("got %d clients, want 0", hub.GetClientCount())
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := setupHub(t)

	const numClients = 3
	clients := make([]*Client, numClients)
	var mu sync.Mutex
	received := make([]bool, numClients)
	var wg sync.WaitGroup

	for i := 0; i < numClients; i++ {
		clients[i] = createTestClient(hub)
		registerClient(hub, clients[i])
	}

	if hub.GetClientCount() != numClients {
		t.Fatalf("got %d clients, want %d", hub.GetClientCount(), numClients)
	}

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(idx int, c *Client) {
			defer wg.Done()
			select {
			case msg := <-c.send:
				if msg.Type == MessageTypePolicyUpdate {
					mu.Lock()
					received[idx] = true
					mu.Unlock()
				}
			case <-time.After(500 * time.Millisecond):
			}
		}(i, clients[i])
	}

	time.Sleep(20 * time.Millisecond)
	hub.BroadcastPolicyUpdate(samplePolicyUpdate())
	wg.Wait()

	mu.Lock()
	for i, r := range received {
		if !r {
			t.Errorf("client %d did not receive broadcast", i)
		}
	}
	mu.Unlock()
}

func TestHubMessageTypes(t *testing.T) {
	expected := map[string]string{
		MessageTypePolicyUpdate: "policy_update",
		MessageTypeProgress:     "progress_update",
		MessageTypeStatsUpdate:  "stats_update",
		MessageTypePing:         "ping",
		MessageTypePong:         "pong",
	}

	for got, want := range expected {
		if got != want {
			t.Errorf("message type = %q, want %q", got, want)
		}
	}
}

func TestHubBroadcastPayloads(t *testing.T) {
	tests := []struct {
		name        string
		broadcast   func(*Hub)
		wantType    string
		validateMsg func(*testing.T, Message)
	}{
		{
			name:      "policy update",
			broadcast: func(h *Hub) { h.BroadcastPolicyUpdate(samplePolicyUpdate()) },
			wantType:  MessageTypePolicyUpdate,
			validateMsg: func(t *testing.T, msg Message) {
				result, ok := msg.Data.(engine.PolicyUpdateResult)
				if !ok {
					t.Fatalf("got %T, want engine.PolicyUpdateResult", msg.Data)
				}
				if result.UserID != "u-live" || result.ContentID != "calm-oceans" {
					t.Errorf("got %s/%s, want u-live/calm-oceans", result.UserID, result.ContentID)
				}
				if result.Reward.Reward != 0.72 {
					t.Errorf("got reward %v, want 0.72", result.Reward.Reward)
				}
			},
		},
		{
			name:      "progress",
			broadcast: func(h *Hub) { h.BroadcastProgress(sampleProgress()) },
			wantType:  MessageTypeProgress,
			validateMsg: func(t *testing.T, msg Message) {
				progress, ok := msg.Data.(engine.LearningProgress)
				if !ok {
					t.Fatalf("got %T, want engine.LearningProgress", msg.Data)
				}
				if progress.Stage != engine.StageLearning {
					t.Errorf("got stage %q, want %q", progress.Stage, engine.StageLearning)
				}
			},
		},
		{
			name:      "stats",
			broadcast: func(h *Hub) { h.BroadcastStatsUpdate(engine.EngineStats{FeedbackApplied: 7, RankRequests: 19}) },
			wantType:  MessageTypeStatsUpdate,
			validateMsg: func(t *testing.T, msg Message) {
				data, ok := msg.Data.(StatsUpdateData)
				if !ok {
					t.Fatalf("got %T, want StatsUpdateData", msg.Data)
				}
				if data.Engine.FeedbackApplied != 7 || data.Engine.RankRequests != 19 {
					t.Errorf("unexpected stats payload: %+v", data.Engine)
				}
				if data.Timestamp == "" {
					t.Error("timestamp not set")
				}
				if data.Clients != 1 {
					t.Errorf("got %d clients in payload, want 1", data.Clients)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := setupHub(t)
			client := createTestClient(hub)
			registerClient(hub, client)

			tt.broadcast(hub)

			select {
			case msg := <-client.send:
				if msg.Type != tt.wantType {
					t.Errorf("type = %q, want %q", msg.Type, tt.wantType)
				}
				tt.validateMsg(t, msg)
			case <-time.After(100 * time.Millisecond):
				t.Error("timeout waiting for message")
			}

			hub.Unregister <- client
		})
	}
}

func TestHubChannelFullBehavior(t *testing.T) {
	tests := []struct {
		name      string
		broadcast func(*Hub)
	}{
		{"policy update", func(h *Hub) { h.BroadcastPolicyUpdate(samplePolicyUpdate()) }},
		{"progress", func(h *Hub) { h.BroadcastProgress(sampleProgress()) }},
		{"stats", func(h *Hub) { h.BroadcastStatsUpdate(engine.EngineStats{}) }},
		{"raw JSON", func(h *Hub) { h.BroadcastJSON("test", map[string]string{"test": "data"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub() // not running, so the broadcast channel fills

			for i := 0; i < 256; i++ {
				tt.broadcast(hub)
			}
			tt.broadcast(hub) // must hit the default case and not block
		})
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := setupHub(t)

	client := &Client{id: clientIDCounter.Add(1), hub: hub, conn: nil, send: make(chan Message, 1)}
	registerClient(hub, client)

	client.send <- Message{Type: "filler", Data: nil}

	hub.BroadcastPolicyUpdate(samplePolicyUpdate())

	var clientCount int
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		clientCount = hub.GetClientCount()
		if clientCount == 0 {
			break
		}
	}

	if clientCount != 0 {
		t.Errorf("got %d clients after overflow handling, want 0", clientCount)
	}
}

func TestHubRunWithContext(t *testing.T) {
	t.Run("shuts down on context cancellation", func(t *testing.T) {
		hub := NewHub()
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- hub.RunWithContext(ctx)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("got %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Error("RunWithContext did not return after context cancellation")
		}
	})

	t.Run("shuts down on context deadline", func(t *testing.T) {
		hub := NewHub()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- hub.RunWithContext(ctx)
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("got %v, want context.DeadlineExceeded", err)
			}
		case <-time.After(time.Second):
			t.Error("RunWithContext did not return after deadline")
		}
	})

	t.Run("closes all clients on shutdown", func(t *testing.T) {
		hub := NewHub()
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- hub.RunWithContext(ctx)
		}()

		clients := make([]*Client, 3)
		for i := 0; i < 3; i++ {
			clients[i] = createTestClient(hub)
			hub.Register <- clients[i]
		}

		var clientCount int
		for i := 0; i < 10; i++ {
			time.Sleep(20 * time.Millisecond)
			clientCount = hub.GetClientCount()
			if clientCount == 3 {
				break
			}
		}

		if clientCount != 3 {
			t.Fatalf("got %d clients, want 3", clientCount)
		}

		cancel()

		select {
		case <-errCh:
		case <-time.After(time.Second):
			t.Fatal("RunWithContext did not return after context cancellation")
		}

		if hub.GetClientCount() != 0 {
			t.Errorf("got %d clients after shutdown, want 0", hub.GetClientCount())
		}

		for i, client := range clients {
			select {
			case _, open := <-client.send:
				if open {
					t.Errorf("client %d send channel still open", i)
				}
			default:
				t.Errorf("client %d send channel not closed", i)
			}
		}
	})
}

func TestMarshalMessage(t *testing.T) {
	tests := []struct {
		name    string
		message Message
	}{
		{"ping without data", Message{Type: MessageTypePing, Data: nil}},
		{"string data", Message{Type: "test", Data: "hello world"}},
		{"map data", Message{Type: MessageTypeStatsUpdate, Data: map[string]interface{}{"count": 42}}},
		{"policy update data", Message{Type: MessageTypePolicyUpdate, Data: samplePolicyUpdate()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalMessage(tt.message)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(data) == 0 || data[0] != '{' || data[len(data)-1] != '}' {
				t.Error("invalid JSON output")
			}
		})
	}
}
