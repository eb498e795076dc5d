// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/affectlab/resonate/internal/logging"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPingInterval   = 54 * time.Second
	defaultSendBufferSize = 256

	// Inbound traffic is client pings only, so the read limit stays small.
	maxMessageSize = 64 * 1024
)

// clientIDCounter hands out monotonically increasing client IDs. The IDs
// give broadcasts and shutdown a stable client ordering.
var clientIDCounter atomic.Uint64

// ClientOptions tunes per-connection behavior. Zero values fall back to
// the package defaults.
type ClientOptions struct {
	// SendBufferSize is the outbound queue; a client whose queue fills
	// is disconnected by the hub.
	SendBufferSize int

	// PingInterval is the protocol ping cadence. The read deadline is
	// derived from it with headroom for the pong round trip.
	PingInterval time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
}

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
}

// NewClient wraps an upgraded connection in a client with a unique ID and
// the package defaults.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return NewClientWithOptions(hub, conn, ClientOptions{})
}

// NewClientWithOptions wraps an upgraded connection with explicit
// tunables, normally sourced from the websocket config section.
func NewClientWithOptions(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	buffer := opts.SendBufferSize
	if buffer <= 0 {
		buffer = defaultSendBufferSize
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	write := opts.WriteTimeout
	if write <= 0 {
		write = defaultWriteWait
	}

	return &Client{
		id:           clientIDCounter.Add(1),
		hub:          hub,
		conn:         conn,
		send:         make(chan Message, buffer),
		pingInterval: ping,
		pongWait:     ping * 10 / 9,
		writeWait:    write,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		// Application-level ping from the client, distinct from the
		// protocol pings the write pump sends.
		if msg.Type == MessageTypePing {
			pong := Message{
				Type: MessageTypePong,
				Data: nil,
			}
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
