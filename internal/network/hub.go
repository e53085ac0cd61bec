// Package network pushes live game state to browsers over WebSocket.
// Operations arrive over the HTTP API; this layer only fans state out,
// filtered per seat so guessers never receive the key.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/platform/logger"
	"github.com/codewords-live/server/internal/platform/metrics"
)

// stateMessage is the wire frame pushed on every room mutation.
type stateMessage struct {
	Type   string         `json:"type"`
	RoomID string         `json:"room_id"`
	State  *game.Snapshot `json:"state"`
}

// delivery is one fan-out request: per-seat payloads for one room.
type delivery struct {
	roomID   string
	bySeat   map[game.SeatID][]byte
	observer []byte
}

// Hub maintains the set of active clients per room and fans state out
// to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan delivery, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and
// broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info(fmt.Sprintf("WebSocket client connected to room %s (seat %q)", client.roomID, client.seat))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected from room " + client.roomID)
			}
			h.mu.Unlock()
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.roomID != d.roomID {
			continue
		}
		payload := d.observer
		if seatPayload, ok := d.bySeat[client.seat]; ok {
			payload = seatPayload
		}
		select {
		case client.send <- payload:
			metrics.Get().RecordWSMessage()
		default:
			// Slow consumer: drop the connection rather than the room.
			close(client.send)
			delete(h.clients, client)
			metrics.Get().RecordWSConnection(-1)
			metrics.Get().RecordWSError()
		}
	}
}

// BroadcastState serializes the per-seat views and fans them out to the
// room's clients. Implements the room package's Broadcaster.
func (h *Hub) BroadcastState(roomID string, views map[game.SeatID]*game.Snapshot) {
	d := delivery{roomID: roomID, bySeat: make(map[game.SeatID][]byte, len(views))}
	for seat, snap := range views {
		payload, err := json.Marshal(stateMessage{Type: "state", RoomID: roomID, State: snap})
		if err != nil {
			h.logger.Error("Failed to serialize state for WebSocket broadcast: " + err.Error())
			metrics.Get().RecordWSError()
			return
		}
		if seat == "" {
			d.observer = payload
		} else {
			d.bySeat[seat] = payload
		}
	}

	select {
	case h.broadcast <- d:
	default:
		// Hub loop backed up; this frame is superseded by the next one.
		metrics.Get().RecordWSError()
	}
}
