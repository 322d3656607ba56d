package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"practice-trading-engine/internal/events"
	"practice-trading-engine/internal/logging"
	"practice-trading-engine/internal/market"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement is handled by the CORS layer on the REST side;
		// the socket carries no credentials of its own.
		return true
	},
}

// ==================== MESSAGES ====================

// WSMessage is the envelope for everything sent over the socket.
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// PlaybackCommand is a client request controlling scenario bar playback.
type PlaybackCommand struct {
	Type       string `json:"type"` // START_PLAYBACK or STOP_PLAYBACK
	ScenarioID string `json:"scenarioId,omitempty"`
	IntervalMs int    `json:"intervalMs,omitempty"`
	Outcome    bool   `json:"outcome,omitempty"` // stream outcome bars too
}

// PlaybackBar is one bar delivered during playback.
type PlaybackBar struct {
	ScenarioID string     `json:"scenarioId"`
	Index      int        `json:"index"`
	Total      int        `json:"total"`
	Bar        market.Bar `json:"bar"`
	AtDecision bool       `json:"atDecision"`
	Outcome    bool       `json:"outcome"`
}

// ==================== CLIENT ====================

// WSClient represents a single websocket connection.
type WSClient struct {
	hub       *WSHub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closeChan chan struct{}

	playbackMu   sync.Mutex
	playbackStop chan struct{}
}

func (c *WSClient) close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
}

// sendMessage marshals and queues a message, dropping it when the client's
// buffer is full.
func (c *WSClient) sendMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send channel to the connection and keeps it alive
// with periodic pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// readPump consumes client messages, dispatching playback commands.
func (c *WSClient) readPump(s *Server) {
	defer func() {
		c.stopPlayback()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd PlaybackCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendMessage(WSMessage{
				Type:      "ERROR",
				Timestamp: time.Now().UnixMilli(),
				Data:      gin.H{"message": "invalid message"},
			})
			continue
		}

		switch cmd.Type {
		case "START_PLAYBACK":
			s.startPlayback(c, cmd)
		case "STOP_PLAYBACK":
			c.stopPlayback()
		case "PING":
			c.sendMessage(WSMessage{Type: "PONG", Timestamp: time.Now().UnixMilli()})
		default:
			c.sendMessage(WSMessage{
				Type:      "ERROR",
				Timestamp: time.Now().UnixMilli(),
				Data:      gin.H{"message": "unknown message type"},
			})
		}
	}
}

func (c *WSClient) stopPlayback() {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()
	if c.playbackStop != nil {
		close(c.playbackStop)
		c.playbackStop = nil
	}
}

// ==================== HUB ====================

// WSHub tracks connected clients and fans events out to all of them.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	log        zerolog.Logger
}

func newWSHub(logger zerolog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 4096),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		log:        logger,
	}
}

// Run processes hub events. Must be called in its own goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.close()
			}
			h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client disconnected")

		case data := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client, drop the message rather than block the hub.
				}
			}
		}
	}
}

// BroadcastEvent fans an event bus event out to every connected client.
func (h *WSHub) BroadcastEvent(event events.Event) {
	msg := WSMessage{
		Type:      string(event.Type),
		Timestamp: event.Timestamp.UnixMilli(),
		Data:      event.Data,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

var wsHub *WSHub

// InitWebSocket creates the global hub and bridges the event bus onto it.
func InitWebSocket(eventBus *events.EventBus, logger zerolog.Logger) {
	if wsHub != nil {
		return
	}
	wsHub = newWSHub(logging.Component(logger, "websocket"))
	go wsHub.Run()

	if eventBus != nil {
		eventBus.SubscribeAll(func(event events.Event) {
			wsHub.BroadcastEvent(event)
		})
	}
}

// ==================== HANDLER ====================

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &WSClient{
		hub:       wsHub,
		conn:      conn,
		send:      make(chan []byte, 256),
		closeChan: make(chan struct{}),
	}
	wsHub.register <- client

	client.sendMessage(WSMessage{
		Type:      "CONNECTED",
		Timestamp: time.Now().UnixMilli(),
		Data:      gin.H{"message": "connected to practice engine"},
	})

	go client.writePump()
	go client.readPump(s)
}

// ==================== PLAYBACK ====================

const (
	defaultPlaybackInterval = 500 * time.Millisecond
	minPlaybackInterval     = 50 * time.Millisecond
)

// startPlayback streams a stored scenario's bars to the client one at a
// time. Pre-decision bars flag the decision index; the client stops there
// and requests a second playback with Outcome set to reveal the resolution.
func (s *Server) startPlayback(c *WSClient, cmd PlaybackCommand) {
	if cmd.ScenarioID == "" {
		c.sendMessage(WSMessage{
			Type:      "ERROR",
			Timestamp: time.Now().UnixMilli(),
			Data:      gin.H{"message": "scenarioId is required"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	scn, err := s.loadScenario(ctx, cmd.ScenarioID)
	cancel()
	if err != nil || scn == nil {
		c.sendMessage(WSMessage{
			Type:      "ERROR",
			Timestamp: time.Now().UnixMilli(),
			Data:      gin.H{"message": "scenario not found"},
		})
		return
	}

	interval := defaultPlaybackInterval
	if cmd.IntervalMs > 0 {
		interval = time.Duration(cmd.IntervalMs) * time.Millisecond
		if interval < minPlaybackInterval {
			interval = minPlaybackInterval
		}
	}

	c.playbackMu.Lock()
	if c.playbackStop != nil {
		close(c.playbackStop)
	}
	stop := make(chan struct{})
	c.playbackStop = stop
	c.playbackMu.Unlock()

	bars := scn.Bars
	outcome := false
	if cmd.Outcome {
		bars = scn.OutcomeBars
		outcome = true
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventPlaybackStarted,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scenario_id": scn.ID,
			"bars":        len(bars),
			"outcome":     outcome,
		},
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i, bar := range bars {
			select {
			case <-stop:
				return
			case <-c.closeChan:
				return
			case <-ticker.C:
			}

			c.sendMessage(WSMessage{
				Type:      "PLAYBACK_BAR",
				Timestamp: time.Now().UnixMilli(),
				Data: PlaybackBar{
					ScenarioID: scn.ID,
					Index:      i,
					Total:      len(bars),
					Bar:        bar,
					AtDecision: !outcome && i == scn.Decision.BarIndex,
					Outcome:    outcome,
				},
			})
		}

		c.sendMessage(WSMessage{
			Type:      "PLAYBACK_FINISHED",
			Timestamp: time.Now().UnixMilli(),
			Data:      gin.H{"scenarioId": scn.ID, "outcome": outcome},
		})
		s.eventBus.Publish(events.Event{
			Type:      events.EventPlaybackFinished,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"scenario_id": scn.ID,
				"outcome":     outcome,
			},
		})
	}()
}
