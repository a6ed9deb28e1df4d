package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yourusername/bsengine/pkg/engine"
	"github.com/yourusername/bsengine/pkg/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`    // "create", "view", "state", "cycle", "sink", "raise", "targets", "subscribe", "unsubscribe", "ping"
	ID      string          `json:"id"`      // Request ID for correlating responses
	Payload json.RawMessage `json:"payload"` // Type-specific payload
}

// WSResponse is a generic WebSocket response.
type WSResponse struct {
	Type    string `json:"type"`              // "result", "event", "error", "pong"
	ID      string `json:"id,omitempty"`      // Request ID
	Payload any    `json:"payload,omitempty"` // Response data
	Error   string `json:"error,omitempty"`   // Error message if any
	Code    string `json:"code,omitempty"`    // Error code if any
}

// WSSessionRequest names the session a message applies to.
type WSSessionRequest struct {
	Session string `json:"session" validate:"required"`
}

// WSStateRequest is the payload of a "state" message.
type WSStateRequest struct {
	WSSessionRequest
	StateRequest
}

// WSCycleRequest is the payload of a "cycle" message.
type WSCycleRequest struct {
	WSSessionRequest
	SquareRequest
}

// WSSinkRequest is the payload of a "sink" message.
type WSSinkRequest struct {
	WSSessionRequest
	SinkRequest
}

// WSRaiseRequest is the payload of a "raise" message.
type WSRaiseRequest struct {
	WSSessionRequest
	RaiseRequest
}

// WSTargetsRequest is the payload of a "targets" message.
type WSTargetsRequest struct {
	WSSessionRequest
	N  int    `json:"n" validate:"gte=0"`
	By string `json:"by"`
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	sendChan chan WSResponse
	done     chan struct{}

	mu   sync.Mutex
	subs map[string]func()
	wg   sync.WaitGroup
}

// WebSocket handles WebSocket connections for interactive sessions.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	client := &WSClient{
		conn:     conn,
		handlers: h,
		sendChan: make(chan WSResponse, 256),
		done:     make(chan struct{}),
		subs:     make(map[string]func()),
	}
	go client.writePump()
	client.readPump(r.Context())
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for msg := range c.sendChan {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *WSClient) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		c.mu.Lock()
		for id, cancel := range c.subs {
			cancel()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		// No sender may remain once sendChan is closed
		c.wg.Wait()
		close(c.sendChan)
		c.conn.Close()
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(ctx, msg)
	}
}

// send queues a response unless the client is going away.
func (c *WSClient) send(resp WSResponse) {
	select {
	case c.sendChan <- resp:
	case <-c.done:
	}
}

func (c *WSClient) sendError(id string, err error) {
	_, code := errorStatus(err)
	c.send(WSResponse{Type: "error", ID: id, Error: err.Error(), Code: code})
}

func (c *WSClient) handleMessage(ctx context.Context, msg WSMessage) {
	switch msg.Type {
	case "create":
		c.handleCreate(ctx, msg)
	case "view":
		c.handleView(ctx, msg)
	case "state":
		c.handleState(ctx, msg)
	case "cycle":
		c.handleCycle(ctx, msg)
	case "sink":
		c.handleSink(ctx, msg)
	case "raise":
		c.handleRaise(ctx, msg)
	case "targets":
		c.handleTargets(ctx, msg)
	case "subscribe":
		c.handleSubscribe(ctx, msg)
	case "unsubscribe":
		c.handleUnsubscribe(msg)
	case "ping":
		c.send(WSResponse{Type: "pong", ID: msg.ID})
	default:
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type", Code: "UNKNOWN_TYPE"})
	}
}

// decode unmarshals and validates a payload, replying with an error on failure.
func (c *WSClient) decode(msg WSMessage, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"})
		return false
	}
	if err := validate.Struct(v); err != nil {
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: err.Error(), Code: "INVALID_REQUEST"})
		return false
	}
	return true
}

// update applies fn to a session under a fast pool slot and replies with its result.
func (c *WSClient) update(ctx context.Context, msg WSMessage, id string, fn func(*game.Session) (any, error)) {
	if pool := c.handlers.pool; pool != nil {
		if err := pool.AcquireFast(ctx); err != nil {
			c.send(WSResponse{Type: "error", ID: msg.ID, Error: "server busy", Code: "SERVER_BUSY"})
			return
		}
		defer pool.ReleaseFast()
	}

	var result any
	err := c.handlers.manager.Update(ctx, id, func(s *game.Session) error {
		var err error
		result, err = fn(s)
		return err
	})
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: result})
}

func (c *WSClient) handleCreate(ctx context.Context, msg WSMessage) {
	var req CreateSessionRequest
	if len(msg.Payload) > 0 && !c.decode(msg, &req) {
		return
	}
	spec := c.handlers.defaults
	if req.Fleet != nil {
		spec = *req.Fleet
	}
	fleet, err := spec.Build()
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}

	if pool := c.handlers.pool; pool != nil {
		if err := pool.AcquireSlow(ctx); err != nil {
			c.send(WSResponse{Type: "error", ID: msg.ID, Error: "server busy", Code: "SERVER_BUSY"})
			return
		}
		defer pool.ReleaseSlow()
	}
	s, err := c.handlers.manager.Create(ctx, spec.Width, spec.Height, fleet)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: s.View()})
}

func (c *WSClient) handleView(ctx context.Context, msg WSMessage) {
	var req WSSessionRequest
	if !c.decode(msg, &req) {
		return
	}
	s, err := c.handlers.manager.Get(ctx, req.Session)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: s.View()})
}

func (c *WSClient) handleState(ctx context.Context, msg WSMessage) {
	var req WSStateRequest
	if !c.decode(msg, &req) {
		return
	}
	state, err := engine.ParseSquareState(req.State)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.update(ctx, msg, req.Session, func(s *game.Session) (any, error) {
		if err := s.SetState(req.X, req.Y, state); err != nil {
			return nil, err
		}
		return s.View(), nil
	})
}

func (c *WSClient) handleCycle(ctx context.Context, msg WSMessage) {
	var req WSCycleRequest
	if !c.decode(msg, &req) {
		return
	}
	c.update(ctx, msg, req.Session, func(s *game.Session) (any, error) {
		state, err := s.Cycle(req.X, req.Y)
		if err != nil {
			return nil, err
		}
		return CycleResponse{Square: engine.Square{X: req.X, Y: req.Y}, State: state, StateID: s.StateID()}, nil
	})
}

func (c *WSClient) handleSink(ctx context.Context, msg WSMessage) {
	var req WSSinkRequest
	if !c.decode(msg, &req) {
		return
	}
	c.update(ctx, msg, req.Session, func(s *game.Session) (any, error) {
		sunk, err := s.Sink(req.Ship, req.Rotation, req.X, req.Y)
		if err != nil {
			return nil, err
		}
		return SinkResponse{Sunk: sunk, StateID: s.StateID()}, nil
	})
}

func (c *WSClient) handleRaise(ctx context.Context, msg WSMessage) {
	var req WSRaiseRequest
	if !c.decode(msg, &req) {
		return
	}
	c.update(ctx, msg, req.Session, func(s *game.Session) (any, error) {
		if err := s.Raise(req.Ship); err != nil {
			return nil, err
		}
		return s.View(), nil
	})
}

func (c *WSClient) handleTargets(ctx context.Context, msg WSMessage) {
	var req WSTargetsRequest
	if !c.decode(msg, &req) {
		return
	}
	by, err := engine.ParseRankBy(req.By)
	if err != nil {
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	s, err := c.handlers.manager.Get(ctx, req.Session)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	n := req.N
	if n == 0 {
		n = 5
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: TargetsResponse{RankBy: by.String(), Targets: s.Targets(n, by)}})
}

// handleSubscribe forwards the session's events to the client until it
// unsubscribes, disconnects or the session closes.
func (c *WSClient) handleSubscribe(ctx context.Context, msg WSMessage) {
	var req WSSessionRequest
	if !c.decode(msg, &req) {
		return
	}
	s, err := c.handlers.manager.Get(ctx, req.Session)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}

	c.mu.Lock()
	if _, ok := c.subs[req.Session]; ok {
		c.mu.Unlock()
		c.send(WSResponse{Type: "result", ID: msg.ID, Payload: s.View()})
		return
	}
	events, cancel := s.Subscribe(0)
	c.subs[req.Session] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: s.View()})

	go func() {
		defer c.wg.Done()
		for ev := range events {
			c.send(WSResponse{Type: "event", Payload: ev})
			if ev.Type == game.EventClosed {
				c.mu.Lock()
				delete(c.subs, req.Session)
				c.mu.Unlock()
				cancel()
			}
		}
	}()
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	var req WSSessionRequest
	if !c.decode(msg, &req) {
		return
	}
	c.mu.Lock()
	cancel, ok := c.subs[req.Session]
	delete(c.subs, req.Session)
	c.mu.Unlock()
	if ok {
		cancel()
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: map[string]bool{"subscribed": false}})
}
