// Package gateway is the websocket boundary of the server. Clients speak
// JSON frames: they authenticate against the session manager, then submit
// actions and receive per-viewer game projections and event streams.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conclave-games/conclave-server/internal/config"
	"github.com/conclave-games/conclave-server/internal/engine"
	"github.com/conclave-games/conclave-server/internal/metrics"
	"github.com/conclave-games/conclave-server/internal/session"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Type string `json:"type"`

	// Authentication.
	SessionID  string `json:"session_id,omitempty"`
	Secret     string `json:"secret,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`

	// Game lifecycle and play.
	GameID string            `json:"game_id,omitempty"`
	Setup  *engine.GameSetup `json:"setup,omitempty"`
	Action *engine.Action    `json:"action,omitempty"`

	// Server to client payloads.
	State  *engine.GameView `json:"state,omitempty"`
	Events []eventRecord    `json:"events,omitempty"`
	Code   string           `json:"code,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Inbound frame types.
const (
	frameLogin      = "login"
	frameCreateGame = "create_game"
	frameJoinGame   = "join_game"
	frameAction     = "action"
	frameView       = "view"
)

// Outbound frame types.
const (
	frameSession   = "session"
	frameGameState = "game_state"
	frameEvents    = "events"
	frameError     = "error"
)

type eventRecord struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Source      string            `json:"source,omitempty"`
	Target      string            `json:"target,omitempty"`
	Player      string            `json:"player,omitempty"`
	Amount      int               `json:"amount,omitempty"`
	Description string            `json:"description,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	session  *session.Session
	playerID string
	gameID   string
}

// Gateway upgrades connections and routes frames to the engine.
type Gateway struct {
	cfg      config.ServerConfig
	engine   *engine.Engine
	sessions *session.Manager
	metrics  *metrics.Set
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	upgrader websocket.Upgrader
	server   *http.Server
}

// New builds a gateway around an engine and session manager.
func New(cfg config.ServerConfig, eng *engine.Engine, sessions *session.Manager, m *metrics.Set, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:      cfg,
		engine:   eng,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		clients:  make(map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start serves the websocket endpoint until Shutdown is called.
func (gw *Gateway) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.serveWS)
	gw.server = &http.Server{Addr: gw.cfg.Address, Handler: mux}

	gw.logger.Info("gateway listening", zap.String("address", gw.cfg.Address))
	err := gw.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes every connection.
func (gw *Gateway) Shutdown(ctx context.Context) error {
	gw.mu.Lock()
	for c := range gw.clients {
		c.conn.Close()
		delete(gw.clients, c)
	}
	gw.mu.Unlock()
	if gw.server == nil {
		return nil
	}
	return gw.server.Shutdown(ctx)
}

func (gw *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	gw.register(c)

	go gw.writePump(c)
	gw.readPump(c)
}

func (gw *Gateway) register(c *client) {
	gw.mu.Lock()
	gw.clients[c] = true
	gw.mu.Unlock()
	if gw.metrics != nil {
		gw.metrics.GatewaySessions.Inc()
	}
}

func (gw *Gateway) unregister(c *client) {
	gw.mu.Lock()
	if _, ok := gw.clients[c]; ok {
		delete(gw.clients, c)
		close(c.send)
		if gw.metrics != nil {
			gw.metrics.GatewaySessions.Dec()
		}
	}
	gw.mu.Unlock()
}

func (gw *Gateway) readPump(c *client) {
	defer func() {
		gw.unregister(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			gw.sendError(c, "INVALID_SELECTION", "malformed frame")
			continue
		}
		gw.handleFrame(c, f)
	}
}

func (gw *Gateway) writePump(c *client) {
	ticker := time.NewTicker(gw.pingInterval())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(gw.writeTimeout()))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(gw.writeTimeout()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (gw *Gateway) pingInterval() time.Duration {
	if gw.cfg.PingInterval > 0 {
		return gw.cfg.PingInterval
	}
	return 30 * time.Second
}

func (gw *Gateway) writeTimeout() time.Duration {
	if gw.cfg.WriteTimeout > 0 {
		return gw.cfg.WriteTimeout
	}
	return 10 * time.Second
}

func (gw *Gateway) handleFrame(c *client, f Frame) {
	if f.Type == frameLogin {
		gw.handleLogin(c, f)
		return
	}
	if c.session == nil {
		gw.sendError(c, "NOT_AUTHORIZED", "login required")
		return
	}
	gw.sessions.Touch(c.session.ID)

	switch f.Type {
	case frameCreateGame:
		gw.handleCreateGame(c, f)
	case frameJoinGame:
		gw.handleJoinGame(c, f)
	case frameAction:
		gw.handleAction(c, f)
	case frameView:
		gw.sendState(c, c.gameID)
	default:
		gw.sendError(c, "ILLEGAL_ACTION", "unknown frame type "+f.Type)
	}
}

// handleLogin opens a new session for player_id/player_name, or resumes an
// existing one when session_id and secret are presented.
func (gw *Gateway) handleLogin(c *client, f Frame) {
	if f.SessionID != "" {
		s, err := gw.sessions.Validate(f.SessionID, f.Secret)
		if err != nil {
			gw.sendError(c, "NOT_AUTHORIZED", err.Error())
			return
		}
		c.session = s
		c.playerID = s.PlayerID
		gw.sendFrame(c, Frame{Type: frameSession, SessionID: s.ID, PlayerID: s.PlayerID})
		return
	}

	if f.PlayerID == "" {
		gw.sendError(c, "INVALID_SELECTION", "player_id required")
		return
	}
	s, secret, err := gw.sessions.Create(f.PlayerID, f.PlayerName)
	if err != nil {
		gw.sendError(c, "NOT_AUTHORIZED", err.Error())
		return
	}
	c.session = s
	c.playerID = s.PlayerID
	gw.sendFrame(c, Frame{Type: frameSession, SessionID: s.ID, Secret: secret, PlayerID: s.PlayerID})
}

func (gw *Gateway) handleCreateGame(c *client, f Frame) {
	if f.Setup == nil {
		gw.sendError(c, "INVALID_SELECTION", "setup required")
		return
	}
	g, err := gw.engine.CreateGame(context.Background(), *f.Setup)
	if err != nil {
		gw.sendActionError(c, err)
		return
	}
	c.gameID = g.ID
	gw.logger.Info("game created",
		zap.String("game_id", g.ID),
		zap.String("player_id", c.playerID),
	)
	gw.broadcastState(g.ID)
}

func (gw *Gateway) handleJoinGame(c *client, f Frame) {
	if _, err := gw.engine.View(f.GameID, c.playerID); err != nil {
		gw.sendActionError(c, err)
		return
	}
	c.gameID = f.GameID
	gw.sendState(c, f.GameID)
}

func (gw *Gateway) handleAction(c *client, f Frame) {
	if f.Action == nil {
		gw.sendError(c, "INVALID_SELECTION", "action required")
		return
	}
	a := *f.Action
	// The session decides who is acting, never the frame.
	a.PlayerID = c.playerID
	if a.GameID == "" {
		a.GameID = c.gameID
	}

	events, err := gw.engine.Submit(context.Background(), a)
	if err != nil {
		gw.sendActionError(c, err)
		return
	}

	records := make([]eventRecord, 0, len(events))
	for _, ev := range events {
		records = append(records, eventRecord{
			ID:          ev.ID,
			Type:        string(ev.Type),
			Source:      ev.SourceID,
			Target:      ev.TargetID,
			Player:      ev.PlayerID,
			Amount:      ev.Amount,
			Description: ev.Description,
			Meta:        ev.Metadata,
		})
	}

	gw.broadcastEvents(a.GameID, records)
	gw.broadcastState(a.GameID)
}

// broadcastState sends each connected player of the game their own
// redacted projection.
func (gw *Gateway) broadcastState(gameID string) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for c := range gw.clients {
		if c.gameID != gameID {
			continue
		}
		view, err := gw.engine.View(gameID, c.playerID)
		if err != nil {
			continue
		}
		gw.queueFrame(c, Frame{Type: frameGameState, GameID: gameID, State: &view})
	}
}

func (gw *Gateway) broadcastEvents(gameID string, records []eventRecord) {
	if len(records) == 0 {
		return
	}
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for c := range gw.clients {
		if c.gameID == gameID {
			gw.queueFrame(c, Frame{Type: frameEvents, GameID: gameID, Events: records})
		}
	}
}

func (gw *Gateway) sendState(c *client, gameID string) {
	view, err := gw.engine.View(gameID, c.playerID)
	if err != nil {
		gw.sendActionError(c, err)
		return
	}
	gw.sendFrame(c, Frame{Type: frameGameState, GameID: gameID, State: &view})
}

func (gw *Gateway) sendActionError(c *client, err error) {
	var ae *engine.ActionError
	if errors.As(err, &ae) {
		gw.sendError(c, ae.Code, ae.Reason)
		return
	}
	gw.sendError(c, "ILLEGAL_ACTION", err.Error())
}

func (gw *Gateway) sendError(c *client, code, reason string) {
	gw.sendFrame(c, Frame{Type: frameError, Code: code, Error: reason})
}

func (gw *Gateway) sendFrame(c *client, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		gw.logger.Error("marshal frame", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		gw.logger.Warn("client send buffer full, dropping frame",
			zap.String("player_id", c.playerID))
	}
}

// queueFrame is sendFrame for callers already holding the client lock.
func (gw *Gateway) queueFrame(c *client, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
