// Package websocket pushes row change events to connected browsers. Clients
// subscribe to table topics ("appointments", "financial_records", ...) and
// receive every event of those tables they are allowed to see.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
)

// ClientMessage is an inbound subscription change.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection and the identity that opened it.
type Client struct {
	ID     string
	UserID string
	Role   string
	Topics []string
	Send   chan []byte
	hub    *Hub
	conn   Conn
}

// VisibilityFunc decides whether c may see ev.
type VisibilityFunc func(c *Client, ev events.Event) bool

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> clients
	all     map[*Client]struct{}
	visible VisibilityFunc
	logger  zerolog.Logger
}

// NewHub creates a hub. A nil visible lets every client see every event.
func NewHub(logger zerolog.Logger, visible VisibilityFunc) *Hub {
	if visible == nil {
		visible = func(*Client, events.Event) bool { return true }
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		visible: visible,
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	h.addTopics(client, client.Topics)
}

// Unregister removes the client everywhere and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	h.removeTopics(client, client.Topics)
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var fresh []string
	for _, t := range topics {
		if _, ok := h.clients[t][client]; !ok {
			fresh = append(fresh, t)
		}
	}
	h.addTopics(client, fresh)
	client.Topics = append(client.Topics, fresh...)
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeTopics(client, topics)
	drop := make(map[string]bool, len(topics))
	for _, t := range topics {
		drop[t] = true
	}
	kept := client.Topics[:0]
	for _, t := range client.Topics {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	client.Topics = kept
}

func (h *Hub) addTopics(client *Client, topics []string) {
	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

func (h *Hub) removeTopics(client *Client, topics []string) {
	for _, topic := range topics {
		if subs, ok := h.clients[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, topic)
			}
		}
	}
}

// ProcessMessage applies a subscribe or unsubscribe request.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// OnEvent sends ev to the subscribers of its table that may see it. Slow
// clients with a full buffer miss the event.
func (h *Hub) OnEvent(_ context.Context, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("table", ev.Table).Msg("websocket: encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[ev.Table] {
		if !h.visible(client, ev) {
			continue
		}
		select {
		case client.Send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ownerColumns are the row fields that tie a row to an account.
var ownerColumns = []string{"patient_id", "clinician_id", "recipient_id"}

// OwnRowsVisibility lets staff roles see everything. Clinicians and
// patients see their own account row and rows that reference them.
func OwnRowsVisibility(c *Client, ev events.Event) bool {
	switch c.Role {
	case auth.RoleAdmin, auth.RoleScheduling, auth.RoleFinancial:
		return true
	}
	if ev.Table == events.TableFinancialRecords {
		return false
	}
	if ev.Table == events.TableAccounts {
		return ev.ID == c.UserID
	}
	var row map[string]interface{}
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		return false
	}
	for _, col := range ownerColumns {
		if v, ok := row[col].(string); ok && v == c.UserID {
			return true
		}
	}
	return false
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades authenticated requests to websocket connections.
type Handler struct {
	hub          *Hub
	upgrader     gorillawebsocket.Upgrader
	pingInterval time.Duration
}

// NewHandler binds a handler to hub. allowedOrigins ("*" allows any)
// guards the upgrade against cross-site requests.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	u := upgrader
	u.CheckOrigin = originChecker(allowedOrigins)
	return &Handler{hub: hub, upgrader: u, pingInterval: 30 * time.Second}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

func (wsh *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades the connection, subscribes the client to the
// comma-separated topics query parameter and starts its pumps.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var topics []string
	for _, t := range strings.Split(c.QueryParam("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Role:   auth.RoleFromContext(ctx),
		Topics: topics,
		Send:   make(chan []byte, 256),
		hub:    wsh.hub,
		conn:   ws,
	}
	wsh.hub.Register(client)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)
	return nil
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wsh.hub.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(wsh.pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, nil)
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(gorillawebsocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
