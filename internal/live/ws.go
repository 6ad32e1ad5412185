package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"flexboard/internal/auth"
	"flexboard/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// TokenVerifier resolves an access token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// conn serializes writes to one websocket; gorilla allows a single writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Handler upgrades HTTP requests to leaderboard sockets. A valid token makes
// the connection authenticated; a missing or invalid one leaves it anonymous.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

// NewHandler creates a socket Handler. allowedOrigin restricts browser
// origins; empty or "*" accepts any.
func NewHandler(hub *Hub, verifier TokenVerifier, allowedOrigin string) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token := auth.TokenFromRequest(r); token != "" {
		id, err := h.verifier.Verify(token)
		if err != nil {
			log.Debug().Err(err).Msg("Invalid token provided for socket connection")
		} else {
			userID = id
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Socket upgrade failed")
		return
	}

	c := &conn{ws: ws}
	clientID := h.hub.Register(c, userID)
	defer func() {
		h.hub.Unregister(clientID)
		ws.Close()
	}()

	if err := c.Send(ConnectedMessage{
		Type:          TypeConnected,
		ClientID:      clientID,
		Authenticated: userID != "",
		Timestamp:     h.hub.now(),
	}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(c, done)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client_id", clientID).Msg("Socket closed unexpectedly")
			}
			return
		}
		h.handleMessage(clientID, c, data)
	}
}

func (h *Handler) keepAlive(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleMessage(clientID string, c *conn, data []byte) {
	reply := func(msg any) {
		if err := c.Send(msg); err != nil {
			log.Debug().Err(err).Str("client_id", clientID).Msg("Failed to reply on socket")
		}
	}
	fail := func(message string) {
		reply(ErrorMessage{Type: TypeError, Message: message, Timestamp: h.hub.now()})
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		fail(MsgInvalidFormat)
		return
	}

	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		scope, err := model.ParseScope(msg.LeaderboardType, msg.Region)
		if err != nil {
			fail(err.Error())
			return
		}

		ackType := TypeSubscribed
		if msg.Type == TypeSubscribe {
			h.hub.Subscribe(clientID, scope)
		} else {
			h.hub.Unsubscribe(clientID, scope)
			ackType = TypeUnsubscribed
		}
		reply(SubscriptionMessage{
			Type:            ackType,
			LeaderboardType: scope.Type,
			Region:          scope.RegionPtr(),
			Timestamp:       h.hub.now(),
		})

	case TypePing:
		reply(PongMessage{Type: TypePong, Timestamp: h.hub.now()})

	default:
		fail(MsgUnknownType)
	}
}
