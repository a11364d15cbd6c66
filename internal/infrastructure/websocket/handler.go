package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/utils"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin filtering happens at the edge proxy
	},
}

// clientMessage is the closed set of fields a client may send. Unknown types
// are answered in-band, never dropped.
type clientMessage struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

type WebSocketHandler struct {
	registry domain.ConnectionRegistry
	auth     domain.Authenticator
	products domain.ProductRepository
	log      logger.Logger
}

func NewWebSocketHandler(registry domain.ConnectionRegistry, auth domain.Authenticator,
	products domain.ProductRepository, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		registry: registry,
		auth:     auth,
		products: products,
		log:      log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, h.log)
	h.registry.Register(wsConn)

	go h.readLoop(wsConn)
}

func (h *WebSocketHandler) readLoop(conn *WebSocketConnection) {
	defer func() {
		h.registry.Unregister(conn)
		conn.Close()
	}()

	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Read failed, dropping connection", "conn_id", conn.ID(), "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendError(conn, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "authenticate":
			if !h.handleAuthenticate(conn, msg.Token) {
				return
			}
		case "join_auction":
			h.handleJoin(conn, msg.ProductID, msg.Anonymous)
		case "leave_auction":
			h.handleLeave(conn, msg.ProductID)
		case "ping":
			conn.MarkAlive()
			h.send(conn, map[string]string{"type": "pong"})
		default:
			h.sendError(conn, "Unknown message type")
		}
	}
}

// handleAuthenticate returns false when the connection must be torn down: a
// rejected credential is fatal, the client has to reconnect with a fresh one.
func (h *WebSocketHandler) handleAuthenticate(conn *WebSocketConnection, token string) bool {
	userID, err := h.auth.Authenticate(context.Background(), token)
	if err != nil {
		h.log.Info("Authentication rejected", "conn_id", conn.ID(), "error", err)
		h.send(conn, map[string]string{
			"type":    "auth_error",
			"message": "Authentication failed",
		})
		return false
	}

	conn.SetUserID(userID)
	h.registry.BindUser(userID, conn)

	h.send(conn, map[string]string{
		"type":   "authenticated",
		"userId": userID,
	})
	return true
}

func (h *WebSocketHandler) handleJoin(conn *WebSocketConnection, productID string, anonymous bool) {
	if productID == "" {
		h.sendError(conn, "Product not found")
		return
	}

	if conn.UserID() == "" {
		if !anonymous {
			h.sendError(conn, "Authentication required")
			return
		}
		// Anonymous viewers get a generated identity; they are never bound to
		// the user index, so direct notifications cannot reach them.
		conn.SetUserID(utils.GenerateID("anon"))
	}

	snapshot, err := h.products.GetSnapshot(context.Background(), productID)
	if err != nil {
		if !errors.Is(err, domain.ErrProductNotFound) {
			h.log.Error("Failed to load product snapshot", "product_id", productID, "error", err)
		}
		h.sendError(conn, "Product not found")
		return
	}

	h.registry.JoinRoom(productID, conn)

	h.send(conn, map[string]interface{}{
		"type":      "auction_joined",
		"productId": productID,
		"product":   snapshot,
		"message":   "Joined auction room",
	})
}

func (h *WebSocketHandler) handleLeave(conn *WebSocketConnection, productID string) {
	h.registry.LeaveRoom(productID, conn)

	h.send(conn, map[string]interface{}{
		"type":      "auction_left",
		"productId": productID,
		"message":   "Left auction room",
	})
}

func (h *WebSocketHandler) sendError(conn *WebSocketConnection, message string) {
	h.send(conn, map[string]string{"type": "error", "message": message})
}

func (h *WebSocketHandler) send(conn *WebSocketConnection, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to marshal reply", "error", err)
		return
	}

	if err := conn.Send(payload); err != nil {
		h.log.Debug("Failed to send reply", "conn_id", conn.ID(), "error", err)
	}
}
