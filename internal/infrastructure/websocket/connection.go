package websocket

import (
	"sync"
	"time"

	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/utils"

	"github.com/gorilla/websocket"
)

// writeWait bounds every write so one stalled client cannot hold up a room
// broadcast; a timed-out write counts as a transport failure.
const writeWait = 10 * time.Second

type WebSocketConnection struct {
	conn *websocket.Conn
	id   string
	log  logger.Logger

	// writeMu serializes frames; gorilla allows only one concurrent writer.
	writeMu sync.Mutex

	mu     sync.Mutex
	userID string
	alive  bool
}

func NewWebSocketConnection(conn *websocket.Conn, log logger.Logger) *WebSocketConnection {
	wsc := &WebSocketConnection{
		conn:  conn,
		id:    utils.GenerateID("conn"),
		log:   log,
		alive: true,
	}

	conn.SetPongHandler(func(string) error {
		wsc.MarkAlive()
		return nil
	})

	return wsc
}

func (wsc *WebSocketConnection) ID() string {
	return wsc.id
}

func (wsc *WebSocketConnection) UserID() string {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()
	return wsc.userID
}

func (wsc *WebSocketConnection) SetUserID(userID string) {
	wsc.mu.Lock()
	wsc.userID = userID
	wsc.mu.Unlock()
}

func (wsc *WebSocketConnection) Send(payload []byte) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteMessage(websocket.TextMessage, payload)
}

func (wsc *WebSocketConnection) Ping() error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	return wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) Alive() bool {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()
	return wsc.alive
}

func (wsc *WebSocketConnection) MarkPending() {
	wsc.mu.Lock()
	wsc.alive = false
	wsc.mu.Unlock()
}

func (wsc *WebSocketConnection) MarkAlive() {
	wsc.mu.Lock()
	wsc.alive = true
	wsc.mu.Unlock()
}
