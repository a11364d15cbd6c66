package websocket

import (
	"sync"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
)

// ConnectionManager is the process-wide registry: every live connection, the
// room map (productID -> viewers) and the user index (userID -> connections).
// Every read-then-act sequence happens under one mutex so a room is never
// deleted while a concurrent join is adding a member to it.
type ConnectionManager struct {
	mu         sync.RWMutex
	conns      map[domain.Connection]struct{}
	rooms      map[string]map[domain.Connection]struct{}
	userConns  map[string]map[domain.Connection]struct{}
	membership map[domain.Connection]map[string]struct{} // conn -> joined rooms
	boundUser  map[domain.Connection]string              // conn -> user index key
	log        logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		conns:      make(map[domain.Connection]struct{}),
		rooms:      make(map[string]map[domain.Connection]struct{}),
		userConns:  make(map[string]map[domain.Connection]struct{}),
		membership: make(map[domain.Connection]map[string]struct{}),
		boundUser:  make(map[domain.Connection]string),
		log:        log,
	}
}

func (cm *ConnectionManager) Register(conn domain.Connection) {
	cm.mu.Lock()
	cm.conns[conn] = struct{}{}
	cm.mu.Unlock()

	cm.log.Info("Connection registered", "conn_id", conn.ID())
}

// Unregister removes the connection from every room it joined and from the
// user index. Safe to call more than once.
func (cm *ConnectionManager) Unregister(conn domain.Connection) {
	cm.mu.Lock()
	cm.removeLocked(conn)
	cm.mu.Unlock()

	cm.log.Info("Connection unregistered", "conn_id", conn.ID())
}

// BindUser attaches an authenticated connection to the user index so direct
// notifications can reach it.
func (cm *ConnectionManager) BindUser(userID string, conn domain.Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, registered := cm.conns[conn]; !registered {
		return
	}

	if cm.userConns[userID] == nil {
		cm.userConns[userID] = make(map[domain.Connection]struct{})
	}
	cm.userConns[userID][conn] = struct{}{}
	cm.boundUser[conn] = userID

	cm.log.Info("Connection bound to user", "conn_id", conn.ID(), "user_id", userID)
}

func (cm *ConnectionManager) JoinRoom(productID string, conn domain.Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, registered := cm.conns[conn]; !registered {
		return
	}

	if cm.rooms[productID] == nil {
		cm.rooms[productID] = make(map[domain.Connection]struct{})
	}
	cm.rooms[productID][conn] = struct{}{}

	if cm.membership[conn] == nil {
		cm.membership[conn] = make(map[string]struct{})
	}
	cm.membership[conn][productID] = struct{}{}

	cm.log.Info("Connection joined room", "conn_id", conn.ID(),
		"user_id", conn.UserID(), "product_id", productID)
}

// LeaveRoom is idempotent: leaving a room the connection is not in is a no-op.
func (cm *ConnectionManager) LeaveRoom(productID string, conn domain.Connection) {
	cm.mu.Lock()
	cm.leaveRoomLocked(productID, conn)
	cm.mu.Unlock()
}

// CloseRoom removes every member of the room without closing their transports
// (a viewer may still be watching other auctions).
func (cm *ConnectionManager) CloseRoom(productID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for conn := range cm.rooms[productID] {
		cm.leaveRoomLocked(productID, conn)
	}

	cm.log.Info("Room closed", "product_id", productID)
}

// BroadcastToProduct delivers payload to every member of the room. A failed
// write marks the connection dead; dead connections are removed from all
// indices and closed before the call returns.
func (cm *ConnectionManager) BroadcastToProduct(productID string, payload []byte) error {
	cm.mu.RLock()
	members := make([]domain.Connection, 0, len(cm.rooms[productID]))
	for conn := range cm.rooms[productID] {
		members = append(members, conn)
	}
	cm.mu.RUnlock()

	if len(members) == 0 {
		cm.log.Debug("Broadcast to empty room", "product_id", productID)
		return nil
	}

	var dead []domain.Connection
	for _, conn := range members {
		if err := conn.Send(payload); err != nil {
			cm.log.Warn("Failed to send to connection, pruning",
				"conn_id", conn.ID(), "user_id", conn.UserID(), "error", err)
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		cm.Unregister(conn)
		conn.Close()
	}

	cm.log.Debug("Broadcast delivered", "product_id", productID,
		"recipients", len(members)-len(dead), "pruned", len(dead))
	return nil
}

// NotifyUser delivers payload to every open connection of one user.
func (cm *ConnectionManager) NotifyUser(userID string, payload []byte) error {
	cm.mu.RLock()
	targets := make([]domain.Connection, 0, len(cm.userConns[userID]))
	for conn := range cm.userConns[userID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	var dead []domain.Connection
	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			cm.log.Warn("Failed to notify user connection, pruning",
				"conn_id", conn.ID(), "user_id", userID, "error", err)
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		cm.Unregister(conn)
		conn.Close()
	}

	return nil
}

func (cm *ConnectionManager) Connections() []domain.Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conns := make([]domain.Connection, 0, len(cm.conns))
	for conn := range cm.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (cm *ConnectionManager) ActiveRooms() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	rooms := make([]string, 0, len(cm.rooms))
	for productID := range cm.rooms {
		rooms = append(rooms, productID)
	}
	return rooms
}

func (cm *ConnectionManager) Stats() domain.RegistryStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return domain.RegistryStats{
		Connections: len(cm.conns),
		Users:       len(cm.userConns),
		Rooms:       len(cm.rooms),
	}
}

// leaveRoomLocked removes conn from one room and garbage-collects the room
// entry the moment its member set is empty. Caller holds cm.mu.
func (cm *ConnectionManager) leaveRoomLocked(productID string, conn domain.Connection) {
	if members, exists := cm.rooms[productID]; exists {
		delete(members, conn)
		if len(members) == 0 {
			delete(cm.rooms, productID)
		}
	}

	if joined, exists := cm.membership[conn]; exists {
		delete(joined, productID)
		if len(joined) == 0 {
			delete(cm.membership, conn)
		}
	}
}

// removeLocked drops every reference to conn. Caller holds cm.mu.
func (cm *ConnectionManager) removeLocked(conn domain.Connection) {
	for productID := range cm.membership[conn] {
		cm.leaveRoomLocked(productID, conn)
	}

	if userID, bound := cm.boundUser[conn]; bound {
		if userConnections, exists := cm.userConns[userID]; exists {
			delete(userConnections, conn)
			if len(userConnections) == 0 {
				delete(cm.userConns, userID)
			}
		}
		delete(cm.boundUser, conn)
	}

	delete(cm.conns, conn)
}
