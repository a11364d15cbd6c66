package domain

import (
	"context"
)

// Repository interfaces (read-only: the transactional system owns the writes)
type ProductRepository interface {
	GetSnapshot(ctx context.Context, productID string) (*ProductSnapshot, error)
}

type UserRepository interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// Connection is one live viewer transport. The registry references it but the
// transport layer owns its lifetime.
type Connection interface {
	ID() string
	UserID() string
	SetUserID(userID string)
	Send(payload []byte) error
	Ping() error
	Close() error
	Alive() bool
	MarkPending()
	MarkAlive()
}

// ConnectionRegistry tracks live connections, their room membership and the
// per-user index. All mutations are concurrency-safe.
type ConnectionRegistry interface {
	Register(conn Connection)
	Unregister(conn Connection)
	BindUser(userID string, conn Connection)
	JoinRoom(productID string, conn Connection)
	LeaveRoom(productID string, conn Connection)
	CloseRoom(productID string)
	BroadcastToProduct(productID string, payload []byte) error
	NotifyUser(userID string, payload []byte) error
	Connections() []Connection
	ActiveRooms() []string
	Stats() RegistryStats
}

type ProductBroadcaster interface {
	BroadcastToProduct(productID string, payload []byte) error
}

type UserNotifier interface {
	NotifyUser(userID string, payload []byte) error
}

// Authenticator verifies a bearer credential and returns the user identifier.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Event interfaces for cross-instance fan-out
type EventPublisher interface {
	Publish(ctx context.Context, env *RelayEnvelope) error
}

type EnvelopeHandler func(env *RelayEnvelope) error

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EnvelopeHandler) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
