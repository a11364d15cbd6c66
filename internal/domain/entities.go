package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStatus is the closed set of auction lifecycle states visible to viewers.
type ProductStatus string

const (
	ProductScheduled ProductStatus = "scheduled"
	ProductLive      ProductStatus = "live"
	ProductEnded     ProductStatus = "ended"
)

// ProductSnapshot is the point-in-time auction state sent to a connection on join.
// CurrentBid is in minor currency units (cents) so bid arithmetic stays exact.
type ProductSnapshot struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Status     ProductStatus `json:"status"`
	CurrentBid int64         `json:"currentBid"`
	BidCount   int           `json:"bidCount"`
	EndTime    time.Time     `json:"endTime"`
}

// Ended reports whether the auction is over, either by recorded status or
// because its scheduled end time has passed.
func (s *ProductSnapshot) Ended(now time.Time) bool {
	return s.Status == ProductEnded || (!s.EndTime.IsZero() && now.After(s.EndTime))
}

type RelayKind string

const (
	RelayBroadcast RelayKind = "broadcast"
	RelayNotify    RelayKind = "notify"
)

// RelayEnvelope carries one already-serialized client payload between service
// instances. Payload is opaque to the relay beyond its routing fields.
type RelayEnvelope struct {
	Instance  string          `json:"instance"`
	Kind      RelayKind       `json:"kind"`
	ProductID string          `json:"productId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// RegistryStats is the read-only view exposed on the monitoring endpoint.
type RegistryStats struct {
	Connections int
	Users       int
	Rooms       int
}
