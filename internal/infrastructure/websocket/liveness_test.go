package websocket

import (
	"testing"
	"time"

	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
)

func TestLivenessEviction(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	monitor := NewLivenessMonitor(cm, time.Hour, logger.NewNop())

	responsive := newFakeConn("responsive")
	silent := newFakeConn("silent")
	cm.Register(responsive)
	cm.Register(silent)
	cm.BindUser("u-silent", silent)
	cm.JoinRoom("p1", responsive)
	cm.JoinRoom("p1", silent)

	// First cycle: both were alive, both get probed and marked pending.
	monitor.sweep()
	if cm.Stats().Connections != 2 {
		t.Fatalf("no eviction expected on first cycle, got %d connections", cm.Stats().Connections)
	}
	if responsive.pings != 1 || silent.pings != 1 {
		t.Fatalf("expected one probe each, got %d and %d", responsive.pings, silent.pings)
	}

	// Only one answers its probe.
	responsive.MarkAlive()

	// Second cycle: the silent connection is evicted from the room, the user
	// index and the registry, and its transport is closed.
	monitor.sweep()

	stats := cm.Stats()
	if stats.Connections != 1 {
		t.Fatalf("expected 1 connection after eviction, got %d", stats.Connections)
	}
	if stats.Users != 0 {
		t.Errorf("evicted connection left a user index entry")
	}
	if !silent.isClosed() {
		t.Error("evicted connection's transport not closed")
	}
	if responsive.isClosed() {
		t.Error("responsive connection was closed")
	}

	for _, room := range cm.ActiveRooms() {
		if room != "p1" {
			t.Errorf("unexpected room %q", room)
		}
	}
	cm.BroadcastToProduct("p1", []byte("e"))
	if silent.sentCount() != 0 {
		t.Error("evicted connection still receives broadcasts")
	}
	if responsive.sentCount() != 1 {
		t.Error("surviving connection missed the broadcast")
	}
}

func TestLivenessEvictsOnProbeFailure(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	monitor := NewLivenessMonitor(cm, time.Hour, logger.NewNop())

	broken := newFakeConn("broken")
	cm.Register(broken)
	cm.JoinRoom("p1", broken)
	broken.setFail(true)

	// Alive but unwritable: the failed probe itself triggers eviction.
	monitor.sweep()

	if cm.Stats().Connections != 0 {
		t.Fatal("connection with failing transport not evicted")
	}
	if len(cm.ActiveRooms()) != 0 {
		t.Fatal("room survived eviction of its only member")
	}
}
