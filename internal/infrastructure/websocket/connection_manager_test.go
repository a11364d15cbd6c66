package websocket

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
)

// fakeConn is a test double for domain.Connection that records deliveries and
// can be switched into a failing transport.
type fakeConn struct {
	id string

	mu     sync.Mutex
	userID string
	alive  bool
	fail   bool
	closed bool
	sent   [][]byte
	pings  int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, alive: true}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

func (f *fakeConn) SetUserID(userID string) {
	f.mu.Lock()
	f.userID = userID
	f.mu.Unlock()
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport closed")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if f.fail {
		return errors.New("transport closed")
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeConn) MarkPending() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

func (f *fakeConn) MarkAlive() {
	f.mu.Lock()
	f.alive = true
	f.mu.Unlock()
}

func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeConn) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func hasRoom(cm *ConnectionManager, productID string) bool {
	for _, id := range cm.ActiveRooms() {
		if id == productID {
			return true
		}
	}
	return false
}

func TestRoomCleanup(t *testing.T) {
	t.Run("empty room removed on last leave", func(t *testing.T) {
		cm := NewConnectionManager(logger.NewNop())
		a := newFakeConn("a")
		b := newFakeConn("b")
		cm.Register(a)
		cm.Register(b)
		cm.JoinRoom("p1", a)
		cm.JoinRoom("p1", b)

		cm.LeaveRoom("p1", a)
		if !hasRoom(cm, "p1") {
			t.Fatal("room removed while it still has a member")
		}

		cm.LeaveRoom("p1", b)
		if hasRoom(cm, "p1") {
			t.Fatal("empty room still present after last leave")
		}
	})

	t.Run("empty room removed on disconnect", func(t *testing.T) {
		cm := NewConnectionManager(logger.NewNop())
		a := newFakeConn("a")
		cm.Register(a)
		cm.JoinRoom("p1", a)
		cm.JoinRoom("p2", a)

		cm.Unregister(a)
		if hasRoom(cm, "p1") || hasRoom(cm, "p2") {
			t.Fatal("rooms survived their only member disconnecting")
		}
		if stats := cm.Stats(); stats.Connections != 0 {
			t.Fatalf("expected 0 connections, got %d", stats.Connections)
		}
	})

	t.Run("leave is idempotent", func(t *testing.T) {
		cm := NewConnectionManager(logger.NewNop())
		a := newFakeConn("a")
		cm.Register(a)

		cm.LeaveRoom("never-joined", a)
		cm.LeaveRoom("never-joined", a)
	})
}

func TestBroadcastReach(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	var inR []*fakeConn
	for i := 0; i < 5; i++ {
		c := newFakeConn(fmt.Sprintf("r%d", i))
		cm.Register(c)
		cm.JoinRoom("roomR", c)
		inR = append(inR, c)
	}

	inS := newFakeConn("s0")
	cm.Register(inS)
	cm.JoinRoom("roomS", inS)

	payload := []byte(`{"type":"bid_update","productId":"roomR"}`)
	if err := cm.BroadcastToProduct("roomR", payload); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	for _, c := range inR {
		if c.sentCount() != 1 {
			t.Errorf("connection %s expected 1 delivery, got %d", c.ID(), c.sentCount())
		}
		if string(c.lastSent()) != string(payload) {
			t.Errorf("connection %s got altered payload %s", c.ID(), c.lastSent())
		}
	}

	if inS.sentCount() != 0 {
		t.Errorf("connection in other room received %d deliveries", inS.sentCount())
	}
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	if err := cm.BroadcastToProduct("nobody-here", []byte("x")); err != nil {
		t.Fatalf("empty-room broadcast should succeed, got %v", err)
	}
}

func TestBroadcastPrunesDeadConnections(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	healthy := newFakeConn("healthy")
	dead := newFakeConn("dead")
	cm.Register(healthy)
	cm.Register(dead)
	cm.BindUser("u-dead", dead)
	cm.JoinRoom("p1", healthy)
	cm.JoinRoom("p1", dead)

	dead.setFail(true)

	if err := cm.BroadcastToProduct("p1", []byte("event")); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	if !dead.isClosed() {
		t.Error("dead connection not closed after failed delivery")
	}

	stats := cm.Stats()
	if stats.Connections != 1 {
		t.Errorf("expected 1 remaining connection, got %d", stats.Connections)
	}
	if stats.Users != 0 {
		t.Errorf("dead connection's user index entry survived, users=%d", stats.Users)
	}

	// A second broadcast reaches only the healthy member.
	if err := cm.BroadcastToProduct("p1", []byte("event2")); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if healthy.sentCount() != 2 {
		t.Errorf("healthy connection expected 2 deliveries, got %d", healthy.sentCount())
	}
	if dead.sentCount() != 0 {
		t.Errorf("pruned connection still received %d deliveries", dead.sentCount())
	}
}

func TestUserIndex(t *testing.T) {
	t.Run("multiple tabs for one user", func(t *testing.T) {
		cm := NewConnectionManager(logger.NewNop())
		tab1 := newFakeConn("tab1")
		tab2 := newFakeConn("tab2")
		cm.Register(tab1)
		cm.Register(tab2)
		cm.BindUser("u1", tab1)
		cm.BindUser("u1", tab2)

		if err := cm.NotifyUser("u1", []byte("hello")); err != nil {
			t.Fatalf("notify failed: %v", err)
		}
		if tab1.sentCount() != 1 || tab2.sentCount() != 1 {
			t.Errorf("expected both tabs notified, got %d and %d", tab1.sentCount(), tab2.sentCount())
		}
	})

	t.Run("entry removed when set becomes empty", func(t *testing.T) {
		cm := NewConnectionManager(logger.NewNop())
		tab1 := newFakeConn("tab1")
		tab2 := newFakeConn("tab2")
		cm.Register(tab1)
		cm.Register(tab2)
		cm.BindUser("u1", tab1)
		cm.BindUser("u1", tab2)

		cm.Unregister(tab1)
		if cm.Stats().Users != 1 {
			t.Fatal("user entry removed while a connection remains")
		}

		cm.Unregister(tab2)
		if cm.Stats().Users != 0 {
			t.Fatal("user entry survived its last connection")
		}
	})

	t.Run("notify unknown user is a no-op", func(t *testing.T) {
		cm := NewConnectionManager(logger.NewNop())
		if err := cm.NotifyUser("nobody", []byte("x")); err != nil {
			t.Fatalf("notify to unknown user should succeed, got %v", err)
		}
	})
}

func TestMultiRoomMembership(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	a := newFakeConn("a")
	cm.Register(a)
	cm.JoinRoom("p1", a)
	cm.JoinRoom("p2", a)

	cm.BroadcastToProduct("p1", []byte("e1"))
	cm.BroadcastToProduct("p2", []byte("e2"))

	if a.sentCount() != 2 {
		t.Fatalf("multi-room member expected 2 deliveries, got %d", a.sentCount())
	}

	cm.LeaveRoom("p1", a)
	if hasRoom(cm, "p1") {
		t.Fatal("room p1 survived its only member leaving")
	}
	if !hasRoom(cm, "p2") {
		t.Fatal("leaving p1 also removed membership in p2")
	}
}

func TestCloseRoom(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	a := newFakeConn("a")
	b := newFakeConn("b")
	cm.Register(a)
	cm.Register(b)
	cm.JoinRoom("p1", a)
	cm.JoinRoom("p1", b)
	cm.JoinRoom("p2", a)

	cm.CloseRoom("p1")

	if hasRoom(cm, "p1") {
		t.Fatal("closed room still present")
	}
	if a.isClosed() || b.isClosed() {
		t.Fatal("CloseRoom must not close member transports")
	}
	if !hasRoom(cm, "p2") {
		t.Fatal("closing p1 removed an unrelated room")
	}
	if cm.Stats().Connections != 2 {
		t.Fatal("closing a room unregistered its members")
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i))
			cm.Register(c)
			cm.JoinRoom("p1", c)
			cm.BroadcastToProduct("p1", []byte("e"))
			cm.LeaveRoom("p1", c)
			cm.Unregister(c)
		}(i)
	}
	wg.Wait()

	stats := cm.Stats()
	if stats.Connections != 0 || stats.Rooms != 0 {
		t.Fatalf("expected empty registry, got %+v", stats)
	}
}

var _ domain.Connection = (*fakeConn)(nil)
var _ domain.ConnectionRegistry = (*ConnectionManager)(nil)
