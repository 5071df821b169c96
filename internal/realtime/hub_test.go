package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

type fakePeer struct {
	id   string
	user *models.User
	full bool

	mu     sync.Mutex
	frames []Frame
}

func newFakePeer(id string, userID uint) *fakePeer {
	return &fakePeer{id: id, user: &models.User{ID: userID, Role: models.RoleStudent}}
}

func (p *fakePeer) ID() string         { return p.id }
func (p *fakePeer) User() *models.User { return p.user }

func (p *fakePeer) Deliver(payload []byte) bool {
	if p.full {
		return false
	}
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
	return true
}

func (p *fakePeer) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.frames))
	for i, f := range p.frames {
		names[i] = f.Event
	}
	return names
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := NewRegistry()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := newFakePeer(fmt.Sprintf("conn-%d", i), uint(i%7)+1)
			r.Add(p)
			if _, ok := r.Get(p.ID()); !ok {
				t.Errorf("peer %s missing after add", p.ID())
			}
			// Disconnect races a duplicate disconnect
			if i%2 == 0 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					r.Remove(p.ID())
				}()
			}
			r.Remove(p.ID())
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != 0 {
		t.Fatalf("Count = %d after every peer left, want 0", got)
	}
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	p := newFakePeer("a", 1)

	if !r.Add(p) {
		t.Fatal("first Add should register")
	}
	if r.Add(p) {
		t.Fatal("second Add should be a no-op")
	}
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
	if peers := r.ByUser(1); len(peers) != 1 {
		t.Fatalf("ByUser = %d peers, want 1", len(peers))
	}
	if !r.Remove("a") || r.Remove("a") {
		t.Fatal("Remove should report true once")
	}
}

func TestRooms_JoinLeaveIdempotent(t *testing.T) {
	rooms := NewRooms()
	a := newFakePeer("a", 1)
	b := newFakePeer("b", 2)

	if !rooms.Join("ticket_1", a) {
		t.Fatal("first join should add")
	}
	if rooms.Join("ticket_1", a) {
		t.Fatal("second join should be a no-op")
	}
	rooms.Join("ticket_1", b)
	rooms.Join("user_1", a)

	if got := len(rooms.Members("ticket_1")); got != 2 {
		t.Fatalf("ticket_1 has %d members, want 2", got)
	}
	if rooms.Count() != 2 {
		t.Fatalf("Count = %d, want 2", rooms.Count())
	}

	if !rooms.Leave("ticket_1", "b") {
		t.Fatal("leave of a member should report true")
	}
	if rooms.Leave("ticket_1", "b") {
		t.Fatal("second leave should be a no-op")
	}
	if rooms.Leave("ticket_9", "a") {
		t.Fatal("leaving an unknown room should be a no-op")
	}

	rooms.LeaveAll("a")
	if rooms.Count() != 0 {
		t.Fatalf("Count = %d after LeaveAll, want 0", rooms.Count())
	}
	if rooms.IsMember("user_1", "a") {
		t.Fatal("peer still in user_1 after LeaveAll")
	}
}

func TestRooms_ConcurrentJoinLeave(t *testing.T) {
	rooms := NewRooms()
	peers := make([]*fakePeer, 50)
	for i := range peers {
		peers[i] = newFakePeer(fmt.Sprintf("p%d", i), uint(i))
	}

	var wg sync.WaitGroup
	for _, p := range peers {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(p *fakePeer) {
				defer wg.Done()
				rooms.Join("ticket_1", p)
				rooms.Join("ticket_2", p)
				rooms.Members("ticket_1")
			}(p)
		}
	}
	wg.Wait()

	if got := len(rooms.Members("ticket_1")); got != len(peers) {
		t.Fatalf("ticket_1 has %d members, want %d", got, len(peers))
	}

	for _, p := range peers {
		wg.Add(1)
		go func(p *fakePeer) {
			defer wg.Done()
			rooms.LeaveAll(p.ID())
			rooms.Leave("ticket_1", p.ID())
		}(p)
	}
	wg.Wait()

	if rooms.Count() != 0 {
		t.Fatalf("Count = %d, want 0", rooms.Count())
	}
}

func TestHub_EmitToRoom(t *testing.T) {
	hub := NewHub(discardLogger())
	sender := newFakePeer("sender", 1)
	other := newFakePeer("other", 2)
	outsider := newFakePeer("outsider", 3)
	stalled := newFakePeer("stalled", 4)
	stalled.full = true

	for _, p := range []*fakePeer{sender, other, outsider, stalled} {
		hub.Register(p)
	}
	hub.Join("ticket_1", sender)
	hub.Join("ticket_1", other)
	hub.Join("ticket_1", stalled)

	hub.EmitToRoom("ticket_1", "new_message", map[string]int{"id": 1}, "")
	hub.EmitToRoom("ticket_1", "user_typing", map[string]int{"id": 1}, "sender")

	tests := []struct {
		peer *fakePeer
		want []string
	}{
		{sender, []string{"new_message"}},
		{other, []string{"new_message", "user_typing"}},
		{outsider, nil},
	}
	for _, tt := range tests {
		t.Run(tt.peer.id, func(t *testing.T) {
			got := tt.peer.events()
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("events = %v, want %v", got, tt.want)
				}
			}
		})
	}

	hub.Unregister(other)
	connections, rooms := hub.Stats()
	if connections != 3 || rooms != 1 {
		t.Fatalf("Stats = (%d, %d), want (3, 1)", connections, rooms)
	}
	if hub.Rooms().IsMember("ticket_1", "other") {
		t.Fatal("unregistered peer still in room")
	}
}

func TestHub_JoinConnection(t *testing.T) {
	hub := NewHub(discardLogger())
	alice := newFakePeer("alice", 1)
	hub.Register(alice)

	tests := []struct {
		name   string
		connID string
		want   bool
	}{
		{name: "registered", connID: "alice", want: true},
		{name: "already member", connID: "alice", want: false},
		{name: "unknown", connID: "ghost", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hub.JoinConnection("ticket_7", tt.connID); got != tt.want {
				t.Fatalf("JoinConnection(%q) = %v, want %v", tt.connID, got, tt.want)
			}
		})
	}

	hub.EmitToRoom("ticket_7", "new_message", map[string]int{"id": 1}, "")
	if got := alice.events(); len(got) != 1 || got[0] != "new_message" {
		t.Fatalf("events = %v", got)
	}
}
