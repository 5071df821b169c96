package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

// Peer is a live connection as seen by the registry and the rooms
type Peer interface {
	ID() string
	User() *models.User
	// Deliver queues an encoded frame. It never blocks and reports whether the frame was queued.
	Deliver(payload []byte) bool
}

// Registry maps connection ids to authenticated peers
type Registry struct {
	peers sync.Map
	count atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers p and reports whether it was new
func (r *Registry) Add(p Peer) bool {
	if _, loaded := r.peers.LoadOrStore(p.ID(), p); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Remove drops the entry for id and reports whether one existed
func (r *Registry) Remove(id string) bool {
	if _, loaded := r.peers.LoadAndDelete(id); !loaded {
		return false
	}
	r.count.Add(-1)
	return true
}

func (r *Registry) Get(id string) (Peer, bool) {
	v, ok := r.peers.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Peer), true
}

func (r *Registry) Count() int {
	return int(r.count.Load())
}

// ByUser returns the live peers authenticated as userID
func (r *Registry) ByUser(userID uint) []Peer {
	var peers []Peer
	r.peers.Range(func(_, v interface{}) bool {
		if p := v.(Peer); p.User().ID == userID {
			peers = append(peers, p)
		}
		return true
	})
	return peers
}
