package realtime

import "sync"

// Rooms tracks broadcast group membership. Join and Leave are idempotent.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]Peer
	joined  map[string]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]Peer),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds p to room and reports whether it was not a member yet
func (r *Rooms) Join(room string, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.members[room]
	if !ok {
		members = make(map[string]Peer)
		r.members[room] = members
	}
	if _, ok := members[p.ID()]; ok {
		return false
	}
	members[p.ID()] = p

	rooms, ok := r.joined[p.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[p.ID()] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes the peer from room and reports whether it was a member
func (r *Rooms) Leave(room, peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(room, peerID)
}

func (r *Rooms) leave(room, peerID string) bool {
	members, ok := r.members[room]
	if !ok {
		return false
	}
	if _, ok := members[peerID]; !ok {
		return false
	}

	delete(members, peerID)
	if len(members) == 0 {
		delete(r.members, room)
	}
	if rooms, ok := r.joined[peerID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, peerID)
		}
	}
	return true
}

// LeaveAll removes the peer from every room it joined
func (r *Rooms) LeaveAll(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[peerID] {
		r.leave(room, peerID)
	}
}

// Members returns a snapshot of the room
func (r *Rooms) Members(room string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.members[room]
	peers := make([]Peer, 0, len(members))
	for _, p := range members {
		peers = append(peers, p)
	}
	return peers
}

func (r *Rooms) IsMember(room, peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][peerID]
	return ok
}

// Count is the number of non-empty rooms
func (r *Rooms) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
