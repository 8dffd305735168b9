package relay

import (
	"sync"
)

// room holds the members of one signaling room. Each room carries its own
// lock so unrelated rooms never contend.
type room struct {
	mu sync.Mutex
	// dead is set once the room has been pruned from the registry; a Join that
	// raced the prune must retry against a fresh entry.
	dead    bool
	members map[int64]map[*Session]struct{}
}

// Registry is the authoritative membership state per room: room id to user id
// to that user's active sessions. A user may hold several concurrent sessions
// (multiple tabs or devices). Empty user sets and empty rooms are pruned
// immediately.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (r *Registry) getOrCreate(roomID string) *room {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[roomID]; ok {
		return rm
	}
	rm = &room{members: make(map[int64]map[*Session]struct{})}
	r.rooms[roomID] = rm
	return rm
}

// Join idempotently adds the session under the (room, user) pair.
func (r *Registry) Join(roomID string, userID int64, s *Session) {
	for {
		rm := r.getOrCreate(roomID)
		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		set, ok := rm.members[userID]
		if !ok {
			set = make(map[*Session]struct{})
			rm.members[userID] = set
		}
		set[s] = struct{}{}
		rm.mu.Unlock()
		return
	}
}

// Leave removes the session from the (room, user) pair, pruning the user entry
// and the room itself when they become empty. Absent keys are a no-op.
func (r *Registry) Leave(roomID string, userID int64, s *Session) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	set, ok := rm.members[userID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(rm.members, userID)
	}
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.pruneIfEmpty(roomID, rm)
	}
}

// pruneIfEmpty removes the room entry if it is still empty, marking it dead so
// a racing Join retries.
func (r *Registry) pruneIfEmpty(roomID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[roomID]; !ok || cur != rm {
		return
	}
	rm.mu.Lock()
	if len(rm.members) == 0 {
		rm.dead = true
		delete(r.rooms, roomID)
	}
	rm.mu.Unlock()
}

// LeaveAll removes this (user, session) pair from every room it belongs to.
// Used on disconnect; the caller need not know which rooms the session joined.
func (r *Registry) LeaveAll(userID int64, s *Session) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Leave(id, userID, s)
	}
}

// Sessions returns all sessions currently in the room, except those belonging
// to exceptUser (pass a negative value to include everyone).
func (r *Registry) Sessions(roomID string, exceptUser int64) []*Session {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	sessions := make([]*Session, 0)
	for userID, set := range rm.members {
		if userID == exceptUser {
			continue
		}
		for s := range set {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Snapshot returns a read-only view of a room: user id to active session
// count. Nil when the room doesn't exist.
func (r *Registry) Snapshot(roomID string) map[int64]int {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	snap := make(map[int64]int, len(rm.members))
	for userID, set := range rm.members {
		snap[userID] = len(set)
	}
	return snap
}

// Rooms returns the ids of all rooms with at least one member.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}
