package relay

import (
	"sort"
	"sync"

	"github.com/ehrlich-b/codesync/internal/ws"
)

// Rooms tracks who is in which room. Usernames are unique within a room.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]map[*peer]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[*peer]struct{})}
}

// join adds p to room and returns the other members. It fails when the
// username is already present.
func (r *Rooms) join(room string, p *peer) (others []*peer, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[room]
	for m := range members {
		if m.user.Username == p.user.Username && m != p {
			return nil, false
		}
	}
	if members == nil {
		members = make(map[*peer]struct{})
		r.rooms[room] = members
	}
	for m := range members {
		if m != p {
			others = append(others, m)
		}
	}
	members[p] = struct{}{}
	return others, true
}

// leave removes p from room and returns who is left.
func (r *Rooms) leave(room string, p *peer) []*peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[room]
	if _, ok := members[p]; !ok {
		return nil
	}
	delete(members, p)
	if len(members) == 0 {
		delete(r.rooms, room)
		return nil
	}
	rest := make([]*peer, 0, len(members))
	for m := range members {
		rest = append(rest, m)
	}
	return rest
}

// Users lists a room's members sorted by username.
func (r *Rooms) Users(room string) []ws.RoomUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]ws.RoomUser, 0, len(r.rooms[room]))
	for m := range r.rooms[room] {
		users = append(users, m.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// Count returns the number of non-empty rooms.
func (r *Rooms) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
