// Package profile holds the local user's identity for the current room session.
package profile

import (
	"errors"
	"sync"
)

// ErrRoomFrozen is returned when the room id is changed after a successful join.
var ErrRoomFrozen = errors.New("room id cannot change while joined")

// Profile is the user identity sent with a join request.
type Profile struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// Store is the single mutable copy of the profile. Readers get value copies;
// writes always replace the whole value under the lock.
type Store struct {
	mu     sync.RWMutex
	p      Profile
	frozen bool
}

func NewStore(p Profile) *Store {
	return &Store{p: p}
}

func (s *Store) Get() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Set replaces the profile.
func (s *Store) Set(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen && p.RoomID != s.p.RoomID {
		return ErrRoomFrozen
	}
	s.p = p
	return nil
}

// SetField applies a single form input by its field name ("username" or "roomId").
// Unknown names are ignored.
func (s *Store) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.p
	switch name {
	case "username":
		next.Username = value
	case "roomId":
		if s.frozen && value != s.p.RoomID {
			return ErrRoomFrozen
		}
		next.RoomID = value
	default:
		return nil
	}
	s.p = next
	return nil
}

// AdoptPendingRoomID fills in a room id carried over from a shared link or a
// redirect. It only applies when no room id is set and reports whether it did.
func (s *Store) AdoptPendingRoomID(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if roomID == "" || s.p.RoomID != "" {
		return false
	}
	s.p = Profile{Username: s.p.Username, RoomID: roomID}
	return true
}

// Freeze locks the room id once a join has been accepted.
func (s *Store) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Unfreeze releases the room id when the session is reset.
func (s *Store) Unfreeze() {
	s.mu.Lock()
	s.frozen = false
	s.mu.Unlock()
}

func (s *Store) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}
