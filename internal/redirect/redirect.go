// Package redirect remembers, across in-app navigation, that a joined session
// has already been redirected into its room view.
package redirect

import (
	"fmt"

	gocache "github.com/patrickmn/go-cache"
)

// Key is the fixed storage key of the redirect flag.
const Key = "redirect"

// Store is a small tab-scoped key/value store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// taker is implemented by stores that can read and delete atomically.
type taker interface {
	Take(key string) (string, bool, error)
}

// Guard wraps the redirect flag. At most one redirect is pending at a time.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// IsSet reports whether a redirect is pending.
func (g *Guard) IsSet() (bool, error) {
	_, ok, err := g.store.Get(Key)
	if err != nil {
		return false, fmt.Errorf("read redirect flag: %w", err)
	}
	return ok, nil
}

// Mark records a redirect. Marking twice is the same as marking once.
func (g *Guard) Mark() error {
	if err := g.store.Set(Key, "true"); err != nil {
		return fmt.Errorf("set redirect flag: %w", err)
	}
	return nil
}

// Consume reads and clears the flag, returning whether it was set.
func (g *Guard) Consume() (bool, error) {
	if t, ok := g.store.(taker); ok {
		_, set, err := t.Take(Key)
		if err != nil {
			return false, fmt.Errorf("consume redirect flag: %w", err)
		}
		return set, nil
	}
	set, err := g.IsSet()
	if err != nil || !set {
		return false, err
	}
	if err := g.store.Delete(Key); err != nil {
		return false, fmt.Errorf("clear redirect flag: %w", err)
	}
	return true, nil
}

// MemoryStore keeps values for the life of the process.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.c.Set(key, value, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.c.Delete(key)
	return nil
}
