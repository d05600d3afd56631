package redirect

import (
	"errors"
	"testing"

	"github.com/ehrlich-b/codesync/internal/store"
)

func guards(t *testing.T) map[string]*Guard {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return map[string]*Guard{
		"memory": NewGuard(NewMemoryStore()),
		"sqlite": NewGuard(s.KV("tab-1")),
	}
}

func TestGuardConsumeIsOneShot(t *testing.T) {
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			if set, err := g.IsSet(); err != nil || set {
				t.Fatalf("initial IsSet = %v, %v", set, err)
			}
			if err := g.Mark(); err != nil {
				t.Fatalf("mark: %v", err)
			}
			if err := g.Mark(); err != nil {
				t.Fatalf("mark twice: %v", err)
			}
			if set, _ := g.IsSet(); !set {
				t.Fatal("flag not set after Mark")
			}
			if set, err := g.Consume(); err != nil || !set {
				t.Fatalf("first Consume = %v, %v", set, err)
			}
			if set, err := g.Consume(); err != nil || set {
				t.Fatalf("second Consume = %v, %v", set, err)
			}
		})
	}
}

type failingStore struct{}

var errBoom = errors.New("boom")

func (failingStore) Get(string) (string, bool, error) { return "", false, errBoom }
func (failingStore) Set(string, string) error         { return errBoom }
func (failingStore) Delete(string) error              { return errBoom }

func TestGuardWrapsStoreErrors(t *testing.T) {
	g := NewGuard(failingStore{})
	if err := g.Mark(); !errors.Is(err, errBoom) {
		t.Errorf("Mark err = %v", err)
	}
	if _, err := g.Consume(); !errors.Is(err, errBoom) {
		t.Errorf("Consume err = %v", err)
	}
}
