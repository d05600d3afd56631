package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVSetGetDelete(t *testing.T) {
	kv := openTestStore(t).KV("tab-1")

	if _, ok, err := kv.Get("redirect"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}
	if err := kv.Set("redirect", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set("redirect", "again"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get("redirect")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != "again" {
		t.Errorf("value = %q, want %q", v, "again")
	}
	if err := kv.Delete("redirect"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get("redirect"); ok {
		t.Error("key survived delete")
	}
}

func TestKVScopesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	a, b := s.KV("tab-a"), s.KV("tab-b")

	if err := a.Set("redirect", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.Get("redirect"); ok {
		t.Fatal("scope b sees scope a's key")
	}
	if err := b.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := a.Get("redirect"); !ok {
		t.Fatal("clearing scope b removed scope a's key")
	}
}

func TestKVTakeIsOneShot(t *testing.T) {
	kv := openTestStore(t).KV("tab-1")
	if err := kv.Set("redirect", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := kv.Take("redirect")
	if err != nil || !ok || v != "true" {
		t.Fatalf("first take = (%q, %v, %v)", v, ok, err)
	}
	if _, ok, err := kv.Take("redirect"); err != nil || ok {
		t.Fatalf("second take: ok=%v err=%v", ok, err)
	}
}

func TestKVSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.KV("tab-1").Set("redirect", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.KV("tab-1").Get("redirect"); err != nil || !ok {
		t.Fatalf("after reopen: ok=%v err=%v", ok, err)
	}
}
