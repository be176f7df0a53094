package sessioncache

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "session.json"))
}

func TestGetEmpty(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected no pointer in a fresh cache")
	}
}

func TestSetGetClear(t *testing.T) {
	c := newTestCache(t)

	pointer := Pointer{QueueID: "q1", MemberID: "m1"}
	if err := c.Set(pointer); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get()
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if got != pointer {
		t.Fatalf("got %+v, want %+v", got, pointer)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := c.Get(); ok {
		t.Fatalf("pointer should be gone after clear")
	}
}

func TestSetOverwritesPointer(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(Pointer{QueueID: "q1", MemberID: "m1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set(Pointer{QueueID: "q2", MemberID: "m2"}); err != nil {
		t.Fatalf("second set: %v", err)
	}

	got, _, err := c.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QueueID != "q2" || got.MemberID != "m2" {
		t.Fatalf("expected the latest pointer, got %+v", got)
	}
}

func TestOwnedQueuesSurviveClear(t *testing.T) {
	c := newTestCache(t)

	owned := OwnedQueue{QueueID: "q1", Name: "City Hall", AdminSecretKey: "secret"}
	if err := c.AddOwned(owned); err != nil {
		t.Fatalf("add owned: %v", err)
	}
	if err := c.Set(Pointer{QueueID: "q2", MemberID: "m1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	queues, err := c.ListOwned()
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(queues) != 1 || queues[0] != owned {
		t.Fatalf("owned queues lost across clear: %+v", queues)
	}
}

func TestAddOwnedUpdatesExisting(t *testing.T) {
	c := newTestCache(t)

	if err := c.AddOwned(OwnedQueue{QueueID: "q1", Name: "Old"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddOwned(OwnedQueue{QueueID: "q1", Name: "New"}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	queues, err := c.ListOwned()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queues) != 1 || queues[0].Name != "New" {
		t.Fatalf("expected the updated entry, got %+v", queues)
	}
}

func TestRemoveOwned(t *testing.T) {
	c := newTestCache(t)

	_ = c.AddOwned(OwnedQueue{QueueID: "q1"})
	_ = c.AddOwned(OwnedQueue{QueueID: "q2"})
	if err := c.RemoveOwned("q1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	queues, err := c.ListOwned()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queues) != 1 || queues[0].QueueID != "q2" {
		t.Fatalf("unexpected owned list: %+v", queues)
	}
}

func TestCorruptFileIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := New(path)
	if _, ok, err := c.Get(); err != nil || ok {
		t.Fatalf("corrupt cache should read as empty: ok=%v err=%v", ok, err)
	}
	if err := c.Set(Pointer{QueueID: "q1", MemberID: "m1"}); err != nil {
		t.Fatalf("set over corrupt file: %v", err)
	}
	if _, ok, _ := c.Get(); !ok {
		t.Fatalf("cache should rebuild after overwrite")
	}
}
