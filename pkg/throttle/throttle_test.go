package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/herald-labs/herald/pkg/store"
)

func TestFirstCheckAllows(t *testing.T) {
	g := NewGate(store.NewMemory(), 0)
	ctx := context.Background()

	if !g.ShouldNotify(ctx, "C1", "ABC-1", time.Now()) {
		t.Error("first check should allow")
	}
}

func TestCoolDownWindow(t *testing.T) {
	g := NewGate(store.NewMemory(), 30*time.Minute)
	ctx := context.Background()
	t0 := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)

	if err := g.MarkNotified(ctx, "C1", "ABC-1", t0); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	if g.ShouldNotify(ctx, "C1", "ABC-1", t0.Add(29*time.Minute)) {
		t.Error("should suppress inside the cool-down window")
	}
	if !g.ShouldNotify(ctx, "C1", "ABC-1", t0.Add(30*time.Minute)) {
		t.Error("should allow at exactly the cool-down boundary")
	}
	if !g.ShouldNotify(ctx, "C1", "ABC-1", t0.Add(2*time.Hour)) {
		t.Error("should allow after the window")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	g := NewGate(store.NewMemory(), 30*time.Minute)
	ctx := context.Background()
	t0 := time.Now()

	if err := g.MarkNotified(ctx, "C1", "ABC-1", t0); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	if !g.ShouldNotify(ctx, "C2", "ABC-1", t0) {
		t.Error("same ticket in another channel should be independent")
	}
	if !g.ShouldNotify(ctx, "C1", "ABC-2", t0) {
		t.Error("another ticket in the same channel should be independent")
	}
	if g.ShouldNotify(ctx, "C1", "ABC-1", t0) {
		t.Error("marked pair should be suppressed")
	}
}

func TestMarkOverwrites(t *testing.T) {
	g := NewGate(store.NewMemory(), 30*time.Minute)
	ctx := context.Background()
	t0 := time.Now()

	g.MarkNotified(ctx, "C1", "ABC-1", t0)
	g.MarkNotified(ctx, "C1", "ABC-1", t0.Add(25*time.Minute))

	// 31 minutes after the first mark, 6 after the second.
	if g.ShouldNotify(ctx, "C1", "ABC-1", t0.Add(31*time.Minute)) {
		t.Error("overwritten timestamp should govern")
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("store down")
}
func (failingStore) Set(ctx context.Context, key, value string) error {
	return errors.New("store down")
}
func (failingStore) All(ctx context.Context, prefix string) (map[string]string, error) {
	return nil, errors.New("store down")
}
func (failingStore) Close() error { return nil }

func TestStoreFailureFailsClosed(t *testing.T) {
	g := NewGate(failingStore{}, 30*time.Minute)

	if g.ShouldNotify(context.Background(), "C1", "ABC-1", time.Now()) {
		t.Error("unreachable store must suppress, not allow")
	}
}

func TestDefaultCoolDown(t *testing.T) {
	g := NewGate(store.NewMemory(), 0)
	if g.CoolDown() != DefaultCoolDown {
		t.Errorf("CoolDown = %v, want %v", g.CoolDown(), DefaultCoolDown)
	}
}
