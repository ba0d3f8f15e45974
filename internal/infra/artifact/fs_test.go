package artifact

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"firmaflow/internal/domain"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	ref, err := store.Save(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	// Same content yields the same reference.
	ref2, err := store.Save(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if ref != ref2 {
		t.Fatalf("refs differ: %s vs %s", ref, ref2)
	}
	got, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("got %q", got)
	}
}

func TestFSStoreMissingRef(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Load(context.Background(), "deadbeef"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFSStoreDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	ref, err := store.Save(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ref[:2], ref), []byte("flipped"), 0o640); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := store.Load(ctx, ref); err == nil {
		t.Fatal("corrupted blob loaded without error")
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	ref, err := store.Save(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("got %q", got)
	}
	if _, err := store.Load(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
