package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kr.dev/diff"

	"github.com/strongdm/paramref/internal/paramref"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	p := paramref.Parameter{
		ID:           "id-1",
		Name:         "dueDate",
		Description:  "Payment due",
		DataType:     paramref.TypeDate,
		DefaultValue: "2024-01-01",
		Active:       true,
	}
	if err := store.Put(ctx, "", p); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	diff.Test(t, t.Errorf, got, []paramref.Parameter{p})

	p.Active = false
	if err := store.Put(ctx, "", p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.List(ctx)
	if len(got) != 1 || got[0].Active {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := store.Delete(ctx, "dueDate"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "dueDate"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreReplaceAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewSQLiteInMemory()
	if err != nil {
		t.Fatalf("NewSQLiteInMemory: %v", err)
	}
	defer store.Close()

	if err := store.Put(ctx, "", paramref.Parameter{ID: "x", Name: "stale", DataType: paramref.TypeString}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	next := []paramref.Parameter{
		{ID: "b", Name: "beta", DataType: paramref.TypeNumber, Active: true},
		{ID: "a", Name: "alpha", DataType: paramref.TypeBoolean, Active: true},
	}
	if err := store.ReplaceAll(ctx, next); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got, _ := store.List(ctx)
	diff.Test(t, t.Errorf, names(got), []string{"alpha", "beta"})
}
