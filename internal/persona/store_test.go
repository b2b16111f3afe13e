package persona

import (
	"context"
	"testing"

	"github.com/anima-sh/anima/internal/log"
	"github.com/anima-sh/anima/internal/testutil"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	return NewStore(db.Pool, log.NewNop(), 0)
}

func createWithOverrides(t *testing.T, store *Store) *Persona {
	t.Helper()

	temp := float32(0.9)
	p, err := store.Create(context.Background(), CreateParams{
		Name:         "overridden",
		DisplayName:  "Overridden",
		SystemPrompt: "You are terse.",
		Model:        "claude-sonnet-4-5",
		Temperature:  &temp,
	})
	if err != nil {
		t.Fatalf("creating persona: %v", err)
	}
	return p
}

func TestUpdate_ClearsModelAndTemperature(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	p := createWithOverrides(t, store)

	emptyModel := ""
	clearTemp := ClearTemperature
	updated, err := store.Update(ctx, p.ID, UpdateParams{
		Model:       &emptyModel,
		Temperature: &clearTemp,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Model != "" {
		t.Errorf("model = %q after clearing, want empty", updated.Model)
	}
	if updated.Temperature != nil {
		t.Errorf("temperature = %v after clearing, want nil", *updated.Temperature)
	}
}

func TestUpdate_NilPointersKeepOverrides(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	p := createWithOverrides(t, store)

	name := "Renamed"
	updated, err := store.Update(ctx, p.ID, UpdateParams{DisplayName: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.DisplayName != "Renamed" {
		t.Errorf("display_name = %q, want Renamed", updated.DisplayName)
	}
	if updated.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q, want unchanged override", updated.Model)
	}
	if updated.Temperature == nil || *updated.Temperature != 0.9 {
		t.Errorf("temperature = %v, want unchanged 0.9", updated.Temperature)
	}
}
