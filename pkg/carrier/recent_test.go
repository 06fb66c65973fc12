package carrier

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRecentSearches(t *testing.T) {
	ctx := context.Background()
	store := NewRecentSearches(nil)
	orgID := uuid.New()
	otherOrg := uuid.New()

	store.Record(ctx, orgID, "status:active tx")
	store.Record(ctx, orgID, "ridgeline")
	store.Record(ctx, orgID, "  ")
	store.Record(ctx, otherOrg, "sunbelt")

	got := store.List(ctx, orgID)
	if len(got) != 2 || got[0] != "ridgeline" || got[1] != "status:active tx" {
		t.Errorf("unexpected entries %v", got)
	}
	if other := store.List(ctx, otherOrg); len(other) != 1 || other[0] != "sunbelt" {
		t.Errorf("org isolation broken: %v", other)
	}

	// A repeated query moves to the front instead of duplicating.
	store.Record(ctx, orgID, "status:active tx")
	got = store.List(ctx, orgID)
	if len(got) != 2 || got[0] != "status:active tx" {
		t.Errorf("repeat should move to front, got %v", got)
	}

	for i := 0; i < 20; i++ {
		store.Record(ctx, orgID, uuid.New().String())
	}
	if got := store.List(ctx, orgID); len(got) != recentSearchKeep {
		t.Errorf("kept %d entries, want %d", len(got), recentSearchKeep)
	}
}
