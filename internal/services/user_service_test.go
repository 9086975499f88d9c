package services

import (
	"context"
	"errors"
	"testing"

	"escrow-market/internal/models"
)

func TestUpdateProfileAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	amina := f.user(t, "amina", 0)
	f.user(t, "aminata", 0)
	f.user(t, "baraka", 0)
	svc := NewUserService(f.repo)

	name := "Amina W."
	updated, err := svc.UpdateProfile(ctx, amina.ID, models.UpdateProfileRequest{FullName: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FullName != name {
		t.Fatalf("full name = %q", updated.FullName)
	}

	empty := " "
	if _, err := svc.UpdateProfile(ctx, amina.ID, models.UpdateProfileRequest{FullName: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty name: got %v", err)
	}

	found, err := svc.Search(ctx, "amin", amina.ID)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 || found[0].Username != "aminata" {
		t.Fatalf("search results = %+v, want only aminata", found)
	}
	if _, err := svc.Search(ctx, "a", amina.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short query: got %v", err)
	}

	if _, err := svc.GetPublicProfile(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown profile: got %v", err)
	}
}
