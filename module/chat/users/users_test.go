package users

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/module/chat/model"
)

const testTenant = "tenant-1"

func newService(store *docstore.MemStore) *Service {
	return New(store, testTenant, time.Minute)
}

func seedUser(t *testing.T, store *docstore.MemStore, id string, doc bson.M) {
	t.Helper()
	if doc["concernID"] == nil {
		doc["concernID"] = testTenant
	}
	if err := store.Collection(model.CollUsers).Set(context.Background(), id, doc); err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
}

func TestUpdateStatusWritesDocument(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	seedUser(t, store, "u1", bson.M{"email": "u1@example.com"})
	s := newService(store)

	if err := s.UpdateStatus(ctx, "u1", model.PresenceOnline); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	raw, _, _ := store.Collection(model.CollUsers).Get(ctx, "u1")
	if raw["status"] != "online" {
		t.Fatalf("status not written: %v", raw)
	}
	if ls, _ := raw["lastSeen"].(int64); ls == 0 {
		t.Fatalf("lastSeen must be store-assigned")
	}
}

func TestStatusFallsBackToDocument(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	seedUser(t, store, "u1", bson.M{"status": "away"})
	s := newService(store)

	if got := s.Status(ctx, "u1"); got != model.PresenceAway {
		t.Fatalf("expected away, got %s", got)
	}
	if got := s.Status(ctx, "ghost"); got != model.PresenceOffline {
		t.Fatalf("unknown user must read offline, got %s", got)
	}
}

func TestDisplayNamePriority(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	seedUser(t, store, "full", bson.M{
		"vorname": "Erika", "nachname": "Muster",
		"displayName": "emuster", "email": "erika@example.com",
	})
	seedUser(t, store, "display", bson.M{"displayName": "jdoe", "email": "j@example.com"})
	seedUser(t, store, "mail", bson.M{"email": "mail@example.com"})
	s := newService(store)

	if got := s.DisplayName(ctx, "full"); got != "Erika Muster" {
		t.Fatalf("historical name fields must win, got %q", got)
	}
	if got := s.DisplayName(ctx, "display"); got != "jdoe" {
		t.Fatalf("expected display name, got %q", got)
	}
	if got := s.DisplayName(ctx, "mail"); got != "mail@example.com" {
		t.Fatalf("expected email, got %q", got)
	}
	if got := s.DisplayName(ctx, "abcdefghijkl"); got != "user abcdefgh..." {
		t.Fatalf("unexpected anonymous fallback: %q", got)
	}
}

func TestTenantMembers(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	seedUser(t, store, "u1", bson.M{"email": "a@example.com", "status": "online"})
	seedUser(t, store, "u2", bson.M{"email": "b@example.com"})
	seedUser(t, store, "stranger", bson.M{"email": "c@example.com", "concernID": "other"})
	s := newService(store)

	members, err := s.TenantMembers(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 tenant members, got %d", len(members))
	}
	for _, m := range members {
		if m.UID == "" {
			t.Fatalf("uid must be attached: %+v", m)
		}
		if m.UID == "u2" && m.Status != model.PresenceOffline {
			t.Fatalf("missing status must default to offline: %+v", m)
		}
	}
}
