package sync

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/module/chat/compat"
	"BPortal/module/chat/model"
)

const testTenant = "tenant-1"

func newSync(store *docstore.MemStore, mode compat.Mode) *Sync {
	return New(store, &compat.Schema{Mode: mode}, testTenant, nil)
}

func seedChat(t *testing.T, store *docstore.MemStore, coll, name string, updatedAt int64) string {
	t.Helper()
	id, err := store.Collection(coll).Insert(context.Background(), "", bson.M{
		"type":         "direct",
		"name":         name,
		"participants": []string{"alice", "bob"},
		"metadata":     bson.M{"concernID": testTenant, "updatedAt": updatedAt},
	})
	if err != nil {
		t.Fatalf("seed chat failed: %v", err)
	}
	return id
}

func TestSubscribeToChatsMergesCollections(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	seedChat(t, store, model.CollChats, "newer", 300)
	seedChat(t, store, "chats_v2", "older", 100)
	s := newSync(store, compat.ModeStandard)

	var last []model.Chat
	unsub, err := s.SubscribeToChats(ctx, func(chats []model.Chat) { last = chats })
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsub()

	if len(last) != 2 {
		t.Fatalf("expected the union of both collections, got %d", len(last))
	}
	if last[0].Name != "newer" || last[1].Name != "older" {
		t.Fatalf("union must come newest first: %v, %v", last[0].Name, last[1].Name)
	}
}

func TestSubscribeToChatsDuplicateIDNewestWins(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	// the same chat id lives in two collections with diverged copies
	if err := store.Collection(model.CollChats).Set(ctx, "dup", bson.M{
		"type": "direct", "name": "stale", "participants": []string{"a"},
		"metadata": bson.M{"concernID": testTenant, "updatedAt": int64(100)},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := store.Collection("chats_v2").Set(ctx, "dup", bson.M{
		"type": "direct", "name": "fresh", "participants": []string{"a"},
		"metadata": bson.M{"concernID": testTenant, "updatedAt": int64(200)},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	s := newSync(store, compat.ModeStandard)

	var last []model.Chat
	unsub, err := s.SubscribeToChats(ctx, func(chats []model.Chat) { last = chats })
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsub()

	if len(last) != 1 {
		t.Fatalf("duplicate ids must collapse to one entry, got %d", len(last))
	}
	if last[0].Name != "fresh" {
		t.Fatalf("the most recently updated copy must win, got %q", last[0].Name)
	}
}

func TestSubscribeToChatsDeliversChanges(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	s := newSync(store, compat.ModeStandard)

	var calls int
	var last []model.Chat
	unsub, err := s.SubscribeToChats(ctx, func(chats []model.Chat) {
		calls++
		last = chats
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsub()

	before := calls
	seedChat(t, store, model.CollChats, "incoming", 500)
	if calls <= before {
		t.Fatalf("change must trigger a delivery")
	}
	if len(last) != 1 || last[0].Name != "incoming" {
		t.Fatalf("unexpected snapshot: %v", last)
	}
}

func TestSubscribeToChatsSurvivesDeniedCollections(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	seedChat(t, store, model.CollChats, "reachable", 100)
	store.Deny("chats_v2")
	store.Deny("direct_chats")
	s := newSync(store, compat.ModeStandard)

	var last []model.Chat
	unsub, err := s.SubscribeToChats(ctx, func(chats []model.Chat) { last = chats })
	if err != nil {
		t.Fatalf("subscribe must tolerate denied collections: %v", err)
	}
	defer unsub()
	if len(last) != 1 {
		t.Fatalf("expected the reachable chat, got %d", len(last))
	}
}

func TestSubscribeToChatsAllDenied(t *testing.T) {
	store := docstore.NewMemStore()
	for _, name := range model.ChatSubscribeStandard {
		store.Deny(name)
	}
	s := newSync(store, compat.ModeStandard)
	if _, err := s.SubscribeToChats(context.Background(), func([]model.Chat) {}); err == nil {
		t.Fatalf("expected an error when no collection accepts a subscription")
	}
}

func TestSubscribeToMessagesOrderedRedelivery(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	msgs := store.Collection(model.CollMessages)
	if _, err := msgs.Insert(ctx, "", bson.M{"chatId": "c1", "text": "first", "timestamp": int64(1)}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	s := newSync(store, compat.ModeStandard)

	var snapshots [][]model.Message
	unsub, err := s.SubscribeToMessages(ctx, "c1", func(list []model.Message) {
		snapshots = append(snapshots, list)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := msgs.Insert(ctx, "", bson.M{"chatId": "c1", "text": "second", "timestamp": int64(2)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := msgs.Insert(ctx, "", bson.M{"chatId": "other", "text": "noise", "timestamp": int64(3)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if len(snapshots) < 2 {
		t.Fatalf("expected initial plus change deliveries, got %d", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if len(last) != 2 {
		t.Fatalf("foreign-chat noise leaked into the snapshot: %v", last)
	}
	if last[0].Text != "first" || last[1].Text != "second" {
		t.Fatalf("messages must come oldest first: %v", last)
	}

	unsub()
	n := len(snapshots)
	if _, err := msgs.Insert(ctx, "", bson.M{"chatId": "c1", "text": "late", "timestamp": int64(4)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if len(snapshots) != n {
		t.Fatalf("delivery after unsubscribe")
	}
}

func TestSubscribeToUserStatus(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	s := newSync(store, compat.ModeStandard)

	var statuses []model.PresenceStatus
	unsub, err := s.SubscribeToUserStatus(ctx, "u1", func(st model.PresenceStatus) {
		statuses = append(statuses, st)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsub()

	if len(statuses) != 1 || statuses[0] != model.PresenceOffline {
		t.Fatalf("unknown user must read offline, got %v", statuses)
	}

	if err := store.Collection(model.CollUsers).Set(ctx, "u1", bson.M{"status": "online"}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if statuses[len(statuses)-1] != model.PresenceOnline {
		t.Fatalf("expected online delivery, got %v", statuses)
	}
}
