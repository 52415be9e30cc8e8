package unread

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/module/chat/model"
)

func seedChat(t *testing.T, store *docstore.MemStore, participants []string) string {
	t.Helper()
	counts := bson.M{}
	for _, p := range participants {
		counts[p] = int64(0)
	}
	id, err := store.Collection(model.CollChats).Insert(context.Background(), "", bson.M{
		"type":         "group",
		"participants": participants,
		"unreadCount":  counts,
	})
	if err != nil {
		t.Fatalf("seed chat failed: %v", err)
	}
	for _, p := range participants {
		_, err := store.Collection(model.CollParticipants).Insert(context.Background(), "", bson.M{
			"chatId":      id,
			"userId":      p,
			"isActive":    true,
			"unreadCount": int64(0),
		})
		if err != nil {
			t.Fatalf("seed participant failed: %v", err)
		}
	}
	return id
}

func chatCounts(t *testing.T, store *docstore.MemStore, chatID string) map[string]int64 {
	t.Helper()
	raw, ok, err := store.Collection(model.CollChats).Get(context.Background(), chatID)
	if err != nil || !ok {
		t.Fatalf("load chat failed: ok=%v err=%v", ok, err)
	}
	out := map[string]int64{}
	counts, _ := raw["unreadCount"].(bson.M)
	for k, v := range counts {
		switch n := v.(type) {
		case int64:
			out[k] = n
		case int:
			out[k] = int64(n)
		}
	}
	return out
}

func TestIncrementExcludesSender(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	chatID := seedChat(t, store, []string{"alice", "bob", "carol"})
	counter := New(store)

	if err := counter.Increment(ctx, chatID, "alice"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	counts := chatCounts(t, store, chatID)
	if counts["alice"] != 0 {
		t.Fatalf("sender counter must stay untouched, got %d", counts["alice"])
	}
	if counts["bob"] != 1 || counts["carol"] != 1 {
		t.Fatalf("recipient counters must advance: %v", counts)
	}
}

func TestIncrementAccumulates(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	chatID := seedChat(t, store, []string{"alice", "bob"})
	counter := New(store)

	for i := 0; i < 3; i++ {
		if err := counter.Increment(ctx, chatID, "alice"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}
	if counts := chatCounts(t, store, chatID); counts["bob"] != 3 {
		t.Fatalf("expected 3 unread for bob, got %d", counts["bob"])
	}
}

func TestResetTouchesOnlyOwnEntry(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	chatID := seedChat(t, store, []string{"alice", "bob", "carol"})
	counter := New(store)

	if err := counter.Increment(ctx, chatID, "alice"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := counter.Reset(ctx, chatID, "bob"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	counts := chatCounts(t, store, chatID)
	if counts["bob"] != 0 {
		t.Fatalf("bob's counter must be zero after reset, got %d", counts["bob"])
	}
	if counts["carol"] != 1 {
		t.Fatalf("reset must not touch other entries: %v", counts)
	}
}

func TestIncrementUnknownChat(t *testing.T) {
	counter := New(docstore.NewMemStore())
	if err := counter.Increment(context.Background(), "missing", "alice"); err == nil {
		t.Fatalf("expected error for unknown chat")
	}
}

func TestTotalSumsActiveMirrors(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	chat1 := seedChat(t, store, []string{"alice", "bob"})
	chat2 := seedChat(t, store, []string{"alice", "carol"})
	counter := New(store)

	// two sends in chat1, one in chat2, all towards alice
	if err := counter.Increment(ctx, chat1, "bob"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := counter.Increment(ctx, chat1, "bob"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := counter.Increment(ctx, chat2, "carol"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	total, err := counter.Total(ctx, "alice")
	if err != nil {
		t.Fatalf("total failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected badge total 3, got %d", total)
	}

	// deactivated mirrors drop out of the badge
	parts := store.Collection(model.CollParticipants)
	recs, _ := parts.Find(ctx, docstore.Query{Eq: bson.M{"chatId": chat1, "userId": "alice"}})
	if len(recs) != 1 {
		t.Fatalf("expected one mirror record")
	}
	if err := parts.Update(ctx, recs[0].ID, docstore.Update{Set: bson.M{"isActive": false}}); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	total, _ = counter.Total(ctx, "alice")
	if total != 1 {
		t.Fatalf("expected badge total 1 after deactivation, got %d", total)
	}
}
