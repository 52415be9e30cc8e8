package directory

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/module/chat/compat"
	"BPortal/module/chat/model"
)

const testTenant = "tenant-1"

func newDirectory(store *docstore.MemStore, mode compat.Mode) *Directory {
	return New(store, &compat.Schema{Mode: mode}, testTenant)
}

func TestFindOrCreateDirectCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	dir := newDirectory(store, compat.ModeStandard)

	id1, err := dir.FindOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	id2, err := dir.FindOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected one chat, got %s and %s", id1, id2)
	}

	raw, ok, _ := store.Collection(model.CollChats).Get(ctx, id1)
	if !ok {
		t.Fatalf("chat document missing")
	}
	chat, err := NormalizeChat(id1, raw, testTenant)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if chat.Kind != model.KindDirect || len(chat.Participants) != 2 {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	if chat.UnreadCount["alice"] != 0 || chat.UnreadCount["bob"] != 0 {
		t.Fatalf("counters should start at zero: %v", chat.UnreadCount)
	}
	// legacy duplicate fields keep v1 clients working
	if raw["user1"] != "alice" || raw["user2"] != "bob" {
		t.Fatalf("legacy fields missing: %v", raw)
	}
}

func TestFindDirectDiscoversLegacyRecord(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	// a v1 record with flat user fields, no participants array, no metadata
	legacyID, err := store.Collection("direct_chats").Insert(ctx, "", bson.M{
		"user1":     "alice",
		"user2":     "bob",
		"createdAt": int64(1000),
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	dir := newDirectory(store, compat.ModeFallback)
	id, err := dir.FindOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if id != legacyID {
		t.Fatalf("expected legacy chat %s, created %s instead", legacyID, id)
	}
}

func TestFindOrCreateDirectFallsThroughDeniedCollections(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	store.Deny(model.CollChats)
	store.Deny("chats_v2")

	dir := newDirectory(store, compat.ModeStandard)
	id, err := dir.FindOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("create should survive denied collections: %v", err)
	}
	if _, ok, _ := store.Collection("direct_chats").Get(ctx, id); !ok {
		t.Fatalf("chat not written to the first accepting collection")
	}
}

func TestFindOrCreateDirectAllDenied(t *testing.T) {
	store := docstore.NewMemStore()
	for _, name := range model.ChatSearchStandard {
		store.Deny(name)
	}
	dir := newDirectory(store, compat.ModeStandard)
	if _, err := dir.FindOrCreateDirect(context.Background(), "alice", "bob"); err == nil {
		t.Fatalf("expected create to fail when every collection is denied")
	}
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	dir := newDirectory(store, compat.ModeStandard)

	id, err := dir.CreateGroup(ctx, "alice", "Planning", []string{"bob", "carol"}, "weekly planning")
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	raw, _, _ := store.Collection(model.CollChats).Get(ctx, id)
	chat, err := NormalizeChat(id, raw, testTenant)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if chat.Kind != model.KindGroup || chat.Name != "Planning" {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	if len(chat.Participants) != 3 {
		t.Fatalf("creator must be a participant: %v", chat.Participants)
	}
	if chat.GroupInfo == nil || len(chat.GroupInfo.Admins) != 1 || chat.GroupInfo.Admins[0] != "alice" {
		t.Fatalf("creator must be the sole admin: %+v", chat.GroupInfo)
	}

	recs, _ := store.Collection(model.CollParticipants).Find(ctx, docstore.Query{Eq: bson.M{"chatId": id}})
	if len(recs) != 3 {
		t.Fatalf("expected 3 participant records, got %d", len(recs))
	}
	for _, rec := range recs {
		var p model.Participant
		if err := model.Decode(rec.Data, &p); err != nil {
			t.Fatalf("decode participant: %v", err)
		}
		wantRole := model.RoleMember
		if p.UserID == "alice" {
			wantRole = model.RoleAdmin
		}
		if p.Role != wantRole || !p.IsActive || p.UnreadCount != 0 {
			t.Fatalf("unexpected participant record: %+v", p)
		}
	}
}

func TestCreateEscalationDefaultsPriority(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	dir := newDirectory(store, compat.ModeStandard)

	id, err := dir.CreateEscalation(ctx, "alice", "Incident", []string{"bob"}, "")
	if err != nil {
		t.Fatalf("create escalation failed: %v", err)
	}
	raw, _, _ := store.Collection(model.CollChats).Get(ctx, id)
	chat, _ := NormalizeChat(id, raw, testTenant)
	if chat.Kind != model.KindEscalation {
		t.Fatalf("expected escalation kind, got %s", chat.Kind)
	}
	if chat.Escalation == nil || chat.Escalation.Priority != model.PriorityMedium || !chat.Escalation.RequiresAction {
		t.Fatalf("unexpected escalation info: %+v", chat.Escalation)
	}
}

func TestGetChatsSortedAndScoped(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	coll := store.Collection(model.CollChats)
	seed := []bson.M{
		{"type": "direct", "participants": []string{"alice", "bob"}, "metadata": bson.M{"concernID": testTenant, "updatedAt": int64(100)}},
		{"type": "direct", "participants": []string{"alice", "carol"}, "metadata": bson.M{"concernID": testTenant, "updatedAt": int64(300)}},
		{"type": "direct", "participants": []string{"alice", "dave"}, "metadata": bson.M{"concernID": "other-tenant", "updatedAt": int64(200)}},
		{"type": "direct", "participants": []string{"eve", "frank"}, "metadata": bson.M{"concernID": testTenant, "updatedAt": int64(400)}},
	}
	for _, doc := range seed {
		if _, err := coll.Insert(ctx, "", doc); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	dir := newDirectory(store, compat.ModeStandard)
	chats, err := dir.GetChats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetChats failed: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats for alice in tenant, got %d", len(chats))
	}
	if chats[0].Metadata.UpdatedAt < chats[1].Metadata.UpdatedAt {
		t.Fatalf("chats must come newest first")
	}
}

func TestLeaveChat(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	dir := newDirectory(store, compat.ModeStandard)

	id, err := dir.CreateGroup(ctx, "alice", "Team", []string{"bob"}, "")
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	if err := dir.LeaveChat(ctx, "bob", id); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	raw, ok, _ := store.Collection(model.CollChats).Get(ctx, id)
	if !ok {
		t.Fatalf("chat must survive a leave")
	}
	chat, _ := NormalizeChat(id, raw, testTenant)
	for _, p := range chat.Participants {
		if p == "bob" {
			t.Fatalf("bob still in participant set: %v", chat.Participants)
		}
	}

	recs, _ := store.Collection(model.CollParticipants).Find(ctx, docstore.Query{
		Eq: bson.M{"chatId": id, "userId": "bob"},
	})
	if len(recs) != 1 {
		t.Fatalf("participant record must survive as soft-deleted")
	}
	var p model.Participant
	if err := model.Decode(recs[0].Data, &p); err != nil {
		t.Fatalf("decode participant: %v", err)
	}
	if p.IsActive {
		t.Fatalf("leave must deactivate the join record")
	}
}
