package chat

import (
	"context"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/blobstore"
	"BPortal/docstore"
	"BPortal/global/config"
	"BPortal/module/chat/attach"
	"BPortal/module/chat/model"
)

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.TenantID = "tenant-1"
	return cfg
}

func newTestMessenger(store *docstore.MemStore, userID string) *Messenger {
	return NewMessenger(context.Background(), store, blobstore.NewMemStore(), nil, testConfig(), Identity{UserID: userID})
}

func TestDirectConversationFlow(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	alice := newTestMessenger(store, "alice")
	bob := newTestMessenger(store, "bob")

	chatID, err := alice.CreateDirectChat(ctx, "bob")
	if err != nil {
		t.Fatalf("create chat failed: %v", err)
	}
	if again, _ := bob.CreateDirectChat(ctx, "alice"); again != chatID {
		t.Fatalf("both sides must resolve to the same chat")
	}

	msgID, err := alice.SendMessage(ctx, chatID, "Hello", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	chatRaw, _, _ := store.Collection(model.CollChats).Get(ctx, chatID)
	counts, _ := chatRaw["unreadCount"].(bson.M)
	if n, _ := counts["bob"].(int64); n != 1 {
		t.Fatalf("bob must have one unread, got %v", counts)
	}
	if n, _ := counts["alice"].(int64); n != 0 {
		t.Fatalf("alice must have zero unread, got %v", counts)
	}

	if total, _ := bob.GetUnreadCount(ctx); total != 1 {
		t.Fatalf("bob's badge total must be 1, got %d", total)
	}

	if err := bob.MarkRead(ctx, chatID, msgID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	chatRaw, _, _ = store.Collection(model.CollChats).Get(ctx, chatID)
	counts, _ = chatRaw["unreadCount"].(bson.M)
	if n, _ := counts["bob"].(int64); n != 0 {
		t.Fatalf("reading must clear bob's counter, got %v", counts)
	}
	if total, _ := bob.GetUnreadCount(ctx); total != 0 {
		t.Fatalf("badge total must drop to 0, got %d", total)
	}

	msgs, err := bob.GetMessages(ctx, chatID, 0)
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "Hello" || msgs[0].Status != model.StatusRead {
		t.Fatalf("unexpected message list: %+v", msgs)
	}

	chats, err := alice.GetChats(ctx)
	if err != nil {
		t.Fatalf("get chats failed: %v", err)
	}
	if len(chats) != 1 || chats[0].LastMessage == nil || chats[0].LastMessage.MessageID != msgID {
		t.Fatalf("chat list must carry the last-message summary: %+v", chats)
	}
}

func TestUploadAndSendMedia(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	blobs := blobstore.NewMemStore()
	alice := NewMessenger(ctx, store, blobs, nil, testConfig(), Identity{UserID: "alice"})

	chatID, err := alice.CreateDirectChat(ctx, "bob")
	if err != nil {
		t.Fatalf("create chat failed: %v", err)
	}

	res := alice.UploadFile(ctx, attach.File{
		Name: "notes.txt", Size: 5, MimeType: "text/plain",
		Content: strings.NewReader("hello"),
	}, chatID, nil)
	if res.Status != attach.StatusSuccess {
		t.Fatalf("upload failed: %s", res.ErrorMessage)
	}

	msgID, err := alice.SendMessage(ctx, chatID, "", &model.Media{
		Type: attach.MediaKind("text/plain"), URL: res.DownloadURL, FileName: "notes.txt",
	})
	if err != nil {
		t.Fatalf("media send failed: %v", err)
	}

	if err := alice.DeleteMessage(ctx, msgID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if blobs.Len() != 0 {
		t.Fatalf("attachment blob must go with the message")
	}
	if _, ok, _ := store.Collection(model.CollMessages).Get(ctx, msgID); ok {
		t.Fatalf("message must be gone")
	}
}

func TestEscalationAcceptFlow(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	alice := newTestMessenger(store, "alice")
	bob := newTestMessenger(store, "bob")

	chatID, err := alice.CreateEscalationChat(ctx, "Incident 42", []string{"bob"}, model.PriorityHigh)
	if err != nil {
		t.Fatalf("create escalation chat failed: %v", err)
	}
	msgID, err := alice.SendEscalationMessage(ctx, chatID, "please review", true, model.PriorityHigh, nil)
	if err != nil {
		t.Fatalf("send escalation failed: %v", err)
	}
	if err := bob.AcceptEscalation(ctx, msgID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	msgs, err := bob.GetMessages(ctx, chatID, 0)
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Escalation == nil {
		t.Fatalf("escalation message missing: %+v", msgs)
	}
	if !msgs[0].Escalation.ActionTaken || len(msgs[0].Escalation.AcceptedBy) != 1 {
		t.Fatalf("acceptance not recorded: %+v", msgs[0].Escalation)
	}
}

func TestDebugReport(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	store.Deny("messages_v1")
	alice := newTestMessenger(store, "alice")

	report := alice.DebugMessagingSystem(ctx)
	if report.CurrentUser != "alice" || report.TenantID != "tenant-1" {
		t.Fatalf("identity missing from report: %+v", report)
	}
	if report.FallbackMode {
		t.Fatalf("all probes reachable, fallback must be off")
	}
	if len(report.Collections) != len(model.DebugCandidates) {
		t.Fatalf("every candidate must be probed, got %d", len(report.Collections))
	}
	for _, probe := range report.Collections {
		if probe.Name == "messages_v1" {
			if probe.Accessible || probe.Error == "" {
				t.Fatalf("denied collection must report its error: %+v", probe)
			}
		} else if !probe.Accessible {
			t.Fatalf("collection %s unexpectedly inaccessible", probe.Name)
		}
	}
}
