// Package chat is the messaging engine facade: one Messenger per session,
// bound to the acting user and the compatibility schema detected at
// construction.
package chat

import (
	"context"
	"time"

	"BPortal/blobstore"
	"BPortal/docstore"
	"BPortal/global/config"
	"BPortal/logger"
	"BPortal/module/chat/attach"
	"BPortal/module/chat/compat"
	"BPortal/module/chat/directory"
	"BPortal/module/chat/emoji"
	"BPortal/module/chat/message"
	"BPortal/module/chat/model"
	"BPortal/module/chat/sync"
	"BPortal/module/chat/unread"
	"BPortal/module/chat/users"
	"BPortal/service/natsx"
)

// Identity is the acting user; authentication happens outside the engine.
type Identity struct {
	UserID   string
	TenantID string
}

type Messenger struct {
	self   Identity
	store  docstore.Store
	schema *compat.Schema

	dir     *directory.Directory
	msgs    *message.Store
	counter *unread.Counter
	users   *users.Service
	files   *attach.Pipeline
	emojis  *emoji.Tracker
	rt      *sync.Sync
}

// NewMessenger probes the deployment's schema variants once and wires every
// component against the resulting mode.
func NewMessenger(ctx context.Context, store docstore.Store, blobs blobstore.Store, bus *natsx.Client, cfg *config.AppConfig, self Identity) *Messenger {
	if self.TenantID == "" {
		self.TenantID = cfg.TenantID
	}
	schema := compat.Detect(ctx, store)
	counter := unread.New(store)
	userSvc := users.New(store, self.TenantID, cfg.PresenceTTL)
	return &Messenger{
		self:    self,
		store:   store,
		schema:  schema,
		dir:     directory.New(store, schema, self.TenantID),
		msgs:    message.New(store, schema, counter, userSvc, self.TenantID, cfg.RepairMissingChats),
		counter: counter,
		users:   userSvc,
		files:   attach.New(blobs, cfg.UploadLimitBytes),
		emojis:  emoji.New(store),
		rt:      sync.New(store, schema, self.TenantID, bus),
	}
}

func (m *Messenger) Schema() *compat.Schema { return m.schema }
func (m *Messenger) Self() Identity         { return m.self }

// ---- chat management ----

func (m *Messenger) CreateDirectChat(ctx context.Context, otherUserID string) (string, error) {
	return m.dir.FindOrCreateDirect(ctx, m.self.UserID, otherUserID)
}

func (m *Messenger) CreateGroupChat(ctx context.Context, name string, participantIDs []string, description string) (string, error) {
	return m.dir.CreateGroup(ctx, m.self.UserID, name, participantIDs, description)
}

func (m *Messenger) CreateEscalationChat(ctx context.Context, name string, participantIDs []string, priority model.Priority) (string, error) {
	return m.dir.CreateEscalation(ctx, m.self.UserID, name, participantIDs, priority)
}

func (m *Messenger) GetChats(ctx context.Context) ([]model.Chat, error) {
	return m.dir.GetChats(ctx, m.self.UserID)
}

func (m *Messenger) LeaveChat(ctx context.Context, chatID string) error {
	return m.dir.LeaveChat(ctx, m.self.UserID, chatID)
}

// ---- messages ----

func (m *Messenger) SendMessage(ctx context.Context, chatID, text string, media *model.Media) (string, error) {
	return m.msgs.Send(ctx, m.self.UserID, chatID, text, media)
}

func (m *Messenger) SendEscalationMessage(ctx context.Context, chatID, text string, requiresAction bool, priority model.Priority, deadline *time.Time) (string, error) {
	return m.msgs.SendEscalation(ctx, m.self.UserID, chatID, text, requiresAction, priority, deadline)
}

func (m *Messenger) MarkDelivered(ctx context.Context, chatID, messageID string) error {
	return m.msgs.MarkDelivered(ctx, m.self.UserID, chatID, messageID)
}

func (m *Messenger) MarkRead(ctx context.Context, chatID, messageID string) error {
	return m.msgs.MarkRead(ctx, m.self.UserID, chatID, messageID)
}

func (m *Messenger) AcceptEscalation(ctx context.Context, messageID string) error {
	return m.msgs.AcceptEscalation(ctx, m.self.UserID, messageID)
}

func (m *Messenger) GetMessages(ctx context.Context, chatID string, limit int64) ([]model.Message, error) {
	return m.msgs.Messages(ctx, chatID, limit)
}

func (m *Messenger) SearchMessages(ctx context.Context, queryText, chatID string) ([]model.Message, error) {
	return m.msgs.Search(ctx, queryText, chatID)
}

// DeleteMessage is the user-initiated retraction; any attachment blob goes
// with the message.
func (m *Messenger) DeleteMessage(ctx context.Context, messageID string) error {
	msg, ok, err := m.msgs.Get(ctx, messageID)
	if err == nil && ok && msg.Media != nil && msg.Media.URL != "" {
		if derr := m.files.DeleteFile(ctx, msg.Media.URL); derr != nil {
			logger.Warnf("attachment cleanup for %s failed: %v", messageID, derr)
		}
	}
	return m.msgs.Delete(ctx, messageID)
}

func (m *Messenger) GetUnreadCount(ctx context.Context) (int64, error) {
	return m.counter.Total(ctx, m.self.UserID)
}

// ---- attachments ----

func (m *Messenger) UploadFile(ctx context.Context, f attach.File, chatID string, onProgress func(float64)) attach.Result {
	return m.files.Upload(ctx, f, chatID, onProgress)
}

func (m *Messenger) GenerateThumbnail(ctx context.Context, name, mimeType string, data []byte) string {
	return m.files.GenerateThumbnail(ctx, name, mimeType, data)
}

func (m *Messenger) DeleteFile(ctx context.Context, urlOrKey string) error {
	return m.files.DeleteFile(ctx, urlOrKey)
}

func (m *Messenger) FileDownloadURL(ctx context.Context, urlOrKey string) (string, error) {
	return m.files.FileDownloadURL(ctx, urlOrKey)
}

// ---- presence & users ----

func (m *Messenger) UpdateStatus(ctx context.Context, status model.PresenceStatus) error {
	return m.users.UpdateStatus(ctx, m.self.UserID, status)
}

func (m *Messenger) UserStatus(ctx context.Context, userID string) model.PresenceStatus {
	return m.users.Status(ctx, userID)
}

func (m *Messenger) UserDisplayName(ctx context.Context, userID string) string {
	return m.users.DisplayName(ctx, userID)
}

func (m *Messenger) TenantMembers(ctx context.Context) ([]model.User, error) {
	return m.users.TenantMembers(ctx)
}

// ---- emoji ----

func (m *Messenger) TrackEmojiUsage(ctx context.Context, symbol string) {
	m.emojis.TrackUsage(ctx, m.self.UserID, symbol)
}

func (m *Messenger) EmojiStats(ctx context.Context) ([]model.EmojiStat, error) {
	return m.emojis.Stats(ctx, m.self.UserID)
}

func (m *Messenger) ToggleEmojiFavorite(ctx context.Context, symbol string) error {
	return m.emojis.ToggleFavorite(ctx, m.self.UserID, symbol)
}

// ---- realtime ----

func (m *Messenger) SubscribeToChats(ctx context.Context, fn func([]model.Chat)) (docstore.Unsubscribe, error) {
	return m.rt.SubscribeToChats(ctx, fn)
}

func (m *Messenger) SubscribeToMessages(ctx context.Context, chatID string, fn func([]model.Message)) (docstore.Unsubscribe, error) {
	return m.rt.SubscribeToMessages(ctx, chatID, fn)
}

func (m *Messenger) SubscribeToUserStatus(ctx context.Context, userID string, fn func(model.PresenceStatus)) (docstore.Unsubscribe, error) {
	return m.rt.SubscribeToUserStatus(ctx, userID, fn)
}
