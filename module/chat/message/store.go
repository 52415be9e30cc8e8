// Package message appends messages, advances their delivery status, and
// keeps each chat's denormalized last-message summary current.
package message

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/compat"
	"BPortal/module/chat/model"
	"BPortal/module/chat/unread"
	"BPortal/module/chat/users"
	"BPortal/tools/errs"
)

// ErrNoCollectionAccepted surfaces once the primary collection and every
// ordered fallback rejected the write. Each candidate is tried exactly once.
var ErrNoCollectionAccepted = errs.Primary("no collection accepted the message")

type Store struct {
	store  docstore.Store
	schema *compat.Schema
	unread *unread.Counter
	users  *users.Service
	tenant string

	// repairMissing gates the legacy leniency of materializing a placeholder
	// chat when a send references a chat id nothing knows about.
	repairMissing bool
}

func New(store docstore.Store, schema *compat.Schema, counter *unread.Counter, users *users.Service, tenant string, repairMissing bool) *Store {
	return &Store{
		store:         store,
		schema:        schema,
		unread:        counter,
		users:         users,
		tenant:        tenant,
		repairMissing: repairMissing,
	}
}

// Send appends a message to the chat. The write goes to the primary message
// collection first and walks the ordered legacy fallbacks on failure; once a
// collection accepts it, the send has succeeded from the caller's view and
// the last-message summary and unread counters advance best-effort.
func (s *Store) Send(ctx context.Context, senderID, chatID, text string, media *model.Media) (string, error) {
	s.healMissingChat(ctx, senderID, chatID)

	doc := s.baseMessage(ctx, senderID, chatID, text)
	if media != nil {
		doc["media"] = media
		doc["messageType"] = "media"
	}

	messageID, err := s.insertWithFallback(ctx, doc)
	if err != nil {
		return "", err
	}
	s.afterSend(ctx, senderID, chatID, messageID, text)
	return messageID, nil
}

// SendEscalation is Send with the required-action metadata block. Escalation
// is a v2-only concept, so no legacy collection is ever tried.
func (s *Store) SendEscalation(ctx context.Context, senderID, chatID, text string, requiresAction bool, priority model.Priority, deadline *time.Time) (string, error) {
	if priority == "" {
		priority = model.PriorityMedium
	}
	doc := s.baseMessage(ctx, senderID, chatID, text)
	esc := bson.M{
		"requiresAction": requiresAction,
		"actionTaken":    false,
		"acceptedBy":     []string{},
		"priority":       string(priority),
	}
	if deadline != nil {
		esc["deadline"] = deadline.UnixMilli()
	}
	doc["escalationData"] = esc

	messageID, err := s.store.Collection(model.CollMessages).Insert(ctx, "", doc)
	if err != nil {
		return "", errs.Wrap(err, "send escalation message")
	}
	s.afterSend(ctx, senderID, chatID, messageID, text)
	return messageID, nil
}

func (s *Store) baseMessage(ctx context.Context, senderID, chatID, text string) bson.M {
	return bson.M{
		"chatId":      chatID,
		"text":        text,
		"senderId":    senderID,
		"timestamp":   docstore.ServerTimestamp,
		"status":      string(model.StatusSent),
		"readBy":      []string{senderID},
		"deliveredTo": []string{},
		// denormalized fields older portal versions query on
		"concernID":   s.tenant,
		"senderName":  s.users.DisplayName(ctx, senderID),
		"messageType": "text",
	}
}

func (s *Store) insertWithFallback(ctx context.Context, doc bson.M) (string, error) {
	id, err := s.store.Collection(model.CollMessages).Insert(ctx, "", doc)
	if err == nil {
		return id, nil
	}
	logger.Warnf("primary message collection rejected write, trying fallbacks: %v", err)
	for _, coll := range model.MessageFallbacks {
		id, ferr := s.store.Collection(coll).Insert(ctx, "", doc)
		if ferr == nil {
			logger.Infof("message accepted by fallback collection %s", coll)
			return id, nil
		}
		logger.Debugf("fallback collection %s rejected write: %v", coll, ferr)
	}
	return "", ErrNoCollectionAccepted.WithDetail(err.Error())
}

// afterSend runs the secondary updates. They never fail the send: the
// message is already durable.
func (s *Store) afterSend(ctx context.Context, senderID, chatID, messageID, text string) {
	if err := s.updateChatLastMessage(ctx, chatID, bson.M{
		"text":      text,
		"senderId":  senderID,
		"timestamp": docstore.ServerTimestamp,
		"messageId": messageID,
	}); err != nil {
		logger.Warnf("last-message update for chat %s failed: %v", chatID, err)
	}
	if err := s.unread.Increment(ctx, chatID, senderID); err != nil {
		logger.Warnf("unread increment for chat %s failed: %v", chatID, err)
	}
}

func (s *Store) updateChatLastMessage(ctx context.Context, chatID string, lastMessage bson.M) error {
	return s.store.Collection(model.CollChats).Update(ctx, chatID, docstore.Update{
		Set:        bson.M{"lastMessage": lastMessage},
		ServerTime: []string{"metadata.updatedAt"},
	})
}

// healMissingChat materializes a minimal placeholder when the chat id is
// unknown, but only in repair mode; a stale id otherwise stays visible as a
// failing secondary update instead of being papered over.
func (s *Store) healMissingChat(ctx context.Context, senderID, chatID string) {
	chats := s.store.Collection(model.CollChats)
	_, ok, err := chats.Get(ctx, chatID)
	if err != nil || ok {
		return
	}
	if !s.repairMissing {
		logger.Debugf("send references unknown chat %s (repair mode off)", chatID)
		return
	}
	logger.Warnf("REPAIR: chat %s missing on send, creating placeholder", chatID)
	err = chats.Set(ctx, chatID, bson.M{
		"type":         string(model.KindDirect),
		"name":         "Fallback Chat",
		"participants": []string{senderID},
		"unreadCount":  bson.M{senderID: int64(0)},
		"metadata": bson.M{
			"createdBy": senderID,
			"createdAt": docstore.ServerTimestamp,
			"updatedAt": docstore.ServerTimestamp,
			"concernID": s.tenant,
		},
	})
	if err != nil {
		logger.Warnf("REPAIR: placeholder chat %s failed: %v", chatID, err)
	}
}
