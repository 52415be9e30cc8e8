// Package directory locates or creates chats independent of which schema
// variant stored them.
package directory

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/compat"
	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

var ErrChatCreateFailed = errs.Primary("could not create chat in any collection")

type Directory struct {
	store  docstore.Store
	schema *compat.Schema
	tenant string
}

func New(store docstore.Store, schema *compat.Schema, tenant string) *Directory {
	return &Directory{store: store, schema: schema, tenant: tenant}
}

// FindOrCreateDirect returns the id of the one-to-one chat between self and
// other, creating it if no schema variant holds one. The search tries every
// candidate collection with every historical query shape; the first record
// whose participant set contains other wins.
func (d *Directory) FindOrCreateDirect(ctx context.Context, selfID, otherID string) (string, error) {
	if id := d.findDirect(ctx, selfID, otherID); id != "" {
		return id, nil
	}

	doc := bson.M{
		"type":         string(model.KindDirect),
		"name":         "",
		"participants": []string{selfID, otherID},
		"unreadCount":  bson.M{selfID: int64(0), otherID: int64(0)},
		"metadata": bson.M{
			"createdBy": selfID,
			"createdAt": docstore.ServerTimestamp,
			"updatedAt": docstore.ServerTimestamp,
			"concernID": d.tenant,
		},
		// duplicated legacy fields keep the record discoverable under the
		// v1 query shapes
		"concernID": d.tenant,
		"user1":     selfID,
		"user2":     otherID,
		"createdBy": selfID,
		"createdAt": docstore.ServerTimestamp,
	}

	var chatID string
	for _, coll := range d.schema.ChatSearchOrder() {
		id, err := d.store.Collection(coll).Insert(ctx, "", doc)
		if err != nil {
			logger.Debugf("create chat in %s failed: %v", coll, err)
			continue
		}
		chatID = id
		break
	}
	if chatID == "" {
		return "", ErrChatCreateFailed
	}

	// membership records are a best-effort enrichment; older portals never had them
	if err := d.createParticipants(ctx, chatID, selfID, []string{selfID, otherID}); err != nil {
		logger.Warnf("create chat participants for %s failed: %v", chatID, err)
	}
	return chatID, nil
}

func (d *Directory) findDirect(ctx context.Context, selfID, otherID string) string {
	queries := []docstore.Query{
		{Eq: bson.M{"type": string(model.KindDirect)}, Contains: map[string]string{"participants": selfID}},
		{Contains: map[string]string{"participants": selfID}},
		{Eq: bson.M{"user1": selfID}},
		{Eq: bson.M{"user2": selfID}},
	}
	for _, coll := range d.schema.ChatSearchOrder() {
		for _, q := range queries {
			recs, err := d.store.Collection(coll).Find(ctx, q)
			if err != nil {
				logger.Debugf("chat search in %s failed: %v", coll, err)
				continue
			}
			for _, rec := range recs {
				chat, err := NormalizeChat(rec.ID, rec.Data, d.tenant)
				if err != nil {
					continue
				}
				for _, p := range chat.Participants {
					if p == otherID {
						return rec.ID
					}
				}
			}
		}
	}
	return ""
}

// CreateGroup writes a v2-only group chat; no legacy fallback.
func (d *Directory) CreateGroup(ctx context.Context, selfID, name string, participantIDs []string, description string) (string, error) {
	members := append([]string{selfID}, participantIDs...)
	doc := bson.M{
		"type":         string(model.KindGroup),
		"name":         name,
		"participants": members,
		"unreadCount":  zeroCounts(members),
		"metadata":     d.newMetadata(selfID),
		"groupInfo": bson.M{
			"description": description,
			"admins":      []string{selfID},
		},
	}
	return d.createSingle(ctx, selfID, doc, members)
}

// CreateEscalation writes a v2-only escalation chat carrying the
// required-action flag and priority.
func (d *Directory) CreateEscalation(ctx context.Context, selfID, name string, participantIDs []string, priority model.Priority) (string, error) {
	if priority == "" {
		priority = model.PriorityMedium
	}
	members := append([]string{selfID}, participantIDs...)
	doc := bson.M{
		"type":         string(model.KindEscalation),
		"name":         name,
		"participants": members,
		"unreadCount":  zeroCounts(members),
		"metadata":     d.newMetadata(selfID),
		"escalationInfo": bson.M{
			"requiresAction": true,
			"priority":       string(priority),
			"category":       "project",
		},
	}
	return d.createSingle(ctx, selfID, doc, members)
}

func (d *Directory) createSingle(ctx context.Context, selfID string, doc bson.M, members []string) (string, error) {
	chatID, err := d.store.Collection(model.CollChats).Insert(ctx, "", doc)
	if err != nil {
		return "", errs.Wrap(err, "create chat")
	}
	if err := d.createParticipants(ctx, chatID, selfID, members); err != nil {
		logger.Warnf("create chat participants for %s failed: %v", chatID, err)
	}
	return chatID, nil
}

// createParticipants materializes one join record per member, tagging the
// creator as admin and everyone else as member.
func (d *Directory) createParticipants(ctx context.Context, chatID, creatorID string, userIDs []string) error {
	coll := d.store.Collection(model.CollParticipants)
	for _, uid := range userIDs {
		role := model.RoleMember
		if uid == creatorID {
			role = model.RoleAdmin
		}
		doc := bson.M{
			"chatId":      chatID,
			"userId":      uid,
			"joinedAt":    docstore.ServerTimestamp,
			"role":        string(role),
			"isActive":    true,
			"lastReadAt":  docstore.ServerTimestamp,
			"unreadCount": int64(0),
		}
		if _, err := coll.Insert(ctx, "", doc); err != nil {
			return errs.Wrapf(err, "participant %s", uid)
		}
	}
	return nil
}

// GetChats lists the caller's chats for this tenant, most recently updated
// first, each normalized to the canonical shape.
func (d *Directory) GetChats(ctx context.Context, selfID string) ([]model.Chat, error) {
	recs, err := d.store.Collection(model.CollChats).Find(ctx, docstore.Query{
		Contains: map[string]string{"participants": selfID},
		Eq:       bson.M{"metadata.concernID": d.tenant},
		SortBy:   "metadata.updatedAt",
		Desc:     true,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list chats")
	}
	chats := make([]model.Chat, 0, len(recs))
	for _, rec := range recs {
		chat, err := NormalizeChat(rec.ID, rec.Data, d.tenant)
		if err != nil {
			logger.Debugf("skip malformed chat %s: %v", rec.ID, err)
			continue
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// LeaveChat soft-deletes the caller's join record and removes them from the
// chat's participant set. The chat itself is never physically deleted.
func (d *Directory) LeaveChat(ctx context.Context, selfID, chatID string) error {
	parts := d.store.Collection(model.CollParticipants)
	recs, err := parts.Find(ctx, docstore.Query{
		Eq: bson.M{"chatId": chatID, "userId": selfID},
	})
	if err != nil {
		return errs.Wrap(err, "find participant record")
	}
	for _, rec := range recs {
		if err := parts.Update(ctx, rec.ID, docstore.Update{
			Set: bson.M{"isActive": false},
		}); err != nil {
			return errs.Wrap(err, "deactivate participant")
		}
	}
	return errs.Wrap(d.store.Collection(model.CollChats).Update(ctx, chatID, docstore.Update{
		Pull: map[string]interface{}{"participants": selfID},
	}), "remove from participant set")
}

func (d *Directory) newMetadata(selfID string) bson.M {
	return bson.M{
		"createdBy": selfID,
		"createdAt": docstore.ServerTimestamp,
		"updatedAt": docstore.ServerTimestamp,
		"concernID": d.tenant,
	}
}

func zeroCounts(members []string) bson.M {
	out := bson.M{}
	for _, m := range members {
		out[m] = int64(0)
	}
	return out
}
