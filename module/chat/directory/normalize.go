package directory

import (
	"go.mongodb.org/mongo-driver/bson"

	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

// The two shapes a chat document can arrive in. Which one a raw document is
// gets decided once, here; nobody else branches on field presence.

// ModernChatRecord is the v2 shape: participants array plus a metadata block.
type ModernChatRecord struct {
	Kind         string                `bson:"type"`
	Name         string                `bson:"name"`
	Participants []string              `bson:"participants"`
	LastMessage  *model.LastMessage    `bson:"lastMessage"`
	UnreadCount  map[string]int64      `bson:"unreadCount"`
	Metadata     model.ChatMetadata    `bson:"metadata"`
	GroupInfo    *model.GroupInfo      `bson:"groupInfo"`
	Escalation   *model.EscalationInfo `bson:"escalationInfo"`

	// pre-rename deployments stored the escalation block under this name
	Controlling *model.EscalationInfo `bson:"controllingInfo"`
}

// LegacyChatRecord is the v1 shape: flat user1/user2 fields, creation
// metadata at top level, counters frequently absent.
type LegacyChatRecord struct {
	Kind         string                `bson:"type"`
	Name         string                `bson:"name"`
	User1        string                `bson:"user1"`
	User2        string                `bson:"user2"`
	Participants []string              `bson:"participants"`
	CreatedBy    string                `bson:"createdBy"`
	CreatedAt    int64                 `bson:"createdAt"`
	UpdatedAt    int64                 `bson:"updatedAt"`
	TenantID     string                `bson:"concernID"`
	LastMessage  *model.LastMessage    `bson:"lastMessage"`
	UnreadCount  map[string]int64      `bson:"unreadCount"`
	GroupInfo    *model.GroupInfo      `bson:"groupInfo"`
	Controlling  *model.EscalationInfo `bson:"controllingInfo"`
}

func isModern(raw bson.M) bool {
	_, ok := raw["metadata"].(bson.M)
	if !ok {
		_, ok = raw["metadata"].(map[string]interface{})
	}
	return ok
}

// NormalizeChat turns either record shape into the canonical Chat. The
// defaultTenant fills records from before tenant ids were stamped on chats.
func NormalizeChat(id string, raw bson.M, defaultTenant string) (model.Chat, error) {
	if isModern(raw) {
		var rec ModernChatRecord
		if err := model.Decode(raw, &rec); err != nil {
			return model.Chat{}, errs.Wrap(err, "modern chat record")
		}
		return rec.canonical(id, defaultTenant), nil
	}
	var rec LegacyChatRecord
	if err := model.Decode(raw, &rec); err != nil {
		return model.Chat{}, errs.Wrap(err, "legacy chat record")
	}
	return rec.canonical(id, defaultTenant), nil
}

func (r ModernChatRecord) canonical(id, defaultTenant string) model.Chat {
	c := model.Chat{
		ChatID:       id,
		Kind:         normalizeKind(r.Kind),
		Name:         r.Name,
		Participants: r.Participants,
		LastMessage:  r.LastMessage,
		UnreadCount:  r.UnreadCount,
		Metadata:     r.Metadata,
		GroupInfo:    r.GroupInfo,
		Escalation:   r.Escalation,
	}
	if c.Escalation == nil {
		c.Escalation = r.Controlling
	}
	if c.UnreadCount == nil {
		c.UnreadCount = map[string]int64{}
	}
	if c.Metadata.TenantID == "" {
		c.Metadata.TenantID = defaultTenant
	}
	return c
}

func (r LegacyChatRecord) canonical(id, defaultTenant string) model.Chat {
	participants := r.Participants
	if len(participants) == 0 {
		for _, u := range []string{r.User1, r.User2} {
			if u != "" {
				participants = append(participants, u)
			}
		}
	}
	createdBy := r.CreatedBy
	if createdBy == "" {
		createdBy = r.User1
	}
	updatedAt := r.UpdatedAt
	if updatedAt == 0 {
		updatedAt = r.CreatedAt
	}
	tenant := r.TenantID
	if tenant == "" {
		tenant = defaultTenant
	}
	unread := r.UnreadCount
	if unread == nil {
		unread = map[string]int64{}
	}
	return model.Chat{
		ChatID:       id,
		Kind:         normalizeKind(r.Kind),
		Name:         r.Name,
		Participants: participants,
		LastMessage:  r.LastMessage,
		UnreadCount:  unread,
		Metadata: model.ChatMetadata{
			CreatedBy: createdBy,
			CreatedAt: r.CreatedAt,
			UpdatedAt: updatedAt,
			TenantID:  tenant,
		},
		GroupInfo:  r.GroupInfo,
		Escalation: r.Controlling,
	}
}

func normalizeKind(kind string) model.ChatKind {
	switch kind {
	case "", string(model.KindDirect):
		return model.KindDirect
	case model.LegacyKindControlling:
		return model.KindEscalation
	default:
		return model.ChatKind(kind)
	}
}
