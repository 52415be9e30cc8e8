package model

type ChatKind string

const (
	KindDirect     ChatKind = "direct"
	KindGroup      ChatKind = "group"
	KindEscalation ChatKind = "escalation"

	// value written by pre-migration portals; normalized to KindEscalation on read
	LegacyKindControlling = "controlling"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type LastMessage struct {
	Text      string `bson:"text" json:"text"`
	SenderID  string `bson:"senderId" json:"senderId"`
	Timestamp int64  `bson:"timestamp" json:"timestamp"`
	MessageID string `bson:"messageId" json:"messageId"`
}

type ChatMetadata struct {
	CreatedBy string `bson:"createdBy" json:"createdBy"`
	CreatedAt int64  `bson:"createdAt" json:"createdAt"`
	UpdatedAt int64  `bson:"updatedAt" json:"updatedAt"`
	TenantID  string `bson:"concernID" json:"concernID"`
}

type GroupInfo struct {
	Description string   `bson:"description" json:"description"`
	Avatar      string   `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Admins      []string `bson:"admins" json:"admins"`
}

type EscalationInfo struct {
	RequiresAction bool     `bson:"requiresAction" json:"requiresAction"`
	Priority       Priority `bson:"priority" json:"priority"`
	Category       string   `bson:"category" json:"category"`
}

// Chat is the canonical (modern) shape every schema variant normalizes into.
// Invariant: Participants is non-empty; LastMessage, when set, references a
// message that exists.
type Chat struct {
	ChatID       string           `bson:"-" json:"chatId"`
	Kind         ChatKind         `bson:"type" json:"type"`
	Name         string           `bson:"name" json:"name"`
	Participants []string         `bson:"participants" json:"participants"`
	LastMessage  *LastMessage     `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	UnreadCount  map[string]int64 `bson:"unreadCount" json:"unreadCount"`
	Metadata     ChatMetadata     `bson:"metadata" json:"metadata"`
	GroupInfo    *GroupInfo       `bson:"groupInfo,omitempty" json:"groupInfo,omitempty"`
	Escalation   *EscalationInfo  `bson:"escalationInfo,omitempty" json:"escalationInfo,omitempty"`
}
