package model

type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant is the weak join record between a user and a chat. Soft-deleted
// on leave (IsActive=false before the record is removed); carries a mirror of
// the user's unread count for cheap badge totals.
type Participant struct {
	ChatID      string          `bson:"chatId" json:"chatId"`
	UserID      string          `bson:"userId" json:"userId"`
	JoinedAt    int64           `bson:"joinedAt" json:"joinedAt"`
	Role        ParticipantRole `bson:"role" json:"role"`
	IsActive    bool            `bson:"isActive" json:"isActive"`
	LastReadAt  int64           `bson:"lastReadAt" json:"lastReadAt"`
	UnreadCount int64           `bson:"unreadCount" json:"unreadCount"`
}
