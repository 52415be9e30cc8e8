package model

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// statusRank orders the delivery ladder; status only ever climbs it.
func statusRank(s MessageStatus) int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// StatusAdvances reports whether a transition from from to next climbs the ladder.
func StatusAdvances(from, next MessageStatus) bool {
	return statusRank(next) > statusRank(from)
}

type EscalationData struct {
	RequiresAction bool     `bson:"requiresAction" json:"requiresAction"`
	ActionTaken    bool     `bson:"actionTaken" json:"actionTaken"`
	AcceptedBy     []string `bson:"acceptedBy" json:"acceptedBy"`
	Priority       Priority `bson:"priority" json:"priority"`
	Deadline       *int64   `bson:"deadline,omitempty" json:"deadline,omitempty"`
}

type Media struct {
	Type         string `bson:"type" json:"type"` // image|file|voice|document
	URL          string `bson:"url" json:"url"`
	FileName     string `bson:"fileName,omitempty" json:"fileName,omitempty"`
	FileSize     int64  `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
	MimeType     string `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	ThumbnailURL string `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
}

type Message struct {
	MessageID   string          `bson:"-" json:"messageId"`
	ChatID      string          `bson:"chatId" json:"chatId"`
	Text        string          `bson:"text" json:"text"`
	SenderID    string          `bson:"senderId" json:"senderId"`
	Timestamp   int64           `bson:"timestamp" json:"timestamp"`
	Status      MessageStatus   `bson:"status" json:"status"`
	ReadBy      []string        `bson:"readBy" json:"readBy"`
	DeliveredTo []string        `bson:"deliveredTo" json:"deliveredTo"`
	Escalation  *EscalationData `bson:"escalationData,omitempty" json:"escalationData,omitempty"`
	Media       *Media          `bson:"media,omitempty" json:"media,omitempty"`

	// denormalized fields older portal versions query on
	TenantID    string `bson:"concernID" json:"concernID"`
	SenderName  string `bson:"senderName" json:"senderName"`
	MessageType string `bson:"messageType" json:"messageType"` // text|media
}
