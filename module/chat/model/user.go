package model

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
	PresenceAway    PresenceStatus = "away"
)

// User mirrors the account documents provisioned outside this engine. The
// vorname/nachname tags are the historical field names the deployment's user
// records actually carry; display-name resolution prefers them.
type User struct {
	UID         string         `bson:"-" json:"uid"`
	Email       string         `bson:"email" json:"email"`
	DisplayName string         `bson:"displayName" json:"displayName"`
	FirstName   string         `bson:"vorname" json:"vorname"`
	LastName    string         `bson:"nachname" json:"nachname"`
	PhotoURL    string         `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Status      PresenceStatus `bson:"status" json:"status"`
	LastSeen    int64          `bson:"lastSeen" json:"lastSeen"`
	TenantID    string         `bson:"concernID" json:"concernID"`
	Role        string         `bson:"role" json:"role"`
}
