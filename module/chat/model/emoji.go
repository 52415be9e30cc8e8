package model

// EmojiStat is a per-user, per-symbol usage record, keyed <userId>_<emoji>.
type EmojiStat struct {
	Emoji      string `bson:"emoji" json:"emoji"`
	Count      int64  `bson:"count" json:"count"`
	LastUsed   int64  `bson:"lastUsed" json:"lastUsed"`
	IsFavorite bool   `bson:"isFavorite" json:"isFavorite"`
	UserID     string `bson:"userId" json:"userId"`
}

// EmojiStatID builds the document id for a user/symbol pair.
func EmojiStatID(userID, emoji string) string {
	return userID + "_" + emoji
}
