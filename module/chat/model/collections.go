package model

// Primary collection names plus the historical variants older portal
// deployments left behind. The detector probes ProbeCandidates; the directory
// and message store walk the search/fallback lists in mode order.
const (
	CollUsers        = "users"
	CollChats        = "chats"
	CollMessages     = "messages"
	CollParticipants = "chat_participants"
	CollEmojiStats   = "emojiStats"
)

var (
	ProbeCandidates = []string{CollChats, "chats_v2", "direct_chats", CollMessages, "messages_v2"}

	// chat collections searched by find-or-create, modern shape first
	ChatSearchStandard = []string{CollChats, "chats_v2", "direct_chats", "user_chats"}
	ChatSearchFallback = []string{"direct_chats", "user_chats", "chats_v2", CollChats}

	// subscription orders for the chat list
	ChatSubscribeStandard = []string{CollChats, "chats_v2", "direct_chats"}
	ChatSubscribeFallback = []string{"chats_v1", "direct_chats", "user_chats", CollChats}

	// ordered fallbacks for message writes after the primary collection fails
	MessageFallbacks = []string{"messages_v2", "chat_messages", "direct_messages"}

	// everything the debug diagnostic enumerates
	DebugCandidates = []string{
		"chats", "chats_v1", "chats_v2", "direct_chats", "user_chats",
		"messages", "messages_v1", "messages_v2", "chat_messages",
		"users", "chat_participants",
	}
)
