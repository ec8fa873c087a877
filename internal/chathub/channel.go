package chathub

// Channel is the name of a broadcast group in the registry.
type Channel string

const (
	roomChannelPrefix  = "chat:"
	inboxChannelPrefix = "user:"
)

// RoomChannel is the channel of every connection viewing chatID.
func RoomChannel(chatID string) Channel {
	return Channel(roomChannelPrefix + chatID)
}

// InboxChannel is the personal notification channel of userID.
func InboxChannel(userID string) Channel {
	return Channel(inboxChannelPrefix + userID)
}

func (c Channel) String() string { return string(c) }
