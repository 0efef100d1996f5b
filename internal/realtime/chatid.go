package realtime

import "strings"

const directChatSeparator = "_"

// DirectChatID derives the room id of a 1:1 chat. It does not depend on argument order,
// so either participant can compute it without asking the server.
func DirectChatID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + directChatSeparator + b
}

// IsDirectParticipant reports whether userID is one of the two identities encoded in chatID.
func IsDirectParticipant(chatID, userID string) bool {
	if userID == "" || chatID == "" {
		return false
	}
	if other, ok := strings.CutPrefix(chatID, userID+directChatSeparator); ok && other != "" &&
		DirectChatID(userID, other) == chatID {
		return true
	}
	if other, ok := strings.CutSuffix(chatID, directChatSeparator+userID); ok && other != "" &&
		DirectChatID(other, userID) == chatID {
		return true
	}
	return false
}
