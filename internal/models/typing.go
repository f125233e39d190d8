package models

import "time"

// TypingState records a participant's last typing signal. It is kept
// outside the message history and expires lazily on read.
type TypingState struct {
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}
