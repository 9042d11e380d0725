package models

import "time"

// TurnRole is the speaker of a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one append-only entry in a (user, channel) thread.
// Content holds plain text for simple turns; Blocks carries structured
// content (tool use, tool results) serialized as JSON when present.
type ConversationTurn struct {
	ID        string    `badgerhold:"key" json:"id"`
	UserID    string    `badgerholdIndex:"UserID" json:"user_id"`
	ChannelID string    `badgerholdIndex:"ChannelID" json:"channel_id"`
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	Blocks    []byte    `json:"blocks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
