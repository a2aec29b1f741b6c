package models

import "time"

// Message represents an individual entry of a conversation transcript. It carries the participant's
// role, the displayed content, and the time when the message was created.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message received from the chat endpoint, including the fallback
	// message appended when the stream fails.
	RoleAssistant Role = "assistant"
)

// FallbackMessage is the assistant message appended when a stream fails.
const FallbackMessage = "Sorry, an error occurred."
