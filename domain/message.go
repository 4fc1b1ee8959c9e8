// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. The ID is assigned when the
// message is persisted, before any live delivery, so receivers can use it
// to de-duplicate a push against a later history fetch.
type Message struct {
	ID              uuid.UUID
	ConversationKey string
	SenderID        string
	SenderName      string
	Content         string
	CreatedAt       time.Time
}
