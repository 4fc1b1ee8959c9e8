// Package domain contains core concepts of the chat system.
// This file defines User entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is immutable once registered. Name is unique case-insensitively.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
