// Package event defines the outbound events the core pushes to live
// sessions. Events cross the routing boundary exactly once per session.
package event

import "chat-relay/domain"

type DomainEvent interface {
	EventName() string
}

// GroupMessage is delivered to every live session subscribed to the
// group's conversation key at append time.
type GroupMessage struct {
	Message domain.Message
}

func (GroupMessage) EventName() string { return "group_message" }

// DirectMessage is the direct-pair counterpart of GroupMessage.
type DirectMessage struct {
	Message domain.Message
}

func (DirectMessage) EventName() string { return "direct_message" }

// ConversationListChanged is a payload-free hint: the receiver is expected
// to re-fetch its conversation list. A missed hint delays a refresh, it
// never corrupts state.
type ConversationListChanged struct{}

func (ConversationListChanged) EventName() string { return "conversation_list_changed" }
