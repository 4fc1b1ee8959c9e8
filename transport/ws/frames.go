// Package ws is the live-connection glue between clients and the routing
// core: it upgrades authenticated HTTP requests to websocket sessions,
// feeds inbound frames to the chat service, and drains each session's
// outbox back onto the wire.
package ws

import (
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// ClientFrame is one inbound websocket message.
type ClientFrame struct {
	Action          string `json:"action"` // subscribe, unsubscribe, send_group, send_direct
	ConversationKey string `json:"conversationKey,omitempty"`
	GroupID         string `json:"groupId,omitempty"`
	To              string `json:"to,omitempty"`
	Content         string `json:"content,omitempty"`
}

// ServerFrame is one outbound websocket message.
type ServerFrame struct {
	Event   string          `json:"event"`
	Message *MessagePayload `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// MessagePayload is the fixed payload shape for delivered messages.
type MessagePayload struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversationKey"`
	SenderID        string    `json:"senderId"`
	SenderName      string    `json:"senderName"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toPayload(msg domain.Message) *MessagePayload {
	return &MessagePayload{
		ID:              msg.ID.String(),
		ConversationKey: msg.ConversationKey,
		SenderID:        msg.SenderID,
		SenderName:      msg.SenderName,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt,
	}
}

// toFrame maps a domain event to its wire shape.
func toFrame(e event.DomainEvent) ServerFrame {
	switch evt := e.(type) {
	case event.GroupMessage:
		return ServerFrame{Event: evt.EventName(), Message: toPayload(evt.Message)}
	case event.DirectMessage:
		return ServerFrame{Event: evt.EventName(), Message: toPayload(evt.Message)}
	default:
		return ServerFrame{Event: e.EventName()}
	}
}
