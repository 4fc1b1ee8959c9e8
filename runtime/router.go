// Package runtime is the real-time routing core: it decides, for every
// inbound message, exactly which live sessions must receive it, and keeps
// that routing consistent with the durable log as users connect,
// disconnect, and join or leave conversations.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
)

// ConversationDirectory is the slice of the directory the router needs:
// membership resolution, re-checked on every send.
type ConversationDirectory interface {
	User(id string) (domain.User, error)
	ResolveGroup(groupID string) (domain.Group, error)
	ResolveDirect(senderID, recipientName string) (domain.User, string, error)
}

// Router drives each send through Received, Authorized, Persisted and
// Delivered. Authorization comes from the directory at send time (never
// from subscription state), the append to the log strictly precedes any
// push, and per-session delivery is best-effort and isolated.
type Router struct {
	log       *slog.Logger
	directory ConversationDirectory
	messages  repositories.IMessageRepository
	registry  *Registry
	notifier  *Notifier
	moderator *moderation.Moderator
}

func NewRouter(log *slog.Logger, directory ConversationDirectory,
	messages repositories.IMessageRepository, registry *Registry,
	notifier *Notifier, moderator *moderation.Moderator) *Router {
	return &Router{
		log:       log,
		directory: directory,
		messages:  messages,
		registry:  registry,
		notifier:  notifier,
		moderator: moderator,
	}
}

// SendGroup routes one message to a group. Membership is re-checked here,
// not at subscribe time: it can change between the two. A persistence
// failure aborts the whole send before any delivery, so no live observer
// ever sees a message that a reconnecting client could not find in
// history.
func (r *Router) SendGroup(ctx context.Context, senderID, groupID, content string) (domain.Message, error) {
	group, err := r.directory.ResolveGroup(groupID)
	if err != nil {
		return domain.Message{}, err
	}
	if !group.IsMember(senderID) {
		return domain.Message{}, fmt.Errorf("%w: sender not in group %s", errors.ErrForbidden, groupID)
	}
	sender, err := r.directory.User(senderID)
	if err != nil {
		return domain.Message{}, err
	}

	key := domain.GroupKey(groupID)
	msg, err := r.messages.Append(key, sender.ID, sender.Name, r.censor(content))
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist group message: %w", err)
	}

	members := make(map[string]struct{}, len(group.Members))
	for _, m := range group.Members {
		members[m] = struct{}{}
	}
	r.deliver(ctx, event.GroupMessage{Message: msg}, key, members)
	return msg, nil
}

// SendDirect routes one message between two users. The conversation key is
// derived, never stored; the first exchange between a pair also records
// the pair and hints both users' sessions to refresh their lists.
func (r *Router) SendDirect(ctx context.Context, senderID, recipientName, content string) (domain.Message, error) {
	sender, err := r.directory.User(senderID)
	if err != nil {
		return domain.Message{}, err
	}
	recipient, key, err := r.directory.ResolveDirect(senderID, recipientName)
	if err != nil {
		return domain.Message{}, err
	}

	msg, err := r.messages.Append(key, sender.ID, sender.Name, r.censor(content))
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist direct message: %w", err)
	}

	discovered, err := r.messages.RecordDirectPair(sender.ID, recipient.ID)
	if err != nil {
		r.log.Warn(fmt.Sprintf("Recording direct pair failed: %v", err))
	}

	participants := map[string]struct{}{sender.ID: {}, recipient.ID: {}}
	r.deliver(ctx, event.DirectMessage{Message: msg}, key, participants)

	if discovered {
		r.notifier.ConversationListChanged(sender.ID, recipient.ID)
	}
	return msg, nil
}

// deliver pushes an event to every live session subscribed to the key at
// this moment, exactly once per session. The authorized set from the
// directory is the gate; the subscription set only narrows it to sessions
// currently listening. One slow or failed push never blocks the rest:
// sinks are non-blocking, and a failure is logged and swallowed since the
// message is already durable and retrievable via history.
func (r *Router) deliver(ctx context.Context, e event.DomainEvent, conversationKey string, authorized map[string]struct{}) {
	if ctx.Err() != nil {
		return
	}
	for _, target := range r.registry.SessionsSubscribedTo(conversationKey) {
		if _, ok := authorized[target.UserID]; !ok {
			continue
		}
		if err := target.Sink.Consume(e); err != nil {
			r.log.Debug(fmt.Sprintf("Delivery to session %s failed: %v", target.Session, err))
		}
	}
}

func (r *Router) censor(content string) string {
	if r.moderator == nil {
		return content
	}
	return r.moderator.Censor(content)
}
