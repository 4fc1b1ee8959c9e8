package services

import (
	"context"
	"fmt"

	"chat-relay/contract"
	"chat-relay/directory"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime"

	"github.com/samber/lo"
)

type IChatService interface {
	Connect(userID string, sink contract.EventSink) runtime.SessionID
	Disconnect(id runtime.SessionID)
	Subscribe(id runtime.SessionID, conversationKey string)
	Unsubscribe(id runtime.SessionID, conversationKey string)
	SendGroup(ctx context.Context, senderID, groupID, content string) (domain.Message, error)
	SendDirect(ctx context.Context, senderID, recipientName, content string) (domain.Message, error)
	History(userID, conversationKey string) ([]domain.Message, error)
	DirectHistory(userID, otherName string) ([]domain.Message, error)
	ConversationList(userID string) ([]domain.ConversationRef, error)
	CreateGroup(name, creatorID string, memberNames []string) (domain.Group, error)
	DeleteGroup(groupID, requesterID string) error
	DeleteDirect(requesterID, otherName string) (int, error)
}

// ChatService is the inbound surface of the routing core: everything the
// transport layer may ask for goes through here.
type ChatService struct {
	directory *directory.Directory
	messages  repositories.IMessageRepository
	registry  *runtime.Registry
	router    *runtime.Router
	notifier  *runtime.Notifier
}

func NewChatService(dir *directory.Directory, messages repositories.IMessageRepository,
	registry *runtime.Registry, router *runtime.Router, notifier *runtime.Notifier) *ChatService {
	return &ChatService{
		directory: dir,
		messages:  messages,
		registry:  registry,
		router:    router,
		notifier:  notifier,
	}
}

func (s *ChatService) Connect(userID string, sink contract.EventSink) runtime.SessionID {
	return s.registry.Connect(userID, sink)
}

func (s *ChatService) Disconnect(id runtime.SessionID) {
	s.registry.Disconnect(id)
}

func (s *ChatService) Subscribe(id runtime.SessionID, conversationKey string) {
	s.registry.Subscribe(id, conversationKey)
}

func (s *ChatService) Unsubscribe(id runtime.SessionID, conversationKey string) {
	s.registry.Unsubscribe(id, conversationKey)
}

func (s *ChatService) SendGroup(ctx context.Context, senderID, groupID, content string) (domain.Message, error) {
	return s.router.SendGroup(ctx, senderID, groupID, content)
}

func (s *ChatService) SendDirect(ctx context.Context, senderID, recipientName, content string) (domain.Message, error) {
	return s.router.SendDirect(ctx, senderID, recipientName, content)
}

// History returns the ordered message sequence of a conversation the user
// belongs to. Membership gates the read path exactly like the send path.
func (s *ChatService) History(userID, conversationKey string) ([]domain.Message, error) {
	members, err := s.directory.MembersOf(conversationKey)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(members, userID) {
		return nil, fmt.Errorf("%w: not a participant of %s", errors.ErrForbidden, conversationKey)
	}
	return s.messages.History(conversationKey)
}

// DirectHistory is History with the conversation key derived from the
// other participant's username.
func (s *ChatService) DirectHistory(userID, otherName string) ([]domain.Message, error) {
	_, key, err := s.directory.ResolveDirect(userID, otherName)
	if err != nil {
		return nil, err
	}
	return s.messages.History(key)
}

func (s *ChatService) ConversationList(userID string) ([]domain.ConversationRef, error) {
	return s.directory.ConversationList(userID)
}

// CreateGroup creates the group and hints every member's live sessions.
func (s *ChatService) CreateGroup(name, creatorID string, memberNames []string) (domain.Group, error) {
	group, err := s.directory.CreateGroup(name, creatorID, memberNames)
	if err != nil {
		return domain.Group{}, err
	}
	s.notifier.ConversationListChanged(group.Members...)
	return group, nil
}

// DeleteGroup removes the group with its messages and hints the former
// members.
func (s *ChatService) DeleteGroup(groupID, requesterID string) error {
	members, err := s.directory.DeleteGroup(groupID, requesterID)
	if err != nil {
		return err
	}
	s.notifier.ConversationListChanged(members...)
	return nil
}

// DeleteDirect removes the direct conversation with the named user and
// hints both parties.
func (s *ChatService) DeleteDirect(requesterID, otherName string) (int, error) {
	other, count, err := s.directory.DeleteDirect(requesterID, otherName)
	if err != nil {
		return 0, err
	}
	s.notifier.ConversationListChanged(requesterID, other.ID)
	return count, nil
}
