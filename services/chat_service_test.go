package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"chat-relay/directory"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

type chatFixture struct {
	service *ChatService
	users   *repositories.UserRepository
}

func newChatFixture(t *testing.T) chatFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users := repositories.NewUserRepository(db)
	groups := repositories.NewGroupRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	dir := directory.New(log, users, groups, messages, false)
	registry := runtime.NewRegistry()
	notifier := runtime.NewNotifier(log, registry)
	router := runtime.NewRouter(log, dir, messages, registry, notifier, nil)
	return chatFixture{
		service: NewChatService(dir, messages, registry, router, notifier),
		users:   users,
	}
}

func (f chatFixture) registerUser(t *testing.T, name string) domain.User {
	t.Helper()
	user, err := f.users.CreateUser(name, name+"@example.com", "hash")
	require.NoError(t, err)
	return user
}

// End-to-end inside the core: alice creates a group with bob, bob is live
// and subscribed, alice sends, bob receives exactly one push.
func TestChatService_Group_Flow(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")

	bobSink := &recordingSink{}
	bobSession := f.service.Connect(bob.ID, bobSink)

	group, err := f.service.CreateGroup("team", alice.ID, []string{"bob"})
	req.NoError(err)

	// Creation hinted bob's live session
	req.Len(bobSink.Events(), 1)
	req.IsType(event.ConversationListChanged{}, bobSink.Events()[0])

	key := domain.GroupKey(group.ID)
	f.service.Subscribe(bobSession, key)

	msg, err := f.service.SendGroup(context.Background(), alice.ID, group.ID, "hi")
	req.NoError(err)

	pushes := bobSink.Events()
	req.Len(pushes, 2)
	delivered := pushes[1].(event.GroupMessage).Message
	req.Equal("hi", delivered.Content)
	req.Equal("alice", delivered.SenderName)
	req.Equal(msg.ID, delivered.ID)

	history, err := f.service.History(bob.ID, key)
	req.NoError(err)
	req.Len(history, 1)
}

// Scenario: alice and carol have no prior messages. After alice's first
// direct message, carol's conversation list includes a direct entry named
// "alice".
func TestChatService_Direct_Flow_Updates_Conversation_List(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	alice := f.registerUser(t, "alice")
	carol := f.registerUser(t, "carol")

	carolSink := &recordingSink{}
	f.service.Connect(carol.ID, carolSink)

	before, err := f.service.ConversationList(carol.ID)
	req.NoError(err)
	req.Empty(before)

	_, err = f.service.SendDirect(context.Background(), alice.ID, "carol", "hello carol")
	req.NoError(err)

	// Carol got the hint even without any subscription
	req.NotEmpty(carolSink.Events())
	req.IsType(event.ConversationListChanged{}, carolSink.Events()[0])

	after, err := f.service.ConversationList(carol.ID)
	req.NoError(err)
	req.Len(after, 1)
	req.Equal("alice", after[0].Name)
	req.Equal(domain.KindDirect, after[0].Kind)
	req.Equal(domain.DirectKey(alice.ID, carol.ID), after[0].Key)

	history, err := f.service.DirectHistory(carol.ID, "alice")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hello carol", history[0].Content)
}

func TestChatService_History_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	alice := f.registerUser(t, "alice")
	mallory := f.registerUser(t, "mallory")

	group, err := f.service.CreateGroup("private", alice.ID, nil)
	req.NoError(err)

	_, err = f.service.History(mallory.ID, domain.GroupKey(group.ID))
	req.ErrorIs(err, errors.ErrForbidden)

	_, err = f.service.History(alice.ID, domain.GroupKey("ghost"))
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestChatService_DeleteGroup_Hints_Members_And_Clears_History(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")

	bobSink := &recordingSink{}
	f.service.Connect(bob.ID, bobSink)

	group, err := f.service.CreateGroup("team", alice.ID, []string{"bob"})
	req.NoError(err)
	_, err = f.service.SendGroup(context.Background(), alice.ID, group.ID, "doomed")
	req.NoError(err)

	req.NoError(f.service.DeleteGroup(group.ID, alice.ID))

	hints := lo.CountBy(bobSink.Events(), func(e event.DomainEvent) bool {
		_, ok := e.(event.ConversationListChanged)
		return ok
	})
	req.Equal(2, hints) // one for create, one for delete

	refs, err := f.service.ConversationList(bob.ID)
	req.NoError(err)
	req.Empty(refs)

	req.ErrorIs(f.service.DeleteGroup(group.ID, alice.ID), errors.ErrNotFound)
}

func TestChatService_DeleteDirect(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	alice := f.registerUser(t, "alice")
	carol := f.registerUser(t, "carol")

	_, err := f.service.SendDirect(context.Background(), alice.ID, "carol", "first")
	req.NoError(err)
	_, err = f.service.SendDirect(context.Background(), carol.ID, "alice", "reply")
	req.NoError(err)

	count, err := f.service.DeleteDirect(alice.ID, "carol")
	req.NoError(err)
	req.Equal(2, count)

	refs, err := f.service.ConversationList(carol.ID)
	req.NoError(err)
	req.Empty(refs)
}
