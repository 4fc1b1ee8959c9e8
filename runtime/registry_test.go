package runtime

import (
	"sync"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
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

func TestRegistry_Connect_And_SessionsOf(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()

	// Given no session
	req.Empty(registry.SessionsOf(userID))

	// When the same user connects twice (multi-device)
	registry.Connect(userID, &recordingSink{})
	registry.Connect(userID, &recordingSink{})

	// Then both sessions are live under the same user
	req.Len(registry.SessionsOf(userID), 2)
}

func TestRegistry_Subscribe_And_SessionsSubscribedTo(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	key := domain.GroupKey("1")

	alice := registry.Connect("alice-id", &recordingSink{})
	bob := registry.Connect("bob-id", &recordingSink{})

	registry.Subscribe(alice, key)
	registry.Subscribe(alice, key) // idempotent
	registry.Subscribe(bob, key)

	targets := registry.SessionsSubscribedTo(key)
	req.Len(targets, 2)

	registry.Unsubscribe(bob, key)
	targets = registry.SessionsSubscribedTo(key)
	req.Len(targets, 1)
	req.Equal("alice-id", targets[0].UserID)
}

func TestRegistry_Disconnect_Removes_All_Subscriptions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	id := registry.Connect("alice-id", &recordingSink{})
	registry.Subscribe(id, domain.GroupKey("1"))
	registry.Subscribe(id, domain.DirectKey("alice-id", "bob-id"))

	registry.Disconnect(id)

	req.Empty(registry.SessionsOf("alice-id"))
	req.Empty(registry.SessionsSubscribedTo(domain.GroupKey("1")))
	req.Empty(registry.SessionsSubscribedTo(domain.DirectKey("alice-id", "bob-id")))

	// Duplicate disconnect signals are tolerated
	registry.Disconnect(id)

	// Subscribe after disconnect is a harmless no-op
	registry.Subscribe(id, domain.GroupKey("1"))
	req.Empty(registry.SessionsSubscribedTo(domain.GroupKey("1")))
}

func TestRegistry_Concurrent_Use(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	key := domain.GroupKey("busy")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := registry.Connect(uuid.NewString(), &recordingSink{})
			registry.Subscribe(id, key)
			registry.SessionsSubscribedTo(key)
			registry.Disconnect(id)
		}()
	}
	wg.Wait()

	req.Empty(registry.SessionsSubscribedTo(key))
}
