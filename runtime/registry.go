package runtime

import (
	"sync"

	"chat-relay/contract"

	"github.com/google/uuid"
)

// SessionID identifies one live connection. A user may own several.
type SessionID string

// Target is a delivery endpoint resolved from the registry: the session,
// its owning user, and the sink to push through. Targets are snapshots;
// a disconnect after the snapshot only makes the push fail, never
// exposes half-removed state.
type Target struct {
	Session SessionID
	UserID  string
	Sink    contract.EventSink
}

type session struct {
	userID string
	sink   contract.EventSink
	subs   map[string]struct{}
}

// Registry tracks live sessions, the user owning each, and the
// conversation keys each session listens to. "User online" and
// "one connection" are deliberately distinct: lookups by user return
// every session, lookups by conversation key return subscribed sessions
// across all users.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[SessionID]*session
	userSessions map[string]map[SessionID]struct{}
	subscribers  map[string]map[SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[SessionID]*session),
		userSessions: make(map[string]map[SessionID]struct{}),
		subscribers:  make(map[string]map[SessionID]struct{}),
	}
}

// Connect registers a new live session for a user and returns its handle.
func (r *Registry) Connect(userID string, sink contract.EventSink) SessionID {
	id := SessionID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[id] = &session{userID: userID, sink: sink, subs: make(map[string]struct{})}
	if _, ok := r.userSessions[userID]; !ok {
		r.userSessions[userID] = make(map[SessionID]struct{})
	}
	r.userSessions[userID][id] = struct{}{}
	return id
}

// Disconnect removes a session and all its subscriptions. Calling it twice
// for the same handle is a no-op; duplicate disconnect signals from the
// transport are expected.
func (r *Registry) Disconnect(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	if owned, ok := r.userSessions[sess.userID]; ok {
		delete(owned, id)
		if len(owned) == 0 {
			delete(r.userSessions, sess.userID)
		}
	}

	for key := range sess.subs {
		if subs, ok := r.subscribers[key]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(r.subscribers, key)
			}
		}
	}
}

// Subscribe adds a conversation key to a session's subscription set.
// Idempotent; a no-op for an already-removed session so it tolerates a
// disconnect racing the subscribe. Subscription is advisory routing state
// only: the router enforces membership at send time, so an unauthorized
// subscribe never receives traffic.
func (r *Registry) Subscribe(id SessionID, conversationKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	sess.subs[conversationKey] = struct{}{}

	if _, ok := r.subscribers[conversationKey]; !ok {
		r.subscribers[conversationKey] = make(map[SessionID]struct{})
	}
	r.subscribers[conversationKey][id] = struct{}{}
}

// Unsubscribe removes a conversation key from a session's subscription set.
func (r *Registry) Unsubscribe(id SessionID, conversationKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(sess.subs, conversationKey)

	if subs, ok := r.subscribers[conversationKey]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.subscribers, conversationKey)
		}
	}
}

// SessionsOf returns a snapshot of every live sink owned by a user,
// possibly empty. Every session of a user is implicitly reachable for
// personal notifications regardless of subscriptions.
func (r *Registry) SessionsOf(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for id := range r.userSessions[userID] {
		if sess, ok := r.sessions[id]; ok {
			sinks = append(sinks, sess.sink)
		}
	}
	return sinks
}

// SessionsSubscribedTo returns an atomic snapshot of the sessions currently
// subscribed to a conversation key, across all users. The caller iterates
// the snapshot without holding any registry lock, so a concurrent
// disconnect can never expose a half-removed session to the push path.
func (r *Registry) SessionsSubscribedTo(conversationKey string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []Target
	for id := range r.subscribers[conversationKey] {
		if sess, ok := r.sessions[id]; ok {
			targets = append(targets, Target{Session: id, UserID: sess.userID, Sink: sess.sink})
		}
	}
	return targets
}
