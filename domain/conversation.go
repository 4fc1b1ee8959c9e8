package domain

import "strings"

// ConversationKind discriminates the two conversation families.
type ConversationKind string

const (
	KindGroup  ConversationKind = "group"
	KindDirect ConversationKind = "direct"
)

const (
	groupPrefix  = "group:"
	directPrefix = "dm:"
)

// Group is an explicit conversation with a persisted member set.
type Group struct {
	ID      string
	Name    string
	Members []string
}

// IsMember reports whether userID belongs to the group.
func (g Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ConversationRef is one entry of a user's conversation list.
type ConversationRef struct {
	Key  string
	Name string
	Kind ConversationKind
}

// GroupKey returns the canonical conversation key for a group.
func GroupKey(groupID string) string {
	return groupPrefix + groupID
}

// DirectKey derives the canonical conversation key for the unordered pair
// of user ids. DirectKey(a, b) == DirectKey(b, a) for all pairs, and the
// "dm:" namespace keeps it disjoint from group keys.
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return directPrefix + a + ":" + b
}

// ParseDirectKey recovers both participant ids from a direct key.
// The second return value is false for anything outside the dm namespace.
func ParseDirectKey(key string) (a, b string, ok bool) {
	rest, found := strings.CutPrefix(key, directPrefix)
	if !found {
		return "", "", false
	}
	a, b, ok = strings.Cut(rest, ":")
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// ParseGroupKey recovers the group id from a group key.
func ParseGroupKey(key string) (string, bool) {
	id, found := strings.CutPrefix(key, groupPrefix)
	if !found || id == "" {
		return "", false
	}
	return id, true
}

// KindOf classifies a conversation key.
func KindOf(key string) (ConversationKind, bool) {
	switch {
	case strings.HasPrefix(key, groupPrefix):
		return KindGroup, true
	case strings.HasPrefix(key, directPrefix):
		return KindDirect, true
	default:
		return "", false
	}
}
