package runtime

import (
	"fmt"
	"log/slog"

	"chat-relay/domain/event"
)

// Notifier pushes "your conversation list changed" hints to affected
// users' live sessions. The hint carries no payload: receivers re-fetch
// their conversation list, which keeps notification delivery decoupled
// from list consistency. A missed hint delays a refresh, it never
// corrupts state.
type Notifier struct {
	log      *slog.Logger
	registry *Registry
}

func NewNotifier(log *slog.Logger, registry *Registry) *Notifier {
	return &Notifier{log: log, registry: registry}
}

// ConversationListChanged hints every live session of each user. Delivery
// is best-effort per session.
func (n *Notifier) ConversationListChanged(userIDs ...string) {
	for _, userID := range userIDs {
		for _, sink := range n.registry.SessionsOf(userID) {
			if err := sink.Consume(event.ConversationListChanged{}); err != nil {
				n.log.Debug(fmt.Sprintf("Conversation list hint lost for user %s: %v", userID, err))
			}
		}
	}
}
