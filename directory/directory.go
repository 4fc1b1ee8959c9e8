// Package directory resolves conversation references to canonical keys and
// authorized member sets. It is the single source of membership truth: the
// router re-checks authorization here on every send, never trusting
// subscription state.
package directory

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"

	"github.com/samber/lo"
)

type Directory struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	groups   repositories.IGroupRepository
	messages repositories.IMessageRepository

	// strictMembers makes CreateGroup fail on unknown usernames instead of
	// silently dropping them.
	strictMembers bool
}

func New(log *slog.Logger, users repositories.IUserRepository,
	groups repositories.IGroupRepository, messages repositories.IMessageRepository,
	strictMembers bool) *Directory {
	return &Directory{
		log:           log,
		users:         users,
		groups:        groups,
		messages:      messages,
		strictMembers: strictMembers,
	}
}

// User resolves a stable user identifier, mostly to recover display names
// for outbound payloads.
func (d *Directory) User(id string) (domain.User, error) {
	return d.users.GetByID(id)
}

// ResolveGroup yields the group and thereby its authorized member set.
func (d *Directory) ResolveGroup(groupID string) (domain.Group, error) {
	return d.groups.Get(groupID)
}

// ResolveDirect resolves a recipient username to the user and the canonical
// direct-conversation key. Any two distinct existing users have an implicit
// direct conversation, so the only failures are an unknown name and self.
func (d *Directory) ResolveDirect(senderID, recipientName string) (domain.User, string, error) {
	recipient, _, err := d.users.GetByName(recipientName)
	if err != nil {
		return domain.User{}, "", err
	}
	if recipient.ID == senderID {
		return domain.User{}, "", fmt.Errorf("%w: cannot message yourself", errors.ErrInvalidArgument)
	}
	return recipient, domain.DirectKey(senderID, recipient.ID), nil
}

// CreateGroup looks up each member username and creates the group. The
// creator is always included even if omitted from the list. Unknown names
// are dropped with a debug log, or rejected in strict mode.
func (d *Directory) CreateGroup(name, creatorID string, memberNames []string) (domain.Group, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Group{}, fmt.Errorf("%w: empty group name", errors.ErrInvalidArgument)
	}

	names := lo.Uniq(memberNames)
	found, err := d.users.GetAllByNames(names)
	if err != nil {
		return domain.Group{}, err
	}
	if d.strictMembers && len(found) != len(names) {
		return domain.Group{}, fmt.Errorf("%w: unknown member username", errors.ErrNotFound)
	}
	if len(found) != len(names) {
		d.log.Debug(fmt.Sprintf("Dropped %d unknown usernames while creating group %q",
			len(names)-len(found), name))
	}

	memberIDs := lo.Map(found, func(u domain.User, _ int) string { return u.ID })
	if !lo.Contains(memberIDs, creatorID) {
		memberIDs = append(memberIDs, creatorID)
	}
	if len(memberIDs) == 0 {
		return domain.Group{}, fmt.Errorf("%w: empty member set", errors.ErrInvalidArgument)
	}

	return d.groups.Create(name, lo.Uniq(memberIDs))
}

// DeleteGroup removes a group and cascades deletion of its messages.
// Only members may delete. The former member set is returned so the caller
// can notify their live sessions.
func (d *Directory) DeleteGroup(groupID, requesterID string) ([]string, error) {
	group, err := d.groups.Get(groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(requesterID) {
		return nil, fmt.Errorf("%w: not a member of group %s", errors.ErrForbidden, groupID)
	}

	if err := d.groups.Delete(groupID); err != nil {
		return nil, err
	}
	count, err := d.messages.DeleteConversation(domain.GroupKey(groupID))
	if err != nil {
		return nil, err
	}
	d.log.Info(fmt.Sprintf("Group %s deleted with %d messages", groupID, count))
	return group.Members, nil
}

// DeleteDirect removes all messages between the requester and the named
// user, plus the pair marker, and reports how many messages were dropped.
func (d *Directory) DeleteDirect(requesterID, otherName string) (domain.User, int, error) {
	other, key, err := d.ResolveDirect(requesterID, otherName)
	if err != nil {
		return domain.User{}, 0, err
	}
	count, err := d.messages.DeleteConversation(key)
	if err != nil {
		return domain.User{}, 0, err
	}
	if err := d.messages.DeleteDirectPair(requesterID, other.ID); err != nil {
		return domain.User{}, 0, err
	}
	return other, count, nil
}

// MembersOf yields the authorized user set of any conversation key: the
// group's member list, or the two encoded direct participants.
func (d *Directory) MembersOf(conversationKey string) ([]string, error) {
	if groupID, ok := domain.ParseGroupKey(conversationKey); ok {
		group, err := d.groups.Get(groupID)
		if err != nil {
			return nil, err
		}
		return group.Members, nil
	}
	if a, b, ok := domain.ParseDirectKey(conversationKey); ok {
		return []string{a, b}, nil
	}
	return nil, fmt.Errorf("%w: malformed conversation key %q", errors.ErrInvalidArgument, conversationKey)
}

// ConversationList returns the user's groups plus one direct entry per
// user they have exchanged messages with, named after the partner.
func (d *Directory) ConversationList(userID string) ([]domain.ConversationRef, error) {
	groups, err := d.groups.ListByMember(userID)
	if err != nil {
		return nil, err
	}
	refs := lo.Map(groups, func(g domain.Group, _ int) domain.ConversationRef {
		return domain.ConversationRef{Key: domain.GroupKey(g.ID), Name: g.Name, Kind: domain.KindGroup}
	})

	partners, err := d.messages.DirectPartners(userID)
	if err != nil {
		return nil, err
	}
	for _, partnerID := range partners {
		partner, err := d.users.GetByID(partnerID)
		if stderrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, domain.ConversationRef{
			Key:  domain.DirectKey(userID, partnerID),
			Name: partner.Name,
			Kind: domain.KindDirect,
		})
	}
	return refs, nil
}
