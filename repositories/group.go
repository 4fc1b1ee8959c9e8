//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"fmt"
	"strings"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IGroupRepository interface {
	Create(name string, memberIDs []string) (domain.Group, error)
	Get(id string) (domain.Group, error)
	Delete(id string) error
	ListByMember(userID string) ([]domain.Group, error)
}

type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

type groupRecord struct {
	ID      string   `cbor:"1,keyasint"`
	Name    string   `cbor:"2,keyasint"`
	Members []string `cbor:"3,keyasint"`
}

func groupKey(id string) []byte { return []byte("grp:" + id) }

// groupMemberKey is a secondary index so a user's groups are a prefix scan
// instead of a full table walk.
func groupMemberKey(userID, groupID string) []byte {
	return []byte("grpmember:" + userID + ":" + groupID)
}

// Create persists a group and its member index entries.
func (g *GroupRepository) Create(name string, memberIDs []string) (domain.Group, error) {
	group := domain.Group{
		ID:      uuid.New().String(),
		Name:    name,
		Members: memberIDs,
	}

	data, err := cbor.Marshal(groupRecord{ID: group.ID, Name: group.Name, Members: group.Members})
	if err != nil {
		return domain.Group{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = g.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(groupKey(group.ID), data); err != nil {
			return err
		}
		for _, member := range group.Members {
			if err := txn.Set(groupMemberKey(member, group.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (g *GroupRepository) Get(id string) (domain.Group, error) {
	var record groupRecord
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Group{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Group{}, err
	}
	return domain.Group(record), nil
}

// Delete removes the group record and its member index. Deleting an absent
// group reports ErrNotFound.
func (g *GroupRepository) Delete(id string) error {
	group, err := g.Get(id)
	if err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(groupKey(id)); err != nil {
			return err
		}
		for _, member := range group.Members {
			if err := txn.Delete(groupMemberKey(member, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByMember returns every group the user belongs to.
func (g *GroupRepository) ListByMember(userID string) ([]domain.Group, error) {
	var ids []string
	prefix := []byte("grpmember:" + userID + ":")
	err := g.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		group, err := g.Get(id)
		if err == errors.ErrNotFound {
			// Index entry outliving its record is harmless, skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}
