//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"strings"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(name, email, passwordHash string) (domain.User, error)
	GetByName(name string) (domain.User, string, error)
	GetByEmail(email string) (domain.User, string, error)
	GetByID(id string) (domain.User, error)
	GetAllByNames(names []string) ([]domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// userRecord is the on-disk shape of a user. The password hash lives next
// to the identity because the store is single-process and never leaves the
// repository layer in plain form.
type userRecord struct {
	ID           string `cbor:"1,keyasint"`
	Name         string `cbor:"2,keyasint"`
	Email        string `cbor:"3,keyasint"`
	PasswordHash string `cbor:"4,keyasint"`
	CreatedAt    int64  `cbor:"5,keyasint"`
}

func userIDKey(id string) []byte      { return []byte("user:id:" + id) }
func userNameKey(name string) []byte  { return []byte("user:name:" + strings.ToLower(name)) }
func userEmailKey(email string) []byte { return []byte("user:email:" + strings.ToLower(email)) }

// CreateUser persists a new user. Display names are unique
// case-insensitively and emails are unique; the canonical record lives
// under the id key, the name and email keys are indexes holding the id.
func (u *UserRepository) CreateUser(name, email, passwordHash string) (domain.User, error) {
	user := domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	data, err := cbor.Marshal(userRecord{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt.Unix(),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userNameKey(name)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if _, err := txn.Get(userEmailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userIDKey(user.ID), data); err != nil {
			return err
		}
		if err := txn.Set(userNameKey(name), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userEmailKey(email), []byte(user.ID))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// GetByName resolves a user by display name, case-insensitively.
// The second return value is the stored password hash.
func (u *UserRepository) GetByName(name string) (domain.User, string, error) {
	return u.getByIndex(userNameKey(name))
}

// GetByEmail resolves a user by email. The second return value is the
// stored password hash.
func (u *UserRepository) GetByEmail(email string) (domain.User, string, error) {
	return u.getByIndex(userEmailKey(email))
}

func (u *UserRepository) getByIndex(indexKey []byte) (domain.User, string, error) {
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if err != nil {
			return err
		}
		var id []byte
		if id, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get(userIDKey(string(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, "", errors.ErrNotFound
	}
	if err != nil {
		return domain.User{}, "", err
	}
	return toUser(record), record.PasswordHash, nil
}

// GetByID resolves a user by its stable identifier.
func (u *UserRepository) GetByID(id string) (domain.User, error) {
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

// GetAllByNames resolves every name that exists; unknown names are simply
// absent from the result, the caller decides whether that is an error.
func (u *UserRepository) GetAllByNames(names []string) ([]domain.User, error) {
	var users []domain.User
	for _, name := range names {
		user, _, err := u.GetByName(name)
		if err == errors.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func toUser(record userRecord) domain.User {
	return domain.User{
		ID:        record.ID,
		Name:      record.Name,
		Email:     record.Email,
		CreatedAt: time.Unix(record.CreatedAt, 0).UTC(),
	}
}
