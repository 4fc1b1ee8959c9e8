package repositories

import (
	"testing"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Group_Create_Get_Delete(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t))

	created, err := repository.Create("team", []string{"alice-id", "bob-id"})
	req.NoError(err)
	req.NotEmpty(created.ID)

	fetched, err := repository.Get(created.ID)
	req.NoError(err)
	req.Equal(created, fetched)

	req.NoError(repository.Delete(created.ID))

	_, err = repository.Get(created.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	// Second delete on the same id reports NotFound, it does not crash.
	req.ErrorIs(repository.Delete(created.ID), errors.ErrNotFound)
}

func Test_Group_ListByMember(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t))

	team, err := repository.Create("team", []string{"alice-id", "bob-id"})
	req.NoError(err)
	_, err = repository.Create("ops", []string{"bob-id"})
	req.NoError(err)

	groups, err := repository.ListByMember("alice-id")
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(team.ID, groups[0].ID)

	groups, err = repository.ListByMember("bob-id")
	req.NoError(err)
	req.ElementsMatch([]string{"team", "ops"}, lo.Map(groups, func(g domain.Group, _ int) string {
		return g.Name
	}))
}
