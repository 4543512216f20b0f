package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/shared"
	"remindbot/internal/task"
)

func TestUserRepoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &task.User{ID: "user-1", Phone: "+31600000001", ChatID: 100, Timezone: "Europe/Amsterdam"}
	require.NoError(t, s.users.Create(ctx, u))

	byID, err := s.users.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, u, byID)

	byPhone, err := s.users.GetByPhone(ctx, "+31600000001")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byPhone.ID)

	byChat, err := s.users.GetByChatID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "user-1", byChat.ID)
}

func TestUserRepoNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.users.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))

	_, err = s.users.GetByPhone(ctx, "+31699999999")
	assert.True(t, shared.IsNotFound(err))

	_, err = s.users.GetByChatID(ctx, 999)
	assert.True(t, shared.IsNotFound(err))
}

func TestUserRepoDuplicatePhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.users.Create(ctx, &task.User{ID: "user-1", Phone: "+31600000001", ChatID: 100}))
	err := s.users.Create(ctx, &task.User{ID: "user-2", Phone: "+31600000001", ChatID: 200})
	require.Error(t, err)
	assert.True(t, shared.IsDependencyFailure(err))
}
