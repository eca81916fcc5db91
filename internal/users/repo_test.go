package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/dbtest"
)

func TestGetOrCreateByPhone(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, isNew, err := repo.GetOrCreateByPhone(ctx, "09121234567")
	require.NoError(t, err)
	assert.True(t, isNew)

	again, isNew, err := repo.GetOrCreateByPhone(ctx, "09121234567")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)

	_, err = repo.FindByPhone(ctx, "09350000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkPhoneVerifiedKeepsFirstVerification(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user, _, err := repo.GetOrCreateByPhone(ctx, "09121234567")
	require.NoError(t, err)

	first := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)
	require.NoError(t, repo.MarkPhoneVerified(ctx, user.ID, first))
	require.NoError(t, repo.MarkPhoneVerified(ctx, user.ID, second))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.PhoneVerifiedAt)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, reloaded.PhoneVerifiedAt.Equal(first))
	assert.True(t, reloaded.LastLoginAt.Equal(second))
}
