package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/models"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	id, err := repo.Create(ctx, &models.User{
		Username:       "tanaka",
		PasswordHash:   "$2a$10$hash",
		Role:           models.RoleGeneral,
		WorksAccountID: "tanaka@works",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetByUsername(ctx, "tanaka")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.RoleGeneral, got.Role)
	assert.Equal(t, "tanaka@works", got.WorksAccountID)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{Username: "tanaka", PasswordHash: "h", Role: models.RoleGeneral})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{Username: "tanaka", PasswordHash: "h2", Role: models.RoleGeneral})
	require.Error(t, err)
}

func TestUserRepository_Updates(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	id, err := repo.Create(ctx, &models.User{Username: "tanaka", PasswordHash: "h", Role: models.RoleGeneral})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateRole(ctx, id, models.RoleAdmin))
	require.NoError(t, repo.UpdatePassword(ctx, id, "h2"))
	require.NoError(t, repo.UpdateWorksAccount(ctx, id, "tanaka@works"))
	require.NoError(t, repo.UpdateArtifactDir(ctx, id, "/srv/artifacts/tanaka"))

	got, err := repo.GetByUsername(ctx, "tanaka")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.Equal(t, "tanaka@works", got.WorksAccountID)
	assert.Equal(t, "/srv/artifacts/tanaka", got.ArtifactDir)
}

func TestUserRepository_DirectoryLookups(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{
		Username:       "tanaka",
		PasswordHash:   "h",
		Role:           models.RoleGeneral,
		WorksAccountID: "tanaka@works",
		ArtifactDir:    "/srv/artifacts/tanaka",
	})
	require.NoError(t, err)

	account, err := repo.WorksAccountID(ctx, "tanaka")
	require.NoError(t, err)
	assert.Equal(t, "tanaka@works", account)

	// Unknown reporters resolve to an empty address, not an error.
	account, err = repo.WorksAccountID(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, account)

	dir, err := repo.ArtifactDir(ctx, "tanaka")
	require.NoError(t, err)
	assert.Equal(t, "/srv/artifacts/tanaka", dir)
}

func TestUserRepository_ListAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	id, err := repo.Create(ctx, &models.User{Username: "tanaka", PasswordHash: "h", Role: models.RoleGeneral})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.User{Username: "suzuki", PasswordHash: "h", Role: models.RoleAdmin})
	require.NoError(t, err)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, repo.Delete(ctx, id))
	users, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "suzuki", users[0].Username)
}
