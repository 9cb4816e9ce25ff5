package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/repository"
	"github.com/seikokai/incident-workflow/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "migrations")))
	return db
}

func TestReportService_ExportCSV(t *testing.T) {
	db := newTestDB(t)
	reports := repository.NewReportRepository(db, zap.NewNop())
	svc := NewReportService(reports, zap.NewNop())
	ctx := context.Background()

	_, err := reports.Create(ctx, &models.Report{
		Level:              "2",
		OccurrenceDatetime: time.Date(2025, 4, 10, 14, 30, 0, 0, time.UTC),
		ReporterName:       "tanaka",
		Situation:          "narrative",
		Countermeasure:     "plan",
		CreatedAt:          time.Now(),
		Status:             models.StatusApproved,
		Approver1:          "sato",
		Approver2:          "kato",
	})
	require.NoError(t, err)
	_, err = reports.Create(ctx, &models.Report{
		Level:              "1",
		OccurrenceDatetime: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		ReporterName:       "suzuki",
		Situation:          "narrative",
		Countermeasure:     "plan",
		CreatedAt:          time.Now(),
		Status:             models.StatusUnread,
	})
	require.NoError(t, err)

	out, err := svc.ExportCSV(ctx, repository.Filter{Status: models.StatusApproved})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "報告ID")
	assert.Contains(t, lines[1], "tanaka")
	assert.NotContains(t, string(out), "suzuki")
}

func TestDraftService_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewDraftService(repository.NewDraftRepository(db, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.Draft{Username: "tanaka"})
	require.Error(t, err)
	_, err = svc.Save(ctx, &models.Draft{DraftName: "x"})
	require.Error(t, err)

	id, err := svc.Save(ctx, &models.Draft{Username: "tanaka", DraftName: "shift notes"})
	require.NoError(t, err)

	drafts, err := svc.List(ctx, "tanaka")
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	draft, err := svc.Load(ctx, id, "tanaka")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "shift notes", draft.DraftName)

	require.NoError(t, svc.Delete(ctx, id, "tanaka"))
	draft, err = svc.Load(ctx, id, "tanaka")
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestUserService_CreateAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "tanaka", "short", models.RoleGeneral)
	require.Error(t, err)
	_, err = svc.Create(ctx, "tanaka", "password123", "superuser")
	require.Error(t, err)

	user, err := svc.Create(ctx, "tanaka", "password123", models.RoleGeneral)
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)

	authed, err := svc.Authenticate(ctx, "tanaka", "password123")
	require.NoError(t, err)
	assert.Equal(t, "tanaka", authed.Username)

	_, err = svc.Authenticate(ctx, "tanaka", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_AdminOperations(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	user, err := svc.Create(ctx, "tanaka", "password123", models.RoleGeneral)
	require.NoError(t, err)

	require.NoError(t, svc.ChangeRole(ctx, user.ID, models.RoleAdmin))
	require.Error(t, svc.ChangeRole(ctx, user.ID, "root"))

	require.NoError(t, svc.ResetPassword(ctx, user.ID, "newpassword1"))
	_, err = svc.Authenticate(ctx, "tanaka", "newpassword1")
	require.NoError(t, err)

	require.Error(t, svc.AssignWorksAccount(ctx, user.ID, "not-an-address"))
	require.NoError(t, svc.AssignWorksAccount(ctx, user.ID, "tanaka@example.jp"))
	require.NoError(t, svc.AssignWorksAccount(ctx, user.ID, ""))

	require.NoError(t, svc.AssignArtifactDir(ctx, user.ID, "/srv/artifacts/tanaka"))
}

func TestUserService_DeleteGuards(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	admin, err := svc.Create(ctx, "admin", "password123", models.RoleAdmin)
	require.NoError(t, err)
	other, err := svc.Create(ctx, "tanaka", "password123", models.RoleGeneral)
	require.NoError(t, err)

	actor := models.Actor{Username: "admin", Role: models.RoleAdmin}
	require.Error(t, svc.Delete(ctx, admin.ID, actor))
	require.NoError(t, svc.Delete(ctx, other.ID, actor))
	require.Error(t, svc.Delete(ctx, 9999, actor))
}
