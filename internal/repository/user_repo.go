package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/pkg/database"
	"go.uber.org/zap"
)

const userColumns = `id, username, password_hash, role, works_account_id, artifact_dir, created_at`

// UserRepository handles user account database operations
type UserRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user account
func (r *UserRepository) Create(ctx context.Context, user *models.User) (int64, error) {
	user.CreatedAt = time.Now()
	query := `
		INSERT INTO users (username, password_hash, role, works_account_id, artifact_dir, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.Role,
		user.WorksAccountID, user.ArtifactDir, user.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", user.Username), zap.Error(err))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

// GetByUsername retrieves a user by username. Returns nil when no row exists.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	var user models.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.WorksAccountID,
		&user.ArtifactDir,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns all user accounts ordered by creation time
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.Role,
			&user.WorksAccountID,
			&user.ArtifactDir,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role string) error {
	return r.exec(ctx, "UPDATE users SET role = ? WHERE id = ?", role, id)
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
}

// UpdateWorksAccount sets or clears a user's external messaging address
func (r *UserRepository) UpdateWorksAccount(ctx context.Context, id int64, accountID string) error {
	return r.exec(ctx, "UPDATE users SET works_account_id = ? WHERE id = ?", accountID, id)
}

// UpdateArtifactDir sets or clears a user's preferred artifact destination
func (r *UserRepository) UpdateArtifactDir(ctx context.Context, id int64, dir string) error {
	return r.exec(ctx, "UPDATE users SET artifact_dir = ? WHERE id = ?", dir, id)
}

// Delete removes a user account
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, "DELETE FROM users WHERE id = ?", id)
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("User update failed", zap.String("query", query), zap.Error(err))
		return fmt.Errorf("user update failed: %w", err)
	}
	return nil
}

// WorksAccountID resolves a username to its messaging address. Satisfies
// the workflow engine's AccountDirectory. Users are keyed by login name
// while reports carry the reporter's display name, which in this facility
// are the same string; an unknown name resolves to an empty address.
func (r *UserRepository) WorksAccountID(ctx context.Context, username string) (string, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.WorksAccountID, nil
}

// ArtifactDir returns the user's preferred artifact destination, empty
// when the user is unknown or has no preference set.
func (r *UserRepository) ArtifactDir(ctx context.Context, username string) (string, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.ArtifactDir, nil
}
