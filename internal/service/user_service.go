package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/repository"
	"github.com/seikokai/incident-workflow/pkg/utils"
)

const minPasswordLength = 8

// ErrInvalidCredentials is returned when a login fails. Unknown user and
// wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserService manages user accounts and authentication.
type UserService struct {
	users  *repository.UserRepository
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(users *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// Authenticate checks the credentials and returns the account on success.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Create adds a new account with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, username, password, role string) (*models.User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if role != models.RoleGeneral && role != models.RoleAdmin {
		return nil, fmt.Errorf("unknown role: %s", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.String("username", username), zap.String("role", role))
	return user, nil
}

// List returns all accounts
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.users.List(ctx)
}

// ChangeRole updates an account's role.
func (s *UserService) ChangeRole(ctx context.Context, id int64, role string) error {
	if role != models.RoleGeneral && role != models.RoleAdmin {
		return fmt.Errorf("unknown role: %s", role)
	}
	return s.users.UpdateRole(ctx, id, role)
}

// ResetPassword replaces an account's password.
func (s *UserService) ResetPassword(ctx context.Context, id int64, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, id, string(hash))
}

// AssignWorksAccount sets or clears the account's messaging address.
func (s *UserService) AssignWorksAccount(ctx context.Context, id int64, accountID string) error {
	if accountID != "" {
		if err := utils.ValidateWorksAccount(accountID); err != nil {
			return err
		}
	}
	return s.users.UpdateWorksAccount(ctx, id, accountID)
}

// AssignArtifactDir sets or clears the account's preferred artifact
// destination.
func (s *UserService) AssignArtifactDir(ctx context.Context, id int64, dir string) error {
	return s.users.UpdateArtifactDir(ctx, id, dir)
}

// Delete removes an account. Self-deletion is refused.
func (s *UserService) Delete(ctx context.Context, id int64, actor models.Actor) error {
	user, err := s.userByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %d not found", id)
	}
	if user.Username == actor.Username {
		return fmt.Errorf("cannot delete own account")
	}
	return s.users.Delete(ctx, id)
}

func (s *UserService) userByID(ctx context.Context, id int64) (*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}
