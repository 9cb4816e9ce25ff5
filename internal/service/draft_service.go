package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/repository"
)

// DraftService manages per-user report drafts. All operations are scoped
// to the owning username; the repository enforces the scoping.
type DraftService struct {
	drafts *repository.DraftRepository
	logger *zap.Logger
}

// NewDraftService creates a new draft service
func NewDraftService(drafts *repository.DraftRepository, logger *zap.Logger) *DraftService {
	return &DraftService{
		drafts: drafts,
		logger: logger,
	}
}

// Save stores the draft under its owner. Drafts accept incomplete data;
// only the owner and a non-empty name are required.
func (s *DraftService) Save(ctx context.Context, draft *models.Draft) (int64, error) {
	if draft.Username == "" {
		return 0, fmt.Errorf("draft owner is required")
	}
	if strings.TrimSpace(draft.DraftName) == "" {
		return 0, fmt.Errorf("draft name is required")
	}
	return s.drafts.Save(ctx, draft)
}

// List returns the user's drafts, most recently saved first
func (s *DraftService) List(ctx context.Context, username string) ([]*models.Draft, error) {
	return s.drafts.ListByOwner(ctx, username)
}

// Load returns a single draft owned by the user, nil when absent
func (s *DraftService) Load(ctx context.Context, id int64, username string) (*models.Draft, error) {
	return s.drafts.GetByID(ctx, id, username)
}

// Delete removes the user's draft. Deleting an absent draft is a no-op.
func (s *DraftService) Delete(ctx context.Context, id int64, username string) error {
	return s.drafts.Delete(ctx, id, username)
}
