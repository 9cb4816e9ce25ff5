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

const draftColumns = `
	id, username, draft_name, level, occurrence_datetime, reporter_name,
	job_type, connection_with_accident, years_of_experience,
	years_since_joining, patient_id, patient_name, location,
	content_category, content_details, cause_details, manual_relation,
	situation, countermeasure, last_saved_at`

// DraftRepository handles draft database operations. Every read and write
// is scoped to the owning username.
type DraftRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db *database.DB, logger *zap.Logger) *DraftRepository {
	return &DraftRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts the draft when its ID is zero, otherwise updates the
// existing row owned by the same user. Returns the draft's identifier.
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft) (int64, error) {
	draft.LastSavedAt = time.Now()

	if draft.ID == 0 {
		query := `
			INSERT INTO drafts (
				username, draft_name, level, occurrence_datetime, reporter_name,
				job_type, connection_with_accident, years_of_experience,
				years_since_joining, patient_id, patient_name, location,
				content_category, content_details, cause_details, manual_relation,
				situation, countermeasure, last_saved_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := r.db.ExecContext(ctx, query,
			draft.Username, draft.DraftName, draft.Level, draft.OccurrenceDatetime,
			draft.ReporterName, draft.JobType, draft.ConnectionWithAccident,
			draft.YearsOfExperience, draft.YearsSinceJoining, draft.PatientID,
			draft.PatientName, draft.Location, draft.ContentCategory,
			draft.ContentDetails, draft.CauseDetails, draft.ManualRelation,
			draft.Situation, draft.Countermeasure, draft.LastSavedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create draft",
				zap.String("username", draft.Username), zap.Error(err))
			return 0, fmt.Errorf("failed to create draft: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get last insert id: %w", err)
		}
		draft.ID = id
		return id, nil
	}

	query := `
		UPDATE drafts SET
			draft_name = ?, level = ?, occurrence_datetime = ?, reporter_name = ?,
			job_type = ?, connection_with_accident = ?, years_of_experience = ?,
			years_since_joining = ?, patient_id = ?, patient_name = ?, location = ?,
			content_category = ?, content_details = ?, cause_details = ?,
			manual_relation = ?, situation = ?, countermeasure = ?, last_saved_at = ?
		WHERE id = ? AND username = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		draft.DraftName, draft.Level, draft.OccurrenceDatetime, draft.ReporterName,
		draft.JobType, draft.ConnectionWithAccident, draft.YearsOfExperience,
		draft.YearsSinceJoining, draft.PatientID, draft.PatientName, draft.Location,
		draft.ContentCategory, draft.ContentDetails, draft.CauseDetails,
		draft.ManualRelation, draft.Situation, draft.Countermeasure, draft.LastSavedAt,
		draft.ID, draft.Username,
	)
	if err != nil {
		r.logger.Error("Failed to update draft",
			zap.Int64("id", draft.ID), zap.Error(err))
		return 0, fmt.Errorf("failed to update draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("draft %d not found for user %s", draft.ID, draft.Username)
	}
	return draft.ID, nil
}

// ListByOwner returns the user's drafts, most recently saved first
func (r *DraftRepository) ListByOwner(ctx context.Context, username string) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE username = ? ORDER BY last_saved_at DESC`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		r.logger.Error("Failed to list drafts", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

// GetByID retrieves a single draft owned by the user. Returns nil when no
// matching row exists.
func (r *DraftRepository) GetByID(ctx context.Context, id int64, username string) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = ? AND username = ?`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, id, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get draft", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

// Delete removes a draft owned by the user. Deleting a missing draft is
// not an error.
func (r *DraftRepository) Delete(ctx context.Context, id int64, username string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = ? AND username = ?", id, username)
	if err != nil {
		r.logger.Error("Failed to delete draft", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var draft models.Draft
	var occurrence sql.NullTime

	err := row.Scan(
		&draft.ID,
		&draft.Username,
		&draft.DraftName,
		&draft.Level,
		&occurrence,
		&draft.ReporterName,
		&draft.JobType,
		&draft.ConnectionWithAccident,
		&draft.YearsOfExperience,
		&draft.YearsSinceJoining,
		&draft.PatientID,
		&draft.PatientName,
		&draft.Location,
		&draft.ContentCategory,
		&draft.ContentDetails,
		&draft.CauseDetails,
		&draft.ManualRelation,
		&draft.Situation,
		&draft.Countermeasure,
		&draft.LastSavedAt,
	)
	if err != nil {
		return nil, err
	}
	if occurrence.Valid {
		draft.OccurrenceDatetime = &occurrence.Time
	}
	return &draft, nil
}
