package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/workflow"
	"github.com/seikokai/incident-workflow/pkg/database"
	"go.uber.org/zap"
)

// reportColumns is the fixed column list shared by every SELECT. Keeping it
// in one place keeps scan order and schema in lockstep.
const reportColumns = `
	id, level, occurrence_datetime, reporter_name, job_type,
	connection_with_accident, years_of_experience, years_since_joining,
	patient_id, patient_name, patient_gender, patient_age, dementia_status,
	patient_status_change, patient_explanation, family_explanation,
	location, content_category, content_details, cause_details,
	manual_relation, situation, countermeasure, created_at,
	status, approver1, approved_at1, approver2, approved_at2, manager_comments`

// ReportRepository handles incident report database operations
type ReportRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status       string
	ReporterName string
	Level        string
	From         time.Time
	To           time.Time
}

// Create inserts a new report and returns its identifier
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) (int64, error) {
	query := `
		INSERT INTO reports (
			level, occurrence_datetime, reporter_name, job_type,
			connection_with_accident, years_of_experience, years_since_joining,
			patient_id, patient_name, patient_gender, patient_age, dementia_status,
			patient_status_change, patient_explanation, family_explanation,
			location, content_category, content_details, cause_details,
			manual_relation, situation, countermeasure, created_at,
			status, approver1, approved_at1, approver2, approved_at2, manager_comments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		report.Level,
		report.OccurrenceDatetime,
		report.ReporterName,
		report.JobType,
		report.ConnectionWithAccident,
		report.YearsOfExperience,
		report.YearsSinceJoining,
		report.PatientID,
		report.PatientName,
		report.PatientGender,
		report.PatientAge,
		report.DementiaStatus,
		report.PatientStatusChange,
		report.PatientExplanation,
		report.FamilyExplanation,
		report.Location,
		report.ContentCategory,
		report.ContentDetails,
		report.CauseDetails,
		report.ManualRelation,
		report.Situation,
		report.Countermeasure,
		report.CreatedAt,
		report.Status,
		report.Approver1,
		report.ApprovedAt1,
		report.Approver2,
		report.ApprovedAt2,
		report.ManagerComments,
	)
	if err != nil {
		r.logger.Error("Failed to create report", zap.Error(err))
		return 0, fmt.Errorf("failed to create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	return id, nil
}

// GetByID retrieves a report by ID. Returns nil when no row exists.
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// List retrieves reports matching the filter, newest occurrence first.
func (r *ReportRepository) List(ctx context.Context, filter Filter) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`

	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ReporterName != "" {
		conditions = append(conditions, "reporter_name = ?")
		args = append(args, filter.ReporterName)
	}
	if filter.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, filter.Level)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "occurrence_datetime >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "occurrence_datetime <= ?")
		args = append(args, filter.To)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurrence_datetime DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// Count returns the total number of stored reports
func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// Transition atomically applies a workflow status change, conditioned on
// the row still holding the expected status. Returns false without error
// when the condition no longer holds, which callers treat as a concurrent
// transition. Workflow fields use COALESCE so nil pointers leave the
// stored value untouched; descriptive field updates ride in the same
// transaction.
func (r *ReportRepository) Transition(ctx context.Context, id int64, expected string, change workflow.StatusChange) (bool, error) {
	query := `
		UPDATE reports SET
			status = ?,
			approver1 = COALESCE(?, approver1),
			approved_at1 = COALESCE(?, approved_at1),
			approver2 = COALESCE(?, approver2),
			approved_at2 = COALESCE(?, approved_at2),
			manager_comments = COALESCE(?, manager_comments)
		WHERE id = ? AND status = ?
	`

	var transitioned bool
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			change.NewStatus,
			change.Approver1,
			change.ApprovedAt1,
			change.Approver2,
			change.ApprovedAt2,
			change.ManagerComments,
			id,
			expected,
		)
		if err != nil {
			return fmt.Errorf("apply status change: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return nil
		}
		transitioned = true

		if change.Fields != nil {
			if err := updateFields(ctx, tx, id, change.Fields); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to transition report",
			zap.Int64("id", id),
			zap.String("expected", expected),
			zap.String("new_status", change.NewStatus),
			zap.Error(err))
		return false, err
	}

	return transitioned, nil
}

// Update applies a descriptive-field correction outside the workflow.
func (r *ReportRepository) Update(ctx context.Context, id int64, fields *models.ReportUpdate) error {
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		return updateFields(ctx, tx, id, fields)
	})
	if err != nil {
		r.logger.Error("Failed to update report", zap.Int64("id", id), zap.Error(err))
	}
	return err
}

// updateFields writes the descriptive columns with COALESCE semantics:
// only non-nil pointers change the stored value.
func updateFields(ctx context.Context, tx *sql.Tx, id int64, fields *models.ReportUpdate) error {
	query := `
		UPDATE reports SET
			level = COALESCE(?, level),
			occurrence_datetime = COALESCE(?, occurrence_datetime),
			reporter_name = COALESCE(?, reporter_name),
			job_type = COALESCE(?, job_type),
			connection_with_accident = COALESCE(?, connection_with_accident),
			years_of_experience = COALESCE(?, years_of_experience),
			years_since_joining = COALESCE(?, years_since_joining),
			patient_id = COALESCE(?, patient_id),
			patient_name = COALESCE(?, patient_name),
			location = COALESCE(?, location),
			content_category = COALESCE(?, content_category),
			content_details = COALESCE(?, content_details),
			cause_details = COALESCE(?, cause_details),
			manual_relation = COALESCE(?, manual_relation),
			situation = COALESCE(?, situation),
			countermeasure = COALESCE(?, countermeasure)
		WHERE id = ?
	`

	_, err := tx.ExecContext(ctx, query,
		fields.Level,
		fields.OccurrenceDatetime,
		fields.ReporterName,
		fields.JobType,
		fields.ConnectionWithAccident,
		fields.YearsOfExperience,
		fields.YearsSinceJoining,
		fields.PatientID,
		fields.PatientName,
		fields.Location,
		fields.ContentCategory,
		fields.ContentDetails,
		fields.CauseDetails,
		fields.ManualRelation,
		fields.Situation,
		fields.Countermeasure,
		id,
	)
	if err != nil {
		return fmt.Errorf("update report fields: %w", err)
	}
	return nil
}

// Delete removes a report row
func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete report", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var report models.Report
	var occurrence, approvedAt1, approvedAt2 sql.NullTime

	err := row.Scan(
		&report.ID,
		&report.Level,
		&occurrence,
		&report.ReporterName,
		&report.JobType,
		&report.ConnectionWithAccident,
		&report.YearsOfExperience,
		&report.YearsSinceJoining,
		&report.PatientID,
		&report.PatientName,
		&report.PatientGender,
		&report.PatientAge,
		&report.DementiaStatus,
		&report.PatientStatusChange,
		&report.PatientExplanation,
		&report.FamilyExplanation,
		&report.Location,
		&report.ContentCategory,
		&report.ContentDetails,
		&report.CauseDetails,
		&report.ManualRelation,
		&report.Situation,
		&report.Countermeasure,
		&report.CreatedAt,
		&report.Status,
		&report.Approver1,
		&approvedAt1,
		&report.Approver2,
		&approvedAt2,
		&report.ManagerComments,
	)
	if err != nil {
		return nil, err
	}

	if occurrence.Valid {
		report.OccurrenceDatetime = occurrence.Time
	}
	if approvedAt1.Valid {
		report.ApprovedAt1 = &approvedAt1.Time
	}
	if approvedAt2.Valid {
		report.ApprovedAt2 = &approvedAt2.Time
	}

	return &report, nil
}
