package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/pkg/utils"
	"go.uber.org/zap"
)

// StatusChange describes the workflow-field mutation applied alongside a
// status transition. Nil pointers leave the stored value untouched; the
// store applies the whole change atomically, conditioned on the expected
// prior status.
type StatusChange struct {
	NewStatus       string
	Approver1       *string
	ApprovedAt1     *time.Time
	Approver2       *string
	ApprovedAt2     *time.Time
	ManagerComments *string
	Fields          *models.ReportUpdate
}

// ReportStore is the persistence contract the engine drives.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Report, error)
	// Transition applies the change only if the stored status still equals
	// expected. Returns false when the row was not in the expected state,
	// which is how a concurrent transition is detected.
	Transition(ctx context.Context, id int64, expected string, change StatusChange) (bool, error)
	Update(ctx context.Context, id int64, fields *models.ReportUpdate) error
	Delete(ctx context.Context, id int64) error
}

// DraftStore deletes a promoted draft after submission.
type DraftStore interface {
	Delete(ctx context.Context, id int64, username string) error
}

// AccountDirectory resolves a username to its external messaging address.
type AccountDirectory interface {
	WorksAccountID(ctx context.Context, username string) (string, error)
}

// Generator produces the durable artifacts for an approved report and
// returns the path of the rendered document.
type Generator interface {
	Generate(ctx context.Context, report *models.Report, actingApprover string) (string, error)
}

// Dispatcher delivers files and messages to the external messaging
// endpoint. All failures collapse to a boolean; the engine never inspects
// causes.
type Dispatcher interface {
	SendFileToChannel(ctx context.Context, filePath string) bool
	SendTextToChannel(ctx context.Context, message string) bool
	SendTextToUser(ctx context.Context, accountID, message string) bool
}

// SubmitInput is a fully populated report payload. DraftID, when non-zero,
// names the draft this submission was promoted from.
type SubmitInput struct {
	Report  models.Report
	DraftID int64
}

// ImportInput is the back-dated historical entry point: the record lands
// directly in the approved state with the approver audit fields supplied
// by the import payload.
type ImportInput struct {
	Report      models.Report
	Approver1   string
	ApprovedAt1 time.Time
	Approver2   string
	ApprovedAt2 time.Time
}

// TransitionResult reports the committed status plus any non-fatal
// side-effect warnings. Warnings never indicate a failed transition.
type TransitionResult struct {
	Status   string
	Warnings []string
}

// Engine is the single authority for legal state transitions on a report
// and for the artifact/notification side effects tied to them. It is
// stateless between calls; every input arrives as an explicit parameter.
type Engine struct {
	reports    ReportStore
	drafts     DraftStore
	accounts   AccountDirectory
	generator  Generator
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates a new workflow engine
func NewEngine(
	reports ReportStore,
	drafts DraftStore,
	accounts AccountDirectory,
	generator Generator,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		reports:    reports,
		drafts:     drafts,
		accounts:   accounts,
		generator:  generator,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// newMachine builds the approval state machine positioned at the report's
// current state. The approved state is terminal and gets no configuration.
func newMachine(current State) StateMachine {
	builder := NewBuilder()
	builder.Configure(StateUnread).
		Permit(TriggerApprove, StatePendingFirstApproval).
		Permit(TriggerReject, StateRejected)
	builder.Configure(StatePendingFirstApproval).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)
	builder.Configure(StateRejected).
		Permit(TriggerResubmit, StateUnread)
	return builder.Build(current)
}

// sanitizeNarrative strips control characters from the free-text fields.
// Newlines and tabs survive; see utils.SanitizeString.
func sanitizeNarrative(r *models.Report) {
	r.Situation = utils.SanitizeString(r.Situation)
	r.Countermeasure = utils.SanitizeString(r.Countermeasure)
	r.ContentDetails = utils.SanitizeString(r.ContentDetails)
	r.CauseDetails = utils.SanitizeString(r.CauseDetails)
	r.PatientExplanation = utils.SanitizeString(r.PatientExplanation)
	r.FamilyExplanation = utils.SanitizeString(r.FamilyExplanation)
}

func sanitizeUpdate(u *models.ReportUpdate) {
	for _, p := range []*string{u.Situation, u.Countermeasure, u.ContentDetails, u.CauseDetails} {
		if p != nil {
			*p = utils.SanitizeString(*p)
		}
	}
}

func validateRequired(r *models.Report) error {
	if strings.TrimSpace(r.ReporterName) == "" {
		return fmt.Errorf("%w: reporter name is required", ErrValidation)
	}
	if strings.TrimSpace(r.Situation) == "" {
		return fmt.Errorf("%w: situation is required", ErrValidation)
	}
	if strings.TrimSpace(r.Countermeasure) == "" {
		return fmt.Errorf("%w: countermeasure is required", ErrValidation)
	}
	if r.Level != "" && !models.IsValidLevel(r.Level) {
		return fmt.Errorf("%w: unknown severity level %q", ErrValidation, r.Level)
	}
	return nil
}

// Submit persists a new report with status unread and returns its
// identifier. When the payload was promoted from a draft, the draft is
// deleted after the report is stored.
func (e *Engine) Submit(ctx context.Context, input SubmitInput, actor models.Actor) (int64, error) {
	report := input.Report
	sanitizeNarrative(&report)
	if err := validateRequired(&report); err != nil {
		return 0, err
	}

	report.Status = models.StatusUnread
	report.Approver1 = ""
	report.Approver2 = ""
	report.ApprovedAt1 = nil
	report.ApprovedAt2 = nil
	report.ManagerComments = ""
	report.CreatedAt = e.now()

	id, err := e.reports.Create(ctx, &report)
	if err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}

	if input.DraftID != 0 {
		if err := e.drafts.Delete(ctx, input.DraftID, actor.Username); err != nil {
			// The report is already committed; a stale draft is a cleanup
			// problem, not a submission failure.
			e.logger.Warn("Failed to delete promoted draft",
				zap.Int64("draft_id", input.DraftID),
				zap.Int64("report_id", id),
				zap.Error(err))
		}
	}

	e.logger.Info("Report submitted",
		zap.Int64("report_id", id),
		zap.String("reporter", report.ReporterName),
		zap.String("level", report.Level))

	return id, nil
}

// Import is the back-dated historical entry point. The record is persisted
// directly in the approved state and artifacts are generated as a one-time
// catch-up. It is admin-only and never reachable from Submit.
func (e *Engine) Import(ctx context.Context, input ImportInput, actor models.Actor) (int64, *TransitionResult, error) {
	if !actor.IsAdmin() {
		return 0, nil, fmt.Errorf("%w: historical import requires admin role", ErrUnauthorized)
	}

	report := input.Report
	sanitizeNarrative(&report)
	if err := validateRequired(&report); err != nil {
		return 0, nil, err
	}
	if input.Approver1 == "" || input.Approver2 == "" {
		return 0, nil, fmt.Errorf("%w: import requires both approver identities", ErrValidation)
	}
	if input.Approver1 == input.Approver2 {
		return 0, nil, fmt.Errorf("%w: import approvers must differ", ErrDuplicateApprover)
	}

	report.Status = models.StatusApproved
	report.Approver1 = input.Approver1
	report.Approver2 = input.Approver2
	at1, at2 := input.ApprovedAt1, input.ApprovedAt2
	report.ApprovedAt1 = &at1
	report.ApprovedAt2 = &at2
	if report.CreatedAt.IsZero() {
		report.CreatedAt = e.now()
	}

	id, err := e.reports.Create(ctx, &report)
	if err != nil {
		return 0, nil, fmt.Errorf("create imported report: %w", err)
	}
	report.ID = id

	result := &TransitionResult{Status: models.StatusApproved}
	if _, genErr := e.generator.Generate(ctx, &report, input.Approver2); genErr != nil {
		e.logger.Error("Artifact generation failed for imported report",
			zap.Int64("report_id", id), zap.Error(genErr))
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%v: %v", ErrArtifactGeneration, genErr))
	}

	e.logger.Info("Historical report imported",
		zap.Int64("report_id", id),
		zap.String("imported_by", actor.Username))

	return id, result, nil
}

// Approve advances a report one step along the approval chain. Admin
// only. The first approval moves unread to pending_first_approval; the
// second moves pending_first_approval to approved and triggers artifact
// generation and the broadcast notification. The same user may not give
// both approvals.
func (e *Engine) Approve(ctx context.Context, id int64, actor models.Actor, comments string) (*TransitionResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: approval requires admin role", ErrUnauthorized)
	}

	report, err := e.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	machine := newMachine(State(report.Status))
	if err := machine.Fire(ctx, TriggerApprove); err != nil {
		return nil, err
	}

	if report.Status == models.StatusPendingFirstApproval && report.Approver1 == actor.Username {
		return nil, fmt.Errorf("%w: %s already gave the first approval on report %d",
			ErrDuplicateApprover, actor.Username, id)
	}

	now := e.now()
	approver := actor.Username
	change := StatusChange{NewStatus: machine.State().String()}
	switch report.Status {
	case models.StatusUnread:
		change.Approver1 = &approver
		change.ApprovedAt1 = &now
	case models.StatusPendingFirstApproval:
		change.Approver2 = &approver
		change.ApprovedAt2 = &now
	}
	if comments != "" {
		comments = utils.SanitizeString(comments)
		change.ManagerComments = &comments
	}

	ok, err := e.reports.Transition(ctx, id, report.Status, change)
	if err != nil {
		return nil, fmt.Errorf("apply approval: %w", err)
	}
	if !ok {
		// Someone else transitioned the report between our read and write.
		return nil, fmt.Errorf("%w: report %d left state %s concurrently",
			ErrInvalidTransition, id, report.Status)
	}

	result := &TransitionResult{Status: change.NewStatus}

	e.logger.Info("Report approval recorded",
		zap.Int64("report_id", id),
		zap.String("approver", actor.Username),
		zap.String("status", change.NewStatus))

	if change.NewStatus == models.StatusApproved {
		e.runApprovalSideEffects(ctx, id, actor.Username, result)
	}

	return result, nil
}

// runApprovalSideEffects generates the durable artifacts and announces the
// approval. Runs strictly after the status commit; failures become
// warnings, never a rollback.
func (e *Engine) runApprovalSideEffects(ctx context.Context, id int64, approver string, result *TransitionResult) {
	snapshot, err := e.reports.GetByID(ctx, id)
	if err != nil || snapshot == nil {
		e.logger.Error("Failed to load approved report snapshot",
			zap.Int64("report_id", id), zap.Error(err))
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%v: snapshot read failed", ErrArtifactGeneration))
		return
	}

	documentPath, err := e.generator.Generate(ctx, snapshot, approver)
	if err != nil {
		e.logger.Error("Artifact generation failed",
			zap.Int64("report_id", id), zap.Error(err))
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%v: %v", ErrArtifactGeneration, err))
		return
	}

	if !e.dispatcher.SendFileToChannel(ctx, documentPath) {
		e.logger.Warn("Approval broadcast failed",
			zap.Int64("report_id", id),
			zap.String("document", documentPath))
		result.Warnings = append(result.Warnings, ErrNotificationDispatch.Error())
	}
}

// Reject sends a report back to its reporter with a rationale. Admin
// only; legal from unread and pending_first_approval; approver audit
// fields are preserved.
func (e *Engine) Reject(ctx context.Context, id int64, actor models.Actor, reason string) (*TransitionResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: rejection requires admin role", ErrUnauthorized)
	}
	reason = utils.SanitizeString(reason)
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	report, err := e.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	machine := newMachine(State(report.Status))
	if err := machine.Fire(ctx, TriggerReject); err != nil {
		return nil, err
	}

	change := StatusChange{
		NewStatus:       models.StatusRejected,
		ManagerComments: &reason,
	}
	ok, err := e.reports.Transition(ctx, id, report.Status, change)
	if err != nil {
		return nil, fmt.Errorf("apply rejection: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report %d left state %s concurrently",
			ErrInvalidTransition, id, report.Status)
	}

	result := &TransitionResult{Status: models.StatusRejected}

	e.logger.Info("Report rejected",
		zap.Int64("report_id", id),
		zap.String("rejected_by", actor.Username))

	// Best-effort heads-up to the original reporter.
	account, err := e.accounts.WorksAccountID(ctx, report.ReporterName)
	if err != nil || account == "" {
		if err != nil {
			e.logger.Warn("Could not resolve reporter messaging account",
				zap.String("reporter", report.ReporterName), zap.Error(err))
		}
		return result, nil
	}
	message := fmt.Sprintf("レポートID %d が差し戻されました。\n理由: %s\n修正のうえ再提出してください。", id, reason)
	if !e.dispatcher.SendTextToUser(ctx, account, message) {
		result.Warnings = append(result.Warnings, ErrNotificationDispatch.Error())
	}

	return result, nil
}

// Resubmit returns a rejected report to the unread state with the
// reporter's corrections merged in. Only the original reporter may
// resubmit; the prior approver audit fields are left untouched.
func (e *Engine) Resubmit(ctx context.Context, id int64, actor models.Actor, updates models.ReportUpdate) (*TransitionResult, error) {
	report, err := e.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	if actor.Username != report.ReporterName {
		return nil, fmt.Errorf("%w: only the original reporter may resubmit report %d",
			ErrUnauthorized, id)
	}

	sanitizeUpdate(&updates)
	merged := *report
	updates.Apply(&merged)
	if err := validateRequired(&merged); err != nil {
		return nil, err
	}

	machine := newMachine(State(report.Status))
	if err := machine.Fire(ctx, TriggerResubmit); err != nil {
		return nil, err
	}

	cleared := ""
	change := StatusChange{
		NewStatus:       models.StatusUnread,
		ManagerComments: &cleared,
		Fields:          &updates,
	}
	ok, err := e.reports.Transition(ctx, id, report.Status, change)
	if err != nil {
		return nil, fmt.Errorf("apply resubmission: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report %d left state %s concurrently",
			ErrInvalidTransition, id, report.Status)
	}

	result := &TransitionResult{Status: models.StatusUnread}

	e.logger.Info("Report resubmitted",
		zap.Int64("report_id", id),
		zap.String("reporter", actor.Username))

	message := fmt.Sprintf(
		"【再提出インシデント報告】\n\n報告ID: %d\n報告者: %s\n影響度レベル: %s\n\n差し戻し後の修正が完了しました。再承認をお願いします。",
		id, merged.ReporterName, merged.Level)
	if !e.dispatcher.SendTextToChannel(ctx, message) {
		result.Warnings = append(result.Warnings, ErrNotificationDispatch.Error())
	}

	return result, nil
}

// AdministrativeUpdate corrects a report's descriptive fields outside the
// approval state machine. Admins may edit anything; the original reporter
// may edit their own report until it is approved.
func (e *Engine) AdministrativeUpdate(ctx context.Context, id int64, actor models.Actor, fields models.ReportUpdate) error {
	report, err := e.reports.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	if err := e.authorizeAdministrative(report, actor); err != nil {
		return err
	}

	sanitizeUpdate(&fields)
	if err := e.reports.Update(ctx, id, &fields); err != nil {
		return fmt.Errorf("update report: %w", err)
	}

	e.logger.Info("Report administratively updated",
		zap.Int64("report_id", id),
		zap.String("actor", actor.Username))
	return nil
}

// AdministrativeDelete removes a report entirely. Same authorization rule
// as AdministrativeUpdate.
func (e *Engine) AdministrativeDelete(ctx context.Context, id int64, actor models.Actor) error {
	report, err := e.reports.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	if err := e.authorizeAdministrative(report, actor); err != nil {
		return err
	}

	if err := e.reports.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}

	e.logger.Info("Report administratively deleted",
		zap.Int64("report_id", id),
		zap.String("actor", actor.Username))
	return nil
}

func (e *Engine) authorizeAdministrative(report *models.Report, actor models.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Username != report.ReporterName {
		return fmt.Errorf("%w: report %d belongs to %s",
			ErrUnauthorized, report.ID, report.ReporterName)
	}
	if report.Status == models.StatusApproved {
		return fmt.Errorf("%w: approved records may only be corrected by an admin",
			ErrUnauthorized)
	}
	return nil
}
