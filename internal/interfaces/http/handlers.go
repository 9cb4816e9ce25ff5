package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/repository"
	"github.com/seikokai/incident-workflow/internal/service"
	"github.com/seikokai/incident-workflow/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine  *workflow.Engine
	reports *service.ReportService
	drafts  *service.DraftService
	users   *service.UserService
	issuer  *TokenIssuer
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine *workflow.Engine,
	reports *service.ReportService,
	drafts *service.DraftService,
	users *service.UserService,
	issuer *TokenIssuer,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:  engine,
		reports: reports,
		drafts:  drafts,
		users:   users,
		issuer:  issuer,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// reportPayload carries the descriptive report fields on submit and
// import requests.
type reportPayload struct {
	Level                  string    `json:"level"`
	OccurrenceDatetime     time.Time `json:"occurrence_datetime"`
	ReporterName           string    `json:"reporter_name"`
	JobType                string    `json:"job_type"`
	ConnectionWithAccident string    `json:"connection_with_accident"`
	YearsOfExperience      string    `json:"years_of_experience"`
	YearsSinceJoining      string    `json:"years_since_joining"`
	PatientID              string    `json:"patient_id"`
	PatientName            string    `json:"patient_name"`
	PatientGender          string    `json:"patient_gender"`
	PatientAge             int       `json:"patient_age"`
	DementiaStatus         string    `json:"dementia_status"`
	PatientStatusChange    string    `json:"patient_status_change"`
	PatientExplanation     string    `json:"patient_explanation"`
	FamilyExplanation      string    `json:"family_explanation"`
	Location               string    `json:"location"`
	ContentCategory        string    `json:"content_category"`
	ContentDetails         string    `json:"content_details"`
	CauseDetails           string    `json:"cause_details"`
	ManualRelation         string    `json:"manual_relation"`
	Situation              string    `json:"situation"`
	Countermeasure         string    `json:"countermeasure"`
}

func (p reportPayload) toReport() models.Report {
	return models.Report{
		Level:                  p.Level,
		OccurrenceDatetime:     p.OccurrenceDatetime,
		ReporterName:           p.ReporterName,
		JobType:                p.JobType,
		ConnectionWithAccident: p.ConnectionWithAccident,
		YearsOfExperience:      p.YearsOfExperience,
		YearsSinceJoining:      p.YearsSinceJoining,
		PatientID:              p.PatientID,
		PatientName:            p.PatientName,
		PatientGender:          p.PatientGender,
		PatientAge:             p.PatientAge,
		DementiaStatus:         p.DementiaStatus,
		PatientStatusChange:    p.PatientStatusChange,
		PatientExplanation:     p.PatientExplanation,
		FamilyExplanation:      p.FamilyExplanation,
		Location:               p.Location,
		ContentCategory:        p.ContentCategory,
		ContentDetails:         p.ContentDetails,
		CauseDetails:           p.CauseDetails,
		ManualRelation:         p.ManualRelation,
		Situation:              p.Situation,
		Countermeasure:         p.Countermeasure,
	}
}

// updatePayload carries the optional descriptive fields of resubmissions
// and administrative corrections. Absent fields stay untouched.
type updatePayload struct {
	Level                  *string    `json:"level"`
	OccurrenceDatetime     *time.Time `json:"occurrence_datetime"`
	ReporterName           *string    `json:"reporter_name"`
	JobType                *string    `json:"job_type"`
	ConnectionWithAccident *string    `json:"connection_with_accident"`
	YearsOfExperience      *string    `json:"years_of_experience"`
	YearsSinceJoining      *string    `json:"years_since_joining"`
	PatientID              *string    `json:"patient_id"`
	PatientName            *string    `json:"patient_name"`
	Location               *string    `json:"location"`
	ContentCategory        *string    `json:"content_category"`
	ContentDetails         *string    `json:"content_details"`
	CauseDetails           *string    `json:"cause_details"`
	ManualRelation         *string    `json:"manual_relation"`
	Situation              *string    `json:"situation"`
	Countermeasure         *string    `json:"countermeasure"`
}

func (p updatePayload) toUpdate() models.ReportUpdate {
	return models.ReportUpdate{
		Level:                  p.Level,
		OccurrenceDatetime:     p.OccurrenceDatetime,
		ReporterName:           p.ReporterName,
		JobType:                p.JobType,
		ConnectionWithAccident: p.ConnectionWithAccident,
		YearsOfExperience:      p.YearsOfExperience,
		YearsSinceJoining:      p.YearsSinceJoining,
		PatientID:              p.PatientID,
		PatientName:            p.PatientName,
		Location:               p.Location,
		ContentCategory:        p.ContentCategory,
		ContentDetails:         p.ContentDetails,
		CauseDetails:           p.CauseDetails,
		ManualRelation:         p.ManualRelation,
		Situation:              p.Situation,
		Countermeasure:         p.Countermeasure,
	}
}

// writeWorkflowError maps the workflow error taxonomy to HTTP status
// codes.
func (h *Handlers) writeWorkflowError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrDuplicateApprover),
		errors.Is(err, workflow.ErrInvalidTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "username and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
			return
		}
		h.writeWorkflowError(c, err)
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"token": token, "username": user.Username, "role": user.Role},
	})
}

// SubmitReport handles POST /api/reports
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req struct {
		reportPayload
		DraftID int64 `json:"draft_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	id, err := h.engine.Submit(c.Request.Context(), workflow.SubmitInput{
		Report:  req.toReport(),
		DraftID: req.DraftID,
	}, currentActor(c))
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{"id": id, "status": models.StatusUnread}})
}

// ImportReport handles POST /api/reports/import
func (h *Handlers) ImportReport(c *gin.Context) {
	var req struct {
		reportPayload
		Approver1   string    `json:"approver1" binding:"required"`
		ApprovedAt1 time.Time `json:"approved_at1" binding:"required"`
		Approver2   string    `json:"approver2" binding:"required"`
		ApprovedAt2 time.Time `json:"approved_at2" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	id, result, err := h.engine.Import(c.Request.Context(), workflow.ImportInput{
		Report:      req.toReport(),
		Approver1:   req.Approver1,
		ApprovedAt1: req.ApprovedAt1,
		Approver2:   req.Approver2,
		ApprovedAt2: req.ApprovedAt2,
	}, currentActor(c))
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{
		Success:  true,
		Data:     gin.H{"id": id, "status": result.Status},
		Warnings: result.Warnings,
	})
}

// ListReports handles GET /api/reports
func (h *Handlers) ListReports(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	reports, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

// ExportReports handles GET /api/reports/export
func (h *Handlers) ExportReports(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	out, err := h.reports.ExportCSV(c.Request.Context(), filter)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="incident_reports.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}

func parseFilter(c *gin.Context) (repository.Filter, bool) {
	filter := repository.Filter{
		Status:       c.Query("status"),
		ReporterName: c.Query("reporter"),
		Level:        c.Query("level"),
	}
	for query, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := c.Query(query); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid " + query + " timestamp"})
				return repository.Filter{}, false
			}
			*dst = t
		}
	}
	return filter, true
}

// GetReport handles GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	report, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "report not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ApproveReport handles POST /api/reports/:id/approve
func (h *Handlers) ApproveReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req struct {
		Comments string `json:"comments"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
			return
		}
	}

	result, err := h.engine.Approve(c.Request.Context(), id, currentActor(c), req.Comments)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success:  true,
		Data:     gin.H{"id": id, "status": result.Status},
		Warnings: result.Warnings,
	})
}

// RejectReport handles POST /api/reports/:id/reject
func (h *Handlers) RejectReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.engine.Reject(c.Request.Context(), id, currentActor(c), req.Reason)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success:  true,
		Data:     gin.H{"id": id, "status": result.Status},
		Warnings: result.Warnings,
	})
}

// ResubmitReport handles POST /api/reports/:id/resubmit
func (h *Handlers) ResubmitReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req updatePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.engine.Resubmit(c.Request.Context(), id, currentActor(c), req.toUpdate())
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success:  true,
		Data:     gin.H{"id": id, "status": result.Status},
		Warnings: result.Warnings,
	})
}

// UpdateReport handles PUT /api/reports/:id
func (h *Handlers) UpdateReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req updatePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.engine.AdministrativeUpdate(c.Request.Context(), id, currentActor(c), req.toUpdate()); err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"id": id}})
}

// DeleteReport handles DELETE /api/reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if err := h.engine.AdministrativeDelete(c.Request.Context(), id, currentActor(c)); err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// draftPayload carries draft fields; everything except the name may be
// empty.
type draftPayload struct {
	ID                     int64      `json:"id"`
	DraftName              string     `json:"draft_name"`
	Level                  string     `json:"level"`
	OccurrenceDatetime     *time.Time `json:"occurrence_datetime"`
	ReporterName           string     `json:"reporter_name"`
	JobType                string     `json:"job_type"`
	ConnectionWithAccident string     `json:"connection_with_accident"`
	YearsOfExperience      string     `json:"years_of_experience"`
	YearsSinceJoining      string     `json:"years_since_joining"`
	PatientID              string     `json:"patient_id"`
	PatientName            string     `json:"patient_name"`
	Location               string     `json:"location"`
	ContentCategory        string     `json:"content_category"`
	ContentDetails         string     `json:"content_details"`
	CauseDetails           string     `json:"cause_details"`
	ManualRelation         string     `json:"manual_relation"`
	Situation              string     `json:"situation"`
	Countermeasure         string     `json:"countermeasure"`
}

// SaveDraft handles POST /api/drafts
func (h *Handlers) SaveDraft(c *gin.Context) {
	var req draftPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	draft := models.Draft{
		ID:                     req.ID,
		Username:               currentActor(c).Username,
		DraftName:              req.DraftName,
		Level:                  req.Level,
		OccurrenceDatetime:     req.OccurrenceDatetime,
		ReporterName:           req.ReporterName,
		JobType:                req.JobType,
		ConnectionWithAccident: req.ConnectionWithAccident,
		YearsOfExperience:      req.YearsOfExperience,
		YearsSinceJoining:      req.YearsSinceJoining,
		PatientID:              req.PatientID,
		PatientName:            req.PatientName,
		Location:               req.Location,
		ContentCategory:        req.ContentCategory,
		ContentDetails:         req.ContentDetails,
		CauseDetails:           req.CauseDetails,
		ManualRelation:         req.ManualRelation,
		Situation:              req.Situation,
		Countermeasure:         req.Countermeasure,
	}
	id, err := h.drafts.Save(c.Request.Context(), &draft)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"id": id}})
}

// ListDrafts handles GET /api/drafts
func (h *Handlers) ListDrafts(c *gin.Context) {
	drafts, err := h.drafts.List(c.Request.Context(), currentActor(c).Username)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: drafts})
}

// GetDraft handles GET /api/drafts/:id
func (h *Handlers) GetDraft(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	draft, err := h.drafts.Load(c.Request.Context(), id, currentActor(c).Username)
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	if draft == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "draft not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: draft})
}

// DeleteDraft handles DELETE /api/drafts/:id
func (h *Handlers) DeleteDraft(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if err := h.drafts.Delete(c.Request.Context(), id, currentActor(c).Username); err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "username, password and role are required"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{"id": user.ID, "username": user.Username}})
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// ChangeUserRole handles PUT /api/users/:id/role
func (h *Handlers) ChangeUserRole(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "role is required"})
		return
	}
	if err := h.users.ChangeRole(c.Request.Context(), id, req.Role); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ResetUserPassword handles PUT /api/users/:id/password
func (h *Handlers) ResetUserPassword(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "password is required"})
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), id, req.Password); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// AssignWorksAccount handles PUT /api/users/:id/works-account
func (h *Handlers) AssignWorksAccount(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if err := h.users.AssignWorksAccount(c.Request.Context(), id, req.AccountID); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// AssignArtifactDir handles PUT /api/users/:id/artifact-dir
func (h *Handlers) AssignArtifactDir(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req struct {
		Dir string `json:"dir"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if err := h.users.AssignArtifactDir(c.Request.Context(), id, req.Dir); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// DeleteUser handles DELETE /api/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id, currentActor(c)); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}
