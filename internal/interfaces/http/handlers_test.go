package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/repository"
	"github.com/seikokai/incident-workflow/internal/service"
	"github.com/seikokai/incident-workflow/internal/workflow"
	"github.com/seikokai/incident-workflow/pkg/database"
)

type stubGenerator struct {
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, report *models.Report, _ string) (string, error) {
	g.calls++
	return fmt.Sprintf("/tmp/report_%d.pdf", report.ID), nil
}

type stubDispatcher struct {
	files   []string
	channel []string
	direct  []string
}

func (d *stubDispatcher) SendFileToChannel(_ context.Context, filePath string) bool {
	d.files = append(d.files, filePath)
	return true
}

func (d *stubDispatcher) SendTextToChannel(_ context.Context, message string) bool {
	d.channel = append(d.channel, message)
	return true
}

func (d *stubDispatcher) SendTextToUser(_ context.Context, accountID, message string) bool {
	d.direct = append(d.direct, accountID+": "+message)
	return true
}

type fixture struct {
	server     *Server
	users      *service.UserService
	generator  *stubGenerator
	dispatcher *stubDispatcher
	tokens     map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "..", "migrations")))

	reportRepo := repository.NewReportRepository(db, logger)
	draftRepo := repository.NewDraftRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)

	generator := &stubGenerator{}
	dispatcher := &stubDispatcher{}
	engine := workflow.NewEngine(reportRepo, draftRepo, userRepo, generator, dispatcher, logger)

	userSvc := service.NewUserService(userRepo, logger)
	issuer := NewTokenIssuer("test-secret", time.Hour)
	server := NewServer(
		ServerConfig{Host: "127.0.0.1", Port: 0},
		engine,
		service.NewReportService(reportRepo, logger),
		service.NewDraftService(draftRepo, logger),
		userSvc,
		issuer,
		logger,
	)

	f := &fixture{
		server:     server,
		users:      userSvc,
		generator:  generator,
		dispatcher: dispatcher,
		tokens:     make(map[string]string),
	}

	ctx := context.Background()
	for _, u := range []struct{ name, role string }{
		{"admin", models.RoleAdmin},
		{"tanaka", models.RoleGeneral},
		{"sato", models.RoleAdmin},
		{"kato", models.RoleAdmin},
	} {
		user, err := userSvc.Create(ctx, u.name, "password123", u.role)
		require.NoError(t, err)
		token, err := issuer.Issue(user)
		require.NoError(t, err)
		f.tokens[u.name] = token
	}
	return f
}

func (f *fixture) do(t *testing.T, method, path, as string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[as])
	}
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func submitBody() map[string]interface{} {
	return map[string]interface{}{
		"level":               "2",
		"occurrence_datetime": "2025-04-10T14:30:00Z",
		"reporter_name":       "tanaka",
		"situation":           "Wrong dosage prepared before double check.",
		"countermeasure":      "Second nurse verifies dosage.",
	}
}

func (f *fixture) submitReport(t *testing.T) int64 {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/reports", "tanaka", submitBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	return int64(data["id"].(float64))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "tanaka", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, models.RoleGeneral, data["role"])

	w = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "tanaka", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/reports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w2 := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.submitReport(t)

	// First approval by sato.
	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/approve", id), "sato", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.Equal(t, models.StatusPendingFirstApproval, resp.Data.(map[string]interface{})["status"])

	// Same approver again is a conflict.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/approve", id), "sato", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Second approval completes the chain and fires the side effects.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/approve", id), "kato",
		map[string]string{"comments": "reviewed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeResponse(t, w)
	assert.Equal(t, models.StatusApproved, resp.Data.(map[string]interface{})["status"])
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, 1, f.generator.calls)
	assert.Len(t, f.dispatcher.files, 1)

	// Approving a terminal report is a conflict.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/approve", id), "sato", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApprovalActionsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	id := f.submitReport(t)

	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/approve", id), "tanaka", nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/reject", id), "tanaka",
		map[string]string{"reason": "should not work"})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Nothing transitioned.
	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/reports/%d", id), "tanaka", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, models.StatusUnread, report["status"])
	assert.Equal(t, "", report["manager_comments"])
}

func TestRejectAndResubmitOverHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.submitReport(t)

	// Rejection needs a reason.
	w := f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/reject", id), "sato",
		map[string]string{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/reject", id), "sato",
		map[string]string{"reason": "needs more detail"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.Equal(t, models.StatusRejected, resp.Data.(map[string]interface{})["status"])

	// Only the reporter can resubmit.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/resubmit", id), "sato",
		map[string]string{"situation": "expanded"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/reports/%d/resubmit", id), "tanaka",
		map[string]string{"situation": "Expanded description after review."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeResponse(t, w)
	assert.Equal(t, models.StatusUnread, resp.Data.(map[string]interface{})["status"])
	assert.NotEmpty(t, f.dispatcher.channel)

	// Resubmission cleared the manager comments.
	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/reports/%d", id), "tanaka", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "", report["manager_comments"])
}

func TestImportAdminOnly(t *testing.T) {
	f := newFixture(t)

	body := submitBody()
	body["approver1"] = "sato"
	body["approved_at1"] = "2024-01-10T10:00:00Z"
	body["approver2"] = "kato"
	body["approved_at2"] = "2024-01-11T10:00:00Z"

	w := f.do(t, http.MethodPost, "/api/reports/import", "tanaka", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/reports/import", "admin", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.Equal(t, models.StatusApproved, resp.Data.(map[string]interface{})["status"])
	// Import generates artifacts but never broadcasts.
	assert.Equal(t, 1, f.generator.calls)
	assert.Empty(t, f.dispatcher.files)
}

func TestListAndExport(t *testing.T) {
	f := newFixture(t)
	f.submitReport(t)

	w := f.do(t, http.MethodGet, "/api/reports?status=unread", "tanaka", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Len(t, resp.Data.([]interface{}), 1)

	w = f.do(t, http.MethodGet, "/api/reports/export", "tanaka", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "tanaka")

	w = f.do(t, http.MethodGet, "/api/reports?from=not-a-time", "tanaka", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/drafts", "tanaka", map[string]interface{}{
		"draft_name": "night shift",
		"situation":  "partial notes",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := int64(decodeResponse(t, w).Data.(map[string]interface{})["id"].(float64))

	w = f.do(t, http.MethodGet, "/api/drafts", "tanaka", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w).Data.([]interface{}), 1)

	// Drafts are private to their owner.
	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/drafts/%d", id), "sato", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/drafts/%d", id), "tanaka", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/drafts/%d", id), "tanaka", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserAdminRoutes(t *testing.T) {
	f := newFixture(t)

	// Non-admins cannot manage users.
	w := f.do(t, http.MethodGet, "/api/users", "tanaka", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/users", "admin", map[string]string{
		"username": "suzuki", "password": "password123", "role": models.RoleGeneral,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := int64(decodeResponse(t, w).Data.(map[string]interface{})["id"].(float64))

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d/role", id), "admin",
		map[string]string{"role": models.RoleAdmin})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d/works-account", id), "admin",
		map[string]string{"account_id": "suzuki@example.jp"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", id), "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/users", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
