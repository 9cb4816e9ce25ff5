// Package http provides the HTTP adapter over the workflow engine and
// services. It is a thin layer: request decoding, authorization context,
// and error-to-status mapping live here, nothing else.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/service"
	"github.com/seikokai/incident-workflow/internal/workflow"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server wired to the engine and services
func NewServer(
	config ServerConfig,
	engine *workflow.Engine,
	reports *service.ReportService,
	drafts *service.DraftService,
	users *service.UserService,
	issuer *TokenIssuer,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(server.loggingMiddleware())

	handlers := NewHandlers(engine, reports, drafts, users, issuer, logger)
	server.setupRoutes(handlers, issuer)

	return server
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) setupRoutes(h *Handlers, issuer *TokenIssuer) {
	s.router.GET("/health", h.HealthCheck)
	s.router.POST("/api/auth/login", h.Login)

	api := s.router.Group("/api")
	api.Use(authMiddleware(issuer))
	{
		api.POST("/reports", h.SubmitReport)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/export", h.ExportReports)
		api.GET("/reports/:id", h.GetReport)
		api.POST("/reports/:id/approve", h.ApproveReport)
		api.POST("/reports/:id/reject", h.RejectReport)
		api.POST("/reports/:id/resubmit", h.ResubmitReport)
		api.PUT("/reports/:id", h.UpdateReport)
		api.DELETE("/reports/:id", h.DeleteReport)

		api.GET("/drafts", h.ListDrafts)
		api.POST("/drafts", h.SaveDraft)
		api.GET("/drafts/:id", h.GetDraft)
		api.DELETE("/drafts/:id", h.DeleteDraft)
	}

	admin := s.router.Group("/api")
	admin.Use(authMiddleware(issuer), adminMiddleware())
	{
		admin.POST("/reports/import", h.ImportReport)

		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.PUT("/users/:id/role", h.ChangeUserRole)
		admin.PUT("/users/:id/password", h.ResetUserPassword)
		admin.PUT("/users/:id/works-account", h.AssignWorksAccount)
		admin.PUT("/users/:id/artifact-dir", h.AssignArtifactDir)
		admin.DELETE("/users/:id", h.DeleteUser)
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
