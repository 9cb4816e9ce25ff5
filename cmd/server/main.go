package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/artifact"
	"github.com/seikokai/incident-workflow/internal/config"
	httpapi "github.com/seikokai/incident-workflow/internal/interfaces/http"
	"github.com/seikokai/incident-workflow/internal/lineworks"
	"github.com/seikokai/incident-workflow/internal/repository"
	"github.com/seikokai/incident-workflow/internal/service"
	"github.com/seikokai/incident-workflow/internal/workflow"
	"github.com/seikokai/incident-workflow/pkg/database"
	"github.com/seikokai/incident-workflow/pkg/utils"
)

func main() {
	// Credentials such as the WORKS bot key live in .env during local
	// development; in production they arrive through the environment.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting incident workflow service",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("notifications", cfg.LineWorks.Enabled()))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Artifact.DefaultDir, 0755); err != nil {
		logger.Fatal("Failed to create artifact directory", zap.Error(err))
	}

	reportRepo := repository.NewReportRepository(db, logger)
	draftRepo := repository.NewDraftRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)

	dispatcher := lineworks.NewDispatcher(lineworks.Config{
		ClientID:       cfg.LineWorks.ClientID,
		ClientSecret:   cfg.LineWorks.ClientSecret,
		ServiceAccount: cfg.LineWorks.ServiceAccount,
		PrivateKey:     cfg.LineWorks.PrivateKey,
		BotID:          cfg.LineWorks.BotID,
		ChannelID:      cfg.LineWorks.ChannelID,
	}, logger)

	generator := artifact.NewReportGenerator(userRepo, cfg.Artifact.DefaultDir, cfg.Artifact.FontPath, logger)

	engine := workflow.NewEngine(reportRepo, draftRepo, userRepo, generator, dispatcher, logger)

	reportService := service.NewReportService(reportRepo, logger)
	draftService := service.NewDraftService(draftRepo, logger)
	userService := service.NewUserService(userRepo, logger)

	issuer := httpapi.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, engine, reportService, draftService, userService, issuer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
