package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reelsmith/reelsmith/internal/auth"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/database"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	internalhttp "github.com/reelsmith/reelsmith/internal/http"
	"github.com/reelsmith/reelsmith/internal/http/handlers"
	"github.com/reelsmith/reelsmith/internal/http/middleware"
	"github.com/reelsmith/reelsmith/internal/llm"
	"github.com/reelsmith/reelsmith/internal/mail"
	"github.com/reelsmith/reelsmith/internal/ratelimit"
	"github.com/reelsmith/reelsmith/internal/repository"
	"github.com/reelsmith/reelsmith/internal/storage"
	"github.com/reelsmith/reelsmith/internal/version"
	"github.com/reelsmith/reelsmith/internal/worker"
)

// jobRetention is how long terminal job rows are kept before the hourly
// maintenance pass deletes them.
const jobRetention = 7 * 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reelsmith server",
	Long: `Start the reelsmith HTTP server, background worker, and API.

The server provides:
- REST API for projects, segments, jobs, and authentication
- Binary endpoints for video upload and download
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8000, "Port to listen on")
	serveCmd.Flags().String("database-url", "", "Database URL (empty uses sqlite in the output dir)")
	serveCmd.Flags().String("output-dir", "output", "Directory for project artifacts")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.url", serveCmd.Flags().Lookup("database-url"))
	mustBindPFlag("storage.output_dir", serveCmd.Flags().Lookup("output-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database, cfg.Storage.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	projectRepo := repository.NewProjectRepository(db.DB)
	segmentRepo := repository.NewSegmentRepository(db.DB)
	jobRepo := repository.NewJobRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	otpRepo := repository.NewOTPRepository(db.DB)
	inviteRepo := repository.NewInviteRepository(db.DB)
	rateLimitRepo := repository.NewRateLimitRepository(db.DB)

	projectsDir := cfg.Storage.ProjectsDir
	if projectsDir == "" {
		projectsDir = filepath.Join(cfg.Storage.OutputDir, "projects")
	}
	layout := storage.NewLayout(projectsDir)

	secrets := auth.NewSecrets(cfg.Auth.SecretKey, logger)
	limiter := ratelimit.New(rateLimitRepo, logger)
	media := ffmpeg.New(cfg.Media, logger)
	model := llm.NewHTTPClient(cfg.LLM)

	var mailer mail.Mailer
	smtpMailer := mail.NewSMTPMailer(cfg.SMTP, logger)
	if smtpMailer.Configured() && !cfg.Auth.DevPrintCode {
		mailer = smtpMailer
	} else {
		mailer = mail.NewLogMailer(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrk := worker.New(cfg.Worker, projectRepo, segmentRepo, jobRepo, layout, media, model, logger)
	if !cfg.Worker.Disabled {
		go wrk.Run(ctx)
	}

	maintenance := cron.New()
	if _, err := maintenance.AddFunc("@hourly", func() {
		if n, err := limiter.Sweep(ctx, time.Now()); err != nil {
			logger.Warn("rate limit sweep failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Debug("swept rate limit counters", slog.Int64("removed", n))
		}
		if n, err := jobRepo.DeleteFinishedBefore(ctx, time.Now().Add(-jobRetention)); err != nil {
			logger.Warn("job cleanup failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("deleted finished jobs", slog.Int64("removed", n))
		}
	}); err != nil {
		return fmt.Errorf("scheduling maintenance: %w", err)
	}
	maintenance.Start()
	defer maintenance.Stop()

	authenticator := middleware.NewAuthenticator(cfg.Auth, secrets, sessionRepo, logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version,
		middleware.Overload(cfg.Overload),
		authenticator.Middleware(),
	)

	scope := handlers.NewScope(projectRepo, cfg.Auth.Enabled, logger)

	systemHandler := handlers.NewSystemHandler(version.Version).WithDB(db)
	systemHandler.Register(server.API())

	projectHandler := handlers.NewProjectHandler(scope, projectRepo, segmentRepo, jobRepo, wrk, layout, logger)
	projectHandler.Register(server.API())

	segmentHandler := handlers.NewSegmentHandler(scope, projectRepo, segmentRepo, jobRepo, wrk, logger)
	segmentHandler.Register(server.API())

	jobHandler := handlers.NewJobHandler(scope, jobRepo, logger)
	jobHandler.Register(server.API())

	authHandler := handlers.NewAuthHandler(
		cfg.Auth, cfg.Invite,
		userRepo, sessionRepo, otpRepo, inviteRepo,
		limiter, secrets, mailer, logger,
	)
	authHandler.Register(server.API())

	fileHandler := handlers.NewFileHandler(
		projectRepo, segmentRepo, layout, media,
		cfg.Storage.MaxUploadMB, cfg.Auth.Enabled, logger,
	)
	fileHandler.RegisterRoutes(server.Router())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting reelsmith server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
		slog.String("database", db.Driver()),
		slog.Bool("auth_enabled", cfg.Auth.Enabled),
	)

	return server.ListenAndServe(ctx)
}
