package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/connector"
	"github.com/kippnorcal/zoom/internal/dto"
	"github.com/kippnorcal/zoom/internal/handlers"
	"github.com/kippnorcal/zoom/internal/logging"
	"github.com/kippnorcal/zoom/internal/middleware"
	"github.com/kippnorcal/zoom/internal/routes"
)

const usage = `usage: connector [run|serve]

  run    sync every enabled entity once and exit (default)
  serve  expose run history over HTTP and run every RUN_INTERVAL
`

func main() {
	mode := "run"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	if mode != "run" && mode != "serve" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	os.Exit(run(mode))
}

func run(mode string) int {
	cfg := config.Load()

	// Structured logging (JSON to stdout, text copy in LOG_FILE)
	logFile, err := logging.Setup(cfg.Debug, cfg.LogFile)
	if err != nil {
		slog.Error("logging setup failed", "error", err)
		return 1
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sentry error tracking
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    mode == "serve",
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	trigger := "cli"
	if mode == "serve" {
		trigger = "serve"
	}
	svc, err := bootstrap(ctx, cfg, trigger, newNotifier(cfg, sentryEnabled))
	if err != nil {
		return 1
	}
	defer svc.close()

	if mode == "serve" {
		return serve(ctx, cfg, svc)
	}

	if _, err := svc.runner.Run(ctx, trigger); err != nil {
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, svc *service) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := fiber.New(fiber.Config{
		BodyLimit:             1024 * 1024,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg.CORSOrigins))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	routes.Setup(app, cfg,
		handlers.NewHealthHandler(svc.db, svc.runner, svc.orch.Entities()),
		handlers.NewRunHandler(ctx, svc.store, svc.runner),
	)

	// Log cleanup
	cleanupDone := make(chan struct{})
	logging.StartCleanup(svc.store, cfg.LogRetention, cleanupDone)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		connector.Schedule(ctx, svc.runner, cfg.RunInterval, slog.Default())
	}()

	failed := make(chan struct{})
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			close(failed)
		}
	}()

	status := 0
	select {
	case <-ctx.Done():
	case <-failed:
		status = 1
	}
	slog.Info("shutting down server...")
	cancel()

	close(cleanupDone)
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	// In-flight runs see ctx cancelled and record themselves as failed.
	wg.Wait()
	svc.runner.Wait()

	slog.Info("server stopped")
	return status
}

// errorHandler hides the detail of 5xx errors from callers.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	message := err.Error()
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"error", err,
		)
		message = "Internal server error"
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: message})
}
