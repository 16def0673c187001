package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"

	"github.com/kippnorcal/zoom/internal/archive"
	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/connector"
	"github.com/kippnorcal/zoom/internal/database"
	"github.com/kippnorcal/zoom/internal/logging"
	"github.com/kippnorcal/zoom/internal/notify"
	"github.com/kippnorcal/zoom/internal/secrets"
	"github.com/kippnorcal/zoom/internal/store"
	"github.com/kippnorcal/zoom/internal/zoom"
)

// service is everything a run or the ops server needs once setup succeeds.
type service struct {
	db     *gorm.DB
	store  *store.Store
	orch   *connector.Orchestrator
	runner *connector.Runner
	dbLog  *logging.DBHandler
	prev   *slog.Logger
}

// close restores the logger and stops the sync log handler before the
// database it writes to.
func (s *service) close() {
	if s.dbLog != nil {
		slog.SetDefault(s.prev)
		s.dbLog.Stop()
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}
}

// newNotifier builds the run notifiers. A mailer that cannot be created is
// logged and left out so failures still reach Sentry.
func newNotifier(cfg *config.Config, sentryEnabled bool) notify.Multi {
	var notifiers notify.Multi
	if sentryEnabled {
		notifiers = append(notifiers, notify.NewSentry(sentry.CurrentHub()))
	}
	if cfg.MailEnabled {
		mailer, err := notify.NewMailer(notify.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			To:       cfg.MailRecipients(),
		})
		if err != nil {
			slog.Error("mailer setup failed", "error", err)
		} else {
			notifiers = append(notifiers, mailer)
		}
	}
	return notifiers
}

// bootstrap prepares the service. A setup failure is sent to notifier as a
// failed run under trigger before it is returned.
func bootstrap(ctx context.Context, cfg *config.Config, trigger string, notifier notify.Notifier) (*service, error) {
	svc, err := setup(ctx, cfg, notifier)
	if err == nil {
		return svc, nil
	}
	slog.Error("setup failed", "trigger", trigger, "error", err)
	if notifier != nil {
		outcome := notify.Outcome{JobName: connector.JobName, Trigger: trigger, Err: err}
		if nerr := notifier.Notify(context.WithoutCancel(ctx), outcome); nerr != nil {
			slog.Error("failed to send notification", "error", nerr)
		}
	}
	return nil, err
}

func setup(ctx context.Context, cfg *config.Config, notifier notify.Notifier) (_ *service, err error) {
	// Credentials from Secrets Manager override the environment
	if cfg.ZoomSecretID != "" {
		sm, err := secrets.NewClient(ctx, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("secrets manager unavailable: %w", err)
		}
		if err := sm.Overlay(ctx, cfg); err != nil {
			return nil, fmt.Errorf("load credentials from %s: %w", cfg.ZoomSecretID, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.DBType, err)
	}
	svc := &service{db: db}
	defer func() {
		if err != nil {
			svc.close()
		}
	}()

	svc.store = store.New(db, cfg.DBSchema)
	if err := svc.store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Sync log table handler (WARN+ async batch)
	svc.prev = slog.Default()
	svc.dbLog = logging.NewDBHandler(svc.store, svc.prev)
	slog.SetDefault(slog.New(logging.NewMultiHandler(slog.Default().Handler(), svc.dbLog)))

	logging.Prune(ctx, svc.store, cfg.LogRetention)

	// Zoom client
	opts := []zoom.Option{
		zoom.WithPageSize(cfg.ZoomPageSize),
		zoom.WithTimeout(cfg.ZoomTimeout),
		zoom.WithLogger(slog.Default()),
	}
	var raw *archive.Archive
	if cfg.ArchiveBucket != "" {
		raw, err = archive.New(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("raw page archive %s: %w", cfg.ArchiveBucket, err)
		}
		opts = append(opts, zoom.WithRawSink(raw.Put))
	}
	client := zoom.NewClient(cfg.ZoomBaseURL, zoom.NewJWTSource(cfg.ZoomKey, cfg.ZoomSecret), opts...)

	loaders := connector.BuildLoaders(cfg, connector.Deps{API: client, Store: svc.store, Logger: slog.Default()})
	svc.orch = connector.NewOrchestrator(loaders, slog.Default())
	svc.runner = connector.NewRunner(svc.orch, svc.store, notifier, slog.Default())
	svc.runner.OnRun(svc.dbLog.SetRun)
	if raw != nil {
		svc.runner.OnRun(raw.SetRun)
	}
	return svc, nil
}
