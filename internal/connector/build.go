package connector

import (
	"log/slog"

	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/loader"
	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/pager"
	"github.com/kippnorcal/zoom/internal/retry"
	"github.com/kippnorcal/zoom/internal/store"
	"github.com/kippnorcal/zoom/internal/watermark"
)

// Entity names, as logged and recorded in run stats.
const (
	EntityUsers           = "users"
	EntityGroups          = "groups"
	EntityGroupMembers    = "group_members"
	EntityMeetings        = "meetings"
	EntityParticipants    = "participants"
	EntityMeetingSettings = "meeting_settings"
)

// Deps are the collaborators every loader shares.
type Deps struct {
	API    loader.API
	Store  *store.Store
	Policy *retry.Policy
	Logger *slog.Logger
}

// NewPolicy builds the retry policy described by cfg.
func NewPolicy(cfg *config.Config, logger *slog.Logger) *retry.Policy {
	return retry.New(
		retry.WithAttempts(cfg.RetryAttempts),
		retry.WithBackoff(cfg.RetryInitial, cfg.RetryMax),
		retry.WithThrottlePause(cfg.ThrottlePause),
		retry.WithLogger(logger),
	)
}

// BuildLoaders returns the enabled loaders in dependency order: accounts and
// groups first, then provisioning, then meetings and the entities keyed by
// them.
func BuildLoaders(cfg *config.Config, d Deps) []loader.Loader {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Policy == nil {
		d.Policy = NewPolicy(cfg, d.Logger)
	}
	var loaders []loader.Loader

	if cfg.SyncUsers {
		loaders = append(loaders,
			loader.New[models.User](
				loader.Spec{Entity: EntityUsers, Table: models.TableUsers, Mode: loader.FullReplace, Style: pager.NumberStyle},
				loader.UserSource{API: d.API}, d.Store, d.Policy, d.Logger),
			loader.New[models.Group](
				loader.Spec{Entity: EntityGroups, Table: models.TableGroups, Mode: loader.FullReplace, Style: pager.TokenStyle},
				loader.GroupSource{API: d.API}, d.Store, d.Policy, d.Logger),
			loader.New[models.GroupMember](
				loader.Spec{Entity: EntityGroupMembers, Table: models.TableGroupMembers, Mode: loader.FullReplace, Style: pager.NumberStyle},
				loader.GroupMemberSource{API: d.API, Keys: d.Store}, d.Store, d.Policy, d.Logger),
		)
	}

	if cfg.SyncAccounts {
		loaders = append(loaders, loader.NewProvisioner(d.API, d.Store, cfg.StudentGroup, d.Policy, d.Logger))
	}

	if cfg.SyncMeetings {
		bulk := d.Policy.WithPause(cfg.BulkThrottlePause)
		dates := watermark.NewDateResolver(d.Store, models.TableMeetings, "start_time", cfg.Location())
		loaders = append(loaders,
			loader.New[models.Meeting](
				loader.Spec{Entity: EntityMeetings, Table: models.TableMeetings, Mode: loader.AppendOnly, Style: pager.TokenStyle},
				loader.MeetingSource{API: d.API, Watermark: dates, WindowDays: cfg.MeetingWindowDays, Logger: d.Logger},
				d.Store, bulk, d.Logger),
			loader.New[models.Participant](
				loader.Spec{Entity: EntityParticipants, Table: models.TableParticipants, Mode: loader.AppendOnly, Style: pager.TokenStyle},
				loader.ParticipantSource{
					API:       d.API,
					Watermark: watermark.NewKeyResolver(d.Store, models.TableMeetings, "uuid", models.TableParticipants, "meeting_uuid"),
				},
				d.Store, d.Policy, d.Logger),
			loader.New[models.MeetingSettings](
				loader.Spec{Entity: EntityMeetingSettings, Table: models.TableMeetingSettings, Mode: loader.AppendOnly, Style: pager.TokenStyle},
				loader.SettingsSource{
					API:       d.API,
					Watermark: watermark.NewKeyResolver(d.Store, models.TableMeetings, "id", models.TableMeetingSettings, "meeting_id"),
					Logger:    d.Logger,
				},
				d.Store, d.Policy, d.Logger),
		)
	}
	return loaders
}
