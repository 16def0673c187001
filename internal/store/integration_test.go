//go:build integration

// Run with: go test -tags=integration ./internal/store/...
// Requires Docker.
package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/syncerr"
)

func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("zoom"),
		tcpostgres.WithUsername("zoom"),
		tcpostgres.WithPassword("zoom"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE SCHEMA IF NOT EXISTS custom`).Error)

	return New(db, "custom")
}

func TestPostgresAntiJoinAndWatermark(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	require.NoError(t, s.Drop(ctx, models.TableMeetings))
	require.NoError(t, s.Append(ctx, models.TableMeetings, &models.Meeting{}, []models.Meeting{
		meeting("A", "1", start.AddDate(0, 0, -1)),
		meeting("B", "2", start),
		meeting("C", "3", start.AddDate(0, 0, -2)),
	}))

	latest, ok, err := s.LatestTime(ctx, models.TableMeetings, "start_time")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, start.Equal(latest))

	require.NoError(t, s.Append(ctx, models.TableParticipants, &models.Participant{}, []models.Participant{
		{ID: "p1", MeetingUUID: "A"},
	}))
	keys, err := s.MissingKeys(ctx, models.TableMeetings, "uuid", models.TableParticipants, "meeting_uuid")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, keys)
}

func TestPostgresMissingViewIsNotFound(t *testing.T) {
	s := newPostgresStore(t)

	_, err := s.NewStudents(context.Background())

	assert.True(t, syncerr.IsNotFound(err), "got %v", err)
}
