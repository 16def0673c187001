package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// SyncRun is one connector run and its per-entity outcome.
type SyncRun struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	StartedAt  time.Time      `gorm:"not null;index" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Status     string         `gorm:"size:16;not null;index" json:"status"`
	Trigger    string         `gorm:"size:16" json:"trigger"`
	Error      string         `json:"error,omitempty"`
	Stats      datatypes.JSON `json:"stats"`
}

// BeforeCreate ensures the run has an id.
func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (SyncRun) TableName() string { return TableSyncRuns }
