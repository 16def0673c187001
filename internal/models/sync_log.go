package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncLog stores WARN and ERROR records of a run so throttling and failures
// can be queried next to the data they affected.
type SyncLog struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     string         `gorm:"size:36;index" json:"run_id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Level     string         `gorm:"size:10;not null;index" json:"level"`
	Message   string         `json:"message"`
	Entity    string         `gorm:"size:50;index" json:"entity"`
	Op        string         `gorm:"size:100" json:"op"`
	Error     string         `json:"error"`
	Extra     datatypes.JSON `json:"extra"`
}

func (SyncLog) TableName() string { return TableSyncLogs }
