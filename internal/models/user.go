package models

import "time"

// Table names as deployed. They are qualified with DB_SCHEMA by the store.
const (
	TableUsers           = "Zoom_Users"
	TableGroups          = "Zoom_Groups"
	TableGroupMembers    = "Zoom_GroupMembers"
	TableMeetings        = "Zoom_Meetings"
	TableParticipants    = "Zoom_Participants"
	TableMeetingSettings = "Zoom_Meeting_Settings"
	TableSyncRuns        = "Zoom_SyncRuns"
	TableSyncLogs        = "Zoom_SyncLogs"
	ViewNewStudents      = "vw_Zoom_NewStudentAccounts"
)

// User is the canonical column set of a Zoom account. Fields the API adds
// later are dropped on decode; fields it stops sending stay NULL.
type User struct {
	ID                string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	FirstName         string     `gorm:"column:first_name;size:255" json:"first_name"`
	LastName          string     `gorm:"column:last_name;size:255" json:"last_name"`
	Email             string     `gorm:"column:email;size:255;index" json:"email"`
	Type              int        `gorm:"column:type" json:"type"`
	Status            string     `gorm:"column:status;size:32" json:"status"`
	PMI               FlexString `gorm:"column:pmi;size:32" json:"pmi"`
	Timezone          string     `gorm:"column:timezone;size:64" json:"timezone"`
	Dept              string     `gorm:"column:dept;size:255" json:"dept"`
	CreatedAt         *time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	LastLoginTime     *time.Time `gorm:"column:last_login_time" json:"last_login_time"`
	LastClientVersion string     `gorm:"column:last_client_version;size:128" json:"last_client_version"`
	Verified          int        `gorm:"column:verified" json:"verified"`
}

// UserColumns is the canonical column order of Zoom_Users.
var UserColumns = []string{
	"id", "first_name", "last_name", "email", "type", "status", "pmi",
	"timezone", "dept", "created_at", "last_login_time", "last_client_version", "verified",
}

// NewStudent is one row of the provisioning view: a student who should have
// a Zoom account but does not yet.
type NewStudent struct {
	Email     string `gorm:"column:email" json:"email"`
	FirstName string `gorm:"column:first_name" json:"first_name"`
	LastName  string `gorm:"column:last_name" json:"last_name"`
}
