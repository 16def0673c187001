package models

import "time"

// Meeting is one past meeting instance. UUID identifies the instance; ID is
// shared by every occurrence of a recurring meeting.
type Meeting struct {
	UUID      string     `gorm:"column:uuid;primaryKey;size:64" json:"uuid"`
	ID        FlexString `gorm:"column:id;size:32;index" json:"id"`
	HostID    string     `gorm:"column:host_id;size:64" json:"host_id"`
	Topic     string     `gorm:"column:topic;size:512" json:"topic"`
	Type      int        `gorm:"column:type" json:"type"`
	StartTime time.Time  `gorm:"column:start_time;index" json:"start_time"`
	Duration  FlexString `gorm:"column:duration;size:16" json:"duration"`
	Timezone  string     `gorm:"column:timezone;size:64" json:"timezone"`
	CreatedAt *time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	JoinURL   string     `gorm:"column:join_url;size:1024" json:"join_url"`
}

// MeetingColumns is the canonical column order of Zoom_Meetings.
var MeetingColumns = []string{
	"uuid", "id", "host_id", "topic", "type", "start_time", "duration",
	"timezone", "created_at", "join_url",
}

// Participant is one attendee of a past meeting instance. Zoom reports the
// same attendee more than once when they rejoin, so rows get a surrogate key.
type Participant struct {
	RowID       uint64 `gorm:"column:row_id;primaryKey;autoIncrement" json:"-"`
	ID          string `gorm:"column:id;size:64" json:"id"`
	Name        string `gorm:"column:name;size:255" json:"name"`
	UserEmail   string `gorm:"column:user_email;size:255" json:"user_email"`
	MeetingUUID string `gorm:"column:meeting_uuid;size:64;index" json:"-"`
}

// MeetingSettings keeps the authentication-related settings of a meeting.
// A row whose flags are all NULL records a meeting that no longer exists.
type MeetingSettings struct {
	MeetingID             string `gorm:"column:meeting_id;primaryKey;size:32" json:"-"`
	EnforceLogin          *bool  `gorm:"column:enforce_login" json:"enforce_login"`
	EnforceLoginDomains   string `gorm:"column:enforce_login_domains;size:1024" json:"enforce_login_domains"`
	WaitingRoom           *bool  `gorm:"column:waiting_room" json:"waiting_room"`
	MeetingAuthentication *bool  `gorm:"column:meeting_authentication" json:"meeting_authentication"`
	AuthenticationDomains string `gorm:"column:authentication_domains;size:1024" json:"authentication_domains"`
	AuthenticationName    string `gorm:"column:authentication_name;size:255" json:"authentication_name"`
}
