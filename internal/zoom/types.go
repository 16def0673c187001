package zoom

import "github.com/kippnorcal/zoom/internal/models"

// UserPage is one page of GET /users.
type UserPage struct {
	PageCount    int           `json:"page_count"`
	PageNumber   int           `json:"page_number"`
	PageSize     int           `json:"page_size"`
	TotalRecords int           `json:"total_records"`
	Users        []models.User `json:"users"`
}

// GroupList is the unpaginated response of GET /groups.
type GroupList struct {
	TotalRecords int            `json:"total_records"`
	Groups       []models.Group `json:"groups"`
}

// MemberPage is one page of GET /groups/{id}/members.
type MemberPage struct {
	PageCount    int                  `json:"page_count"`
	PageNumber   int                  `json:"page_number"`
	PageSize     int                  `json:"page_size"`
	TotalRecords int                  `json:"total_records"`
	Members      []models.GroupMember `json:"members"`
}

// MeetingPage is one page of the past-meetings dashboard listing.
type MeetingPage struct {
	From          string           `json:"from"`
	To            string           `json:"to"`
	PageSize      int              `json:"page_size"`
	TotalRecords  int              `json:"total_records"`
	NextPageToken string           `json:"next_page_token"`
	Meetings      []models.Meeting `json:"meetings"`
}

// ParticipantPage is one page of GET /metrics/meetings/{uuid}/participants.
type ParticipantPage struct {
	PageSize      int                  `json:"page_size"`
	TotalRecords  int                  `json:"total_records"`
	NextPageToken string               `json:"next_page_token"`
	Participants  []models.Participant `json:"participants"`
}

// MeetingDetail is the part of GET /meetings/{id} the connector keeps.
type MeetingDetail struct {
	ID       models.FlexString      `json:"id"`
	UUID     string                 `json:"uuid"`
	Topic    string                 `json:"topic"`
	Settings models.MeetingSettings `json:"settings"`
}

// UserInfo describes an account to create.
type UserInfo struct {
	Email     string `json:"email"`
	Type      int    `json:"type"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CreatedUser is the response of POST /users.
type CreatedUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Type      int    `json:"type"`
}

type createUserRequest struct {
	Action   string   `json:"action"`
	UserInfo UserInfo `json:"user_info"`
}

type memberRef struct {
	Email string `json:"email,omitempty"`
	ID    string `json:"id,omitempty"`
}

type addMembersRequest struct {
	Members []memberRef `json:"members"`
}

// AddedMembers is the response of POST /groups/{id}/members.
type AddedMembers struct {
	IDs     string `json:"ids"`
	AddedAt string `json:"added_at"`
}

// apiError is the error envelope Zoom uses for every failure, and for some
// failures reported with a 200 status.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
