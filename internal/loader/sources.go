package loader

import (
	"context"
	"log/slog"
	"time"

	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/pager"
	"github.com/kippnorcal/zoom/internal/syncerr"
	"github.com/kippnorcal/zoom/internal/watermark"
	"github.com/kippnorcal/zoom/internal/zoom"
)

// API is the subset of the Zoom client the loaders call.
type API interface {
	ListUsers(ctx context.Context, pageNumber int) (*zoom.UserPage, error)
	ListGroups(ctx context.Context) (*zoom.GroupList, error)
	ListGroupMembers(ctx context.Context, groupID string, pageNumber int) (*zoom.MemberPage, error)
	ListMeetings(ctx context.Context, from, to time.Time, token string) (*zoom.MeetingPage, error)
	ListParticipants(ctx context.Context, meetingUUID, token string) (*zoom.ParticipantPage, error)
	GetMeeting(ctx context.Context, meetingID string) (*zoom.MeetingDetail, error)
	CreateUser(ctx context.Context, info zoom.UserInfo) (*zoom.CreatedUser, error)
	AddGroupMembers(ctx context.Context, groupID string, emails []string) (*zoom.AddedMembers, error)
}

// KeyLister lists the distinct values of a stored column.
type KeyLister interface {
	DistinctKeys(ctx context.Context, table, column string) ([]string, error)
}

// single is the plan of an entity fetched as one listing.
func single(context.Context) ([]Unit, error) {
	return []Unit{{}}, nil
}

// UserSource pages through every account user.
type UserSource struct {
	API API
}

func (s UserSource) Plan(ctx context.Context) ([]Unit, error) { return single(ctx) }

func (s UserSource) Fetch(ctx context.Context, _ Unit, state pager.State) ([]models.User, pager.State, error) {
	page, err := s.API.ListUsers(ctx, state.Number)
	if err != nil {
		return nil, state, err
	}
	return page.Users, pager.NextNumber(state, page.PageCount), nil
}

func (s UserSource) Normalize(_ Unit, users []models.User) []models.User { return users }

// GroupSource reads the single unpaginated group listing.
type GroupSource struct {
	API API
}

func (s GroupSource) Plan(ctx context.Context) ([]Unit, error) { return single(ctx) }

func (s GroupSource) Fetch(ctx context.Context, _ Unit, _ pager.State) ([]models.Group, pager.State, error) {
	list, err := s.API.ListGroups(ctx)
	if err != nil {
		return nil, pager.State{}, err
	}
	return list.Groups, pager.NextToken(""), nil
}

func (s GroupSource) Normalize(_ Unit, groups []models.Group) []models.Group { return groups }

// GroupMemberSource pages through the members of every stored group.
type GroupMemberSource struct {
	API  API
	Keys KeyLister
}

func (s GroupMemberSource) Plan(ctx context.Context) ([]Unit, error) {
	ids, err := s.Keys.DistinctKeys(ctx, models.TableGroups, "id")
	if err != nil {
		return nil, err
	}
	return keyUnits(ids), nil
}

func (s GroupMemberSource) Fetch(ctx context.Context, unit Unit, state pager.State) ([]models.GroupMember, pager.State, error) {
	page, err := s.API.ListGroupMembers(ctx, unit.Key, state.Number)
	if err != nil {
		return nil, state, err
	}
	return page.Members, pager.NextNumber(state, page.PageCount), nil
}

func (s GroupMemberSource) Normalize(unit Unit, members []models.GroupMember) []models.GroupMember {
	for i := range members {
		members[i].GroupID = unit.Key
	}
	return members
}

// MeetingSource lists past meetings from the day after the newest stored
// meeting up to yesterday, in windows of WindowDays days.
type MeetingSource struct {
	API        API
	Watermark  *watermark.DateResolver
	WindowDays int
	Logger     *slog.Logger
}

func (s MeetingSource) Plan(ctx context.Context) ([]Unit, error) {
	from, err := s.Watermark.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if s.Watermark.UpToDate(from) {
		if s.Logger != nil {
			s.Logger.Debug("meetings up to date", "from", from.Format(time.DateOnly))
		}
		return nil, nil
	}
	last := s.Watermark.Today().AddDate(0, 0, -1)
	return DateWindows(from, last, s.WindowDays), nil
}

func (s MeetingSource) Fetch(ctx context.Context, unit Unit, state pager.State) ([]models.Meeting, pager.State, error) {
	page, err := s.API.ListMeetings(ctx, unit.From, unit.To, state.Token)
	if err != nil {
		return nil, state, err
	}
	return page.Meetings, pager.NextToken(page.NextPageToken), nil
}

func (s MeetingSource) Normalize(_ Unit, meetings []models.Meeting) []models.Meeting { return meetings }

// DateWindows splits the inclusive range first..last into windows of at most
// days calendar days.
func DateWindows(first, last time.Time, days int) []Unit {
	if days <= 0 {
		days = 1
	}
	var units []Unit
	for from := first; !from.After(last); from = from.AddDate(0, 0, days) {
		to := from.AddDate(0, 0, days-1)
		if to.After(last) {
			to = last
		}
		units = append(units, Unit{From: from, To: to})
	}
	return units
}

// ParticipantSource lists the attendees of every stored meeting instance
// that has none stored yet.
type ParticipantSource struct {
	API       API
	Watermark *watermark.KeyResolver
}

func (s ParticipantSource) Plan(ctx context.Context) ([]Unit, error) {
	uuids, err := s.Watermark.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return keyUnits(uuids), nil
}

func (s ParticipantSource) Fetch(ctx context.Context, unit Unit, state pager.State) ([]models.Participant, pager.State, error) {
	page, err := s.API.ListParticipants(ctx, unit.Key, state.Token)
	if err != nil {
		return nil, state, err
	}
	return page.Participants, pager.NextToken(page.NextPageToken), nil
}

func (s ParticipantSource) Normalize(unit Unit, participants []models.Participant) []models.Participant {
	for i := range participants {
		participants[i].MeetingUUID = unit.Key
		participants[i].RowID = 0
	}
	return participants
}

// SettingsSource reads the settings of every stored meeting that has none
// stored yet. A meeting that no longer exists gets a row with NULL settings
// so it is not requested again.
type SettingsSource struct {
	API       API
	Watermark *watermark.KeyResolver
	Logger    *slog.Logger
}

func (s SettingsSource) Plan(ctx context.Context) ([]Unit, error) {
	ids, err := s.Watermark.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return keyUnits(ids), nil
}

func (s SettingsSource) Fetch(ctx context.Context, unit Unit, _ pager.State) ([]models.MeetingSettings, pager.State, error) {
	done := pager.NextToken("")
	detail, err := s.API.GetMeeting(ctx, unit.Key)
	if syncerr.IsNotFound(err) {
		if s.Logger != nil {
			s.Logger.Debug("meeting does not exist", "meeting_id", unit.Key, "error", err)
		}
		return []models.MeetingSettings{{}}, done, nil
	}
	if err != nil {
		return nil, pager.State{}, err
	}
	return []models.MeetingSettings{detail.Settings}, done, nil
}

func (s SettingsSource) Normalize(unit Unit, settings []models.MeetingSettings) []models.MeetingSettings {
	for i := range settings {
		settings[i].MeetingID = unit.Key
	}
	return settings
}

func keyUnits(keys []string) []Unit {
	units := make([]Unit, 0, len(keys))
	for _, k := range keys {
		units = append(units, Unit{Key: k})
	}
	return units
}
