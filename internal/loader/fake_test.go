package loader

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kippnorcal/zoom/internal/retry"
	"github.com/kippnorcal/zoom/internal/store"
	"github.com/kippnorcal/zoom/internal/zoom"
)

// fakeAPI serves canned responses and counts calls per method.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	users        []*zoom.UserPage
	groups       *zoom.GroupList
	members      map[string][]*zoom.MemberPage
	meetings     func(from, to time.Time, token string) (*zoom.MeetingPage, error)
	participants func(uuid, token string) (*zoom.ParticipantPage, error)
	meeting      func(id string) (*zoom.MeetingDetail, error)
	createUser   func(info zoom.UserInfo) (*zoom.CreatedUser, error)
	addMembers   func(groupID string, emails []string) (*zoom.AddedMembers, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}, members: map[string][]*zoom.MemberPage{}}
}

func (f *fakeAPI) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) ListUsers(_ context.Context, pageNumber int) (*zoom.UserPage, error) {
	f.count("ListUsers")
	return f.users[pageNumber-1], nil
}

func (f *fakeAPI) ListGroups(context.Context) (*zoom.GroupList, error) {
	f.count("ListGroups")
	return f.groups, nil
}

func (f *fakeAPI) ListGroupMembers(_ context.Context, groupID string, pageNumber int) (*zoom.MemberPage, error) {
	f.count("ListGroupMembers")
	return f.members[groupID][pageNumber-1], nil
}

func (f *fakeAPI) ListMeetings(_ context.Context, from, to time.Time, token string) (*zoom.MeetingPage, error) {
	f.count("ListMeetings")
	return f.meetings(from, to, token)
}

func (f *fakeAPI) ListParticipants(_ context.Context, uuid, token string) (*zoom.ParticipantPage, error) {
	f.count("ListParticipants")
	return f.participants(uuid, token)
}

func (f *fakeAPI) GetMeeting(_ context.Context, id string) (*zoom.MeetingDetail, error) {
	f.count("GetMeeting")
	return f.meeting(id)
}

func (f *fakeAPI) CreateUser(_ context.Context, info zoom.UserInfo) (*zoom.CreatedUser, error) {
	f.count("CreateUser")
	return f.createUser(info)
}

func (f *fakeAPI) AddGroupMembers(_ context.Context, groupID string, emails []string) (*zoom.AddedMembers, error) {
	f.count("AddGroupMembers")
	return f.addMembers(groupID, emails)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "zoom.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return store.New(db, "")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// instantTimer fires immediately so retries and pauses cost nothing.
type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func newInstantTimer() backoff.Timer { return &instantTimer{} }

func testPolicy() *retry.Policy {
	return retry.New(retry.WithTimer(newInstantTimer), retry.WithLogger(discardLogger()))
}
