package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/retry"
	"github.com/kippnorcal/zoom/internal/syncerr"
	"github.com/kippnorcal/zoom/internal/zoom"
)

const (
	// BasicUser is the Zoom account type for licence-free accounts.
	BasicUser = 1
	// MaxGroupAdd is the most members one add-members call accepts.
	MaxGroupAdd = 30

	EntityStudentAccounts = "student_accounts"
)

// StudentStore reads students who are due an account.
type StudentStore interface {
	NewStudents(ctx context.Context) ([]models.NewStudent, error)
}

// Provisioner creates Zoom accounts for new students and adds them to the
// students group. A failure for one student is logged and does not stop the
// others. Creates are never retried on transient failures, and an account
// that already exists is treated as created.
type Provisioner struct {
	api       API
	students  StudentStore
	groupName string
	policy    *retry.Policy
	create    *retry.Policy
	logger    *slog.Logger
}

func NewProvisioner(api API, students StudentStore, groupName string, policy *retry.Policy, logger *slog.Logger) *Provisioner {
	if policy == nil {
		policy = retry.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		api:       api,
		students:  students,
		groupName: groupName,
		policy:    policy,
		create:    policy.Once(),
		logger:    logger.With("entity", EntityStudentAccounts),
	}
}

func (p *Provisioner) Entity() string {
	return EntityStudentAccounts
}

func (p *Provisioner) Load(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{Entity: EntityStudentAccounts}

	students, err := p.students.NewStudents(ctx)
	if err != nil {
		return res, fmt.Errorf("read new students: %w", err)
	}
	if len(students) == 0 {
		res.Skipped = true
		res.Elapsed = time.Since(start)
		p.logger.Info("no new student accounts to create")
		return res, nil
	}

	created := make([]string, 0, len(students))
	for _, student := range students {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Units++
		info := zoom.UserInfo{
			Email:     student.Email,
			Type:      BasicUser,
			FirstName: student.FirstName,
			LastName:  student.LastName,
		}
		err := p.create.Do(ctx, "create user", func(ctx context.Context) error {
			_, err := p.api.CreateUser(ctx, info)
			return err
		})
		if syncerr.IsConflict(err) {
			created = append(created, student.Email)
			p.logger.Info("account already exists", "email", student.Email)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Error("failed to create account",
				"email", student.Email,
				"error", err,
				"body", syncerr.BodyOf(err),
			)
			continue
		}
		created = append(created, student.Email)
		p.logger.Info("created account", "email", student.Email)
	}
	res.Records = len(created)

	if len(created) > 0 {
		p.addToGroup(ctx, created)
	}

	res.Elapsed = time.Since(start)
	p.logger.Info("student accounts provisioned", "requested", len(students), "created", len(created))
	return res, nil
}

// addToGroup adds emails to the students group in chunks. Failures are
// logged with the response body and not returned.
func (p *Provisioner) addToGroup(ctx context.Context, emails []string) {
	groupID, err := p.groupID(ctx)
	if err != nil {
		p.logger.Error("failed to resolve students group",
			"group", p.groupName, "error", err, "body", syncerr.BodyOf(err))
		return
	}

	for start := 0; start < len(emails); start += MaxGroupAdd {
		end := min(start+MaxGroupAdd, len(emails))
		chunk := emails[start:end]
		err := p.policy.Do(ctx, "add group members", func(ctx context.Context) error {
			_, err := p.api.AddGroupMembers(ctx, groupID, chunk)
			return err
		})
		if err != nil {
			p.logger.Error("failed to add students to group",
				"group", p.groupName,
				"count", len(chunk),
				"error", err,
				"body", syncerr.BodyOf(err),
			)
			continue
		}
		p.logger.Info("added new users to group", "group", p.groupName, "count", len(chunk))
	}
}

func (p *Provisioner) groupID(ctx context.Context) (string, error) {
	var list *zoom.GroupList
	err := p.policy.Do(ctx, "list groups", func(ctx context.Context) error {
		var err error
		list, err = p.api.ListGroups(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	for _, g := range list.Groups {
		if g.Name == p.groupName {
			return g.ID, nil
		}
	}
	return "", syncerr.Newf(syncerr.CodeNotFound, "find group", "no group named %q", p.groupName)
}
