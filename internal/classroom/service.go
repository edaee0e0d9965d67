package classroom

import (
	"context"
	"errors"
	"strings"

	"github.com/NighHunter/multi-chat-backend/internal/db"
	"github.com/NighHunter/multi-chat-backend/internal/user"
)

var (
	ErrTeacherNotFound    = errors.New("teacher not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrCodeNotFound       = errors.New("join code not found")
	ErrCodeTaken          = errors.New("join code already used")
	ErrMembershipNotFound = errors.New("membership not found")
)

// Join response messages, shown verbatim by the web client.
const (
	JoinRequested      = "Join request sent"
	JoinAlreadyMember  = "Already a member"
	JoinAlreadyPending = "Request already pending"
	JoinReRequested    = "Request re-sent"
)

type Service interface {
	CreateClass(ctx context.Context, req CreateClassRequest) (*Class, error)
	JoinClass(ctx context.Context, req JoinClassRequest) (string, error)
	ApproveMembership(ctx context.Context, classID int, studentEmail string) error
	RemoveClass(ctx context.Context, classID int, ownerEmail string) error
	ListForTeacher(ctx context.Context, ownerEmail string) ([]Class, error)
	ListForStudent(ctx context.Context, studentEmail string) ([]Class, error)
	ListMembers(ctx context.Context, classID int) ([]MemberInfo, error)
	PurgeUser(ctx context.Context, userID int) error
}

type service struct {
	repo  Repository
	users user.Repository
}

func NewService(repo Repository, users user.Repository) Service {
	return &service{
		repo:  repo,
		users: users,
	}
}

// NormalizeCode applies the canonical join code form: trimmed uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) CreateClass(ctx context.Context, req CreateClassRequest) (*Class, error) {
	owner, err := s.teacher(ctx, req.OwnerEmail)
	if err != nil {
		return nil, err
	}

	code := NormalizeCode(req.Code)
	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return nil, ErrCodeTaken
	} else if !errors.Is(err, ErrClassNotFound) {
		return nil, err
	}

	c := &Class{
		Name:        strings.TrimSpace(req.Name),
		Semester:    strings.TrimSpace(req.Semester),
		Description: strings.TrimSpace(req.Description),
		Code:        code,
		OwnerID:     owner.ID,
	}
	if err := s.repo.CreateWithOwner(ctx, c); err != nil {
		// Concurrent creation losing the unique race on the code.
		if db.IsUniqueViolation(err) {
			return nil, ErrCodeTaken
		}
		return nil, err
	}
	return c, nil
}

// JoinClass implements the idempotent join policy: no row creates a
// pending request, active and pending rows are no-ops, a removed row is
// reset to pending. A racing duplicate insert rejected by the
// (class_id, user_id) unique constraint collapses into the pending
// no-op response.
func (s *service) JoinClass(ctx context.Context, req JoinClassRequest) (string, error) {
	student, err := s.student(ctx, req.StudentEmail)
	if err != nil {
		return "", err
	}

	cls, err := s.repo.GetByCode(ctx, NormalizeCode(req.Code))
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			return "", ErrCodeNotFound
		}
		return "", err
	}

	existing, err := s.repo.GetMember(ctx, cls.ID, student.ID)
	if err != nil && !errors.Is(err, ErrMembershipNotFound) {
		return "", err
	}

	if existing != nil {
		switch existing.Status {
		case StatusActive:
			return JoinAlreadyMember, nil
		case StatusPending:
			return JoinAlreadyPending, nil
		default:
			if err := s.repo.UpdateMemberStatus(ctx, existing.ID, StatusPending); err != nil {
				return "", err
			}
			return JoinReRequested, nil
		}
	}

	m := &ClassMember{
		ClassID: cls.ID,
		UserID:  student.ID,
		Role:    MemberRoleStudent,
		Status:  StatusPending,
	}
	if err := s.repo.InsertMember(ctx, m); err != nil {
		if db.IsUniqueViolation(err) {
			return JoinAlreadyPending, nil
		}
		return "", err
	}
	return JoinRequested, nil
}

// ApproveMembership activates a student's membership. The caller is
// not verified to own the class; any teacher identity can approve any
// membership. Tests pin this so a later ownership check shows up as a
// deliberate change.
func (s *service) ApproveMembership(ctx context.Context, classID int, studentEmail string) error {
	student, err := s.student(ctx, studentEmail)
	if err != nil {
		return err
	}

	m, err := s.repo.GetMember(ctx, classID, student.ID)
	if err != nil {
		return err
	}
	return s.repo.UpdateMemberStatus(ctx, m.ID, StatusActive)
}

func (s *service) RemoveClass(ctx context.Context, classID int, ownerEmail string) error {
	owner, err := s.teacher(ctx, ownerEmail)
	if err != nil {
		return err
	}

	cls, err := s.repo.GetByID(ctx, classID)
	if err != nil {
		return err
	}
	if cls.OwnerID != owner.ID {
		return ErrClassNotFound
	}

	return s.repo.DeleteCascade(ctx, cls.ID)
}

func (s *service) ListForTeacher(ctx context.Context, ownerEmail string) ([]Class, error) {
	owner, err := s.teacher(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, owner.ID)
}

func (s *service) ListForStudent(ctx context.Context, studentEmail string) ([]Class, error) {
	student, err := s.student(ctx, studentEmail)
	if err != nil {
		return nil, err
	}
	return s.repo.ListActiveForUser(ctx, student.ID)
}

func (s *service) ListMembers(ctx context.Context, classID int) ([]MemberInfo, error) {
	return s.repo.ListMembers(ctx, classID)
}

func (s *service) PurgeUser(ctx context.Context, userID int) error {
	return s.repo.PurgeUser(ctx, userID)
}

func (s *service) teacher(ctx context.Context, email string) (*user.User, error) {
	t, err := s.users.GetByEmailAndRole(ctx, user.NormalizeEmail(email), user.RoleTeacher)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *service) student(ctx context.Context, email string) (*user.User, error) {
	st, err := s.users.GetByEmailAndRole(ctx, user.NormalizeEmail(email), user.RoleStudent)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return st, nil
}
