package user

import (
	"context"
	"errors"
	"strings"

	"github.com/NighHunter/multi-chat-backend/internal/db"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrStudentIDTaken     = errors.New("student ID already registered")
	ErrStaffIDTaken       = errors.New("staff ID already registered")
	ErrAdminExists        = errors.New("admin already exists")
	ErrInvalidCredentials = errors.New("invalid user ID or password")
)

// SessionToken is the opaque marker issued on every successful login.
// Static and non-expiring; any real deployment must replace this with
// signed, expiring tokens.
const SessionToken = "demo-token"

// ClassPurger removes a user's class footprint (owned classes with their
// members and messages, plus the user's own memberships) before the user
// row itself is deleted.
type ClassPurger interface {
	PurgeUser(ctx context.Context, userID int) error
}

type Service interface {
	RegisterStudent(ctx context.Context, req RegisterStudentRequest) (*User, error)
	RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*User, error)
	CreateTeacher(ctx context.Context, req CreateTeacherRequest) (*User, error)
	LoginStudent(ctx context.Context, req StudentLoginRequest) (*LoginResponse, error)
	LoginTeacher(ctx context.Context, req TeacherLoginRequest) (*LoginResponse, error)
	LoginAdmin(ctx context.Context, req AdminLoginRequest) (*LoginResponse, error)
	ListTeachers(ctx context.Context) ([]AdminUserView, error)
	ListStudents(ctx context.Context) ([]AdminUserView, error)
	DeleteTeacher(ctx context.Context, id int) error
	DeleteStudent(ctx context.Context, id int) error
	GetProfile(ctx context.Context, email string) (*Profile, error)
	UpdateAvatar(ctx context.Context, email, avatarURL string) (*Profile, error)
}

type service struct {
	repo   Repository
	purger ClassPurger
}

func NewService(repo Repository, purger ClassPurger) Service {
	return &service{
		repo:   repo,
		purger: purger,
	}
}

// NormalizeEmail applies the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) RegisterStudent(ctx context.Context, req RegisterStudentRequest) (*User, error) {
	sid := strings.ToLower(strings.TrimSpace(req.StudentID))
	email := NormalizeEmail(req.Email)

	if _, err := s.repo.GetByStudentID(ctx, sid); err == nil {
		return nil, ErrStudentIDTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u := &User{
		FullName:  strings.TrimSpace(req.FullName),
		Email:     email,
		Password:  req.Password,
		Role:      RoleStudent,
		StudentID: sid,
	}
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		// Concurrent registration losing the unique race.
		if conflictErr := uniqueConflict(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, err
	}
	return created, nil
}

func (s *service) RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*User, error) {
	admins, err := s.repo.ListByRole(ctx, RoleAdmin)
	if err != nil {
		return nil, err
	}
	if len(admins) > 0 {
		return nil, ErrAdminExists
	}

	email := NormalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u := &User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    email,
		Password: req.Password,
		Role:     RoleAdmin,
	}
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		if conflictErr := uniqueConflict(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, err
	}
	return created, nil
}

func (s *service) CreateTeacher(ctx context.Context, req CreateTeacherRequest) (*User, error) {
	email := NormalizeEmail(req.Email)
	staffID := strings.TrimSpace(req.StaffID)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByStaffID(ctx, staffID); err == nil {
		return nil, ErrStaffIDTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u := &User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    email,
		Password: req.TempPassword,
		Role:     RoleTeacher,
		StaffID:  staffID,
	}
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		if conflictErr := uniqueConflict(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, err
	}
	return created, nil
}

// uniqueConflict maps a racing insert's unique violation to the same
// sentinel the sequential pre-check would have returned, keyed on the
// violated constraint.
func uniqueConflict(err error) error {
	name := db.UniqueConstraint(err)
	if name == "" {
		return nil
	}
	switch {
	case strings.Contains(name, "student_id"):
		return ErrStudentIDTaken
	case strings.Contains(name, "staff_id"):
		return ErrStaffIDTaken
	default:
		return ErrEmailTaken
	}
}

func (s *service) LoginStudent(ctx context.Context, req StudentLoginRequest) (*LoginResponse, error) {
	sid := strings.ToLower(strings.TrimSpace(req.StudentID))
	u, err := s.repo.GetByStudentID(ctx, sid)
	return s.login(u, err, RoleStudent, req.Password)
}

func (s *service) LoginTeacher(ctx context.Context, req TeacherLoginRequest) (*LoginResponse, error) {
	u, err := s.repo.GetByStaffID(ctx, strings.TrimSpace(req.StaffID))
	return s.login(u, err, RoleTeacher, req.Password)
}

func (s *service) LoginAdmin(ctx context.Context, req AdminLoginRequest) (*LoginResponse, error) {
	u, err := s.repo.GetByEmailAndRole(ctx, NormalizeEmail(req.Email), RoleAdmin)
	return s.login(u, err, RoleAdmin, req.Password)
}

// login checks role match and exact equality against the stored
// password. The client expects this exact behavior plus the fixed
// session token; see SessionToken.
func (s *service) login(u *User, err error, role, password string) (*LoginResponse, error) {
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Role != role || u.Password != password {
		return nil, ErrInvalidCredentials
	}
	return &LoginResponse{
		Token:     SessionToken,
		Role:      u.Role,
		FullName:  u.FullName,
		Email:     u.Email,
		StudentID: u.StudentID,
		StaffID:   u.StaffID,
	}, nil
}

func (s *service) ListTeachers(ctx context.Context) ([]AdminUserView, error) {
	return s.listViews(ctx, RoleTeacher)
}

func (s *service) ListStudents(ctx context.Context) ([]AdminUserView, error) {
	return s.listViews(ctx, RoleStudent)
}

func (s *service) listViews(ctx context.Context, role string) ([]AdminUserView, error) {
	users, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	views := make([]AdminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.adminView())
	}
	return views, nil
}

func (s *service) DeleteTeacher(ctx context.Context, id int) error {
	teacher, err := s.repo.GetByIDAndRole(ctx, id, RoleTeacher)
	if err != nil {
		return err
	}
	if err := s.purger.PurgeUser(ctx, teacher.ID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, teacher.ID)
}

func (s *service) DeleteStudent(ctx context.Context, id int) error {
	student, err := s.repo.GetByIDAndRole(ctx, id, RoleStudent)
	if err != nil {
		return err
	}
	if err := s.purger.PurgeUser(ctx, student.ID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, student.ID)
}

func (s *service) GetProfile(ctx context.Context, email string) (*Profile, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return u.profile(), nil
}

func (s *service) UpdateAvatar(ctx context.Context, email, avatarURL string) (*Profile, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAvatar(ctx, u.ID, avatarURL); err != nil {
		return nil, err
	}
	u.AvatarURL = avatarURL
	return u.profile(), nil
}
