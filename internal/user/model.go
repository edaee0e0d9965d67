package user

import "github.com/uptrace/bun"

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int    `bun:"id,pk,autoincrement" json:"id"`
	FullName  string `bun:"full_name,notnull" json:"full_name"`
	Email     string `bun:"email,notnull,unique" json:"email"`
	Password  string `bun:"password,notnull" json:"-"`
	Role      string `bun:"role,notnull" json:"role"`
	StudentID string `bun:"student_id,unique,nullzero" json:"student_id,omitempty"`
	StaffID   string `bun:"staff_id,unique,nullzero" json:"staff_id,omitempty"`
	AvatarURL string `bun:"avatar_url,nullzero" json:"avatar_url,omitempty"`
}

type RegisterStudentRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

type StudentLoginRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

type RegisterAdminRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateTeacherRequest struct {
	FullName     string `json:"full_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	StaffID      string `json:"staff_id" validate:"required"`
	TempPassword string `json:"temp_password" validate:"required"`
}

type TeacherLoginRequest struct {
	StaffID  string `json:"staff_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	StudentID string `json:"student_id,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
}

// AdminUserView is the admin UI listing shape. It echoes the stored
// credential, matching the existing admin console contract.
type AdminUserView struct {
	ID        int    `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	StudentID string `json:"student_id,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
	Password  string `json:"password"`
}

type Profile struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	StudentID string `json:"student_id,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) profile() *Profile {
	return &Profile{
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		StudentID: u.StudentID,
		StaffID:   u.StaffID,
		AvatarURL: u.AvatarURL,
	}
}

func (u *User) adminView() AdminUserView {
	return AdminUserView{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		StudentID: u.StudentID,
		StaffID:   u.StaffID,
		Password:  u.Password,
	}
}
