package classroom

import "github.com/uptrace/bun"

const (
	MemberRoleStudent = "student"
	MemberRoleTeacher = "teacher"

	StatusPending = "pending"
	StatusActive  = "active"
	StatusRemoved = "removed"
)

type Class struct {
	bun.BaseModel `bun:"table:classes"`

	ID          int    `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	Semester    string `bun:"semester,nullzero" json:"semester,omitempty"`
	Description string `bun:"description,nullzero" json:"description,omitempty"`
	Code        string `bun:"code,notnull,unique" json:"code"`
	OwnerID     int    `bun:"owner_id,notnull" json:"-"`
}

type ClassMember struct {
	bun.BaseModel `bun:"table:class_members"`

	ID      int    `bun:"id,pk,autoincrement" json:"id"`
	ClassID int    `bun:"class_id,notnull,unique:uq_class_user" json:"class_id"`
	UserID  int    `bun:"user_id,notnull,unique:uq_class_user" json:"user_id"`
	Role    string `bun:"role,notnull,default:'student'" json:"role"`
	Status  string `bun:"status,notnull,default:'pending'" json:"status"`
}

// MemberInfo is the member listing shape, joined with the user's email.
type MemberInfo struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type CreateClassRequest struct {
	Name        string `json:"name" validate:"required"`
	Semester    string `json:"semester"`
	Description string `json:"description"`
	Code        string `json:"code" validate:"required"`
	OwnerEmail  string `json:"owner_email" validate:"required,email"`
}

type JoinClassRequest struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
	Code         string `json:"code" validate:"required"`
}

type ApproveRequest struct {
	ClassID      int    `json:"class_id" validate:"required"`
	StudentEmail string `json:"student_email" validate:"required,email"`
}

type RemoveClassRequest struct {
	ClassID    int    `json:"class_id" validate:"required"`
	OwnerEmail string `json:"owner_email" validate:"required,email"`
}
