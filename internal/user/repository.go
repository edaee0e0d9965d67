package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailAndRole(ctx context.Context, email, role string) (*User, error)
	GetByStudentID(ctx context.Context, studentID string) (*User, error)
	GetByStaffID(ctx context.Context, staffID string) (*User, error)
	GetByIDAndRole(ctx context.Context, id int, role string) (*User, error)
	ListByRole(ctx context.Context, role string) ([]User, error)
	UpdateAvatar(ctx context.Context, id int, avatarURL string) error
	Delete(ctx context.Context, id int) error
}

type repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) (*User, error) {
	_, err := r.db.NewInsert().Model(u).Returning("*").Exec(ctx)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("email = ?", email).Scan(ctx)
	return r.one(u, err)
}

func (r *repository) GetByEmailAndRole(ctx context.Context, email, role string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).
		Where("email = ?", email).
		Where("role = ?", role).
		Scan(ctx)
	return r.one(u, err)
}

func (r *repository) GetByStudentID(ctx context.Context, studentID string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("student_id = ?", studentID).Scan(ctx)
	return r.one(u, err)
}

func (r *repository) GetByStaffID(ctx context.Context, staffID string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("staff_id = ?", staffID).Scan(ctx)
	return r.one(u, err)
}

func (r *repository) GetByIDAndRole(ctx context.Context, id int, role string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).
		Where("id = ?", id).
		Where("role = ?", role).
		Scan(ctx)
	return r.one(u, err)
}

func (r *repository) ListByRole(ctx context.Context, role string) ([]User, error) {
	var users []User
	err := r.db.NewSelect().Model(&users).
		Where("role = ?", role).
		Order("full_name ASC").
		Scan(ctx)
	return users, err
}

func (r *repository) UpdateAvatar(ctx context.Context, id int, avatarURL string) error {
	result, err := r.db.NewUpdate().Model((*User)(nil)).
		Set("avatar_url = ?", avatarURL).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	result, err := r.db.NewDelete().Model(&User{ID: id}).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) one(u *User, err error) (*User, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
