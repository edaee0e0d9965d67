package classroom

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// MessageStore deletes chat rows belonging to classes being removed. It
// is implemented by the chat repository and invoked inside the cascade
// transactions here, children before parents.
type MessageStore interface {
	DeleteByClasses(ctx context.Context, idb bun.IDB, classIDs []int) error
}

type Repository interface {
	CreateWithOwner(ctx context.Context, c *Class) error
	GetByID(ctx context.Context, id int) (*Class, error)
	GetByCode(ctx context.Context, code string) (*Class, error)
	ListByOwner(ctx context.Context, ownerID int) ([]Class, error)
	ListActiveForUser(ctx context.Context, userID int) ([]Class, error)
	GetMember(ctx context.Context, classID, userID int) (*ClassMember, error)
	InsertMember(ctx context.Context, m *ClassMember) error
	UpdateMemberStatus(ctx context.Context, memberID int, status string) error
	ListMembers(ctx context.Context, classID int) ([]MemberInfo, error)
	DeleteCascade(ctx context.Context, classID int) error
	PurgeUser(ctx context.Context, userID int) error
}

type repository struct {
	db       *bun.DB
	messages MessageStore
}

func NewRepository(db *bun.DB, messages MessageStore) Repository {
	return &repository{
		db:       db,
		messages: messages,
	}
}

// CreateWithOwner inserts the class and the owner's active teacher
// membership in one transaction.
func (r *repository) CreateWithOwner(ctx context.Context, c *Class) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(c).Returning("*").Exec(ctx); err != nil {
			return err
		}
		owner := &ClassMember{
			ClassID: c.ID,
			UserID:  c.OwnerID,
			Role:    MemberRoleTeacher,
			Status:  StatusActive,
		}
		_, err := tx.NewInsert().Model(owner).Exec(ctx)
		return err
	})
}

func (r *repository) GetByID(ctx context.Context, id int) (*Class, error) {
	c := new(Class)
	err := r.db.NewSelect().Model(c).Where("id = ?", id).Scan(ctx)
	return r.one(c, err)
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Class, error) {
	c := new(Class)
	err := r.db.NewSelect().Model(c).Where("code = ?", code).Scan(ctx)
	return r.one(c, err)
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int) ([]Class, error) {
	var classes []Class
	err := r.db.NewSelect().Model(&classes).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Scan(ctx)
	if classes == nil {
		classes = []Class{}
	}
	return classes, err
}

func (r *repository) ListActiveForUser(ctx context.Context, userID int) ([]Class, error) {
	var classes []Class
	err := r.db.NewSelect().Model(&classes).
		Where("id IN (SELECT class_id FROM class_members WHERE user_id = ? AND status = ?)",
			userID, StatusActive).
		Order("id ASC").
		Scan(ctx)
	if classes == nil {
		classes = []Class{}
	}
	return classes, err
}

func (r *repository) GetMember(ctx context.Context, classID, userID int) (*ClassMember, error) {
	m := new(ClassMember)
	err := r.db.NewSelect().Model(m).
		Where("class_id = ?", classID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *repository) InsertMember(ctx context.Context, m *ClassMember) error {
	_, err := r.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (r *repository) UpdateMemberStatus(ctx context.Context, memberID int, status string) error {
	result, err := r.db.NewUpdate().Model((*ClassMember)(nil)).
		Set("status = ?", status).
		Where("id = ?", memberID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

func (r *repository) ListMembers(ctx context.Context, classID int) ([]MemberInfo, error) {
	var members []MemberInfo
	err := r.db.NewSelect().
		TableExpr("class_members AS cm").
		ColumnExpr("u.email AS email").
		ColumnExpr("cm.role AS role").
		ColumnExpr("cm.status AS status").
		Join("JOIN users AS u ON u.id = cm.user_id").
		Where("cm.class_id = ?", classID).
		Order("cm.id ASC").
		Scan(ctx, &members)
	if members == nil {
		members = []MemberInfo{}
	}
	return members, err
}

// DeleteCascade removes a class and everything scoped to it: messages
// first, then memberships, then the class row, all-or-nothing.
func (r *repository) DeleteCascade(ctx context.Context, classID int) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := r.messages.DeleteByClasses(ctx, tx, []int{classID}); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*ClassMember)(nil)).
			Where("class_id = ?", classID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*Class)(nil)).
			Where("id = ?", classID).
			Exec(ctx)
		return err
	})
}

// PurgeUser deletes classes owned by the user with their messages and
// memberships, plus the user's memberships in other classes.
func (r *repository) PurgeUser(ctx context.Context, userID int) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var ownedIDs []int
		if err := tx.NewSelect().Model((*Class)(nil)).
			Column("id").
			Where("owner_id = ?", userID).
			Scan(ctx, &ownedIDs); err != nil {
			return err
		}

		if len(ownedIDs) > 0 {
			if err := r.messages.DeleteByClasses(ctx, tx, ownedIDs); err != nil {
				return err
			}
			if _, err := tx.NewDelete().Model((*ClassMember)(nil)).
				Where("class_id IN (?)", bun.In(ownedIDs)).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().Model((*Class)(nil)).
				Where("id IN (?)", bun.In(ownedIDs)).
				Exec(ctx); err != nil {
				return err
			}
		}

		_, err := tx.NewDelete().Model((*ClassMember)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx)
		return err
	})
}

func (r *repository) one(c *Class, err error) (*Class, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return c, nil
}
