package chat

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

type Repository interface {
	Insert(ctx context.Context, m *Message) (*Message, error)
	ListByClassChannel(ctx context.Context, classID int, channel string) ([]Message, error)
	GetByIDAndClass(ctx context.Context, id, classID int) (*Message, error)
	Delete(ctx context.Context, id int) error
	DeleteByClasses(ctx context.Context, idb bun.IDB, classIDs []int) error
}

type repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, m *Message) (*Message, error) {
	_, err := r.db.NewInsert().Model(m).Returning("*").Exec(ctx)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListByClassChannel returns the channel log in display order:
// timestamp ascending with id as the tie-break for equal timestamps.
func (r *repository) ListByClassChannel(ctx context.Context, classID int, channel string) ([]Message, error) {
	var messages []Message
	err := r.db.NewSelect().Model(&messages).
		Where("class_id = ?", classID).
		Where("channel = ?", channel).
		Order("timestamp ASC", "id ASC").
		Scan(ctx)
	return messages, err
}

func (r *repository) GetByIDAndClass(ctx context.Context, id, classID int) (*Message, error) {
	m := new(Message)
	err := r.db.NewSelect().Model(m).
		Where("id = ?", id).
		Where("class_id = ?", classID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	result, err := r.db.NewDelete().Model(&Message{ID: id}).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteByClasses implements the classroom cascade hook, running inside
// the caller's transaction.
func (r *repository) DeleteByClasses(ctx context.Context, idb bun.IDB, classIDs []int) error {
	if len(classIDs) == 0 {
		return nil
	}
	_, err := idb.NewDelete().Model((*Message)(nil)).
		Where("class_id IN (?)", bun.In(classIDs)).
		Exec(ctx)
	return err
}
