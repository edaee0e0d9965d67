package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/NighHunter/multi-chat-backend/internal/classroom"
	"github.com/NighHunter/multi-chat-backend/internal/user"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotOwner        = errors.New("you are not the owner of this class")
)

// Producer publishes events for other services (NATS). Optional; a nil
// producer disables publishing.
type Producer interface {
	SendMessage(ctx context.Context, value interface{}) error
	Close() error
}

type Service interface {
	Post(ctx context.Context, classID int, req PostMessageRequest) (*MessageOut, error)
	List(ctx context.Context, classID int, channel string) ([]MessageOut, error)
	Delete(ctx context.Context, classID, messageID int, teacherEmail string) error
}

type service struct {
	repo     Repository
	classes  classroom.Repository
	users    user.Repository
	producer Producer
	logger   *slog.Logger
}

func NewService(repo Repository, classes classroom.Repository, users user.Repository, producer Producer, logger *slog.Logger) Service {
	return &service{
		repo:     repo,
		classes:  classes,
		users:    users,
		producer: producer,
		logger:   logger,
	}
}

// Post appends a message to the class channel. Sender identity is taken
// at face value and snapshotted into the row; membership is not checked.
func (s *service) Post(ctx context.Context, classID int, req PostMessageRequest) (*MessageOut, error) {
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, classroom.ErrClassNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	attachments := req.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return nil, err
	}

	channel := req.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	m := &Message{
		ClassID:         classID,
		Channel:         channel,
		SenderEmail:     req.SenderEmail,
		SenderName:      req.SenderName,
		Content:         req.Content,
		AttachmentsJSON: string(attachmentsJSON),
		Timestamp:       time.Now().UTC(),
	}
	stored, err := s.repo.Insert(ctx, m)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, stored)

	return stored.out(), nil
}

func (s *service) List(ctx context.Context, classID int, channel string) ([]MessageOut, error) {
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, classroom.ErrClassNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	if channel == "" {
		channel = DefaultChannel
	}

	messages, err := s.repo.ListByClassChannel(ctx, classID, channel)
	if err != nil {
		return nil, err
	}

	out := make([]MessageOut, 0, len(messages))
	for i := range messages {
		out = append(out, *messages[i].out())
	}
	return out, nil
}

// Delete removes a single message. Only the teacher owning the class may
// delete; anything else is Forbidden.
func (s *service) Delete(ctx context.Context, classID, messageID int, teacherEmail string) error {
	teacher, err := s.users.GetByEmailAndRole(ctx, user.NormalizeEmail(teacherEmail), user.RoleTeacher)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrNotOwner
		}
		return err
	}

	cls, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, classroom.ErrClassNotFound) {
			return ErrNotOwner
		}
		return err
	}
	if cls.OwnerID != teacher.ID {
		return ErrNotOwner
	}

	m, err := s.repo.GetByIDAndClass(ctx, messageID, classID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, m.ID)
}

func (s *service) publish(ctx context.Context, m *Message) {
	if s.producer == nil {
		return
	}
	event := MessagePostedEvent{
		MessageID:   m.ID,
		ClassID:     m.ClassID,
		Channel:     m.Channel,
		SenderEmail: m.SenderEmail,
	}
	// Delivery is best effort; the message is already committed.
	if err := s.producer.SendMessage(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish message event",
			"message_id", m.ID, "error", err)
	}
}
