package chat

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

const DefaultChannel = "general"

type Message struct {
	bun.BaseModel `bun:"table:messages"`

	ID              int       `bun:"id,pk,autoincrement"`
	ClassID         int       `bun:"class_id,notnull"`
	Channel         string    `bun:"channel,notnull,default:'general'"`
	SenderEmail     string    `bun:"sender_email,notnull"`
	SenderName      string    `bun:"sender_name,notnull"`
	Content         string    `bun:"content,notnull,default:''"`
	AttachmentsJSON string    `bun:"attachments_json,notnull,default:'[]'"`
	Timestamp       time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}

// Attachment describes one uploaded blob referenced by a message.
// The list is serialized into attachments_json at creation and is
// immutable afterwards; it must round-trip exactly.
type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type PostMessageRequest struct {
	Channel     string       `json:"channel"`
	SenderEmail string       `json:"sender_email" validate:"required,email"`
	SenderName  string       `json:"sender_name" validate:"required"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

type MessageOut struct {
	ID          int          `json:"id"`
	ClassID     int          `json:"class_id"`
	Channel     string       `json:"channel"`
	SenderEmail string       `json:"sender_email"`
	SenderName  string       `json:"sender_name"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments"`
}

func (m *Message) out() *MessageOut {
	var attachments []Attachment
	if err := json.Unmarshal([]byte(m.AttachmentsJSON), &attachments); err != nil {
		attachments = nil
	}
	if attachments == nil {
		attachments = []Attachment{}
	}
	return &MessageOut{
		ID:          m.ID,
		ClassID:     m.ClassID,
		Channel:     m.Channel,
		SenderEmail: m.SenderEmail,
		SenderName:  m.SenderName,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		Attachments: attachments,
	}
}

// MessagePostedEvent is published to NATS after a message is stored.
type MessagePostedEvent struct {
	MessageID   int    `json:"message_id"`
	ClassID     int    `json:"class_id"`
	Channel     string `json:"channel"`
	SenderEmail string `json:"sender_email"`
}
