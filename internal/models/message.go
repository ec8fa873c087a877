package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType is the kind of content a message carries.
type MessageType string

const (
	MessageText     MessageType = "Text"
	MessageImage    MessageType = "Image"
	MessageAudio    MessageType = "Audio"
	MessageVideo    MessageType = "Video"
	MessageDocument MessageType = "Document"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageAudio, MessageVideo, MessageDocument:
		return true
	}
	return false
}

// Message is a persisted chat message. Committing one triggers the fanout.
type Message struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	ChatID      string         `gorm:"type:uuid;not null;index:idx_message_chat_created"`
	SenderID    string         `gorm:"type:uuid;not null"`
	Sender      User           `gorm:"foreignKey:SenderID"`
	Text        *string        `gorm:"type:text"`
	Type        MessageType    `gorm:"size:10;not null"`
	ReplyToID   *string        `gorm:"type:uuid;index"`
	IsForwarded bool           `gorm:"not null;default:false"`
	IsDeleted   bool           `gorm:"not null;default:false"`
	Media       []MessageMedia `gorm:"foreignKey:MessageID"`
	CreatedAt   time.Time      `gorm:"index:idx_message_chat_created"`
	UpdatedAt   time.Time
}

// BeforeCreate assigns a UUID and defaults the type to Text.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	return
}

// MessageMedia is an uploaded file attached to a message. Upload storage is
// handled elsewhere; only the stored file reference lives here.
type MessageMedia struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	MessageID string      `gorm:"type:uuid;not null;index"`
	Type      MessageType `gorm:"size:10;not null"`
	File      string      `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *MessageMedia) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
