package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatType distinguishes one-to-one conversations from group chats.
type ChatType string

const (
	ChatTypeGroup      ChatType = "Group"
	ChatTypeIndividual ChatType = "Individual"
)

// ParticipantRole is the role of a member inside a chat.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "Admin"
	RoleMember ParticipantRole = "Member"
)

// Chat is a conversation whose room channel is chat:{ID}.
type Chat struct {
	ID             string   `gorm:"type:uuid;primaryKey"`
	Name           *string  `gorm:"size:20"`
	Description    *string  `gorm:"size:100"`
	Type           ChatType `gorm:"size:10;not null"`
	ProfilePicture *string
	IsDeleted      bool    `gorm:"not null;default:false"`
	CreatedByID    *string `gorm:"type:uuid"`
	Members        []ChatParticipant `gorm:"foreignKey:ChatID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeCreate assigns a UUID and the default chat type.
func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Type == "" {
		c.Type = ChatTypeIndividual
	}
	return
}

// ChatParticipant links a user to a chat. A member who left keeps the row
// with LeftAt set; such rows are not part of the chat's membership.
type ChatParticipant struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	ChatID    string          `gorm:"type:uuid;not null;index:idx_participant_chat_user"`
	UserID    string          `gorm:"type:uuid;not null;index:idx_participant_chat_user"`
	LeftAt    *time.Time      `gorm:"index"`
	Role      ParticipantRole `gorm:"size:10;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns a UUID and the default member role.
func (p *ChatParticipant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Role == "" {
		p.Role = RoleMember
	}
	return
}
