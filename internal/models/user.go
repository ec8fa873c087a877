package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the account owning connections, presence markers and messages.
// Only the fields needed to render sender info are mapped here.
type User struct {
	ID             string  `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string  `gorm:"size:20" json:"name"`
	Description    *string `gorm:"size:225" json:"description,omitempty"`
	ProfilePicture *string `json:"profile_picture"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeCreate is a GORM hook that assigns a UUID if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
