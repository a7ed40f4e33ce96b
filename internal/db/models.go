package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APICall is the stored form of a telemetry CallEvent. Rows are append-only.
type APICall struct {
	ID string `gorm:"primaryKey;size:36"`

	Endpoint  string    `gorm:"size:255;not null;index"`
	Method    string    `gorm:"size:10;not null"`
	Timestamp time.Time `gorm:"not null;index"`

	UserAgent *string `gorm:"type:text"`
	IPAddress *string `gorm:"size:45"`
}

func (APICall) TableName() string { return "api_calls" }

// User is an application user managed through /api/users. Email is unique.
type User struct {
	ID string `gorm:"primaryKey;size:36"`

	Name  string `gorm:"size:100;not null"`
	Email string `gorm:"size:120;not null;uniqueIndex"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
