package models

import (
	"time"
)

// EmailAccount represents an email account the engine acts on behalf of
type EmailAccount struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"index;not null" json:"user_id"`
	Email             string    `gorm:"size:255;not null" json:"email"`
	DisplayName       string    `gorm:"size:100" json:"display_name"`
	Provider          string    `gorm:"size:50;default:'imap'" json:"provider"`
	IMAPHost          string    `gorm:"size:255" json:"imap_host"`
	IMAPPort          int       `json:"imap_port"`
	SMTPHost          string    `gorm:"size:255" json:"smtp_host"`
	SMTPPort          int       `json:"smtp_port"`
	Username          string    `gorm:"size:255" json:"username"`
	PasswordEncrypted string    `gorm:"size:500" json:"-"`
	UseSSL            bool      `gorm:"default:true" json:"use_ssl"`
	Enabled           bool      `gorm:"default:true" json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relations
	Rules []Rule `gorm:"foreignKey:AccountID" json:"rules,omitempty"`
}
