package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Nickname     string    `gorm:"size:100" json:"nickname"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	EmailAccounts []EmailAccount `gorm:"foreignKey:UserID" json:"email_accounts,omitempty"`
	Settings      *UserSettings  `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}

// UserSettings stores per-user automation policy. The action validator reads
// these; the engine never writes them except through the update_settings
// action's settings applier.
type UserSettings struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	// Outbound policy
	OutboundEnabled   bool   `gorm:"default:false" json:"outbound_enabled"`
	MaxSendsPerDay    int    `gorm:"default:50" json:"max_sends_per_day"`
	BlockedRecipients string `gorm:"type:text" json:"blocked_recipients"` // comma-separated addresses or @domains

	// Automation policy
	AutomationEnabled  bool `gorm:"default:true" json:"automation_enabled"`
	ColdEmailDetection bool `gorm:"default:true" json:"cold_email_detection"`
	DigestEnabled      bool `gorm:"default:false" json:"digest_enabled"`
}
