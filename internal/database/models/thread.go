package models

import (
	"time"
)

// ThreadTracker holds the current conversation status for a thread. Updated
// whenever a conversation-status rule is applied to a message in the thread.
type ThreadTracker struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	AccountID uint       `gorm:"index;not null" json:"account_id"`
	ThreadID  string     `gorm:"size:255;index;not null" json:"thread_id"`
	Status    SystemType `gorm:"size:50;not null" json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// ColdEmailSender records a sender classified as a cold emailer, so later
// messages from the same address skip the matcher entirely.
type ColdEmailSender struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"account_id"`
	FromAddr  string    `gorm:"size:255;index;not null" json:"from_addr"`
	Reason    string    `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
