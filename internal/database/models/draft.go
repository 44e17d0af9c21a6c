package models

import (
	"time"
)

// AssistantDraft tracks the currently live draft for a thread so a new draft
// action can delete the previous one before creating its replacement. At most
// one row per (account, thread), enforced by delete-before-create rather than
// a unique constraint: a race can leave a provider-side duplicate, which is
// an accepted limitation.
type AssistantDraft struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"account_id"`
	ThreadID  string    `gorm:"size:255;index;not null" json:"thread_id"`
	DraftID   string    `gorm:"size:255;not null" json:"draft_id"`
	CreatedAt time.Time `json:"created_at"`
}
