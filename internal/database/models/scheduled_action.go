package models

import (
	"time"
)

// ScheduledActionStatus is the lifecycle status of a delayed action row
type ScheduledActionStatus string

const (
	ScheduledStatusScheduled ScheduledActionStatus = "scheduled"
	ScheduledStatusRunning   ScheduledActionStatus = "running"
	ScheduledStatusCompleted ScheduledActionStatus = "completed"
	ScheduledStatusCancelled ScheduledActionStatus = "cancelled"
	ScheduledStatusFailed    ScheduledActionStatus = "failed"
)

// IsValid checks if the status is a known scheduled action status
func (s ScheduledActionStatus) IsValid() bool {
	switch s {
	case ScheduledStatusScheduled, ScheduledStatusRunning, ScheduledStatusCompleted,
		ScheduledStatusCancelled, ScheduledStatusFailed:
		return true
	}
	return false
}

// ScheduledAction is a durable delayed action awaiting its run time.
// Claiming a due row and cancelling a scheduled row both go through
// status-conditioned updates, the same primitive the approval workflow uses.
type ScheduledAction struct {
	ID             uint                  `gorm:"primaryKey" json:"id"`
	ExternalID     string                `gorm:"size:36;uniqueIndex" json:"external_id"` // uuid, for audit correlation
	AccountID      uint                  `gorm:"index;not null" json:"account_id"`
	ExecutedRuleID uint                  `gorm:"index;not null" json:"executed_rule_id"`
	RuleID         uint                  `gorm:"index;not null" json:"rule_id"`
	ActionID       uint                  `gorm:"index;not null" json:"action_id"` // the staged ExecutedAgentAction
	MessageID      string                `gorm:"size:255;index;not null" json:"message_id"`
	ThreadID       string                `gorm:"size:255;index" json:"thread_id"`
	RunAt          time.Time             `gorm:"index;not null" json:"run_at"`
	Status         ScheduledActionStatus `gorm:"size:20;index;not null" json:"status"`
	CancelReason   string                `gorm:"size:255" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}
