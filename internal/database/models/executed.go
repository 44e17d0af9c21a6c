package models

import (
	"time"
)

// ExecutedRuleStatus is the lifecycle status of an ExecutedRule record
type ExecutedRuleStatus string

const (
	ExecutedRuleStatusPending  ExecutedRuleStatus = "PENDING"
	ExecutedRuleStatusApplying ExecutedRuleStatus = "APPLYING"
	ExecutedRuleStatusApplied  ExecutedRuleStatus = "APPLIED"
	ExecutedRuleStatusError    ExecutedRuleStatus = "ERROR"
)

// IsValid checks if the status is a known ExecutedRule status
func (s ExecutedRuleStatus) IsValid() bool {
	switch s {
	case ExecutedRuleStatusPending, ExecutedRuleStatusApplying,
		ExecutedRuleStatusApplied, ExecutedRuleStatusError:
		return true
	}
	return false
}

// ExecutedRule is the parent record for one rule applied to one message
type ExecutedRule struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	AccountID uint               `gorm:"index;not null" json:"account_id"`
	RuleID    uint               `gorm:"index" json:"rule_id"`
	MessageID string             `gorm:"size:255;index;not null" json:"message_id"`
	ThreadID  string             `gorm:"size:255;index" json:"thread_id"`
	Status    ExecutedRuleStatus `gorm:"size:20;index;not null" json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`

	// Relations
	Reasons []MatchReason        `gorm:"foreignKey:ExecutedRuleID" json:"reasons,omitempty"`
	Actions []ExecutedAgentAction `gorm:"foreignKey:ExecutedRuleID" json:"actions,omitempty"`
}

// MatchReasonType tags why a rule matched
type MatchReasonType string

const (
	MatchReasonStatic     MatchReasonType = "static"
	MatchReasonAI         MatchReasonType = "ai"
	MatchReasonLearned    MatchReasonType = "learned_pattern"
	MatchReasonContinuity MatchReasonType = "conversation_continuity"
)

// MatchReason records why a rule matched a message. Carried for audit only;
// it never changes execution semantics.
type MatchReason struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ExecutedRuleID uint            `gorm:"index;not null" json:"executed_rule_id"`
	Type           MatchReasonType `gorm:"size:50;not null" json:"type"`
	Explanation    string          `gorm:"type:text" json:"explanation,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ActionStatus is the state machine status of an ExecutedAgentAction
type ActionStatus string

const (
	// ActionStatusBlocked means the validator rejected the action (terminal)
	ActionStatusBlocked ActionStatus = "BLOCKED"
	// ActionStatusPendingApproval means a human decision is required
	ActionStatusPendingApproval ActionStatus = "PENDING_APPROVAL"
	// ActionStatusPending means the action is approved or never required
	// approval and is about to run; delayed actions stay here until due
	ActionStatusPending ActionStatus = "PENDING"
	// ActionStatusSuccess means the side effect was performed (terminal)
	ActionStatusSuccess ActionStatus = "SUCCESS"
	// ActionStatusFailed means the side effect raised an error (terminal)
	ActionStatusFailed ActionStatus = "FAILED"
	// ActionStatusCancelled means the action was denied or superseded (terminal)
	ActionStatusCancelled ActionStatus = "CANCELLED"
)

// IsValid checks if the status is a known action status
func (s ActionStatus) IsValid() bool {
	switch s {
	case ActionStatusBlocked, ActionStatusPendingApproval, ActionStatusPending,
		ActionStatusSuccess, ActionStatusFailed, ActionStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case ActionStatusBlocked, ActionStatusSuccess, ActionStatusFailed, ActionStatusCancelled:
		return true
	}
	return false
}

// ExecutedAgentAction is the durable record of one action attempt. Rows are
// created once, mutated only by the executor and the approval workflow
// through status-conditioned updates, and never deleted.
type ExecutedAgentAction struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	AccountID      uint         `gorm:"index;not null" json:"account_id"`
	ExecutedRuleID uint         `gorm:"index" json:"executed_rule_id"`
	Type           string       `gorm:"size:50;not null" json:"type"`
	Payload        string       `gorm:"type:text" json:"payload"` // normalized action JSON for replay/audit
	MessageID      string       `gorm:"size:255;index" json:"message_id"`
	ThreadID       string       `gorm:"size:255;index" json:"thread_id"`
	Status         ActionStatus `gorm:"size:20;index;not null" json:"status"`
	Error          string       `gorm:"type:text" json:"error,omitempty"`
	TriggeredBy    string       `gorm:"size:100" json:"triggered_by"` // e.g. rule-engine, user:<id>:approved
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Relations
	Account   *EmailAccount    `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Artifacts []ActionArtifact `gorm:"foreignKey:ActionID" json:"artifacts,omitempty"`
}

// ActionArtifact records a side effect produced by a successful action,
// for example the id of a created draft. Created only on success; immutable.
type ActionArtifact struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActionID   uint      `gorm:"index;not null" json:"action_id"`
	Kind       string    `gorm:"size:50;not null" json:"kind"` // draft, sent_message
	ExternalID string    `gorm:"size:255" json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}
