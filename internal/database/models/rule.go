package models

import (
	"time"
)

// LogicalOperator combines a rule's static conditions
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// SystemType tags rules that implement built-in behaviours
type SystemType string

const (
	// SystemTypeColdEmail marks the cold email handling rule
	SystemTypeColdEmail SystemType = "cold_email"
	// SystemTypeToReply marks threads that need a reply from the user
	SystemTypeToReply SystemType = "to_reply"
	// SystemTypeAwaitingReply marks threads waiting on the other party
	SystemTypeAwaitingReply SystemType = "awaiting_reply"
	// SystemTypeFYI marks informational threads
	SystemTypeFYI SystemType = "fyi"
	// SystemTypeActioned marks threads that have been dealt with
	SystemTypeActioned SystemType = "actioned"
	// SystemTypeConversationTracker is the synthetic meta-rule injected so the
	// matcher can select "this is a tracked conversation" without picking the
	// concrete state up front. It is never persisted.
	SystemTypeConversationTracker SystemType = "conversation_tracker"
)

// IsConversationStatus reports whether the system type is one of the
// thread-level conversation classifications.
func (t SystemType) IsConversationStatus() bool {
	switch t {
	case SystemTypeToReply, SystemTypeAwaitingReply, SystemTypeFYI, SystemTypeActioned:
		return true
	}
	return false
}

// Rule represents a user-defined automation rule
type Rule struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	AccountID    uint            `gorm:"index;not null" json:"account_id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Instructions string          `gorm:"type:text" json:"instructions"` // free-text condition for the AI matcher
	FromPattern  string          `gorm:"size:500" json:"from_pattern"`
	ToPattern    string          `gorm:"size:500" json:"to_pattern"`
	SubjectPart  string          `gorm:"size:500" json:"subject_part"`
	BodyPart     string          `gorm:"type:text" json:"body_part"`
	Operator     LogicalOperator `gorm:"size:10;default:'AND'" json:"operator"`
	SystemType   SystemType      `gorm:"size:50;index" json:"system_type,omitempty"`
	Enabled      bool            `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Relations
	Actions []Action `gorm:"foreignKey:RuleID" json:"actions,omitempty"`
}

// ActionType is the template-level action type authored on a rule
type ActionType string

const (
	ActionTypeArchive        ActionType = "archive"
	ActionTypeLabel          ActionType = "label"
	ActionTypeDraft          ActionType = "draft"
	ActionTypeForward        ActionType = "forward"
	ActionTypeReply          ActionType = "reply"
	ActionTypeSend           ActionType = "send"
	ActionTypeMarkRead       ActionType = "mark_read"
	ActionTypeMarkSpam       ActionType = "mark_spam"
	ActionTypeWebhook        ActionType = "webhook"
	ActionTypeDigest         ActionType = "digest"
	ActionTypeMoveFolder     ActionType = "move_folder"
	ActionTypeNotifySender   ActionType = "notify_sender"
	ActionTypeUpdateSettings ActionType = "update_settings"
)

// IsValid checks if the action type is one of the known template types
func (t ActionType) IsValid() bool {
	switch t {
	case ActionTypeArchive, ActionTypeLabel, ActionTypeDraft, ActionTypeForward,
		ActionTypeReply, ActionTypeSend, ActionTypeMarkRead, ActionTypeMarkSpam,
		ActionTypeWebhook, ActionTypeDigest, ActionTypeMoveFolder,
		ActionTypeNotifySender, ActionTypeUpdateSettings:
		return true
	}
	return false
}

// ProducesDraft reports whether the action type schedules a reply draft
func (t ActionType) ProducesDraft() bool {
	return t == ActionTypeDraft || t == ActionTypeReply
}

// Action is an action template belonging to a rule. Empty fields are filled
// in at run time by the argument generator.
type Action struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RuleID       uint       `gorm:"index;not null" json:"rule_id"`
	Type         ActionType `gorm:"size:50;not null" json:"type"`
	Label        string     `gorm:"size:255" json:"label,omitempty"`
	Folder       string     `gorm:"size:255" json:"folder,omitempty"`
	To           string     `gorm:"size:500" json:"to,omitempty"`
	CC           string     `gorm:"size:500" json:"cc,omitempty"`
	BCC          string     `gorm:"size:500" json:"bcc,omitempty"`
	Subject      string     `gorm:"size:500" json:"subject,omitempty"`
	Content      string     `gorm:"type:text" json:"content,omitempty"`
	URL          string     `gorm:"size:500" json:"url,omitempty"`
	DelayMinutes int        `gorm:"default:0" json:"delay_minutes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Delayed reports whether the action is routed to deferred execution
func (a Action) Delayed() bool {
	return a.DelayMinutes > 0
}
