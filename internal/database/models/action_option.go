package models

import (
	"time"
)

// Cardinality describes how many options from a target group a thread may
// hold at once
type Cardinality string

const (
	// CardinalitySingle means a thread holds at most one option from the group
	CardinalitySingle Cardinality = "SINGLE"
	// CardinalityMulti means options from the group are independent
	CardinalityMulti Cardinality = "MULTI"
)

// TargetGroup groups label/folder options, optionally with SINGLE
// cardinality (e.g. a priority tier where applying one retracts the others)
type TargetGroup struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	AccountID   uint        `gorm:"index" json:"account_id"` // 0 = applies to every account
	Name        string      `gorm:"size:255;not null" json:"name"`
	Cardinality Cardinality `gorm:"size:20;default:'MULTI'" json:"cardinality"`
	CreatedAt   time.Time   `json:"created_at"`

	// Relations
	Options []AllowedActionOption `gorm:"foreignKey:TargetGroupID" json:"options,omitempty"`
}

// AllowedActionOption describes one selectable target (label or folder) for
// an action type. Read-only from the engine's perspective.
type AllowedActionOption struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AccountID     uint       `gorm:"index" json:"account_id"` // 0 = provider-agnostic row
	ActionType    ActionType `gorm:"size:50;index;not null" json:"action_type"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	ExternalID    string     `gorm:"size:255;index" json:"external_id,omitempty"` // provider label/folder id
	TargetGroupID uint       `gorm:"index" json:"target_group_id"`
	CreatedAt     time.Time  `json:"created_at"`
}
