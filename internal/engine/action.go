package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inbox-agent/core/internal/database/models"
)

var (
	// ErrUnsupportedActionType indicates a template type the engine cannot
	// execute against the provider (webhook and digest run elsewhere)
	ErrUnsupportedActionType = errors.New("action type is not executable by the rule engine")
	// ErrInvalidActionType indicates an action type outside the known set
	ErrInvalidActionType = errors.New("invalid action type")
)

// ActionKind is the normalized, execution-time variant of an action
type ActionKind string

const (
	KindArchive        ActionKind = "archive"
	KindMarkRead       ActionKind = "mark_read"
	KindClassify       ActionKind = "classify"
	KindMove           ActionKind = "move"
	KindDraft          ActionKind = "draft"
	KindSend           ActionKind = "send"
	KindUpdateSettings ActionKind = "update_settings"
)

// ClassifyFields holds the target of a classify action
type ClassifyFields struct {
	LabelID   string `json:"label_id,omitempty"`
	LabelName string `json:"label_name,omitempty"`
}

// MoveFields holds the target of a move action
type MoveFields struct {
	FolderID   string `json:"folder_id,omitempty"`
	FolderName string `json:"folder_name,omitempty"`
}

// DraftFields holds the resolved fields of a draft action
type DraftFields struct {
	To      string `json:"to,omitempty"`
	CC      string `json:"cc,omitempty"`
	BCC     string `json:"bcc,omitempty"`
	Subject string `json:"subject,omitempty"`
	Content string `json:"content,omitempty"`
}

// SendFields holds the resolved fields of a send action. When DraftID is set
// the existing draft is sent; otherwise To/Subject/Content are required.
type SendFields struct {
	DraftID string `json:"draft_id,omitempty"`
	To      string `json:"to,omitempty"`
	CC      string `json:"cc,omitempty"`
	BCC     string `json:"bcc,omitempty"`
	Subject string `json:"subject,omitempty"`
	Content string `json:"content,omitempty"`
}

// SettingsFields holds the payload of an update_settings action
type SettingsFields struct {
	Payload string `json:"payload,omitempty"`
}

// StructuredAction is a normalized, runtime instance of an action template.
// Exactly one variant pointer is non-nil, matching Kind; fields irrelevant to
// the active variant are absent.
type StructuredAction struct {
	Kind     ActionKind      `json:"kind"`
	Classify *ClassifyFields `json:"classify,omitempty"`
	Move     *MoveFields     `json:"move,omitempty"`
	Draft    *DraftFields    `json:"draft,omitempty"`
	Send     *SendFields     `json:"send,omitempty"`
	Settings *SettingsFields `json:"settings,omitempty"`
}

// RequiresApproval reports whether the action needs a human decision before
// it may run
func (a StructuredAction) RequiresApproval() bool {
	return a.Kind == KindSend || a.Kind == KindUpdateSettings
}

// MarshalPayload serializes the action for the durable execution record
func (a StructuredAction) MarshalPayload() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalPayload restores a StructuredAction from a persisted record
func UnmarshalPayload(payload string) (StructuredAction, error) {
	var a StructuredAction
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return StructuredAction{}, err
	}
	return a, nil
}

// Normalize canonicalizes a (fully resolved) action template into one of the
// closed set of execution-time variants.
func Normalize(action models.Action) (StructuredAction, error) {
	switch action.Type {
	case models.ActionTypeArchive:
		return StructuredAction{Kind: KindArchive}, nil

	case models.ActionTypeMarkRead:
		return StructuredAction{Kind: KindMarkRead}, nil

	case models.ActionTypeLabel:
		return StructuredAction{
			Kind:     KindClassify,
			Classify: &ClassifyFields{LabelName: action.Label},
		}, nil

	case models.ActionTypeMoveFolder:
		return StructuredAction{
			Kind: KindMove,
			Move: &MoveFields{FolderName: action.Folder},
		}, nil

	case models.ActionTypeMarkSpam:
		// Spam is a move to the provider's junk folder
		return StructuredAction{
			Kind: KindMove,
			Move: &MoveFields{FolderName: "Spam"},
		}, nil

	case models.ActionTypeDraft, models.ActionTypeReply:
		return StructuredAction{
			Kind: KindDraft,
			Draft: &DraftFields{
				To:      action.To,
				CC:      action.CC,
				BCC:     action.BCC,
				Subject: action.Subject,
				Content: action.Content,
			},
		}, nil

	case models.ActionTypeSend, models.ActionTypeForward, models.ActionTypeNotifySender:
		return StructuredAction{
			Kind: KindSend,
			Send: &SendFields{
				To:      action.To,
				CC:      action.CC,
				BCC:     action.BCC,
				Subject: action.Subject,
				Content: action.Content,
			},
		}, nil

	case models.ActionTypeUpdateSettings:
		return StructuredAction{
			Kind:     KindUpdateSettings,
			Settings: &SettingsFields{Payload: action.Content},
		}, nil

	case models.ActionTypeWebhook, models.ActionTypeDigest:
		return StructuredAction{}, ErrUnsupportedActionType

	default:
		return StructuredAction{}, fmt.Errorf("%w: %q", ErrInvalidActionType, action.Type)
	}
}
