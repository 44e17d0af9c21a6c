package provider

import (
	"errors"
	"time"
)

var (
	// ErrMessageNotFound indicates the message does not exist at the provider
	ErrMessageNotFound = errors.New("message not found")
	// ErrLabelNotFound indicates no label exists with the requested name
	ErrLabelNotFound = errors.New("label not found")
	// ErrDraftNotFound indicates the draft does not exist at the provider
	ErrDraftNotFound = errors.New("draft not found")
)

// Message is a provider message as seen by the engine
type Message struct {
	ID       string
	ThreadID string
	From     string
	To       []string
	CC       []string
	Subject  string
	Snippet  string
	Date     time.Time
}

// Label is a provider label or category
type Label struct {
	ID   string
	Name string
}

// LabelRequest applies a label to a message. LabelID takes precedence over
// LabelName when both are set.
type LabelRequest struct {
	MessageID string
	LabelID   string
	LabelName string
}

// DraftArgs holds the fields of a draft to create
type DraftArgs struct {
	To      string
	CC      string
	BCC     string
	Subject string
	Content string
}

// SendArgs holds the fields of a fresh outbound message
type SendArgs struct {
	To          string
	CC          string
	BCC         string
	Subject     string
	MessageText string
}

// EmailProvider is the capability surface the engine consumes. Concrete
// bindings (IMAP/SMTP here, Gmail or Outlook elsewhere) implement it.
type EmailProvider interface {
	GetMessage(id string) (*Message, error)
	ArchiveThread(threadID, ownerEmail string) error
	MarkReadThread(threadID string, read bool) error
	LabelMessage(req LabelRequest) error
	GetLabelByName(name string) (*Label, error)
	RemoveThreadLabels(threadID string, labelIDs []string) error
	GetOrCreateFolderIDByName(name string) (string, error)
	MoveThreadToFolder(threadID, ownerEmail, folderID string) error
	DraftEmail(msg *Message, args DraftArgs, ownerEmail string) (string, error)
	DeleteDraft(draftID string) error
	SendDraft(draftID string) error
	SendEmail(args SendArgs) error
}
