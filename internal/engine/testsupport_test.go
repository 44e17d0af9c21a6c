package engine

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupEngineDB(t *testing.T) (*gorm.DB, func()) {
	tmpFile, err := os.CreateTemp("", "engine_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.EmailAccount{},
		&models.Rule{},
		&models.Action{},
		&models.ExecutedRule{},
		&models.MatchReason{},
		&models.ExecutedAgentAction{},
		&models.ActionArtifact{},
		&models.AssistantDraft{},
		&models.TargetGroup{},
		&models.AllowedActionOption{},
		&models.ScheduledAction{},
		&models.ThreadTracker{},
		&models.ColdEmailSender{},
		&models.Log{},
	)
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

// createTestAccount creates a user with the given settings and one account
func createTestAccount(t *testing.T, db *gorm.DB, settings models.UserSettings) *models.EmailAccount {
	user := &models.User{Username: fmt.Sprintf("user-%d", time.Now().UnixNano()), PasswordHash: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	settings.UserID = user.ID
	if err := db.Create(&settings).Error; err != nil {
		t.Fatalf("Failed to create settings: %v", err)
	}
	account := &models.EmailAccount{
		UserID:   user.ID,
		Email:    "owner@example.com",
		Provider: "imap",
		Enabled:  true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return account
}

func defaultTestSettings() models.UserSettings {
	return models.UserSettings{
		AutomationEnabled: true,
		OutboundEnabled:   true,
		MaxSendsPerDay:    50,
	}
}

func testMessage() *provider.Message {
	return &provider.Message{
		ID:       "<msg-1@example.com>",
		ThreadID: "<thread-1@example.com>",
		From:     "sender@example.com",
		To:       []string{"owner@example.com"},
		Subject:  "Quarterly report",
		Snippet:  "Please find the numbers attached.",
		Date:     time.Now(),
	}
}

// fakeProvider records every call and can be told to fail specific operations
type fakeProvider struct {
	messages map[string]*provider.Message
	labels   map[string]string // name -> id
	folders  map[string]string // name -> id

	archived      []string
	markedRead    []string
	labeled       []provider.LabelRequest
	removedLabels map[string][]string // threadID -> label ids
	moved         []string
	draftsCreated []provider.DraftArgs
	draftsDeleted []string
	sentDrafts    []string
	sent          []provider.SendArgs

	draftSeq int

	failArchive error
	failDraft   error
	failSend    error
	failLabel   error
}

func newFakeProvider(msgs ...*provider.Message) *fakeProvider {
	f := &fakeProvider{
		messages:      make(map[string]*provider.Message),
		labels:        make(map[string]string),
		folders:       make(map[string]string),
		removedLabels: make(map[string][]string),
	}
	for _, m := range msgs {
		f.messages[m.ID] = m
	}
	return f
}

func (f *fakeProvider) GetMessage(id string) (*provider.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, provider.ErrMessageNotFound
	}
	return msg, nil
}

func (f *fakeProvider) ArchiveThread(threadID, ownerEmail string) error {
	if f.failArchive != nil {
		return f.failArchive
	}
	f.archived = append(f.archived, threadID)
	return nil
}

func (f *fakeProvider) MarkReadThread(threadID string, read bool) error {
	f.markedRead = append(f.markedRead, threadID)
	return nil
}

func (f *fakeProvider) LabelMessage(req provider.LabelRequest) error {
	if f.failLabel != nil {
		return f.failLabel
	}
	f.labeled = append(f.labeled, req)
	return nil
}

func (f *fakeProvider) GetLabelByName(name string) (*provider.Label, error) {
	id, ok := f.labels[name]
	if !ok {
		return nil, provider.ErrLabelNotFound
	}
	return &provider.Label{ID: id, Name: name}, nil
}

func (f *fakeProvider) RemoveThreadLabels(threadID string, labelIDs []string) error {
	f.removedLabels[threadID] = append(f.removedLabels[threadID], labelIDs...)
	return nil
}

func (f *fakeProvider) GetOrCreateFolderIDByName(name string) (string, error) {
	id, ok := f.folders[name]
	if !ok {
		id = "folder-" + name
		f.folders[name] = id
	}
	return id, nil
}

func (f *fakeProvider) MoveThreadToFolder(threadID, ownerEmail, folderID string) error {
	f.moved = append(f.moved, threadID+":"+folderID)
	return nil
}

func (f *fakeProvider) DraftEmail(msg *provider.Message, args provider.DraftArgs, ownerEmail string) (string, error) {
	if f.failDraft != nil {
		return "", f.failDraft
	}
	f.draftSeq++
	f.draftsCreated = append(f.draftsCreated, args)
	return fmt.Sprintf("<draft-%d@example.com>", f.draftSeq), nil
}

func (f *fakeProvider) DeleteDraft(draftID string) error {
	f.draftsDeleted = append(f.draftsDeleted, draftID)
	return nil
}

func (f *fakeProvider) SendDraft(draftID string) error {
	if f.failSend != nil {
		return f.failSend
	}
	f.sentDrafts = append(f.sentDrafts, draftID)
	return nil
}

func (f *fakeProvider) SendEmail(args provider.SendArgs) error {
	if f.failSend != nil {
		return f.failSend
	}
	f.sent = append(f.sent, args)
	return nil
}

// newTestExecutor wires an executor over the fake provider with real policy
// validation and settings application
func newTestExecutor(db *gorm.DB, p provider.EmailProvider, outboundEnabled bool) *Executor {
	return NewExecutor(db, p, NewPolicyValidator(db), services.NewSettingsApplierService(db), services.NewLogService(db), outboundEnabled)
}
