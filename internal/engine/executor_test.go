package engine

import (
	"errors"
	"testing"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteAction_ArchiveSuccess(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	executor := newTestExecutor(db, fake, false)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{Kind: KindArchive})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.RequiresApproval)
	assert.Equal(t, []string{msg.ThreadID}, fake.archived)

	var rec models.ExecutedAgentAction
	require.NoError(t, db.First(&rec, result.ActionID).Error)
	assert.Equal(t, models.ActionStatusSuccess, rec.Status)
	assert.Equal(t, TriggeredByEngine, rec.TriggeredBy)
}

func TestExecuteAction_ProviderFailureBecomesFailedRecord(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	fake.failArchive = errors.New("imap connection reset")
	executor := newTestExecutor(db, fake, false)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{Kind: KindArchive})
	require.NoError(t, err, "provider failures must not escape as errors")

	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "imap connection reset")

	var rec models.ExecutedAgentAction
	require.NoError(t, db.First(&rec, result.ActionID).Error)
	assert.Equal(t, models.ActionStatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "imap connection reset")
}

func TestExecuteAction_SendWaitsForApproval(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	executor := newTestExecutor(db, fake, true)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{
		Kind: KindSend,
		Send: &SendFields{To: "peer@example.com", Subject: "Hi", Content: "Hello"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.RequiresApproval)
	assert.NotZero(t, result.ApprovalID)
	assert.Empty(t, fake.sent, "no side effect before approval")

	var rec models.ExecutedAgentAction
	require.NoError(t, db.First(&rec, result.ActionID).Error)
	assert.Equal(t, models.ActionStatusPendingApproval, rec.Status)
}

func TestExecuteAction_BlockedByPolicy(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	settings := defaultTestSettings()
	settings.AutomationEnabled = false
	account := createTestAccount(t, db, settings)
	msg := testMessage()
	fake := newFakeProvider(msg)
	executor := newTestExecutor(db, fake, false)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{Kind: KindArchive})
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.False(t, result.Success)
	assert.Empty(t, fake.archived)

	var rec models.ExecutedAgentAction
	require.NoError(t, db.First(&rec, result.ActionID).Error)
	assert.Equal(t, models.ActionStatusBlocked, rec.Status)
	assert.NotEmpty(t, rec.Error)
}

func TestExecuteAction_BlockedRecipient(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	settings := defaultTestSettings()
	settings.BlockedRecipients = "rival@example.com,@spam.example"
	account := createTestAccount(t, db, settings)
	msg := testMessage()
	executor := newTestExecutor(db, newFakeProvider(msg), true)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{
		Kind: KindSend,
		Send: &SendFields{To: "rival@example.com", Subject: "Hi", Content: "Hello"},
	})
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Contains(t, result.Reason, "blocked by policy")
}

func TestExecuteAction_DryRunPersistsNothing(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	executor := newTestExecutor(db, fake, false)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		DryRun:    true,
	}, StructuredAction{Kind: KindArchive})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.ActionID)
	assert.Empty(t, fake.archived)

	var count int64
	db.Model(&models.ExecutedAgentAction{}).Count(&count)
	assert.Zero(t, count)
}

func TestRunPending_RejectsNonPendingRecord(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	executor := newTestExecutor(db, newFakeProvider(msg), false)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{Kind: KindMarkRead})
	require.NoError(t, err)
	require.True(t, result.Success)

	// The record is terminal now; resuming it must fail, not rerun it
	_, err = executor.RunPending(result.ActionID)
	assert.ErrorIs(t, err, ErrStaleTransition)
}

func TestRunPending_MissingRecord(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	executor := newTestExecutor(db, newFakeProvider(), false)
	_, err := executor.RunPending(12345)
	assert.ErrorIs(t, err, ErrActionNotFound)
}

func TestPerformDraft_ReplacesTrackedDraft(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	executor := newTestExecutor(db, fake, false)

	require.NoError(t, db.Create(&models.AssistantDraft{
		AccountID: account.ID,
		ThreadID:  msg.ThreadID,
		DraftID:   "<old-draft@example.com>",
	}).Error)

	result, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{
		Kind:  KindDraft,
		Draft: &DraftFields{Content: "Thanks, will review."},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, []string{"<old-draft@example.com>"}, fake.draftsDeleted)
	require.Len(t, fake.draftsCreated, 1)

	var drafts []models.AssistantDraft
	require.NoError(t, db.Where("account_id = ? AND thread_id = ?", account.ID, msg.ThreadID).Find(&drafts).Error)
	require.Len(t, drafts, 1, "exactly one live draft per thread")
	assert.NotEqual(t, "<old-draft@example.com>", drafts[0].DraftID)

	var artifact models.ActionArtifact
	require.NoError(t, db.Where("action_id = ?", result.ActionID).First(&artifact).Error)
	assert.Equal(t, "draft", artifact.Kind)
	assert.Equal(t, drafts[0].DraftID, artifact.ExternalID)
}

func TestPerformSend_OutboundGloballyDisabled(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	// User policy allows sending but the global gate is off
	executor := newTestExecutor(db, fake, false)

	staged, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{
		Kind: KindSend,
		Send: &SendFields{To: "peer@example.com", Subject: "Hi", Content: "Hello"},
	})
	require.NoError(t, err)
	require.True(t, staged.RequiresApproval)

	result, err := executor.Approve(staged.ApprovalID, account.UserID)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, ErrOutboundDisabled.Error())
	assert.Empty(t, fake.sent)

	var rec models.ExecutedAgentAction
	require.NoError(t, db.First(&rec, staged.ActionID).Error)
	assert.Equal(t, models.ActionStatusFailed, rec.Status)
}

func TestPerformSend_SendsTrackedDraftAndForgetsIt(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	msg := testMessage()
	fake := newFakeProvider(msg)
	executor := newTestExecutor(db, fake, true)

	require.NoError(t, db.Create(&models.AssistantDraft{
		AccountID: account.ID,
		ThreadID:  msg.ThreadID,
		DraftID:   "<draft-7@example.com>",
	}).Error)

	staged, err := executor.ExecuteAction(ExecutionContext{
		Account:   account,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}, StructuredAction{
		Kind: KindSend,
		Send: &SendFields{DraftID: "<draft-7@example.com>"},
	})
	require.NoError(t, err)
	require.True(t, staged.RequiresApproval)

	result, err := executor.Approve(staged.ApprovalID, account.UserID)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, []string{"<draft-7@example.com>"}, fake.sentDrafts)

	var count int64
	db.Model(&models.AssistantDraft{}).Where("account_id = ?", account.ID).Count(&count)
	assert.Zero(t, count, "sent draft is no longer tracked")
}
