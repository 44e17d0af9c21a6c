package engine

import (
	"errors"
	"fmt"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
)

// perform dispatches one structured action to the provider and returns the
// artifacts it produced. Unknown kinds are a contract violation and panic;
// every runtime failure comes back as an error for the caller to persist.
func (e *Executor) perform(ctx ExecutionContext, action StructuredAction) ([]models.ActionArtifact, error) {
	switch action.Kind {
	case KindArchive:
		threadID, err := e.resolveThreadID(ctx)
		if err != nil {
			return nil, err
		}
		return nil, e.provider.ArchiveThread(threadID, ctx.Account.Email)

	case KindMarkRead:
		threadID, err := e.resolveThreadID(ctx)
		if err != nil {
			return nil, err
		}
		return nil, e.provider.MarkReadThread(threadID, true)

	case KindClassify:
		return nil, e.performClassify(ctx, action.Classify)

	case KindMove:
		return nil, e.performMove(ctx, action.Move)

	case KindDraft:
		return e.performDraft(ctx, action.Draft)

	case KindSend:
		return e.performSend(ctx, action.Send)

	case KindUpdateSettings:
		return nil, e.settings.Apply(ctx.Account.ID, action.Settings.Payload)

	default:
		panic(fmt.Sprintf("engine: unknown action kind %q", action.Kind))
	}
}

// resolveThreadID returns the thread the action targets, fetching the
// message when only its id is known
func (e *Executor) resolveThreadID(ctx ExecutionContext) (string, error) {
	if ctx.ThreadID != "" {
		return ctx.ThreadID, nil
	}
	msg, err := e.provider.GetMessage(ctx.MessageID)
	if err != nil {
		return "", fmt.Errorf("resolve thread for message %s: %w", ctx.MessageID, err)
	}
	return msg.ThreadID, nil
}

// performClassify applies a label and then retracts conflicting labels from
// the same SINGLE-cardinality group
func (e *Executor) performClassify(ctx ExecutionContext, fields *ClassifyFields) error {
	labelID := fields.LabelID
	labelName := fields.LabelName
	if labelID == "" {
		if labelName == "" {
			return errors.New("classify action needs a label id or name")
		}
		label, err := e.provider.GetLabelByName(labelName)
		if err != nil {
			return fmt.Errorf("resolve label %q: %w", labelName, err)
		}
		labelID = label.ID
	}

	if err := e.provider.LabelMessage(provider.LabelRequest{
		MessageID: ctx.MessageID,
		LabelID:   labelID,
		LabelName: labelName,
	}); err != nil {
		return err
	}

	threadID, err := e.resolveThreadID(ctx)
	if err != nil {
		return err
	}
	return e.cardinality.Enforce(ctx.Account, labelID, labelName, threadID)
}

// performMove moves the thread to a folder, resolving the folder by id, then
// by name via provider lookup or creation
func (e *Executor) performMove(ctx ExecutionContext, fields *MoveFields) error {
	threadID, err := e.resolveThreadID(ctx)
	if err != nil {
		return err
	}

	folderID := fields.FolderID
	if folderID == "" {
		if fields.FolderName == "" {
			return errors.New("move action needs a folder id or name")
		}
		folderID, err = e.provider.GetOrCreateFolderIDByName(fields.FolderName)
		if err != nil {
			return fmt.Errorf("resolve folder %q: %w", fields.FolderName, err)
		}
	}
	return e.provider.MoveThreadToFolder(threadID, ctx.Account.Email, folderID)
}

// performDraft deletes every tracked draft for the thread, then creates the
// replacement and records it as the thread's live draft. Provider-side draft
// deletion is best effort: a failure is logged with its ids and never blocks
// the new draft.
func (e *Executor) performDraft(ctx ExecutionContext, fields *DraftFields) ([]models.ActionArtifact, error) {
	msg, err := e.provider.GetMessage(ctx.MessageID)
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", ctx.MessageID, err)
	}
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = ctx.ThreadID
	}

	var tracked []models.AssistantDraft
	if err := e.db.Where("account_id = ? AND thread_id = ?", ctx.Account.ID, threadID).Find(&tracked).Error; err != nil {
		return nil, err
	}
	for _, stale := range tracked {
		if err := e.provider.DeleteDraft(stale.DraftID); err != nil {
			_ = e.logs.LogWarn(ctx.Account.UserID, models.LogModuleExecutor, "delete_draft", "Failed to delete stale draft", services.ActionEventDetails{
				Kind:     string(KindDraft),
				ThreadID: threadID,
				Error:    err.Error(),
			})
		}
		if err := e.db.Delete(&models.AssistantDraft{}, stale.ID).Error; err != nil {
			return nil, err
		}
	}

	draftID, err := e.provider.DraftEmail(msg, provider.DraftArgs{
		To:      fields.To,
		CC:      fields.CC,
		BCC:     fields.BCC,
		Subject: fields.Subject,
		Content: fields.Content,
	}, ctx.Account.Email)
	if err != nil {
		return nil, err
	}

	if err := e.db.Create(&models.AssistantDraft{
		AccountID: ctx.Account.ID,
		ThreadID:  threadID,
		DraftID:   draftID,
	}).Error; err != nil {
		return nil, err
	}

	return []models.ActionArtifact{{Kind: "draft", ExternalID: draftID}}, nil
}

// performSend sends an existing draft or a fresh message. Outbound sending
// must be globally enabled before any provider call.
func (e *Executor) performSend(ctx ExecutionContext, fields *SendFields) ([]models.ActionArtifact, error) {
	if !e.outboundEnabled {
		return nil, ErrOutboundDisabled
	}

	if fields.DraftID != "" {
		if err := e.provider.SendDraft(fields.DraftID); err != nil {
			return nil, err
		}
		if err := e.db.Where("account_id = ? AND draft_id = ?", ctx.Account.ID, fields.DraftID).
			Delete(&models.AssistantDraft{}).Error; err != nil {
			return nil, err
		}
		return []models.ActionArtifact{{Kind: "sent_message", ExternalID: fields.DraftID}}, nil
	}

	if fields.To == "" || fields.Subject == "" || fields.Content == "" {
		return nil, errors.New("send action needs recipient, subject and content")
	}
	if err := e.provider.SendEmail(provider.SendArgs{
		To:          fields.To,
		CC:          fields.CC,
		BCC:         fields.BCC,
		Subject:     fields.Subject,
		MessageText: fields.Content,
	}); err != nil {
		return nil, err
	}
	return []models.ActionArtifact{{Kind: "sent_message"}}, nil
}
