package engine

import (
	"errors"
	"fmt"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// Approve transitions a PENDING_APPROVAL record to PENDING and performs the
// approved action. The transition is a compare-and-swap restricted to rows
// still pending approval: when two callers race, exactly one wins the claim
// and performs the side effect; the loser gets ErrNotPendingApproval.
func (e *Executor) Approve(actionID, userID uint) (*ExecuteResult, error) {
	rec, err := e.loadForDecision(actionID, userID)
	if err != nil {
		return nil, err
	}

	triggeredBy := fmt.Sprintf("user:%d:approved", userID)
	result := e.db.Model(&models.ExecutedAgentAction{}).
		Where("id = ? AND status = ?", actionID, models.ActionStatusPendingApproval).
		Updates(map[string]interface{}{
			"status":       models.ActionStatusPending,
			"triggered_by": triggeredBy,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Another caller approved or denied first
		return nil, ErrNotPendingApproval
	}

	rec.Status = models.ActionStatusPending
	rec.TriggeredBy = triggeredBy

	action, err := UnmarshalPayload(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal action payload: %w", err)
	}

	_ = e.logs.LogInfo(userID, models.LogModuleApproval, "approve", "Pending action approved", services.ActionEventDetails{
		ActionID:  rec.ID,
		Kind:      rec.Type,
		MessageID: rec.MessageID,
		ThreadID:  rec.ThreadID,
	})

	return e.resumePending(rec, action)
}

// Deny transitions a PENDING_APPROVAL record to CANCELLED. No action is ever
// performed; the same claim pattern as Approve guards against races.
func (e *Executor) Deny(actionID, userID uint) error {
	_, err := e.loadForDecision(actionID, userID)
	if err != nil {
		return err
	}

	result := e.db.Model(&models.ExecutedAgentAction{}).
		Where("id = ? AND status = ?", actionID, models.ActionStatusPendingApproval).
		Updates(map[string]interface{}{
			"status":       models.ActionStatusCancelled,
			"triggered_by": fmt.Sprintf("user:%d:denied", userID),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotPendingApproval
	}

	_ = e.logs.LogInfo(userID, models.LogModuleApproval, "deny", "Pending action denied", services.ActionEventDetails{
		ActionID: actionID,
	})
	return nil
}

// loadForDecision loads the record with its owning account and runs the
// ownership and state pre-checks. The status check here only fails fast;
// the conditional update is what closes the check-then-act gap.
func (e *Executor) loadForDecision(actionID, userID uint) (*models.ExecutedAgentAction, error) {
	var rec models.ExecutedAgentAction
	if err := e.db.Preload("Account").First(&rec, actionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	if rec.Account == nil || rec.Account.UserID != userID {
		return nil, ErrNotActionOwner
	}
	if rec.Status != models.ActionStatusPendingApproval {
		return nil, ErrNotPendingApproval
	}
	return &rec, nil
}

// ListPendingApprovals returns the actions awaiting a decision from the user
func (e *Executor) ListPendingApprovals(userID uint) ([]models.ExecutedAgentAction, error) {
	var actions []models.ExecutedAgentAction
	err := e.db.
		Joins("JOIN email_accounts ON email_accounts.id = executed_agent_actions.account_id").
		Where("email_accounts.user_id = ? AND executed_agent_actions.status = ?", userID, models.ActionStatusPendingApproval).
		Order("executed_agent_actions.created_at ASC").
		Find(&actions).Error
	return actions, err
}
