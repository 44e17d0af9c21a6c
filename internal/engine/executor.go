package engine

import (
	"errors"
	"fmt"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

var (
	// ErrActionNotFound indicates the executed action record does not exist
	ErrActionNotFound = errors.New("executed action not found")
	// ErrNotActionOwner indicates the caller does not own the action's account
	ErrNotActionOwner = errors.New("user does not own this action")
	// ErrNotPendingApproval indicates the record is not awaiting approval;
	// also returned when another caller won the approval race
	ErrNotPendingApproval = errors.New("action is not pending approval")
	// ErrStaleTransition indicates a status-conditioned update matched no row
	ErrStaleTransition = errors.New("action status changed concurrently")
	// ErrOutboundDisabled indicates sending is globally disabled
	ErrOutboundDisabled = errors.New("outbound sending is disabled")
)

// TriggeredByEngine is the provenance tag for actions created by rule runs
const TriggeredByEngine = "rule-engine"

// ExecutionContext carries the resources one action attempt acts on
type ExecutionContext struct {
	Account        *models.EmailAccount
	ExecutedRuleID uint
	MessageID      string
	ThreadID       string
	TriggeredBy    string
	DryRun         bool
}

// ExecuteResult is the structured outcome of one action attempt. The
// executor never lets provider errors escape; they end up in Reason and in
// the durable record's error column.
type ExecuteResult struct {
	Success          bool             `json:"success"`
	RequiresApproval bool             `json:"requires_approval,omitempty"`
	ApprovalID       uint             `json:"approval_id,omitempty"`
	ActionID         uint             `json:"action_id,omitempty"`
	Blocked          bool             `json:"blocked,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	Validation       ValidationResult `json:"validation"`
}

// Executor drives one structured action through validation, approval gating,
// side-effect performance and persistence.
type Executor struct {
	db              *gorm.DB
	provider        provider.EmailProvider
	validator       ActionValidator
	cardinality     *CardinalityEnforcer
	settings        SettingsApplier
	logs            *services.LogService
	outboundEnabled bool
}

// NewExecutor creates a new Executor instance
func NewExecutor(db *gorm.DB, p provider.EmailProvider, validator ActionValidator, settings SettingsApplier, logs *services.LogService, outboundEnabled bool) *Executor {
	return &Executor{
		db:              db,
		provider:        p,
		validator:       validator,
		cardinality:     NewCardinalityEnforcer(db, p, logs),
		settings:        settings,
		logs:            logs,
		outboundEnabled: outboundEnabled,
	}
}

// ExecuteAction runs one action immediately: validate, gate on approval,
// perform, persist. Provider failures are converted into a FAILED record and
// a structured result, never returned as an error.
func (e *Executor) ExecuteAction(ctx ExecutionContext, action StructuredAction) (*ExecuteResult, error) {
	rec, result, err := e.stage(ctx, action)
	if err != nil || rec == nil || !result.Success || result.RequiresApproval {
		return result, err
	}
	return e.resumePending(rec, action)
}

// StageAction validates and persists the action without performing it.
// Delayed actions are staged now and resumed by the scheduler at their run
// time; the record waits in PENDING (or PENDING_APPROVAL).
func (e *Executor) StageAction(ctx ExecutionContext, action StructuredAction) (*ExecuteResult, error) {
	_, result, err := e.stage(ctx, action)
	return result, err
}

// stage runs validation and creates the durable record in its initial
// status. Under dry run nothing is persisted.
func (e *Executor) stage(ctx ExecutionContext, action StructuredAction) (*models.ExecutedAgentAction, *ExecuteResult, error) {
	validation := e.validator.Validate(action, ActionContext{
		AccountID: ctx.Account.ID,
		Provider:  ctx.Account.Provider,
		MessageID: ctx.MessageID,
		ThreadID:  ctx.ThreadID,
		DryRun:    ctx.DryRun,
	})

	if ctx.DryRun {
		return nil, &ExecuteResult{
			Success:    validation.Allowed,
			Blocked:    !validation.Allowed,
			Reason:     validation.Reason,
			Validation: validation,
		}, nil
	}

	payload, err := action.MarshalPayload()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal action payload: %w", err)
	}

	triggeredBy := ctx.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = TriggeredByEngine
	}

	rec := &models.ExecutedAgentAction{
		AccountID:      ctx.Account.ID,
		ExecutedRuleID: ctx.ExecutedRuleID,
		Type:           string(action.Kind),
		Payload:        payload,
		MessageID:      ctx.MessageID,
		ThreadID:       ctx.ThreadID,
		TriggeredBy:    triggeredBy,
	}

	if !validation.Allowed {
		rec.Status = models.ActionStatusBlocked
		rec.Error = validation.Reason
		if err := e.db.Create(rec).Error; err != nil {
			return nil, nil, err
		}
		e.logBlocked(ctx, rec, validation.Reason)
		return rec, &ExecuteResult{
			Blocked:    true,
			Reason:     validation.Reason,
			ActionID:   rec.ID,
			Validation: validation,
		}, nil
	}

	if action.RequiresApproval() {
		rec.Status = models.ActionStatusPendingApproval
		if err := e.db.Create(rec).Error; err != nil {
			return nil, nil, err
		}
		return rec, &ExecuteResult{
			Success:          true,
			RequiresApproval: true,
			ApprovalID:       rec.ID,
			ActionID:         rec.ID,
			Validation:       validation,
		}, nil
	}

	rec.Status = models.ActionStatusPending
	if err := e.db.Create(rec).Error; err != nil {
		return nil, nil, err
	}
	return rec, &ExecuteResult{
		Success:    true,
		ActionID:   rec.ID,
		Validation: validation,
	}, nil
}

// RunPending resumes a staged PENDING action (scheduler path). Records in
// any other status are left untouched.
func (e *Executor) RunPending(actionID uint) (*ExecuteResult, error) {
	var rec models.ExecutedAgentAction
	if err := e.db.Preload("Account").First(&rec, actionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	if rec.Status != models.ActionStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrStaleTransition, rec.Status)
	}
	action, err := UnmarshalPayload(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal action payload: %w", err)
	}
	return e.resumePending(&rec, action)
}

// resumePending performs the side effect for a record in PENDING and
// finalizes it to SUCCESS or FAILED through a status-conditioned update.
func (e *Executor) resumePending(rec *models.ExecutedAgentAction, action StructuredAction) (*ExecuteResult, error) {
	ctx := ExecutionContext{
		Account:        rec.Account,
		ExecutedRuleID: rec.ExecutedRuleID,
		MessageID:      rec.MessageID,
		ThreadID:       rec.ThreadID,
		TriggeredBy:    rec.TriggeredBy,
	}
	if ctx.Account == nil {
		var account models.EmailAccount
		if err := e.db.First(&account, rec.AccountID).Error; err != nil {
			return nil, err
		}
		ctx.Account = &account
	}

	artifacts, performErr := e.perform(ctx, action)
	if performErr != nil {
		if err := e.transition(rec.ID, models.ActionStatusPending, models.ActionStatusFailed, performErr.Error()); err != nil {
			return nil, err
		}
		e.logFailed(ctx, rec, performErr)
		return &ExecuteResult{
			Success:  false,
			ActionID: rec.ID,
			Reason:   performErr.Error(),
		}, nil
	}

	if err := e.transition(rec.ID, models.ActionStatusPending, models.ActionStatusSuccess, ""); err != nil {
		return nil, err
	}
	for i := range artifacts {
		artifacts[i].ActionID = rec.ID
		if err := e.db.Create(&artifacts[i]).Error; err != nil {
			return nil, err
		}
	}
	_ = e.logs.LogInfo(ctx.Account.UserID, models.LogModuleExecutor, "applied", "Action applied", services.ActionEventDetails{
		ActionID:  rec.ID,
		Kind:      string(action.Kind),
		MessageID: rec.MessageID,
		ThreadID:  rec.ThreadID,
		Status:    string(models.ActionStatusSuccess),
	})
	return &ExecuteResult{Success: true, ActionID: rec.ID}, nil
}

// transition performs a compare-and-swap status update. It matches the row
// only in the expected current status, so terminal states can never change
// and concurrent callers cannot double-transition a record.
func (e *Executor) transition(actionID uint, from, to models.ActionStatus, errMsg string) error {
	updates := map[string]interface{}{"status": to}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	result := e.db.Model(&models.ExecutedAgentAction{}).
		Where("id = ? AND status = ?", actionID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (e *Executor) logBlocked(ctx ExecutionContext, rec *models.ExecutedAgentAction, reason string) {
	_ = e.logs.LogWarn(ctx.Account.UserID, models.LogModuleExecutor, "blocked", "Action blocked by policy", services.ActionEventDetails{
		ActionID:  rec.ID,
		Kind:      rec.Type,
		MessageID: rec.MessageID,
		ThreadID:  rec.ThreadID,
		Status:    string(models.ActionStatusBlocked),
		Error:     reason,
	})
}

func (e *Executor) logFailed(ctx ExecutionContext, rec *models.ExecutedAgentAction, err error) {
	_ = e.logs.LogError(ctx.Account.UserID, models.LogModuleExecutor, "failed", "Action failed", services.ActionEventDetails{
		ActionID:  rec.ID,
		Kind:      rec.Type,
		MessageID: rec.MessageID,
		ThreadID:  rec.ThreadID,
		Status:    string(models.ActionStatusFailed),
		Error:     err.Error(),
	})
}
