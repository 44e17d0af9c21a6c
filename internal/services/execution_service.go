package services

import (
	"errors"

	"github.com/inbox-agent/core/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrExecutionNotFound indicates the executed rule record was not found
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrExecutedActionNotFound indicates the executed action record was not found
	ErrExecutedActionNotFound = errors.New("executed action not found")
)

// ExecutionService exposes the execution audit trail: executed rules with
// their match reasons and the action records beneath them
type ExecutionService struct {
	db *gorm.DB
}

// NewExecutionService creates a new ExecutionService instance
func NewExecutionService(db *gorm.DB) *ExecutionService {
	return &ExecutionService{db: db}
}

// ListExecutionsInput filters execution listing
type ListExecutionsInput struct {
	UserID    uint
	AccountID uint
	ThreadID  string
	Status    string
	Limit     int
	Offset    int
}

// ListExecutions returns executed rules owned by the user, newest first
func (s *ExecutionService) ListExecutions(input ListExecutionsInput) ([]models.ExecutedRule, int64, error) {
	query := s.db.Model(&models.ExecutedRule{}).
		Joins("JOIN email_accounts ON email_accounts.id = executed_rules.account_id").
		Where("email_accounts.user_id = ?", input.UserID)
	if input.AccountID != 0 {
		query = query.Where("executed_rules.account_id = ?", input.AccountID)
	}
	if input.ThreadID != "" {
		query = query.Where("executed_rules.thread_id = ?", input.ThreadID)
	}
	if input.Status != "" {
		query = query.Where("executed_rules.status = ?", input.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var executions []models.ExecutedRule
	err := query.Preload("Reasons").Preload("Actions").
		Order("executed_rules.created_at DESC").
		Limit(limit).Offset(input.Offset).
		Find(&executions).Error
	return executions, total, err
}

// GetExecution returns one executed rule with reasons and actions, checking
// ownership
func (s *ExecutionService) GetExecution(id, userID uint) (*models.ExecutedRule, error) {
	var execution models.ExecutedRule
	err := s.db.Preload("Reasons").Preload("Actions").First(&execution, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		return nil, err
	}

	var account models.EmailAccount
	if err := s.db.First(&account, execution.AccountID).Error; err != nil {
		return nil, ErrExecutionNotFound
	}
	if account.UserID != userID {
		return nil, ErrExecutionNotFound
	}
	return &execution, nil
}

// GetAction returns one executed action with its account relation
func (s *ExecutionService) GetAction(id uint) (*models.ExecutedAgentAction, error) {
	var action models.ExecutedAgentAction
	err := s.db.Preload("Account").Preload("Artifacts").First(&action, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutedActionNotFound
		}
		return nil, err
	}
	return &action, nil
}

// ListPendingApprovals returns the user's actions awaiting a decision,
// oldest first
func (s *ExecutionService) ListPendingApprovals(userID uint) ([]models.ExecutedAgentAction, error) {
	var actions []models.ExecutedAgentAction
	err := s.db.
		Joins("JOIN email_accounts ON email_accounts.id = executed_agent_actions.account_id").
		Where("email_accounts.user_id = ? AND executed_agent_actions.status = ?", userID, models.ActionStatusPendingApproval).
		Order("executed_agent_actions.created_at ASC").
		Find(&actions).Error
	return actions, err
}

// ListScheduled returns the user's scheduled actions that have not run yet
func (s *ExecutionService) ListScheduled(userID uint) ([]models.ScheduledAction, error) {
	var rows []models.ScheduledAction
	err := s.db.Model(&models.ScheduledAction{}).
		Joins("JOIN email_accounts ON email_accounts.id = scheduled_actions.account_id").
		Where("email_accounts.user_id = ? AND scheduled_actions.status = ?", userID, models.ScheduledStatusScheduled).
		Order("scheduled_actions.run_at ASC").
		Find(&rows).Error
	return rows, err
}
