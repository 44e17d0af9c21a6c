package engine

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// ScheduleRequest hands a rule's delayed actions to the scheduler
type ScheduleRequest struct {
	Account        *models.EmailAccount
	ExecutedRuleID uint
	Rule           models.Rule
	Message        *provider.Message
	Actions        []models.Action // delayed templates only
}

// CancelRequest identifies previously scheduled actions to cancel
type CancelRequest struct {
	AccountID uint
	MessageID string
	ThreadID  string
	RuleID    uint
	Reason    string
}

// Scheduler is the delayed-action collaborator contract
type Scheduler interface {
	ScheduleDelayedActions(req ScheduleRequest) error
	CancelScheduledActions(req CancelRequest) (int64, error)
}

// ExecutorFor builds an executor bound to the account's provider. The
// scheduler resumes actions across accounts, so it cannot hold one executor.
type ExecutorFor func(account *models.EmailAccount) (*Executor, error)

// DBScheduler stores delayed actions durably and runs them when due. Both
// the cancel path and the due-claim path use status-conditioned updates, so
// a row is cancelled or run by at most one caller.
type DBScheduler struct {
	db          *gorm.DB
	executorFor ExecutorFor
	argGen      ArgumentGenerator
	logs        *services.LogService
	interval    time.Duration
	stopChan    chan struct{}
	running     bool
	mu          sync.Mutex
}

// NewDBScheduler creates a new DBScheduler instance
func NewDBScheduler(db *gorm.DB, executorFor ExecutorFor, argGen ArgumentGenerator, logs *services.LogService, interval time.Duration) *DBScheduler {
	return &DBScheduler{
		db:          db,
		executorFor: executorFor,
		argGen:      argGen,
		logs:        logs,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// ScheduleDelayedActions stages each delayed action as a PENDING (or
// PENDING_APPROVAL) execution record and a scheduled row carrying its run
// time. Arguments are generated now so the payload is complete at run time.
func (s *DBScheduler) ScheduleDelayedActions(req ScheduleRequest) error {
	for _, tmpl := range req.Actions {
		filled, err := s.argGen.Generate(req.Account, req.Message, req.Rule, tmpl)
		if err != nil {
			return err
		}
		action, err := Normalize(filled)
		if err != nil {
			if err == ErrUnsupportedActionType {
				continue
			}
			return err
		}

		executor, err := s.executorFor(req.Account)
		if err != nil {
			return err
		}
		result, err := executor.StageAction(ExecutionContext{
			Account:        req.Account,
			ExecutedRuleID: req.ExecutedRuleID,
			MessageID:      req.Message.ID,
			ThreadID:       req.Message.ThreadID,
		}, action)
		if err != nil {
			return err
		}
		if result.Blocked {
			continue
		}

		row := &models.ScheduledAction{
			ExternalID:     uuid.NewString(),
			AccountID:      req.Account.ID,
			ExecutedRuleID: req.ExecutedRuleID,
			RuleID:         req.Rule.ID,
			ActionID:       result.ActionID,
			MessageID:      req.Message.ID,
			ThreadID:       req.Message.ThreadID,
			RunAt:          time.Now().Add(time.Duration(tmpl.DelayMinutes) * time.Minute),
			Status:         models.ScheduledStatusScheduled,
		}
		if err := s.db.Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

// CancelScheduledActions cancels every still-scheduled row for the key and
// cancels the staged execution records behind them. Returns the number of
// scheduled rows cancelled; retrying is idempotent.
func (s *DBScheduler) CancelScheduledActions(req CancelRequest) (int64, error) {
	var rows []models.ScheduledAction
	err := s.db.Where("account_id = ? AND message_id = ? AND thread_id = ? AND rule_id = ? AND status = ?",
		req.AccountID, req.MessageID, req.ThreadID, req.RuleID, models.ScheduledStatusScheduled).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	var cancelled int64
	for _, row := range rows {
		result := s.db.Model(&models.ScheduledAction{}).
			Where("id = ? AND status = ?", row.ID, models.ScheduledStatusScheduled).
			Updates(map[string]interface{}{
				"status":        models.ScheduledStatusCancelled,
				"cancel_reason": req.Reason,
			})
		if result.Error != nil {
			return cancelled, result.Error
		}
		if result.RowsAffected == 0 {
			continue // claimed by the run loop in the meantime
		}
		cancelled++

		// Cancel the staged execution record, whichever waiting state it is in
		for _, from := range []models.ActionStatus{models.ActionStatusPending, models.ActionStatusPendingApproval} {
			res := s.db.Model(&models.ExecutedAgentAction{}).
				Where("id = ? AND status = ?", row.ActionID, from).
				Update("status", models.ActionStatusCancelled)
			if res.Error != nil {
				return cancelled, res.Error
			}
			if res.RowsAffected > 0 {
				break
			}
		}
	}
	return cancelled, nil
}

// Start begins the delayed-action run loop
func (s *DBScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[Scheduler] Starting with interval: %v", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runDue()
			case <-s.stopChan:
				log.Println("[Scheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the run loop
func (s *DBScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// runDue claims and executes every due scheduled action
func (s *DBScheduler) runDue() {
	var due []models.ScheduledAction
	err := s.db.Where("status = ? AND run_at <= ?", models.ScheduledStatusScheduled, time.Now()).
		Order("run_at ASC").
		Find(&due).Error
	if err != nil {
		log.Printf("[Scheduler] Failed to query due actions: %v", err)
		return
	}

	for _, row := range due {
		s.runOne(row)
	}
	s.finalizeParents()
}

// runOne claims one due row and resumes its staged action
func (s *DBScheduler) runOne(row models.ScheduledAction) {
	claim := s.db.Model(&models.ScheduledAction{}).
		Where("id = ? AND status = ?", row.ID, models.ScheduledStatusScheduled).
		Update("status", models.ScheduledStatusRunning)
	if claim.Error != nil {
		log.Printf("[Scheduler] Failed to claim action %d: %v", row.ID, claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		return // cancelled or claimed elsewhere
	}

	result, err := s.resume(row)
	final := models.ScheduledStatusCompleted
	switch {
	case err != nil:
		if err == ErrActionNotFound {
			final = models.ScheduledStatusFailed
		} else if settled, status := s.settledStatus(row.ActionID); settled {
			// The approval workflow or a cancel already finished the record
			final = status
		} else {
			// Still pending approval or a transient fault: release the
			// claim for a later cycle
			s.db.Model(&models.ScheduledAction{}).
				Where("id = ? AND status = ?", row.ID, models.ScheduledStatusRunning).
				Update("status", models.ScheduledStatusScheduled)
			return
		}
	case !result.Success:
		final = models.ScheduledStatusFailed
	}

	s.db.Model(&models.ScheduledAction{}).
		Where("id = ? AND status = ?", row.ID, models.ScheduledStatusRunning).
		Update("status", final)

	_ = s.logs.LogInfo(0, models.LogModuleScheduler, "run_delayed", "Delayed action executed", services.ActionEventDetails{
		ActionID: row.ActionID,
		ThreadID: row.ThreadID,
		Status:   string(final),
	})
}

// settledStatus maps a staged record that is already terminal to the final
// status of its scheduled row
func (s *DBScheduler) settledStatus(actionID uint) (bool, models.ScheduledActionStatus) {
	var rec models.ExecutedAgentAction
	if err := s.db.First(&rec, actionID).Error; err != nil {
		return false, ""
	}
	switch rec.Status {
	case models.ActionStatusSuccess:
		return true, models.ScheduledStatusCompleted
	case models.ActionStatusCancelled:
		return true, models.ScheduledStatusCancelled
	case models.ActionStatusFailed, models.ActionStatusBlocked:
		return true, models.ScheduledStatusFailed
	}
	return false, ""
}

// resume builds an executor for the action's account and runs the staged
// record
func (s *DBScheduler) resume(row models.ScheduledAction) (*ExecuteResult, error) {
	var account models.EmailAccount
	if err := s.db.First(&account, row.AccountID).Error; err != nil {
		return nil, ErrActionNotFound
	}
	executor, err := s.executorFor(&account)
	if err != nil {
		return nil, err
	}
	return executor.RunPending(row.ActionID)
}

// finalizeParents promotes APPLYING executed rules whose delayed actions
// have all reached a terminal state
func (s *DBScheduler) finalizeParents() {
	var parents []models.ExecutedRule
	err := s.db.Where("status = ?", models.ExecutedRuleStatusApplying).Find(&parents).Error
	if err != nil {
		return
	}

	for _, parent := range parents {
		var open int64
		err := s.db.Model(&models.ScheduledAction{}).
			Where("executed_rule_id = ? AND status IN ?", parent.ID,
				[]models.ScheduledActionStatus{models.ScheduledStatusScheduled, models.ScheduledStatusRunning}).
			Count(&open).Error
		if err != nil || open > 0 {
			continue
		}

		var scheduled int64
		if err := s.db.Model(&models.ScheduledAction{}).
			Where("executed_rule_id = ?", parent.ID).
			Count(&scheduled).Error; err != nil || scheduled == 0 {
			// Immediate-only parents are finalized by the orchestrator
			continue
		}

		s.db.Model(&models.ExecutedRule{}).
			Where("id = ? AND status = ?", parent.ID, models.ExecutedRuleStatusApplying).
			Update("status", models.ExecutedRuleStatusApplied)
	}
}
