package engine

import (
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// SupersededByRerun is the cancel reason stamped on scheduled actions that a
// newer run of the same rule replaced
const SupersededByRerun = "superseded by rerun"

// RuleOutcome summarizes one rule applied to one message
type RuleOutcome struct {
	RuleID         uint             `json:"rule_id"`
	RuleName       string           `json:"rule_name"`
	ExecutedRuleID uint             `json:"executed_rule_id,omitempty"`
	Status         string           `json:"status"`
	Actions        []*ExecuteResult `json:"actions,omitempty"`
	Delayed        int              `json:"delayed,omitempty"`
}

// RunResult is the outcome of running all rules against one message
type RunResult struct {
	MessageID string        `json:"message_id"`
	ThreadID  string        `json:"thread_id"`
	Matched   int           `json:"matched"`
	Outcomes  []RuleOutcome `json:"outcomes"`
}

// Orchestrator runs the full rule pipeline for one message: candidate
// selection, matching, post-match adjustments, then per-rule execution.
type Orchestrator struct {
	db             *gorm.DB
	matcher        RuleMatcher
	argGen         ArgumentGenerator
	executor       *Executor
	scheduler      Scheduler
	continuity     *ContinuityGuard
	statusResolver ConversationStatusResolver
	analyzer       SenderAnalyzer
	logs           *services.LogService
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(db *gorm.DB, matcher RuleMatcher, argGen ArgumentGenerator, executor *Executor, scheduler Scheduler, statusResolver ConversationStatusResolver, analyzer SenderAnalyzer, logs *services.LogService) *Orchestrator {
	return &Orchestrator{
		db:             db,
		matcher:        matcher,
		argGen:         argGen,
		executor:       executor,
		scheduler:      scheduler,
		continuity:     NewContinuityGuard(db),
		statusResolver: statusResolver,
		analyzer:       analyzer,
		logs:           logs,
	}
}

// RunRulesOnMessage runs every enabled rule of the account against the
// message. Under dry run nothing is persisted and no side effect happens;
// the result still reports which rules would fire and how.
func (o *Orchestrator) RunRulesOnMessage(account *models.EmailAccount, msg *provider.Message, dryRun bool) (*RunResult, error) {
	result := &RunResult{MessageID: msg.ID, ThreadID: msg.ThreadID}

	var rules []models.Rule
	err := o.db.Preload("Actions").
		Where("account_id = ? AND enabled = ?", account.ID, true).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return result, nil
	}

	conversationRules, regularRules := partitionRules(rules)

	matches, err := o.selectMatches(account, msg, conversationRules, regularRules)
	if err != nil {
		return nil, err
	}
	matches = LimitDraftActions(matches)
	result.Matched = len(matches)

	for _, match := range matches {
		rule := match.Rule

		if rule.SystemType == models.SystemTypeConversationTracker {
			resolved, err := o.statusResolver.Resolve(account, msg, conversationRules)
			if err != nil {
				return nil, err
			}
			if resolved == nil {
				continue
			}
			rule = *resolved
		}

		if o.analyzer != nil && !match.ExplainedDeterministically() {
			o.analyzer.ScheduleAnalysis(account.ID, msg.From)
		}

		outcome, err := o.executeRule(account, msg, rule, match.Reasons, dryRun)
		if err != nil {
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, *outcome)

		if dryRun {
			continue
		}
		if rule.SystemType.IsConversationStatus() {
			if err := o.trackThread(account.ID, msg.ThreadID, rule.SystemType); err != nil {
				return nil, err
			}
		}
		if rule.SystemType == models.SystemTypeColdEmail {
			if err := o.recordColdSender(account.ID, msg.From, match.Reasons); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// selectMatches picks the rules that apply to the message. Known cold email
// senders bypass the matcher: the cold email rule matches directly with a
// static reason. Otherwise the matcher sees the regular rules plus the
// synthetic conversation meta-rule, and the continuity guard adds the
// meta-rule back for threads with conversation history.
func (o *Orchestrator) selectMatches(account *models.EmailAccount, msg *provider.Message, conversationRules, regularRules []models.Rule) ([]RuleMatch, error) {
	if coldRule := findColdEmailRule(regularRules); coldRule != nil {
		known, err := o.isKnownColdSender(account.ID, msg.From)
		if err != nil {
			return nil, err
		}
		if known {
			return []RuleMatch{{
				Rule: *coldRule,
				Reasons: []MatchReasonSpec{{
					Type:        models.MatchReasonStatic,
					Explanation: "sender previously classified as a cold emailer",
				}},
			}}, nil
		}
	}

	candidates := regularRules
	if len(conversationRules) > 0 {
		candidates = make([]models.Rule, len(regularRules), len(regularRules)+1)
		copy(candidates, regularRules)
		candidates = append(candidates, NewMetaRule(account.ID))
	}

	matches, err := o.matcher.Match(account, msg, candidates)
	if err != nil {
		return nil, err
	}
	return o.continuity.EnsureContinuity(account.ID, msg.ThreadID, conversationRules, candidates, matches)
}

// executeRule creates the parent record, cancels scheduled actions a previous
// run left for the same rule and message, then executes immediate actions and
// schedules delayed ones. The parent finishes APPLIED, ERROR on any failed
// immediate action, or stays APPLYING while delayed actions remain.
func (o *Orchestrator) executeRule(account *models.EmailAccount, msg *provider.Message, rule models.Rule, reasons []MatchReasonSpec, dryRun bool) (*RuleOutcome, error) {
	outcome := &RuleOutcome{RuleID: rule.ID, RuleName: rule.Name}

	immediate, delayed := splitByDelay(rule.Actions)
	outcome.Delayed = len(delayed)

	if dryRun {
		for _, tmpl := range immediate {
			res, err := o.runAction(account, msg, rule, tmpl, 0, true)
			if err != nil {
				return nil, err
			}
			if res != nil {
				outcome.Actions = append(outcome.Actions, res)
			}
		}
		outcome.Status = string(models.ExecutedRuleStatusPending)
		return outcome, nil
	}

	parent := &models.ExecutedRule{
		AccountID: account.ID,
		RuleID:    rule.ID,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Status:    models.ExecutedRuleStatusApplying,
	}
	if err := o.db.Create(parent).Error; err != nil {
		return nil, err
	}
	outcome.ExecutedRuleID = parent.ID

	for _, spec := range reasons {
		reason := models.MatchReason{
			ExecutedRuleID: parent.ID,
			Type:           spec.Type,
			Explanation:    spec.Explanation,
		}
		if err := o.db.Create(&reason).Error; err != nil {
			return nil, err
		}
	}

	// A rerun replaces whatever the previous run scheduled for this message
	if rule.ID != 0 {
		if _, err := o.scheduler.CancelScheduledActions(CancelRequest{
			AccountID: account.ID,
			MessageID: msg.ID,
			ThreadID:  msg.ThreadID,
			RuleID:    rule.ID,
			Reason:    SupersededByRerun,
		}); err != nil {
			return nil, err
		}
	}

	failed := false
	for _, tmpl := range immediate {
		res, err := o.runAction(account, msg, rule, tmpl, parent.ID, false)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		outcome.Actions = append(outcome.Actions, res)
		if !res.Success && !res.Blocked {
			failed = true
		}
	}

	if len(delayed) > 0 {
		if err := o.scheduler.ScheduleDelayedActions(ScheduleRequest{
			Account:        account,
			ExecutedRuleID: parent.ID,
			Rule:           rule,
			Message:        msg,
			Actions:        delayed,
		}); err != nil {
			return nil, err
		}
	}

	final := models.ExecutedRuleStatusApplied
	switch {
	case failed:
		final = models.ExecutedRuleStatusError
	case len(delayed) > 0:
		final = models.ExecutedRuleStatusApplying
	}
	if final != models.ExecutedRuleStatusApplying {
		if err := o.db.Model(parent).Update("status", final).Error; err != nil {
			return nil, err
		}
	}
	outcome.Status = string(final)

	_ = o.logs.LogInfo(account.UserID, models.LogModuleEngine, "rule_applied", "Rule applied to message", services.RuleEventDetails{
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		ExecutedRuleID: parent.ID,
		MessageID:      msg.ID,
		ThreadID:       msg.ThreadID,
	})
	return outcome, nil
}

// runAction generates arguments, normalizes the template and hands it to the
// executor. Template types with no executable form are logged and skipped.
func (o *Orchestrator) runAction(account *models.EmailAccount, msg *provider.Message, rule models.Rule, tmpl models.Action, executedRuleID uint, dryRun bool) (*ExecuteResult, error) {
	filled, err := o.argGen.Generate(account, msg, rule, tmpl)
	if err != nil {
		return nil, err
	}
	action, err := Normalize(filled)
	if err != nil {
		if err == ErrUnsupportedActionType {
			_ = o.logs.LogDebug(account.UserID, models.LogModuleEngine, "skip_action", "Skipping non-executable action type", services.ActionEventDetails{
				Kind:      string(tmpl.Type),
				MessageID: msg.ID,
				ThreadID:  msg.ThreadID,
			})
			return nil, nil
		}
		return nil, err
	}
	return o.executor.ExecuteAction(ExecutionContext{
		Account:        account,
		ExecutedRuleID: executedRuleID,
		MessageID:      msg.ID,
		ThreadID:       msg.ThreadID,
		DryRun:         dryRun,
	}, action)
}

// trackThread upserts the thread's conversation status
func (o *Orchestrator) trackThread(accountID uint, threadID string, status models.SystemType) error {
	if threadID == "" {
		return nil
	}
	var tracker models.ThreadTracker
	err := o.db.Where("account_id = ? AND thread_id = ?", accountID, threadID).First(&tracker).Error
	if err == gorm.ErrRecordNotFound {
		return o.db.Create(&models.ThreadTracker{
			AccountID: accountID,
			ThreadID:  threadID,
			Status:    status,
		}).Error
	}
	if err != nil {
		return err
	}
	if tracker.Status == status {
		return nil
	}
	return o.db.Model(&tracker).Update("status", status).Error
}

// recordColdSender remembers the sender so future messages short-circuit
func (o *Orchestrator) recordColdSender(accountID uint, fromAddr string, reasons []MatchReasonSpec) error {
	if fromAddr == "" {
		return nil
	}
	var count int64
	err := o.db.Model(&models.ColdEmailSender{}).
		Where("account_id = ? AND from_addr = ?", accountID, fromAddr).
		Count(&count).Error
	if err != nil || count > 0 {
		return err
	}
	reason := ""
	if len(reasons) > 0 {
		reason = reasons[0].Explanation
	}
	return o.db.Create(&models.ColdEmailSender{
		AccountID: accountID,
		FromAddr:  fromAddr,
		Reason:    reason,
	}).Error
}

func (o *Orchestrator) isKnownColdSender(accountID uint, fromAddr string) (bool, error) {
	if fromAddr == "" {
		return false, nil
	}
	var count int64
	err := o.db.Model(&models.ColdEmailSender{}).
		Where("account_id = ? AND from_addr = ?", accountID, fromAddr).
		Count(&count).Error
	return count > 0, err
}

func partitionRules(rules []models.Rule) (conversation, regular []models.Rule) {
	for _, r := range rules {
		if r.SystemType.IsConversationStatus() {
			conversation = append(conversation, r)
		} else {
			regular = append(regular, r)
		}
	}
	return conversation, regular
}

func findColdEmailRule(rules []models.Rule) *models.Rule {
	for i := range rules {
		if rules[i].SystemType == models.SystemTypeColdEmail {
			return &rules[i]
		}
	}
	return nil
}

func splitByDelay(actions []models.Action) (immediate, delayed []models.Action) {
	for _, a := range actions {
		if a.Delayed() {
			delayed = append(delayed, a)
		} else {
			immediate = append(immediate, a)
		}
	}
	return immediate, delayed
}
