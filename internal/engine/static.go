package engine

import (
	"fmt"
	"strings"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// StaticMatcher matches rules by their static conditions only. Rules whose
// conditions are all empty (instruction-only rules and the conversation
// meta-rule) are left to an AI matcher and never matched here.
type StaticMatcher struct{}

// NewStaticMatcher creates a new StaticMatcher instance
func NewStaticMatcher() *StaticMatcher {
	return &StaticMatcher{}
}

// Match evaluates every candidate's static conditions against the message
func (m *StaticMatcher) Match(account *models.EmailAccount, msg *provider.Message, candidates []models.Rule) ([]RuleMatch, error) {
	var matches []RuleMatch
	for _, rule := range candidates {
		matched, explanation := evaluateStatic(rule, msg)
		if !matched {
			continue
		}
		matches = append(matches, RuleMatch{
			Rule: rule,
			Reasons: []MatchReasonSpec{{
				Type:        models.MatchReasonStatic,
				Explanation: explanation,
			}},
		})
	}
	return matches, nil
}

// evaluateStatic checks the rule's pattern fields against the message,
// combined with the rule's logical operator
func evaluateStatic(rule models.Rule, msg *provider.Message) (bool, string) {
	type check struct {
		hit  bool
		desc string
	}
	var checks []check

	if rule.FromPattern != "" {
		hit := containsFold(msg.From, rule.FromPattern)
		checks = append(checks, check{hit, fmt.Sprintf("from matches %q", rule.FromPattern)})
	}
	if rule.ToPattern != "" {
		hit := false
		for _, to := range msg.To {
			if containsFold(to, rule.ToPattern) {
				hit = true
				break
			}
		}
		checks = append(checks, check{hit, fmt.Sprintf("recipient matches %q", rule.ToPattern)})
	}
	if rule.SubjectPart != "" {
		hit := containsFold(msg.Subject, rule.SubjectPart)
		checks = append(checks, check{hit, fmt.Sprintf("subject contains %q", rule.SubjectPart)})
	}
	if rule.BodyPart != "" {
		hit := containsFold(msg.Snippet, rule.BodyPart)
		checks = append(checks, check{hit, fmt.Sprintf("body contains %q", rule.BodyPart)})
	}

	if len(checks) == 0 {
		return false, ""
	}

	if rule.Operator == models.LogicalOr {
		for _, ch := range checks {
			if ch.hit {
				return true, ch.desc
			}
		}
		return false, ""
	}

	descs := make([]string, 0, len(checks))
	for _, ch := range checks {
		if !ch.hit {
			return false, ""
		}
		descs = append(descs, ch.desc)
	}
	return true, strings.Join(descs, " and ")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// TemplateArgumentGenerator fills empty action fields from the message
// context. It is the deterministic counterpart to an AI generator: the
// rule author's values always win.
type TemplateArgumentGenerator struct{}

// NewTemplateArgumentGenerator creates a new TemplateArgumentGenerator
// instance
func NewTemplateArgumentGenerator() *TemplateArgumentGenerator {
	return &TemplateArgumentGenerator{}
}

// Generate defaults the recipient and subject for reply-shaped actions
func (g *TemplateArgumentGenerator) Generate(account *models.EmailAccount, msg *provider.Message, rule models.Rule, action models.Action) (models.Action, error) {
	switch action.Type {
	case models.ActionTypeReply, models.ActionTypeNotifySender:
		if action.To == "" {
			action.To = msg.From
		}
		if action.Subject == "" {
			action.Subject = "Re: " + strings.TrimPrefix(msg.Subject, "Re: ")
		}
	case models.ActionTypeForward:
		if action.Subject == "" {
			action.Subject = "Fwd: " + msg.Subject
		}
	}
	return action, nil
}

// TrackerStatusResolver resolves the conversation meta-rule to the concrete
// status rule recorded for the thread
type TrackerStatusResolver struct {
	db *gorm.DB
}

// NewTrackerStatusResolver creates a new TrackerStatusResolver instance
func NewTrackerStatusResolver(db *gorm.DB) *TrackerStatusResolver {
	return &TrackerStatusResolver{db: db}
}

// Resolve returns the status rule matching the thread's tracker. Threads
// without a tracker default to the to_reply rule when one exists; an inbound
// message in an untracked conversation needs the user's attention first.
func (r *TrackerStatusResolver) Resolve(account *models.EmailAccount, msg *provider.Message, statusRules []models.Rule) (*models.Rule, error) {
	want := models.SystemTypeToReply

	var tracker models.ThreadTracker
	err := r.db.Where("account_id = ? AND thread_id = ?", account.ID, msg.ThreadID).First(&tracker).Error
	if err == nil {
		want = tracker.Status
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	for i := range statusRules {
		if statusRules[i].SystemType == want {
			return &statusRules[i], nil
		}
	}
	return nil, nil
}

// LogSenderAnalyzer records sender-pattern analysis requests in the audit
// log. A learning backend can consume them asynchronously.
type LogSenderAnalyzer struct {
	logs *services.LogService
}

// NewLogSenderAnalyzer creates a new LogSenderAnalyzer instance
func NewLogSenderAnalyzer(logs *services.LogService) *LogSenderAnalyzer {
	return &LogSenderAnalyzer{logs: logs}
}

// ScheduleAnalysis logs the request. Fire and forget.
func (a *LogSenderAnalyzer) ScheduleAnalysis(accountID uint, fromAddr string) {
	_ = a.logs.LogDebug(0, models.LogModuleEngine, "analyze_sender", "Sender pattern analysis requested", map[string]interface{}{
		"account_id": accountID,
		"from":       fromAddr,
	})
}
