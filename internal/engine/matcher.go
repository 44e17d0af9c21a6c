package engine

import (
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
)

// MatchReasonSpec is a not-yet-persisted match reason
type MatchReasonSpec struct {
	Type        models.MatchReasonType
	Explanation string
}

// RuleMatch pairs a matched rule with the reasons it matched
type RuleMatch struct {
	Rule    models.Rule
	Reasons []MatchReasonSpec
}

// ExplainedDeterministically reports whether the match is already explained
// by a static condition or a learned pattern, in which case background
// sender-pattern analysis is redundant.
func (m RuleMatch) ExplainedDeterministically() bool {
	for _, r := range m.Reasons {
		if r.Type == models.MatchReasonStatic || r.Type == models.MatchReasonLearned ||
			r.Type == models.MatchReasonContinuity {
			return true
		}
	}
	return false
}

// RuleMatcher selects candidate rules for a message. Implemented externally
// (AI or static); the engine only consumes matches with explainable reasons.
type RuleMatcher interface {
	Match(account *models.EmailAccount, msg *provider.Message, candidates []models.Rule) ([]RuleMatch, error)
}

// ArgumentGenerator fills in AI-authored fields of an action template before
// normalization. Fields already set by the rule author are left untouched.
type ArgumentGenerator interface {
	Generate(account *models.EmailAccount, msg *provider.Message, rule models.Rule, action models.Action) (models.Action, error)
}

// ConversationStatusResolver picks the concrete conversation-status rule when
// the matcher selected the synthetic conversation-tracking meta-rule.
type ConversationStatusResolver interface {
	Resolve(account *models.EmailAccount, msg *provider.Message, statusRules []models.Rule) (*models.Rule, error)
}

// SenderAnalyzer schedules background sender-pattern learning. Fire and
// forget; failures are the analyzer's problem.
type SenderAnalyzer interface {
	ScheduleAnalysis(accountID uint, fromAddr string)
}

// SettingsApplier applies an update_settings action's payload. No email
// provider call is involved.
type SettingsApplier interface {
	Apply(accountID uint, payload string) error
}
