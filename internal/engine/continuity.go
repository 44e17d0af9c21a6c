package engine

import (
	"github.com/inbox-agent/core/internal/database/models"
	"gorm.io/gorm"
)

// MetaRuleName is the display name of the synthetic conversation-tracking
// rule
const MetaRuleName = "Conversation tracking"

// MetaRuleInstructions is the fixed matcher instruction for the meta-rule.
// It covers every conversation state so the matcher can select "this is a
// conversation" without choosing the specific state up front.
const MetaRuleInstructions = "Apply to messages that are part of an ongoing conversation the user is tracking: " +
	"threads the user needs to reply to, threads awaiting a reply from the other party, " +
	"informational follow-ups, and threads the user has already actioned."

// NewMetaRule builds the synthetic conversation-tracking rule injected into
// the matcher's candidate set. It is never persisted.
func NewMetaRule(accountID uint) models.Rule {
	return models.Rule{
		AccountID:    accountID,
		Name:         MetaRuleName,
		Instructions: MetaRuleInstructions,
		SystemType:   models.SystemTypeConversationTracker,
		Enabled:      true,
	}
}

// ContinuityGuard keeps a thread's conversation classification sticky: once
// any conversation-status rule has been applied to a thread, later messages
// keep matching the conversation meta-rule even when the matcher, which sees
// one message in isolation, does not reselect it.
type ContinuityGuard struct {
	db *gorm.DB
}

// NewContinuityGuard creates a new ContinuityGuard instance
func NewContinuityGuard(db *gorm.DB) *ContinuityGuard {
	return &ContinuityGuard{db: db}
}

// EnsureContinuity appends a synthetic meta-rule match when the thread has
// conversation history the matcher missed. The input matches slice is never
// mutated; callers may retain it for auditing.
func (g *ContinuityGuard) EnsureContinuity(accountID uint, threadID string, conversationRules, regularRules []models.Rule, matches []RuleMatch) ([]RuleMatch, error) {
	// Cheap short-circuit: nothing to enforce without conversation rules
	if len(conversationRules) == 0 {
		return matches, nil
	}

	for _, m := range matches {
		if m.Rule.SystemType == models.SystemTypeConversationTracker {
			return matches, nil
		}
	}

	ruleIDs := make([]uint, 0, len(conversationRules))
	for _, r := range conversationRules {
		ruleIDs = append(ruleIDs, r.ID)
	}

	var count int64
	err := g.db.Model(&models.ExecutedRule{}).
		Where("account_id = ? AND thread_id = ? AND status = ? AND rule_id IN ?",
			accountID, threadID, models.ExecutedRuleStatusApplied, ruleIDs).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return matches, nil
	}

	var meta *models.Rule
	for i := range regularRules {
		if regularRules[i].SystemType == models.SystemTypeConversationTracker {
			meta = &regularRules[i]
			break
		}
	}
	if meta == nil {
		return matches, nil
	}

	out := make([]RuleMatch, len(matches), len(matches)+1)
	copy(out, matches)
	out = append(out, RuleMatch{
		Rule: *meta,
		Reasons: []MatchReasonSpec{{
			Type:        models.MatchReasonContinuity,
			Explanation: "thread is already tracked as a conversation",
		}},
	})
	return out, nil
}
