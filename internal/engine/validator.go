package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inbox-agent/core/internal/database/models"
	"gorm.io/gorm"
)

// ActionContext carries the identifiers a validator needs to judge an action
type ActionContext struct {
	AccountID uint
	Provider  string
	MessageID string
	ThreadID  string
	DryRun    bool
}

// ValidationResult is the validator's verdict. The executor treats it as
// authoritative.
type ValidationResult struct {
	Allowed           bool     `json:"allowed"`
	Reason            string   `json:"reason,omitempty"`
	ConditionsChecked []string `json:"conditions_checked,omitempty"`
}

// ActionValidator decides whether policy allows a proposed action. It must
// not have side effects.
type ActionValidator interface {
	Validate(action StructuredAction, ctx ActionContext) ValidationResult
}

// PolicyValidator validates actions against the owning user's automation
// policy stored in UserSettings.
type PolicyValidator struct {
	db *gorm.DB
}

// NewPolicyValidator creates a new PolicyValidator instance
func NewPolicyValidator(db *gorm.DB) *PolicyValidator {
	return &PolicyValidator{db: db}
}

// Validate checks the action against the account owner's policy
func (v *PolicyValidator) Validate(action StructuredAction, ctx ActionContext) ValidationResult {
	settings, err := v.settingsForAccount(ctx.AccountID)
	if err != nil {
		return ValidationResult{Allowed: false, Reason: fmt.Sprintf("policy lookup failed: %v", err)}
	}

	checked := []string{"automation_enabled"}
	if !settings.AutomationEnabled {
		return ValidationResult{
			Allowed:           false,
			Reason:            "automation is disabled for this user",
			ConditionsChecked: checked,
		}
	}

	if action.Kind == KindSend {
		checked = append(checked, "outbound_enabled")
		if !settings.OutboundEnabled {
			return ValidationResult{
				Allowed:           false,
				Reason:            "outbound sending is disabled for this user",
				ConditionsChecked: checked,
			}
		}

		checked = append(checked, "blocked_recipients")
		if action.Send != nil && action.Send.DraftID == "" {
			if blocked := blockedRecipient(settings.BlockedRecipients, action.Send.To); blocked != "" {
				return ValidationResult{
					Allowed:           false,
					Reason:            fmt.Sprintf("recipient %s is blocked by policy", blocked),
					ConditionsChecked: checked,
				}
			}
		}

		checked = append(checked, "max_sends_per_day")
		if settings.MaxSendsPerDay > 0 {
			count, err := v.sendsToday(ctx.AccountID)
			if err != nil {
				return ValidationResult{Allowed: false, Reason: fmt.Sprintf("policy lookup failed: %v", err), ConditionsChecked: checked}
			}
			if count >= int64(settings.MaxSendsPerDay) {
				return ValidationResult{
					Allowed:           false,
					Reason:            fmt.Sprintf("daily send limit of %d reached", settings.MaxSendsPerDay),
					ConditionsChecked: checked,
				}
			}
		}
	}

	return ValidationResult{Allowed: true, ConditionsChecked: checked}
}

// settingsForAccount resolves the account's owner and loads their settings,
// falling back to defaults when no settings row exists
func (v *PolicyValidator) settingsForAccount(accountID uint) (*models.UserSettings, error) {
	var account models.EmailAccount
	if err := v.db.First(&account, accountID).Error; err != nil {
		return nil, err
	}

	var settings models.UserSettings
	if err := v.db.Where("user_id = ?", account.UserID).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserSettings{
				UserID:            account.UserID,
				AutomationEnabled: true,
				OutboundEnabled:   false,
				MaxSendsPerDay:    50,
			}, nil
		}
		return nil, err
	}
	return &settings, nil
}

// sendsToday counts successful send actions for the account since midnight UTC
func (v *PolicyValidator) sendsToday(accountID uint) (int64, error) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	var count int64
	err := v.db.Model(&models.ExecutedAgentAction{}).
		Where("account_id = ? AND type = ? AND status = ? AND created_at >= ?",
			accountID, string(KindSend), models.ActionStatusSuccess, midnight).
		Count(&count).Error
	return count, err
}

// blockedRecipient returns the first recipient hit by the blocklist, which
// holds comma-separated addresses or @domain suffixes
func blockedRecipient(blocklist, to string) string {
	if blocklist == "" || to == "" {
		return ""
	}
	entries := strings.Split(blocklist, ",")
	for _, recipient := range strings.Split(to, ",") {
		recipient = strings.ToLower(strings.TrimSpace(recipient))
		if recipient == "" {
			continue
		}
		for _, entry := range entries {
			entry = strings.ToLower(strings.TrimSpace(entry))
			if entry == "" {
				continue
			}
			if strings.HasPrefix(entry, "@") {
				if strings.HasSuffix(recipient, entry) {
					return recipient
				}
			} else if recipient == entry {
				return recipient
			}
		}
	}
	return ""
}
