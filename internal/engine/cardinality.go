package engine

import (
	"errors"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// CardinalityEnforcer retracts conflicting labels after a classify action:
// when the applied label belongs to a SINGLE-cardinality group, every other
// member of the group is removed from the thread in one batched call.
type CardinalityEnforcer struct {
	db       *gorm.DB
	provider provider.EmailProvider
	logs     *services.LogService
}

// NewCardinalityEnforcer creates a new CardinalityEnforcer instance
func NewCardinalityEnforcer(db *gorm.DB, p provider.EmailProvider, logs *services.LogService) *CardinalityEnforcer {
	return &CardinalityEnforcer{db: db, provider: p, logs: logs}
}

// Enforce checks the just-applied label's group membership and removes the
// group's other labels from the thread. Labels outside any SINGLE group are
// left alone; other groups are never touched.
func (c *CardinalityEnforcer) Enforce(account *models.EmailAccount, labelID, labelName, threadID string) error {
	option, err := c.lookupOption(account.ID, labelID, labelName)
	if err != nil {
		return err
	}
	if option == nil || option.TargetGroupID == 0 {
		return nil
	}

	var group models.TargetGroup
	if err := c.db.First(&group, option.TargetGroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if group.Cardinality != models.CardinalitySingle {
		return nil
	}

	var siblings []models.AllowedActionOption
	if err := c.db.Where("target_group_id = ? AND id <> ?", group.ID, option.ID).Find(&siblings).Error; err != nil {
		return err
	}

	removeIDs := make([]string, 0, len(siblings))
	for _, sibling := range siblings {
		id := sibling.ExternalID
		if id == "" {
			label, err := c.provider.GetLabelByName(sibling.Name)
			if err != nil {
				// Unresolvable options are skipped, not fatal
				_ = c.logs.LogDebug(account.UserID, models.LogModuleExecutor, "cardinality", "Skipping unresolvable group option", services.ActionEventDetails{
					Kind:     string(KindClassify),
					ThreadID: threadID,
					Error:    err.Error(),
				})
				continue
			}
			id = label.ID
		}
		if id == labelID {
			continue
		}
		removeIDs = append(removeIDs, id)
	}
	if len(removeIDs) == 0 {
		return nil
	}
	return c.provider.RemoveThreadLabels(threadID, removeIDs)
}

// lookupOption finds the option row for the applied label. Candidate rows
// match by external id or by name, scoped to the account or account-agnostic
// (account_id 0). An external-id match outranks a name match, and an
// account-scoped row outranks an agnostic one.
func (c *CardinalityEnforcer) lookupOption(accountID uint, labelID, labelName string) (*models.AllowedActionOption, error) {
	query := c.db.Where("account_id IN ?", []uint{accountID, 0})
	switch {
	case labelID != "" && labelName != "":
		query = query.Where("external_id = ? OR name = ?", labelID, labelName)
	case labelID != "":
		query = query.Where("external_id = ?", labelID)
	case labelName != "":
		query = query.Where("name = ?", labelName)
	default:
		return nil, nil
	}

	var candidates []models.AllowedActionOption
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := -1
	bestScore := -1
	for i, candidate := range candidates {
		score := 0
		if labelID != "" && candidate.ExternalID == labelID {
			score += 2
		}
		if candidate.AccountID == accountID {
			score++
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return &candidates[best], nil
}
