package services

import (
	"errors"

	"github.com/inbox-agent/core/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrRuleNotFound indicates the rule was not found
	ErrRuleNotFound = errors.New("rule not found")
	// ErrInvalidRuleData indicates invalid rule data
	ErrInvalidRuleData = errors.New("invalid rule data")
	// ErrInvalidActionData indicates an action template is invalid
	ErrInvalidActionData = errors.New("invalid action data")
)

// RuleService handles rule-related business logic
type RuleService struct {
	db         *gorm.DB
	logService *LogService
}

// NewRuleService creates a new RuleService instance
func NewRuleService(db *gorm.DB) *RuleService {
	return &RuleService{
		db:         db,
		logService: NewLogService(db),
	}
}

// ActionInput is one action template on a rule
type ActionInput struct {
	Type         string `json:"type"`
	Label        string `json:"label"`
	Folder       string `json:"folder"`
	To           string `json:"to"`
	CC           string `json:"cc"`
	BCC          string `json:"bcc"`
	Subject      string `json:"subject"`
	Content      string `json:"content"`
	URL          string `json:"url"`
	DelayMinutes int    `json:"delay_minutes"`
}

// CreateRuleInput represents the input for creating a rule
type CreateRuleInput struct {
	AccountID    uint          `json:"account_id"`
	Name         string        `json:"name"`
	Instructions string        `json:"instructions"`
	FromPattern  string        `json:"from_pattern"`
	ToPattern    string        `json:"to_pattern"`
	SubjectPart  string        `json:"subject_part"`
	BodyPart     string        `json:"body_part"`
	Operator     string        `json:"operator"`
	SystemType   string        `json:"system_type"`
	Actions      []ActionInput `json:"actions"`
}

// CreateRule creates a rule with its action templates
func (s *RuleService) CreateRule(userID uint, input CreateRuleInput) (*models.Rule, error) {
	if input.Name == "" || input.AccountID == 0 {
		return nil, ErrInvalidRuleData
	}
	if err := s.checkOwnership(input.AccountID, userID); err != nil {
		return nil, err
	}

	operator := models.LogicalOperator(input.Operator)
	if operator == "" {
		operator = models.LogicalAnd
	}
	if operator != models.LogicalAnd && operator != models.LogicalOr {
		return nil, ErrInvalidRuleData
	}

	rule := &models.Rule{
		AccountID:    input.AccountID,
		Name:         input.Name,
		Instructions: input.Instructions,
		FromPattern:  input.FromPattern,
		ToPattern:    input.ToPattern,
		SubjectPart:  input.SubjectPart,
		BodyPart:     input.BodyPart,
		Operator:     operator,
		SystemType:   models.SystemType(input.SystemType),
		Enabled:      true,
	}

	for _, a := range input.Actions {
		actionType := models.ActionType(a.Type)
		if !actionType.IsValid() {
			return nil, ErrInvalidActionData
		}
		if a.DelayMinutes < 0 {
			return nil, ErrInvalidActionData
		}
		rule.Actions = append(rule.Actions, models.Action{
			Type:         actionType,
			Label:        a.Label,
			Folder:       a.Folder,
			To:           a.To,
			CC:           a.CC,
			BCC:          a.BCC,
			Subject:      a.Subject,
			Content:      a.Content,
			URL:          a.URL,
			DelayMinutes: a.DelayMinutes,
		})
	}

	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}

	_ = s.logService.LogInfo(userID, models.LogModuleEngine, "create_rule", "Rule created", RuleEventDetails{
		RuleID:   rule.ID,
		RuleName: rule.Name,
	})
	return rule, nil
}

// GetRule returns one rule with its actions, checking ownership
func (s *RuleService) GetRule(id, userID uint) (*models.Rule, error) {
	var rule models.Rule
	if err := s.db.Preload("Actions").First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	if err := s.checkOwnership(rule.AccountID, userID); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns the rules of every account owned by the user, or of one
// account when accountID is set
func (s *RuleService) ListRules(userID, accountID uint) ([]models.Rule, error) {
	query := s.db.Preload("Actions").
		Joins("JOIN email_accounts ON email_accounts.id = rules.account_id").
		Where("email_accounts.user_id = ?", userID)
	if accountID != 0 {
		query = query.Where("rules.account_id = ?", accountID)
	}

	var rules []models.Rule
	err := query.Order("rules.id ASC").Find(&rules).Error
	return rules, err
}

// UpdateRuleInput represents the input for updating a rule. Nil action list
// keeps the existing actions.
type UpdateRuleInput struct {
	Name         string        `json:"name"`
	Instructions string        `json:"instructions"`
	FromPattern  string        `json:"from_pattern"`
	ToPattern    string        `json:"to_pattern"`
	SubjectPart  string        `json:"subject_part"`
	BodyPart     string        `json:"body_part"`
	Operator     string        `json:"operator"`
	Actions      []ActionInput `json:"actions"`
}

// UpdateRule updates a rule and, when provided, replaces its actions
func (s *RuleService) UpdateRule(id, userID uint, input UpdateRuleInput) (*models.Rule, error) {
	rule, err := s.GetRule(id, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		rule.Name = input.Name
	}
	rule.Instructions = input.Instructions
	rule.FromPattern = input.FromPattern
	rule.ToPattern = input.ToPattern
	rule.SubjectPart = input.SubjectPart
	rule.BodyPart = input.BodyPart
	if input.Operator != "" {
		operator := models.LogicalOperator(input.Operator)
		if operator != models.LogicalAnd && operator != models.LogicalOr {
			return nil, ErrInvalidRuleData
		}
		rule.Operator = operator
	}

	if input.Actions != nil {
		if err := s.db.Where("rule_id = ?", rule.ID).Delete(&models.Action{}).Error; err != nil {
			return nil, err
		}
		rule.Actions = nil
		for _, a := range input.Actions {
			actionType := models.ActionType(a.Type)
			if !actionType.IsValid() || a.DelayMinutes < 0 {
				return nil, ErrInvalidActionData
			}
			rule.Actions = append(rule.Actions, models.Action{
				RuleID:       rule.ID,
				Type:         actionType,
				Label:        a.Label,
				Folder:       a.Folder,
				To:           a.To,
				CC:           a.CC,
				BCC:          a.BCC,
				Subject:      a.Subject,
				Content:      a.Content,
				URL:          a.URL,
				DelayMinutes: a.DelayMinutes,
			})
		}
	}

	if err := s.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// SetRuleEnabled toggles a rule on or off
func (s *RuleService) SetRuleEnabled(id, userID uint, enabled bool) (*models.Rule, error) {
	rule, err := s.GetRule(id, userID)
	if err != nil {
		return nil, err
	}
	rule.Enabled = enabled
	if err := s.db.Model(rule).Update("enabled", enabled).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule deletes a rule and its actions
func (s *RuleService) DeleteRule(id, userID uint) error {
	rule, err := s.GetRule(id, userID)
	if err != nil {
		return err
	}
	if err := s.db.Where("rule_id = ?", rule.ID).Delete(&models.Action{}).Error; err != nil {
		return err
	}
	if err := s.db.Delete(rule).Error; err != nil {
		return err
	}

	_ = s.logService.LogInfo(userID, models.LogModuleEngine, "delete_rule", "Rule deleted", RuleEventDetails{
		RuleID:   id,
		RuleName: rule.Name,
	})
	return nil
}

// checkOwnership verifies the account belongs to the user
func (s *RuleService) checkOwnership(accountID, userID uint) error {
	var account models.EmailAccount
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRuleNotFound
		}
		return err
	}
	return nil
}
