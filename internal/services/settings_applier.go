package services

import (
	"encoding/json"
	"errors"

	"github.com/inbox-agent/core/internal/database/models"
	"gorm.io/gorm"
)

// ErrInvalidSettingsPayload indicates the update_settings payload could not
// be parsed
var ErrInvalidSettingsPayload = errors.New("invalid settings payload")

// SettingsPatch is the payload format of an update_settings action. Only the
// fields present in the JSON are applied.
type SettingsPatch struct {
	OutboundEnabled    *bool `json:"outbound_enabled,omitempty"`
	MaxSendsPerDay     *int  `json:"max_sends_per_day,omitempty"`
	AutomationEnabled  *bool `json:"automation_enabled,omitempty"`
	ColdEmailDetection *bool `json:"cold_email_detection,omitempty"`
	DigestEnabled      *bool `json:"digest_enabled,omitempty"`
}

// SettingsApplierService applies update_settings action payloads to the
// owning user's automation policy
type SettingsApplierService struct {
	db *gorm.DB
}

// NewSettingsApplierService creates a new SettingsApplierService instance
func NewSettingsApplierService(db *gorm.DB) *SettingsApplierService {
	return &SettingsApplierService{db: db}
}

// Apply parses the payload and patches the settings of the account's owner
func (s *SettingsApplierService) Apply(accountID uint, payload string) error {
	var patch SettingsPatch
	if err := json.Unmarshal([]byte(payload), &patch); err != nil {
		return ErrInvalidSettingsPayload
	}

	var account models.EmailAccount
	if err := s.db.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	var settings models.UserSettings
	err := s.db.Where("user_id = ?", account.UserID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.UserSettings{
			UserID:             account.UserID,
			MaxSendsPerDay:     50,
			AutomationEnabled:  true,
			ColdEmailDetection: true,
		}
		if err := s.db.Create(&settings).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if patch.OutboundEnabled != nil {
		updates["outbound_enabled"] = *patch.OutboundEnabled
	}
	if patch.MaxSendsPerDay != nil {
		updates["max_sends_per_day"] = *patch.MaxSendsPerDay
	}
	if patch.AutomationEnabled != nil {
		updates["automation_enabled"] = *patch.AutomationEnabled
	}
	if patch.ColdEmailDetection != nil {
		updates["cold_email_detection"] = *patch.ColdEmailDetection
	}
	if patch.DigestEnabled != nil {
		updates["digest_enabled"] = *patch.DigestEnabled
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&settings).Updates(updates).Error
}
