package database

import (
	"os"
	"path/filepath"

	"github.com/inbox-agent/core/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize creates and returns a database connection
func Initialize(dbPath string) (*gorm.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.EmailAccount{},
		&models.Rule{},
		&models.Action{},
		&models.ExecutedRule{},
		&models.MatchReason{},
		&models.ExecutedAgentAction{},
		&models.ActionArtifact{},
		&models.AssistantDraft{},
		&models.TargetGroup{},
		&models.AllowedActionOption{},
		&models.ScheduledAction{},
		&models.ThreadTracker{},
		&models.ColdEmailSender{},
		&models.Log{},
	)
}
