package services

import (
	"os"
	"testing"
	"time"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLogTestDB(t *testing.T) (*gorm.DB, func()) {
	tmpFile, err := os.CreateTemp("", "log_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	err = db.AutoMigrate(&models.Log{})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

// TestProperty_LogCompleteness tests that every logged event produces a
// complete record with the correct level, module, user ID, and timestamp.
func TestProperty_LogCompleteness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	modules := []models.LogModule{
		models.LogModuleAuth,
		models.LogModuleAccount,
		models.LogModuleEngine,
		models.LogModuleExecutor,
		models.LogModuleApproval,
		models.LogModuleScheduler,
	}

	properties.Property("logged_event_creates_complete_entry", prop.ForAll(
		func(userID uint, moduleIdx int, warn bool) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogService(db)
			module := modules[moduleIdx%len(modules)]
			beforeTime := time.Now().Add(-time.Second)

			var err error
			if warn {
				err = service.LogWarn(userID, module, "event", "something happened", nil)
			} else {
				err = service.LogInfo(userID, module, "event", "something happened", nil)
			}
			if err != nil {
				return false
			}

			afterTime := time.Now().Add(time.Second)

			var log models.Log
			if err := db.Where("module = ? AND action = ?", string(module), "event").First(&log).Error; err != nil {
				return false
			}

			expectedLevel := string(models.LogLevelInfo)
			if warn {
				expectedLevel = string(models.LogLevelWarn)
			}

			return log.UserID == userID &&
				log.Level == expectedLevel &&
				log.Message == "something happened" &&
				log.CreatedAt.After(beforeTime) &&
				log.CreatedAt.Before(afterTime)
		},
		gen.UIntRange(1, 1000),
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.Property("details_are_serialized_to_json", prop.ForAll(
		func(userID uint, actionID uint) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogService(db)
			err := service.LogInfo(userID, models.LogModuleExecutor, "execute", "Action executed", ActionEventDetails{
				ActionID: actionID,
				Kind:     "archive",
				Status:   "SUCCESS",
			})
			if err != nil {
				return false
			}

			var log models.Log
			if err := db.Where("action = ?", "execute").First(&log).Error; err != nil {
				return false
			}
			return log.Details != "" && log.Details != "{}"
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 10000),
	))

	properties.TestingRun(t)
}

// TestProperty_LogLevelFiltering tests that log level filtering works correctly
func TestProperty_LogLevelFiltering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	// Property: log level filtering respects configured level
	properties.Property("log_level_filtering_respects_configured_level", prop.ForAll(
		func(userID uint) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			// Create service with ERROR level - should only log ERROR
			service := NewLogServiceWithLevel(db, "ERROR")

			service.LogDebug(userID, models.LogModuleAPI, "test", "debug message", nil)
			service.LogInfo(userID, models.LogModuleAPI, "test", "info message", nil)
			service.LogWarn(userID, models.LogModuleAPI, "test", "warn message", nil)
			service.LogError(userID, models.LogModuleAPI, "test", "error message", nil)

			var count int64
			db.Model(&models.Log{}).Count(&count)

			return count == 1
		},
		gen.UIntRange(1, 1000),
	))

	// Property: INFO level logs INFO, WARN, and ERROR
	properties.Property("info_level_logs_info_warn_error", prop.ForAll(
		func(userID uint) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogServiceWithLevel(db, "INFO")

			service.LogDebug(userID, models.LogModuleAPI, "test", "debug message", nil)
			service.LogInfo(userID, models.LogModuleAPI, "test", "info message", nil)
			service.LogWarn(userID, models.LogModuleAPI, "test", "warn message", nil)
			service.LogError(userID, models.LogModuleAPI, "test", "error message", nil)

			// INFO, WARN, ERROR should be logged (3 entries)
			var count int64
			db.Model(&models.Log{}).Count(&count)

			return count == 3
		},
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}

// TestProperty_LogListing tests the listing filters
func TestProperty_LogListing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("listing_filters_by_user_level_and_module", prop.ForAll(
		func(userA uint, extra int) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			userB := userA + 1
			service := NewLogServiceWithLevel(db, "DEBUG")

			service.LogInfo(userA, models.LogModuleAuth, "login", "a login", nil)
			service.LogWarn(userA, models.LogModuleAuth, "login", "a failed login", nil)
			service.LogInfo(userA, models.LogModuleExecutor, "execute", "a action", nil)
			for i := 0; i < extra; i++ {
				service.LogInfo(userB, models.LogModuleAuth, "login", "b login", nil)
			}

			logs, total, err := service.ListLogs(ListLogsInput{UserID: userA})
			if err != nil || total != 3 || len(logs) != 3 {
				return false
			}

			logs, total, err = service.ListLogs(ListLogsInput{UserID: userA, Level: "warn"})
			if err != nil || total != 1 || len(logs) != 1 {
				return false
			}

			logs, total, err = service.ListLogs(ListLogsInput{UserID: userA, Module: string(models.LogModuleExecutor)})
			if err != nil || total != 1 {
				return false
			}
			return logs[0].Action == "execute"
		},
		gen.UIntRange(1, 1000),
		gen.IntRange(0, 5),
	))

	properties.Property("listing_respects_limit_and_offset", prop.ForAll(
		func(userID uint, n int) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogService(db)
			for i := 0; i < n; i++ {
				service.LogInfo(userID, models.LogModuleAPI, "request", "req", nil)
			}

			logs, total, err := service.ListLogs(ListLogsInput{UserID: userID, Limit: 2})
			if err != nil || total != int64(n) {
				return false
			}
			want := n
			if want > 2 {
				want = 2
			}
			return len(logs) == want
		},
		gen.UIntRange(1, 1000),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestCleanupOldLogs(t *testing.T) {
	db, cleanup := setupLogTestDB(t)
	defer cleanup()

	service := NewLogService(db)
	if err := service.LogInfo(1, models.LogModuleAPI, "request", "recent", nil); err != nil {
		t.Fatalf("Failed to log: %v", err)
	}

	old := &models.Log{UserID: 1, Level: "INFO", Module: "api", Action: "request", Message: "old"}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("Failed to create old log: %v", err)
	}
	if err := db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("Failed to backdate: %v", err)
	}

	deleted, err := service.CleanupOldLogs(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	var count int64
	db.Model(&models.Log{}).Count(&count)
	if count != 1 {
		t.Fatalf("Expected 1 remaining, got %d", count)
	}
}
