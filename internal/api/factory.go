package api

import (
	"time"

	"github.com/inbox-agent/core/internal/config"
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/engine"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/provider/imapsmtp"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// EngineFactory builds per-account engine components. Providers carry an
// account's credentials, so executors and orchestrators cannot be shared
// across accounts.
type EngineFactory struct {
	db       *gorm.DB
	cfg      *config.Config
	accounts *services.AccountService
	logs     *services.LogService
	settings *services.SettingsApplierService
}

// NewEngineFactory creates a new EngineFactory instance
func NewEngineFactory(db *gorm.DB, cfg *config.Config, accounts *services.AccountService, logs *services.LogService) *EngineFactory {
	return &EngineFactory{
		db:       db,
		cfg:      cfg,
		accounts: accounts,
		logs:     logs,
		settings: services.NewSettingsApplierService(db),
	}
}

// ProviderFor builds the account's IMAP/SMTP provider binding
func (f *EngineFactory) ProviderFor(account *models.EmailAccount) (provider.EmailProvider, error) {
	password, err := f.accounts.GetDecryptedPassword(account)
	if err != nil {
		return nil, err
	}
	return imapsmtp.New(account, password), nil
}

// ExecutorFor builds an executor bound to the account's IMAP/SMTP provider
func (f *EngineFactory) ExecutorFor(account *models.EmailAccount) (*engine.Executor, error) {
	password, err := f.accounts.GetDecryptedPassword(account)
	if err != nil {
		return nil, err
	}
	adapter := imapsmtp.New(account, password)
	validator := engine.NewPolicyValidator(f.db)
	return engine.NewExecutor(f.db, adapter, validator, f.settings, f.logs, f.cfg.OutboundEnabled), nil
}

// NewScheduler builds the shared delayed-action scheduler. One instance
// serves all accounts; it resolves the executor per staged action.
func (f *EngineFactory) NewScheduler() *engine.DBScheduler {
	interval := time.Duration(f.cfg.SchedulerSeconds) * time.Second
	return engine.NewDBScheduler(f.db, f.ExecutorFor, engine.NewTemplateArgumentGenerator(), f.logs, interval)
}

// OrchestratorFor builds a rule orchestrator for the account
func (f *EngineFactory) OrchestratorFor(account *models.EmailAccount, scheduler engine.Scheduler) (*engine.Orchestrator, error) {
	executor, err := f.ExecutorFor(account)
	if err != nil {
		return nil, err
	}
	return engine.NewOrchestrator(
		f.db,
		engine.NewStaticMatcher(),
		engine.NewTemplateArgumentGenerator(),
		executor,
		scheduler,
		engine.NewTrackerStatusResolver(f.db),
		engine.NewLogSenderAnalyzer(f.logs),
		f.logs,
	), nil
}
