package cli

import (
	"os"

	"github.com/inbox-agent/core/internal/api"
	"github.com/inbox-agent/core/internal/config"
	"github.com/inbox-agent/core/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db               *gorm.DB
	cfg              *config.Config
	userService      *services.UserService
	accountService   *services.AccountService
	executionService *services.ExecutionService
	engineFactory    *api.EngineFactory
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inbox-agent",
	Short: "Inbox agent rule engine backend",
	Long: `Inbox agent is a rule driven email automation backend.

This command line tool provides:
  - user management: create users, list users, reset passwords
  - rule inspection: list the configured rules
  - approval workflow: list, approve or deny pending actions

Examples:
  inbox-agent user create        # create a new user
  inbox-agent user list          # list all users
  inbox-agent account list       # list all email accounts
  inbox-agent account test 1     # probe account 1's IMAP/SMTP servers
  inbox-agent rule list          # list all rules
  inbox-agent approval list      # list actions awaiting approval
  inbox-agent approval approve 3 # approve action 3`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	userService = services.NewUserService(db)
	executionService = services.NewExecutionService(db)
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	accountService = services.NewAccountService(db, cfg.GetEncryptionKey())
	engineFactory = api.NewEngineFactory(db, cfg, accountService, logService)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(approvalCmd)
}
