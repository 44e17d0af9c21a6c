package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/inbox-agent/core/internal/api/handlers"
	"github.com/inbox-agent/core/internal/api/middleware"
	"github.com/inbox-agent/core/internal/config"
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/engine"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
	"gorm.io/gorm"
)

// SetupRouter initializes and returns the Gin router with all routes
// configured, plus the shared delayed-action scheduler. The caller owns the
// scheduler lifecycle.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *engine.DBScheduler, error) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	jwtManager := middleware.NewJWTManager(cfg.JWTSecret, middleware.DefaultTokenExpiry)

	// Initialize services
	userService := services.NewUserService(db)
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
	ruleService := services.NewRuleService(db)
	executionService := services.NewExecutionService(db)

	// Engine wiring. One scheduler serves every account; executors and
	// orchestrators are built per account on demand.
	factory := NewEngineFactory(db, cfg, accountService, logService)
	scheduler := factory.NewScheduler()

	orchestratorFor := func(account *models.EmailAccount) (*engine.Orchestrator, error) {
		return factory.OrchestratorFor(account, scheduler)
	}
	providerFor := func(account *models.EmailAccount) (provider.EmailProvider, error) {
		return factory.ProviderFor(account)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, jwtManager, logService)
	userHandler := handlers.NewUserHandler(userService, logService)
	accountHandler := handlers.NewAccountHandler(accountService, logService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	approvalHandler := handlers.NewApprovalHandler(executionService, factory.ExecutorFor)
	executionHandler := handlers.NewExecutionHandler(executionService, accountService, orchestratorFor, providerFor)
	settingsHandler := handlers.NewSettingsHandler(userService, logService)
	logHandler := handlers.NewLogHandler(logService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Auth routes (no JWT required)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes (JWT required)
		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(jwtManager))
		{
			// Auth routes that require authentication
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			// User routes
			userGroup := protected.Group("/user")
			{
				userGroup.GET("/profile", userHandler.GetProfile)
				userGroup.PUT("/profile", userHandler.UpdateProfile)
				userGroup.PUT("/password", userHandler.ChangePassword)
			}

			// Email account routes
			accounts := protected.Group("/accounts")
			{
				accounts.GET("", accountHandler.ListAccounts)
				accounts.POST("", accountHandler.CreateAccount)
				accounts.GET("/:id", accountHandler.GetAccount)
				accounts.PUT("/:id", accountHandler.UpdateAccount)
				accounts.DELETE("/:id", accountHandler.DeleteAccount)
				accounts.PUT("/:id/enable", accountHandler.EnableAccount)
				accounts.PUT("/:id/disable", accountHandler.DisableAccount)
				accounts.POST("/:id/test", accountHandler.TestAccountConnection)
				accounts.POST("/:id/run", executionHandler.RunRules)
			}

			// Rule routes
			rules := protected.Group("/rules")
			{
				rules.GET("", ruleHandler.ListRules)
				rules.POST("", ruleHandler.CreateRule)
				rules.GET("/:id", ruleHandler.GetRule)
				rules.PUT("/:id", ruleHandler.UpdateRule)
				rules.DELETE("/:id", ruleHandler.DeleteRule)
				rules.PUT("/:id/enable", ruleHandler.EnableRule)
				rules.PUT("/:id/disable", ruleHandler.DisableRule)
			}

			// Approval routes
			approvals := protected.Group("/approvals")
			{
				approvals.GET("", approvalHandler.ListApprovals)
				approvals.POST("/:id/approve", approvalHandler.Approve)
				approvals.POST("/:id/deny", approvalHandler.Deny)
			}

			// Execution history routes
			executions := protected.Group("/executions")
			{
				executions.GET("", executionHandler.ListExecutions)
				executions.GET("/:id", executionHandler.GetExecution)
			}

			// Scheduled delayed actions
			protected.GET("/scheduled", executionHandler.ListScheduled)

			// Settings routes
			settings := protected.Group("/settings")
			{
				settings.GET("", settingsHandler.GetSettings)
				settings.PUT("", settingsHandler.UpdateSettings)
			}

			// Audit log
			protected.GET("/logs", logHandler.ListLogs)
		}
	}

	return router, scheduler, nil
}
