package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/spf13/cobra"
)

// accountCmd represents the account command group
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect and test email accounts",
}

// accountListCmd lists all email accounts
var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all email accounts",
	Run: func(cmd *cobra.Command, args []string) {
		var accounts []models.EmailAccount
		if err := db.Order("user_id ASC, id ASC").Find(&accounts).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list accounts: %v\n", err)
			os.Exit(1)
		}

		if len(accounts) == 0 {
			fmt.Println("No accounts yet.")
			return
		}

		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%-6s %-6s %-30s %-10s %s\n", "ID", "User", "Email", "Provider", "Enabled")
		fmt.Println("--------------------------------------------------------------")
		for _, a := range accounts {
			fmt.Printf("%-6d %-6d %-30s %-10s %t\n", a.ID, a.UserID, a.Email, a.Provider, a.Enabled)
		}
		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%d account(s)\n", len(accounts))
	},
}

// accountTestCmd probes an account's IMAP and SMTP servers
var accountTestCmd = &cobra.Command{
	Use:   "test <account-id>",
	Short: "Test an account's IMAP and SMTP connectivity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid account ID %q\n", args[0])
			os.Exit(1)
		}

		var account models.EmailAccount
		if err := db.First(&account, uint(id)).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error: account %d not found\n", id)
			os.Exit(1)
		}

		fmt.Printf("Testing %s ...\n", account.Email)
		report, err := accountService.TestConnection(account.ID, account.UserID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: connection test failed: %v\n", err)
			os.Exit(1)
		}

		printProbe := func(name string, ok bool, message string) {
			status := "OK"
			if !ok {
				status = "FAILED"
			}
			fmt.Printf("  %-5s %-7s %s\n", name, status, message)
		}
		printProbe("IMAP", report.IMAP.Success, report.IMAP.Message)
		printProbe("SMTP", report.SMTP.Success, report.SMTP.Message)

		if !report.IMAP.Success || !report.SMTP.Success {
			os.Exit(1)
		}
	},
}

func init() {
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountTestCmd)
}
