package cli

import (
	"fmt"
	"os"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/spf13/cobra"
)

// ruleCmd represents the rule command group
var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Inspect rules",
}

// ruleListCmd lists all rules across accounts
var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules",
	Run: func(cmd *cobra.Command, args []string) {
		var rules []models.Rule
		if err := db.Preload("Actions").Order("account_id ASC, id ASC").Find(&rules).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list rules: %v\n", err)
			os.Exit(1)
		}

		if len(rules) == 0 {
			fmt.Println("No rules yet.")
			return
		}

		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%-6s %-8s %-28s %-16s %-8s %s\n", "ID", "Account", "Name", "System", "Enabled", "Actions")
		fmt.Println("--------------------------------------------------------------")
		for _, r := range rules {
			system := string(r.SystemType)
			if system == "" {
				system = "-"
			}
			fmt.Printf("%-6d %-8d %-28s %-16s %-8t %d\n", r.ID, r.AccountID, r.Name, system, r.Enabled, len(r.Actions))
		}
		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%d rule(s)\n", len(rules))
	},
}

func init() {
	ruleCmd.AddCommand(ruleListCmd)
}
