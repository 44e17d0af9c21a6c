package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/engine"
	"github.com/spf13/cobra"
)

// approvalCmd represents the approval command group
var approvalCmd = &cobra.Command{
	Use:   "approval",
	Short: "Manage pending action approvals",
	Long:  `List actions waiting for approval and approve or deny them on behalf of the account owner.`,
}

// approvalListCmd lists all actions awaiting approval
var approvalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List actions awaiting approval",
	Run: func(cmd *cobra.Command, args []string) {
		var actions []models.ExecutedAgentAction
		err := db.Preload("Account").
			Where("status = ?", models.ActionStatusPendingApproval).
			Order("created_at ASC").
			Find(&actions).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list approvals: %v\n", err)
			os.Exit(1)
		}

		if len(actions) == 0 {
			fmt.Println("Nothing waiting for approval.")
			return
		}

		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%-6s %-24s %-16s %s\n", "ID", "Account", "Type", "Created")
		fmt.Println("--------------------------------------------------------------")
		for _, a := range actions {
			email := "-"
			if a.Account != nil {
				email = a.Account.Email
			}
			fmt.Printf("%-6d %-24s %-16s %s\n", a.ID, email, a.Type, a.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println("--------------------------------------------------------------")
		fmt.Printf("%d action(s) awaiting approval\n", len(actions))
	},
}

// approvalApproveCmd approves one pending action
var approvalApproveCmd = &cobra.Command{
	Use:   "approve <action-id>",
	Short: "Approve a pending action and execute it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		executor, actionID, ownerID := executorForAction(args[0])

		result, err := executor.Approve(actionID, ownerID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to approve action: %v\n", err)
			os.Exit(1)
		}

		if result.Success {
			fmt.Printf("Action %d approved and executed.\n", actionID)
		} else {
			fmt.Printf("Action %d approved but execution failed: %s\n", actionID, result.Reason)
		}
	},
}

// approvalDenyCmd denies one pending action
var approvalDenyCmd = &cobra.Command{
	Use:   "deny <action-id>",
	Short: "Deny a pending action",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		executor, actionID, ownerID := executorForAction(args[0])

		if err := executor.Deny(actionID, ownerID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to deny action: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Action %d denied.\n", actionID)
	},
}

// executorForAction resolves an action id to an executor bound to the
// action's account, acting on behalf of the account owner
func executorForAction(idArg string) (*engine.Executor, uint, uint) {
	id, err := strconv.ParseUint(idArg, 10, 32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: invalid action ID")
		os.Exit(1)
	}

	action, err := executionService.GetAction(uint(id))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: action not found: %v\n", err)
		os.Exit(1)
	}
	if action.Account == nil {
		fmt.Fprintln(os.Stderr, "Error: action has no account")
		os.Exit(1)
	}

	executor, err := engineFactory.ExecutorFor(action.Account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build executor: %v\n", err)
		os.Exit(1)
	}
	return executor, uint(id), action.Account.UserID
}

func init() {
	approvalCmd.AddCommand(approvalListCmd)
	approvalCmd.AddCommand(approvalApproveCmd)
	approvalCmd.AddCommand(approvalDenyCmd)
}
