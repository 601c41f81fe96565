package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Baalavignesh/Aegis/store"
)

func NewApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Manage pending approval requests",
	}

	cmd.AddCommand(
		newApprovalsListCmd(),
		newApprovalsApproveCmd(),
		newApprovalsDenyCmd(),
	)

	return cmd
}

func newApprovalsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending approval requests",
		RunE:  runApprovalsList,
	}
}

func newApprovalsApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalsApprove,
	}
}

func newApprovalsDenyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deny <id>",
		Short: "Deny a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalsDeny,
	}
}

func runApprovalsList(cmd *cobra.Command, args []string) error {
	requests, err := backendClient().ListPendingApprovals(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list approvals: %w", err)
	}
	if len(requests) == 0 {
		fmt.Println("No pending approvals.")
		return nil
	}
	for _, request := range requests {
		fmt.Printf("%-6d %-20s %-24s %s\n",
			request.ID, request.AgentName, request.Action, string(request.Args))
	}
	return nil
}

func runApprovalsApprove(cmd *cobra.Command, args []string) error {
	return runApprovalsDecision(cmd, args[0], store.ApprovalApproved)
}

func runApprovalsDeny(cmd *cobra.Command, args []string) error {
	return runApprovalsDecision(cmd, args[0], store.ApprovalDenied)
}

func runApprovalsDecision(cmd *cobra.Command, rawID string, status store.ApprovalStatus) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid approval id %q", rawID)
	}
	if err := backendClient().DecideApproval(cmd.Context(), id, status); err != nil {
		return fmt.Errorf("failed to decide approval %d: %w", id, err)
	}
	fmt.Printf("Approval %d %s.\n", id, status)
	return nil
}
