package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [agent]",
		Short: "Show recent audit log entries, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLogs,
	}
	cmd.Flags().Int("limit", 10, "Number of entries to show")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	agentName := ""
	if len(args) > 0 {
		agentName = args[0]
	}
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := backendClient().ReadAudit(cmd.Context(), agentName, limit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("%s  %-20s %-24s %-9s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.AgentName, entry.Action, entry.Outcome, entry.Details)
	}
	return nil
}
