package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Baalavignesh/Aegis/store"
)

func NewKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <agent>",
		Short: "Pause an agent, rejecting all of its monitored calls",
		Args:  cobra.ExactArgs(1),
		RunE:  runKill,
	}
}

func NewReviveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revive <agent>",
		Short: "Re-activate a paused agent",
		Args:  cobra.ExactArgs(1),
		RunE:  runRevive,
	}
}

func runKill(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := backendClient().SetAgentStatus(cmd.Context(), name, store.StatusPaused); err != nil {
		return fmt.Errorf("failed to pause %s: %w", name, err)
	}
	fmt.Printf("Agent %s paused.\n", name)
	return nil
}

func runRevive(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := backendClient().SetAgentStatus(cmd.Context(), name, store.StatusActive); err != nil {
		return fmt.Errorf("failed to revive %s: %w", name, err)
	}
	fmt.Printf("Agent %s active.\n", name)
	return nil
}
