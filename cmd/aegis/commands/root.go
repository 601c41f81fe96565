package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Baalavignesh/Aegis/store/rest"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aegis",
		Short: "Aegis - agent action governance",
		Long:  `Aegis governs autonomous agent actions: policy rules, human approvals, a per-agent kill-switch and an audit trail.`,
	}

	cmd.PersistentFlags().String("backend", "http://localhost:8000", "Backend base URL")
	_ = viper.BindPFlag("backend", cmd.PersistentFlags().Lookup("backend"))
	viper.SetEnvPrefix("AEGIS")
	viper.AutomaticEnv()

	cmd.AddCommand(
		NewKillCmd(),
		NewReviveCmd(),
		NewLogsCmd(),
		NewApprovalsCmd(),
	)

	return cmd
}

func backendClient() *rest.Client {
	return rest.New(viper.GetString("backend"))
}
