package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcbox-labs/buildkit-client/pkg/buildkit"
)

func newCmdHealth() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "check whether the daemon is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildkit.Dial(cmd.Context(), daemonAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.Info(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s daemon at %s is unreachable: %v\n", failStatus, daemonAddr, err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s daemon at %s is reachable (version %s)\n", okStatus, daemonAddr, info.Version)
			return nil
		},
	}
}
