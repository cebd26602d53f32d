package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRelayCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Fetch weighings from Diftar and post them to EnergyID",
		Long: `Logs in to the portal, reads up to 100 weighing records (oldest first),
and posts one payload per configured waste category to the EnergyID webhook.
The first failure aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := appInstance.Runner(dryRun).Run(cmd.Context()); err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log payloads instead of posting them")
	return cmd
}
