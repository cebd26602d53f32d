package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/diftar2energyid/internal/relay"
)

func newRowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rows",
		Short: "Print the portal rows as the parser understands them",
		Long: `Logs in to the portal and prints every weighing row with its parsed date,
category, weight and fee. Rows that fail to parse are shown with the reason.
Nothing is sent to EnergyID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := relay.Inspect(cmd.Context(), appInstance.RowSource())
			if err != nil {
				return fmt.Errorf("rows: %w", err)
			}
			return printRows(cmd, rows)
		},
	}
}

func printRows(cmd *cobra.Command, rows []relay.Row) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCATEGORY\tWEIGHT (kg)\tFEE (EUR)\tSTATUS")
	for _, row := range rows {
		fee := "-"
		if row.HasFee {
			fee = row.Fee.StringFixed(2)
		}
		if row.Err != nil {
			fmt.Fprintf(tw, "-\t-\t-\t%s\t%v\n", fee, row.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tok\n",
			row.Measurement.Date, row.Category, row.Measurement.Weight.StringFixed(1), fee)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
