package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show prospecting run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := st.ListProspectingRuns(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		return printJSON(runs)
	},
}

var icpsCmd = &cobra.Command{
	Use:   "icps",
	Short: "List ICP snapshots in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		icps, err := st.ListICPs(ctx)
		if err != nil {
			return eris.Wrap(err, "list icps")
		}
		return printJSON(icps)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to show")
	rootCmd.AddCommand(runsCmd, icpsCmd)
}
