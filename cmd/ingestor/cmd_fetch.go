package main

import (
	"github.com/spf13/cobra"
)

var fetchFlags struct {
	limit int
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <place_id>...",
	Short: "Fetch up to --limit newest reviews for each place id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchFlags.limit, "limit", 20, "Maximum reviews per place")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	d.log.Info().Strs("place_ids", args).Int("limit", fetchFlags.limit).Msg("fetching reviews")
	rep, err := d.poller.FetchAll(ctx, args, fetchFlags.limit)
	printSummary(cmd.OutOrStdout(), rep, err)
	return err
}
