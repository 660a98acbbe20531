package main

import (
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"reviewsync/internal/app"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Fetch the last 24h of reviews for every business with an active subscription",
	Args:  cobra.NoArgs,
	RunE:  runDaily,
}

func runDaily(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	ids, err := d.store.ActiveSubscriptionPlaceIDs(ctx)
	if err != nil {
		printSummary(cmd.OutOrStdout(), nil, err)
		return err
	}
	d.log.Info().Int("businesses", len(ids)).Int("workers", d.cfg.Workers).Msg("found businesses with active subscriptions")

	reports := make(map[string]app.FetchReport, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(d.cfg.Workers))

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(placeID string) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := d.poller.FetchLast24h(ctx, placeID)
			if err != nil {
				d.log.Error().Err(err).Str("place_id", placeID).Msg("daily fetch failed")
			} else {
				d.log.Info().Str("place_id", placeID).Int("resolved", rep.Resolved).Int("abandoned", len(rep.Abandoned)).Msg("daily fetch done")
			}
			mu.Lock()
			reports[placeID] = rep
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	printSummary(cmd.OutOrStdout(), reports, ctx.Err())
	return ctx.Err()
}
