package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/camden-git/photoingest/workers"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Manage the location history index",
}

var locationsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the location history file into the index if it changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.LocationHistoryFile == "" {
			return fmt.Errorf("no location history file: pass --history or set location_history_file")
		}
		if err := a.openIndex(cmd); err != nil {
			return err
		}
		n, err := a.index.Count()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s location samples indexed\n", humanize.Comma(int64(n)))
		return nil
	},
}

var backfillAll bool

var locationsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Resolve coordinates for stored photos that have none",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.openIndex(cmd); err != nil {
			return err
		}

		ser := workers.NewWriteSerializer(a.store, a.cfg.WriteQueueSize, a.log.Named("writer"))
		if err := ser.Start(); err != nil {
			return err
		}
		summary, err := workers.BackfillLocations(cmd.Context(), a.store, a.resolver(), ser, backfillAll, a.log.Named("backfill"))
		if stopErr := ser.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
		if err != nil {
			return err
		}

		_, failed := ser.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "%s of %s photos located (%s from EXIF, %s from history), %d write errors\n",
			humanize.Comma(int64(summary.Updated())),
			humanize.Comma(int64(summary.Considered)),
			humanize.Comma(int64(summary.FromEXIF)),
			humanize.Comma(int64(summary.FromHistory)),
			failed)
		return nil
	},
}

var locationsResolveCmd = &cobra.Command{
	Use:   "resolve <time>",
	Short: "Print the interpolated position at an RFC 3339 time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", args[0], err)
		}

		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.openIndex(cmd); err != nil {
			return err
		}
		lat, lng, err := a.index.Resolve(ts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.7f,%.7f\n", lat, lng)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{locationsLoadCmd, locationsBackfillCmd, locationsResolveCmd} {
		c.Flags().String("history", "", "location history JSON file")
		locationsCmd.AddCommand(c)
	}
	locationsBackfillCmd.Flags().BoolVar(&backfillAll, "all", false, "re-resolve photos that already have coordinates")
	rootCmd.AddCommand(locationsCmd)
}
