package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir...]",
	Short: "Scan directories and record every photo not yet in the store",
	Long: `Scan the given directories (or ingest_paths from the configuration)
recursively, extract metadata and thumbnails, resolve locations and detect
exposure bracket sequences.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(a.cfg.IngestPaths) == 0 {
			return fmt.Errorf("no directories to ingest: pass them as arguments or set ingest_paths")
		}
		if err := a.openIndex(cmd); err != nil {
			return err
		}
		ext, err := a.extractor()
		if err != nil {
			return err
		}

		orch := a.orchestrator(ext)
		if err := orch.SetDirectories(a.cfg.IngestPaths); err != nil {
			return err
		}
		a.log.Info("starting ingest", zap.Int("files", orch.TotalFileCount()), zap.Strings("dirs", a.cfg.IngestPaths))

		printer := newProgressPrinter(cmd.OutOrStdout(), orch.TotalFileCount())
		summary, err := orch.Scan(cmd.Context(), a.cfg.Reprocess, printer.Handle)
		if err != nil {
			return err
		}
		if summary.GroupsFound > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d bracket groups recorded\n", summary.GroupsFound)
		}
		return nil
	},
}

func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("reprocess", false, "process files already in the store again")
	f.Int("workers", 0, "number of extraction workers")
	f.Int("queue-size", 0, "capacity of the write queue")
	f.Bool("brackets", true, "detect exposure bracket sequences after the scan")
	f.Duration("max-duration", 0, "longest time a bracket sequence may take")
	f.String("extractor", "", "metadata extractor: exiftool or goexif")
	f.String("exiftool", "", "path to the exiftool binary")
	f.Int("thumbnail-size", 0, "longest side of stored thumbnails in pixels")
	f.String("history", "", "location history JSON file")
}

func init() {
	addScanFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}
