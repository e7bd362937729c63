package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/photoingest/workers"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir...]",
	Short: "Ingest the directories, then keep ingesting files added to them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, args)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(a.cfg.IngestPaths) == 0 {
			return fmt.Errorf("no directories to watch: pass them as arguments or set ingest_paths")
		}
		if err := a.openIndex(cmd); err != nil {
			return err
		}
		ext, err := a.extractor()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		orch := a.orchestrator(ext)
		// watch first so files created during the initial scan are not missed
		watcher, err := workers.NewWatcher(orch, a.cfg.IngestPaths, watchDebounce, a.log.Named("watch"))
		if err != nil {
			return err
		}
		defer watcher.Close()

		if err := orch.SetDirectories(a.cfg.IngestPaths); err != nil {
			return err
		}
		printer := newProgressPrinter(cmd.OutOrStdout(), orch.TotalFileCount())
		if _, err := orch.Scan(ctx, a.cfg.Reprocess, printer.Handle); err != nil {
			return err
		}

		a.log.Info("watching for new files", zap.Strings("dirs", a.cfg.IngestPaths))
		return watcher.Run(ctx, a.cfg.Reprocess, func(ev workers.Progress) {
			switch ev.Event {
			case workers.EventEnd:
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %s\n", ev.Path)
			case workers.EventError:
				a.log.Warn("ingest failed", zap.Error(ev.Err))
			}
		})
	},
}

func init() {
	addScanFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", workers.DefaultWatchDebounce, "quiet period before new files are ingested")
	rootCmd.AddCommand(watchCmd)
}
