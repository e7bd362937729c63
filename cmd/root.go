package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFileFlag string

var rootCmd = &cobra.Command{
	Use:           "photoingest",
	Short:         "Index photo collections into a local catalogue",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. An interrupt cancels the command context:
// scans stop dispatching files and drain what is already in flight.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFileFlag, "config", "", "config file (default: photoingest.toml in the user config dir or the working dir)")
	pf.String("db-dir", "", "directory holding photos.db and locations.db")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-file", "", "also write JSON logs to this file")
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"db-dir":         "database_dir",
	"log-level":      "log_level",
	"log-file":       "log_file",
	"history":        "location_history_file",
	"reprocess":      "reprocess",
	"workers":        "num_workers",
	"queue-size":     "write_queue_size",
	"brackets":       "detect_brackets",
	"max-duration":   "bracket_max_duration",
	"extractor":      "extractor",
	"exiftool":       "exiftool_path",
	"thumbnail-size": "thumbnail_max_size",
}

// bindFlags attaches every known flag defined on cmd to its config key.
func bindFlags(cmd *cobra.Command) func(v *viper.Viper) error {
	return func(v *viper.Viper) error {
		for name, key := range flagKeys {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
		return nil
	}
}
