package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/camden-git/photoingest/workers"
)

var bracketsCmd = &cobra.Command{
	Use:   "brackets",
	Short: "Detect exposure bracket sequences among stored photos",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ser := workers.NewWriteSerializer(a.store, a.cfg.WriteQueueSize, a.log.Named("writer"))
		if err := ser.Start(); err != nil {
			return err
		}
		n, err := workers.DetectBrackets(cmd.Context(), a.store, ser, a.cfg.BracketMaxDuration, a.log.Named("brackets"))
		if stopErr := ser.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d bracket groups recorded\n", n)
		return nil
	},
}

var bracketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the recorded bracket groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.store.ListBracketGroups(cmd.Context())
		if err != nil {
			return err
		}
		for _, g := range groups {
			if len(g.Members) == 0 {
				continue
			}
			names := make([]string, len(g.Members))
			for i, m := range g.Members {
				names[i] = filepath.Base(m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", filepath.Dir(g.Members[0]), strings.Join(names, " "))
		}
		return nil
	},
}

func init() {
	bracketsCmd.Flags().Duration("max-duration", 0, "longest time a bracket sequence may take")
	bracketsCmd.AddCommand(bracketsListCmd)
	rootCmd.AddCommand(bracketsCmd)
}
