package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docbridge/internal/logtail"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()

			chunk, err := logtail.Read(path, lines)
			if err != nil {
				return err
			}
			for _, line := range chunk.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if !follow {
				if len(chunk.Lines) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No log entries recorded")
				}
				return nil
			}

			offset := chunk.Offset
			for {
				next, err := logtail.Wait(cmd.Context(), path, offset, time.Second)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("follow log: %w", err)
				}
				for _, line := range next.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				offset = next.Offset
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show (0 for the whole file)")
	return cmd
}
