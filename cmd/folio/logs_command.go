package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"folio/internal/logs"
)

func newWorkerLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow, output bool
	cmd := &cobra.Command{
		Use:   "logs <worker-name>",
		Short: "Show a worker's log file",
		Long: "Show the structured log of a worker instance (e.g. image_worker_2).\n" +
			"--output shows the stdout/stderr captured when the console started the worker.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.Path(cfg.Paths.LogDir, args[0])
			if output {
				path = logs.OutputPath(cfg.Paths.LogDir, args[0])
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !follow {
				return fmt.Errorf("no log file at %s", path)
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing appended lines")
	cmd.Flags().BoolVar(&output, "output", false, "Show captured process output instead of the log")
	return cmd
}
