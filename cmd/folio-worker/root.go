package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"folio/internal/config"
)

func newRootCommand() *cobra.Command {
	var opts workerOptions

	cmd := &cobra.Command{
		Use:           "folio-worker <crop|ocr>",
		Short:         "Run a folio pipeline worker",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{config.StageCrop, config.StageOCR},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.stage = strings.ToLower(strings.TrimSpace(args[0]))
			if opts.stage != config.StageCrop && opts.stage != config.StageOCR {
				return fmt.Errorf("unknown stage %q (use crop or ocr)", args[0])
			}
			if cmd.Flags().Changed("instance") && opts.instance <= 0 {
				return fmt.Errorf("-n must be a positive integer, got %d", opts.instance)
			}
			return runWorker(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.instance, "instance", "n", 0, "Instance number appended to the worker name")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	return cmd
}
