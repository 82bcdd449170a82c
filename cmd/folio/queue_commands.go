package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/config"
	"folio/internal/queuectl"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage broker queues",
	}
	queueCmd.AddCommand(newQueueMoveCommand(ctx))
	queueCmd.AddCommand(newQueueDumpCommand(ctx))
	queueCmd.AddCommand(newQueueLoadCommand(ctx))
	queueCmd.AddCommand(newQueueEmptyCommand(ctx))
	queueCmd.AddCommand(newQueuePeekCommand(ctx))
	queueCmd.AddCommand(newQueueRequeueCommand(ctx))
	return queueCmd
}

func newQueueMoveCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "move <src> <dst>",
		Short: "Move items from the tail of src to the head of dst (all by default)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			moved, err := ctl.Move(cmd.Context(), args[0], args[1], count)
			if err != nil {
				if moved > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Moved %d item(s) before failing\n", moved)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %d item(s) from %s to %s\n", moved, args[0], args[1])
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of items to move (0 moves all)")
	return cmd
}

func newQueueDumpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <queue>",
		Short: "Write a queue to <dump_dir>/<queue>.dump without consuming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			path, n, err := ctl.Dump(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dumped %d item(s) to %s\n", n, path)
			return nil
		},
	}
}

func newQueueLoadCommand(ctx *commandContext) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Push each line of a dump file onto a queue",
		Long:  "Push each line of a dump file onto a queue. The queue defaults to the file's base name without .dump.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			n, err := ctl.Load(cmd.Context(), path, queue)
			if err != nil {
				return err
			}
			target := queue
			if target == "" {
				target = queuectl.QueueForDump(path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d item(s) into %s\n", n, target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Target queue (defaults to the dump file name)")
	return cmd
}

func newQueueEmptyCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "empty <queue>",
		Short: "Delete every item in a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to empty a queue without --yes")
			}
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			n, err := ctl.Empty(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s) from %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func newQueuePeekCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "peek <queue>",
		Short: "Print items from the head of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			items, err := ctl.Peek(cmd.Context(), args[0], count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, item := range items {
				fmt.Fprintln(out, item)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of items (0 prints all)")
	return cmd
}

func newQueueRequeueCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "requeue <crop|ocr>",
		Short: "Return items from a stage's error queue to its read queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			queues, ok := cfg.StageQueues(args[0])
			if !ok {
				return fmt.Errorf("unknown stage %q (use crop or ocr)", args[0])
			}
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			n, err := ctl.Requeue(cmd.Context(), queues.Error, queues.Read, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d item(s) from %s to %s\n", n, queues.Error, queues.Read)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of items (0 requeues all)")
	return cmd
}
