package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"folio/internal/config"
	"folio/internal/deps"
	"folio/internal/queuectl"
	"folio/internal/supervisor"
)

const startupWatch = 750 * time.Millisecond

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Start and stop worker processes",
	}
	workerCmd.AddCommand(newWorkerStartCommand(ctx))
	workerCmd.AddCommand(newWorkerKillCommand(ctx))
	workerCmd.AddCommand(newWorkerForgetCommand(ctx))
	workerCmd.AddCommand(newWorkerDepsCommand(ctx))
	workerCmd.AddCommand(newWorkerLogsCommand(ctx))
	return workerCmd
}

func newWorkerStartCommand(ctx *commandContext) *cobra.Command {
	var instance int
	cmd := &cobra.Command{
		Use:   "start <crop|ocr|worker-name>",
		Short: "Launch a detached worker process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.broker(cmd.Context())
			if err != nil {
				return err
			}
			sup := supervisor.New(cfg, store, ctx.configPath, nil)
			var child *supervisor.Child
			if _, isStage := cfg.StageQueues(args[0]); isStage {
				child, err = sup.Start(cmd.Context(), args[0], instance)
			} else {
				child, err = sup.StartName(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			select {
			case <-child.Done():
				return fmt.Errorf("worker %s exited during startup (%v); see %s", child.Name, child.Err(), child.LogPath)
			case <-time.After(startupWatch):
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s (pid %d), output in %s\n", child.Name, child.PID, child.LogPath)
			return nil
		},
	}
	cmd.Flags().IntVarP(&instance, "instance", "n", 0, "Instance number when starting by stage")
	return cmd
}

func newWorkerKillCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "kill <worker-name|pid>",
		Short: "Signal a worker to stop",
		Long:  "Send SIGTERM to a worker, which releases its in-flight item and exits. --force sends SIGKILL and may strand the item in the work queue.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pid, err := strconv.Atoi(args[0]); err == nil {
				if err := queuectl.Kill(pid, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signalled pid %d\n", pid)
				return nil
			}
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			pid, err := ctl.KillWorker(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signalled %s (pid %d)\n", args[0], pid)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Send SIGKILL instead of SIGTERM")
	return cmd
}

func newWorkerForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <worker-name>",
		Short: "Remove a worker's status and pid entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctl.Forget(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
			return nil
		},
	}
}

func newWorkerDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and OCR dictionaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0)
			for _, st := range deps.CheckBinaries(deps.Requirements(cfg)) {
				kind := statusOK
				label := "ok"
				if !st.Available {
					kind, label = statusError, "missing"
					if st.Optional {
						kind = statusWarn
					}
				}
				rows = append(rows, []string{st.Name, st.Command, colorizeKind(kind, label, colorize), st.Detail})
			}
			if cfg.OCR.Engine == config.EngineTesseractCLI {
				have, err := deps.TesseractLanguages(cmd.Context(), cfg.OCR.TesseractBinary)
				switch {
				case err != nil:
					rows = append(rows, []string{"Dictionaries", "", colorizeKind(statusWarn, "unknown", colorize), err.Error()})
				default:
					missing := deps.MissingLanguages(have, cfg.OCR.Dicts)
					if len(missing) == 0 {
						rows = append(rows, []string{"Dictionaries", "", colorizeKind(statusOK, "ok", colorize), fmt.Sprint(cfg.OCR.Dicts)})
					} else {
						rows = append(rows, []string{"Dictionaries", "", colorizeKind(statusError, "missing", colorize), fmt.Sprint(missing)})
					}
				}
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows, nil))
			return nil
		},
	}
}
