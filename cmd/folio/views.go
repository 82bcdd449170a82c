package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"folio/internal/queuectl"
)

func newQueuesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "Show queue lengths",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := ctl.ListQueues(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{info.Name, info.Stage, info.Role, strconv.Itoa(info.Length)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Queue", "Stage", "Role", "Items"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"workers"},
		Short:   "Show worker status and liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			workers, err := ctl.ListWorkers(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, workers)
			}
			out := cmd.OutOrStdout()
			if len(workers) == 0 {
				fmt.Fprintln(out, "No workers have reported")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(workers))
			for _, w := range workers {
				rows = append(rows, []string{
					w.Name,
					w.Stage,
					pidLabel(w.PID),
					colorizeKind(livenessKind(w), yesNo(w.Alive), colorize),
					formatAge(w.Status.At),
					w.Status.Message,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Worker", "Stage", "PID", "Alive", "Updated", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newErrorsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the most recent error records of each stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := ctl.RecentErrors(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No errors recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				if e.ParseErr != nil {
					rows = append(rows, []string{e.Queue, "", "unparseable record", truncate(e.Raw, 60)})
					continue
				}
				rows = append(rows, []string{e.Queue, e.Record.Timestamp, e.Record.Error, truncate(e.Record.Item(), 60)})
			}
			fmt.Fprintln(out, renderTable([]string{"Queue", "Time", "Error", "Item"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Records per error queue")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func livenessKind(w queuectl.WorkerInfo) statusKind {
	switch {
	case w.PID == 0:
		return statusInfo
	case w.Alive && strings.HasPrefix(w.Status.Message, "Terminated"):
		return statusWarn
	case w.Alive:
		return statusOK
	default:
		return statusError
	}
}

func pidLabel(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}

func formatAge(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	age := time.Since(at).Round(time.Second)
	if age < 0 {
		age = 0
	}
	return age.String() + " ago"
}
