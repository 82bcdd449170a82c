package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/provenance"
	"folio/internal/workitem"
)

func newProvenanceCommand(ctx *commandContext) *cobra.Command {
	provCmd := &cobra.Command{
		Use:     "provenance",
		Aliases: []string{"prov"},
		Short:   "Inspect and edit case provenance documents",
	}
	provCmd.AddCommand(newProvenanceShowCommand(ctx))
	provCmd.AddCommand(newProvenanceSetCommand(ctx, "title", "Set a page title", func(docs *provenance.Store, cmd *cobra.Command, c workitem.Case, value string) error {
		return docs.SetTitle(cmd.Context(), c, value)
	}))
	provCmd.AddCommand(newProvenanceSetCommand(ctx, "origin", "Set a page's origin scan", func(docs *provenance.Store, cmd *cobra.Command, c workitem.Case, value string) error {
		return docs.SetOrigin(cmd.Context(), c, value)
	}))
	return provCmd
}

func newProvenanceShowCommand(ctx *commandContext) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <shelfmark> <index>",
		Short: "Summarize a case document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := ctx.provenance()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := docs.DocumentPath(args[0], args[1])
			if raw {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				_, err = out.Write(data)
				return err
			}
			doc, ok, err := docs.Load(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no provenance document at %s", path)
			}
			fmt.Fprintf(out, "%s (shelfmark %q, index %q)\n", path, doc.Shelfmark, doc.Index)
			rows := make([][]string, 0, len(doc.Items))
			for _, item := range doc.Items {
				rows = append(rows, itemRow(item))
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Seq", "Title", "Origin", "Images", "OCR", "Last event"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "xml", false, "Print the document XML")
	return cmd
}

func itemRow(item *provenance.Item) []string {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	images := make([]string, 0, len(item.Images))
	for _, img := range item.Images {
		images = append(images, img.Type)
	}
	last := ""
	if item.Log != nil && len(item.Log.Entries) > 0 {
		entry := item.Log.Entries[len(item.Log.Entries)-1]
		last = fmt.Sprintf("%s %s: %s", entry.Timestamp, entry.Process, entry.Status)
	}
	return []string{
		item.Sequence,
		truncate(deref(item.Title), 30),
		truncate(deref(item.Origin), 40),
		strings.Join(images, ","),
		strconv.Itoa(len(item.OCR)),
		truncate(last, 60),
	}
}

func newProvenanceSetCommand(ctx *commandContext, field, short string, apply func(*provenance.Store, *cobra.Command, workitem.Case, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   field + " <shelfmark> <index> <sequence> <value>",
		Short: short,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := ctx.provenance()
			if err != nil {
				return err
			}
			c := workitem.Case{Shelfmark: args[0], Index: args[1], Sequence: args[2]}
			if err := apply(docs, cmd, c, args[3]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s for %s\n", field, c.Label())
			return nil
		},
	}
}
