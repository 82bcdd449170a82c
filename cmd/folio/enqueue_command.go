package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"folio/internal/config"
	"folio/internal/fileutil"
	"folio/internal/workitem"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue work for a pipeline stage",
	}
	enqueueCmd.AddCommand(newEnqueueCropCommand(ctx))
	enqueueCmd.AddCommand(newEnqueueOCRCommand(ctx))
	return enqueueCmd
}

type directPaths struct {
	infile string
	output string
}

func newEnqueueCropCommand(ctx *commandContext) *cobra.Command {
	var origin, title string
	var overwrite bool
	var direct directPaths
	cmd := &cobra.Command{
		Use:   "crop [<shelfmark> <index> <sequence>]",
		Short: "Queue a page for cropping",
		Long: "Queue a case page for cropping, recording --origin (the raw scan) in its provenance document,\n" +
			"or queue an explicit file pair with --infile and --outfile.",
		Args: cobra.RangeArgs(0, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			extra := map[string]any{}
			if overwrite {
				extra["overwrite"] = true
			}
			if direct.infile != "" || direct.output != "" {
				if len(args) != 0 {
					return errors.New("use either a case or --infile/--outfile, not both")
				}
				extra["infile"], extra["outfile"] = direct.infile, direct.output
				return ctx.push(cmd, cfg.Crop.Queues.Read, extra)
			}
			c, err := caseArgs(args)
			if err != nil {
				return err
			}
			if origin != "" {
				if origin, err = config.ExpandPath(origin); err != nil {
					return err
				}
				if !fileutil.IsFile(origin) {
					return fmt.Errorf("origin %s does not exist", origin)
				}
				docs, err := ctx.provenance()
				if err != nil {
					return err
				}
				if err := docs.AddItem(cmd.Context(), c, title, origin); err != nil {
					return err
				}
			}
			raw, err := workitem.EncodeCase(c, extra)
			if err != nil {
				return err
			}
			return ctx.pushRaw(cmd, cfg.Crop.Queues.Read, raw)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Raw scan to record as the page's origin")
	cmd.Flags().StringVar(&title, "title", "", "Page title to record with the origin")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing cropped image")
	cmd.Flags().StringVar(&direct.infile, "infile", "", "Input image (direct mode)")
	cmd.Flags().StringVar(&direct.output, "outfile", "", "Output image (direct mode)")
	return cmd
}

func newEnqueueOCRCommand(ctx *commandContext) *cobra.Command {
	var dicts []string
	var direct directPaths
	cmd := &cobra.Command{
		Use:   "ocr [<shelfmark> <index> <sequence>]",
		Short: "Queue a cropped page for OCR",
		Args:  cobra.RangeArgs(0, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			extra := map[string]any{}
			if len(dicts) > 0 {
				extra["dicts"] = dicts
			}
			if direct.infile != "" || direct.output != "" {
				if len(args) != 0 {
					return errors.New("use either a case or --infile/--outpath, not both")
				}
				extra["infile"], extra["outpath"] = direct.infile, direct.output
				return ctx.push(cmd, cfg.OCR.Queues.Read, extra)
			}
			c, err := caseArgs(args)
			if err != nil {
				return err
			}
			raw, err := workitem.EncodeCase(c, extra)
			if err != nil {
				return err
			}
			return ctx.pushRaw(cmd, cfg.OCR.Queues.Read, raw)
		},
	}
	cmd.Flags().StringSliceVar(&dicts, "dict", nil, "Tesseract dictionary (repeatable; defaults to eng,enm)")
	cmd.Flags().StringVar(&direct.infile, "infile", "", "Input image (direct mode)")
	cmd.Flags().StringVar(&direct.output, "outpath", "", "Output directory (direct mode)")
	return cmd
}

func caseArgs(args []string) (workitem.Case, error) {
	if len(args) != 3 {
		return workitem.Case{}, errors.New("expected <shelfmark> <index> <sequence>")
	}
	for _, arg := range args {
		if arg == "" {
			return workitem.Case{}, errors.New("shelfmark, index and sequence must be non-empty")
		}
	}
	return workitem.Case{Shelfmark: args[0], Index: args[1], Sequence: args[2]}, nil
}

func (c *commandContext) push(cmd *cobra.Command, queue string, payload map[string]any) error {
	for _, key := range []string{"infile", "outfile", "outpath"} {
		if value, ok := payload[key].(string); ok && value != "" {
			abs, err := filepath.Abs(value)
			if err != nil {
				return err
			}
			payload[key] = abs
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.pushRaw(cmd, queue, string(data))
}

func (c *commandContext) pushRaw(cmd *cobra.Command, queue, raw string) error {
	store, err := c.broker(cmd.Context())
	if err != nil {
		return err
	}
	if err := store.PushHead(cmd.Context(), queue, raw); err != nil {
		return fmt.Errorf("push to %s: %w", queue, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued on %s: %s\n", queue, raw)
	return nil
}
