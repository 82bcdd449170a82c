package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/stage"
	"folio/internal/stages/crop"
	"folio/internal/stages/ocr"
	"folio/internal/status"
	"folio/internal/workflow"
)

type workerOptions struct {
	stage      string
	instance   int
	configPath string
}

// runWorker builds the worker's collaborators, runs the claim loop, and tears
// everything down. It returns nil only after a signal-initiated stop.
func runWorker(ctx context.Context, opts workerOptions) error {
	cfg, _, _, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	base, ok := cfg.StageWorkerName(opts.stage)
	if !ok {
		return fmt.Errorf("unknown stage %q", opts.stage)
	}
	name := status.InstanceName(base, opts.instance)

	logger, err := logging.NewFromConfig(cfg, name)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logging.ForStage(logger, cfg.Logging.StageOverrides, opts.stage)

	store, err := broker.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open broker: %w", err)
	}
	defer store.Close()

	docs := provenance.NewStore(cfg.Paths.ProvenanceDir, logger)
	handler, err := buildHandler(cfg, opts.stage, docs, logger)
	if err != nil {
		return err
	}

	engine, err := workflow.NewEngine(workflow.Deps{
		Config:     cfg,
		Store:      store,
		Provenance: docs,
		Reporter:   status.NewReporter(store, name),
		Handler:    handler,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	if err := engine.Preflight(ctx, os.Getpid()); err != nil {
		return err
	}

	runErr := engine.Run(ctx)
	summary := engine.Status(context.WithoutCancel(ctx))
	logger.Info("worker finished",
		logging.String(logging.FieldWorker, name),
		logging.Int("claimed", summary.Counts.Claimed),
		logging.Int("completed", summary.Counts.Completed),
		logging.Int("failed", summary.Counts.Failed),
		logging.Int("rejected", summary.Counts.Rejected),
		logging.Int("released", summary.Counts.Released),
	)
	return runErr
}

func buildHandler(cfg *config.Config, stageName string, docs *provenance.Store, logger *slog.Logger) (stage.Handler, error) {
	switch stageName {
	case config.StageCrop:
		return crop.NewHandler(cfg, docs, logger), nil
	case config.StageOCR:
		engine, err := ocr.NewEngine(cfg)
		if err != nil {
			return nil, err
		}
		return ocr.NewHandler(cfg, docs, engine, logger), nil
	default:
		return nil, fmt.Errorf("unknown stage %q", stageName)
	}
}
