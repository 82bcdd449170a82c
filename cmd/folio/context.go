package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/queuectl"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	storeMu sync.Mutex
	store   broker.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// broker opens the configured broker once per invocation.
func (c *commandContext) broker(ctx context.Context) (broker.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	store, err := broker.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *commandContext) controller(ctx context.Context) (*queuectl.Controller, error) {
	store, err := c.broker(ctx)
	if err != nil {
		return nil, err
	}
	return queuectl.New(store, c.config), nil
}

func (c *commandContext) provenance() (*provenance.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return provenance.NewStore(cfg.Paths.ProvenanceDir, logging.NewNop()), nil
}

func (c *commandContext) close() {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
