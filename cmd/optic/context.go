package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"optic/internal/checkpoint"
	"optic/internal/config"
	"optic/internal/post"
	"optic/internal/results"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) checkpointStore() (*checkpoint.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(cfg.CheckpointPath()), nil
}

// withResults opens the results archive, runs fn, and closes it.
func (c *commandContext) withResults(fn func(*results.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := results.Open(cfg.Paths.ResultsDB)
	if err != nil {
		return fmt.Errorf("open results archive: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// loadItems reads the batch input. An explicit path argument wins over the
// configured items file. sample > 0 narrows the batch to the n most recent
// posts.
func (c *commandContext) loadItems(path string, sample int) ([]post.Item, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		path = cfg.Input.ItemsFile
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("no items file: pass one as an argument or set input.items_file in config")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	items, err := post.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	if sample > 0 {
		items = post.Sample(items, sample)
	}
	return items, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
