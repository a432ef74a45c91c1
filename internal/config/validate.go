package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInput(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateInput() error {
	if c.Input.SampleSize < 0 {
		return errors.New("input.sample_size must be >= 0")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.Workers < 1 || c.Fetch.Workers > 64 {
		return errors.New("fetch.workers must be between 1 and 64")
	}
	if err := ensurePositiveMap(map[string]int{
		"fetch.timeout_seconds":          c.Fetch.TimeoutSeconds,
		"fetch.retry_max_attempts":       c.Fetch.RetryMaxAttempts,
		"fetch.retry_base_delay_seconds": c.Fetch.RetryBaseDelaySeconds,
		"fetch.retry_max_delay_seconds":  c.Fetch.RetryMaxDelaySeconds,
		"fetch.max_file_mib":             c.Fetch.MaxFileMiB,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if strings.TrimSpace(c.Analysis.BaseURL) == "" {
		return errors.New("analysis.base_url must be set")
	}
	if strings.TrimSpace(c.Analysis.Model) == "" {
		return errors.New("analysis.model must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"analysis.timeout_seconds":          c.Analysis.TimeoutSeconds,
		"analysis.retry_max_attempts":       c.Analysis.RetryMaxAttempts,
		"analysis.retry_base_delay_seconds": c.Analysis.RetryBaseDelaySeconds,
		"analysis.retry_max_delay_seconds":  c.Analysis.RetryMaxDelaySeconds,
		"analysis.max_tokens":               c.Analysis.MaxTokens,
	}); err != nil {
		return err
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 {
		return errors.New("analysis.temperature must be between 0 and 2")
	}
	if c.Analysis.MaxImages < 1 || c.Analysis.MaxImages > 8 {
		return errors.New("analysis.max_images must be between 1 and 8")
	}
	if c.Analysis.ContextBudgetChars < 1000 {
		return errors.New("analysis.context_budget_chars must be at least 1000")
	}
	if c.Analysis.MaxComments < 0 {
		return errors.New("analysis.max_comments must be >= 0")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.AnalysisWorkers < 1 || c.Pipeline.AnalysisWorkers > 16 {
		return errors.New("pipeline.analysis_workers must be between 1 and 16")
	}
	if c.Pipeline.CheckpointInterval < 1 {
		return errors.New("pipeline.checkpoint_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
