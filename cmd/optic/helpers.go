package main

import (
	"log/slog"
	"time"

	"optic/internal/config"
	"optic/internal/mediacache"
	"optic/internal/retry"
	"optic/internal/services/vision"
)

func fetchRetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Fetch.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Fetch.RetryBaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Fetch.RetryMaxDelaySeconds) * time.Second,
		Multiplier:  2,
	}
}

func analysisRetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Analysis.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Analysis.RetryBaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Analysis.RetryMaxDelaySeconds) * time.Second,
		Multiplier:  2,
	}
}

func newMediaCache(cfg *config.Config, logger *slog.Logger) (*mediacache.Cache, error) {
	return mediacache.New(mediacache.Config{
		Root:     cfg.Paths.MediaDir,
		Workers:  cfg.Fetch.Workers,
		Timeout:  time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxBytes: int64(cfg.Fetch.MaxFileMiB) << 20,
		Retry:    fetchRetryPolicy(cfg),
	}, mediacache.WithLogger(logger))
}

func newVisionClient(cfg *config.Config, logger *slog.Logger) *vision.Client {
	return vision.NewClient(vision.Config{
		BaseURL:     cfg.Analysis.BaseURL,
		APIKey:      cfg.Analysis.APIKey,
		Model:       cfg.Analysis.Model,
		Timeout:     time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
		Temperature: cfg.Analysis.Temperature,
		MaxTokens:   cfg.Analysis.MaxTokens,
		MaxImages:   cfg.Analysis.MaxImages,
		Budget: vision.PromptBudget{
			ContextChars: cfg.Analysis.ContextBudgetChars,
			MaxComments:  cfg.Analysis.MaxComments,
		},
		Retry: analysisRetryPolicy(cfg),
	}, vision.WithLogger(logger))
}
