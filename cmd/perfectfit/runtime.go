package main

import (
	"context"
	"fmt"

	"github.com/jonathan/perfect-fit/internal/assessment"
	"github.com/jonathan/perfect-fit/internal/config"
	"github.com/jonathan/perfect-fit/internal/llm"
	"github.com/jonathan/perfect-fit/internal/logger"
	"github.com/jonathan/perfect-fit/internal/scoring"
	"go.uber.org/zap"
)

// loadRuntime reads the configuration and builds the root logger.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// newLLMClient builds the scoring model client for the configured provider.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	apiKey := cfg.LLMAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for LLM_PROVIDER %q", cfg.LLMProvider)
	}
	return llm.NewClient(ctx, llm.ConfigFor(cfg.LLMProvider, cfg.ScoringModel, cfg.OpenAIBaseURL), apiKey)
}

// newOrchestrator wires the scorer to the result store.
func newOrchestrator(cfg *config.Config, client llm.Client, store assessment.ResultStore, log *zap.Logger) *assessment.Orchestrator {
	return assessment.NewOrchestrator(
		scoring.NewLLMScorer(client),
		store,
		assessment.OrchestratorOptions{Timeout: cfg.ScoringTimeout, Concurrency: cfg.ScoringConcurrency},
		logger.Named(log, logger.AI),
	)
}
