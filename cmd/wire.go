package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/advisor"
	"github.com/spigell/jobfit/internal/ai"
	"github.com/spigell/jobfit/internal/ai/claude"
	"github.com/spigell/jobfit/internal/ai/gemini"
	"github.com/spigell/jobfit/internal/joblisting"
	"github.com/spigell/jobfit/internal/secrets"
)

// newGenerator builds the configured model client. A provider that cannot be
// configured yields ai.Unavailable so the rest of the app keeps working and
// every model call reports the problem instead.
func newGenerator(ctx context.Context, logger *zap.Logger, config AIConfig) ai.Generator {
	var (
		generator ai.Generator
		err       error
	)

	switch config.Provider {
	case claude.Provider:
		generator, err = newClaude(logger, config)
	default:
		generator, err = newGemini(ctx, logger, config)
	}

	if err != nil {
		logger.Warn("model is unavailable, chat and analysis will fail",
			zap.String("provider", config.Provider),
			zap.Error(err),
		)
		return ai.Unavailable{Provider: config.Provider, Cause: err}
	}

	return generator
}

func newGemini(ctx context.Context, logger *zap.Logger, config AIConfig) (ai.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.Gemini.APIKey,
		File:  config.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	return gemini.NewGenerator(ctx, logger, gemini.Options{
		APIKey:       apiKey,
		Model:        config.Gemini.Model,
		Temperature:  config.Gemini.Temperature,
		MaxLogLength: config.MaxLogLength,
	})
}

func newClaude(logger *zap.Logger, config AIConfig) (ai.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "anthropic api key",
		Value: config.Claude.APIKey,
		File:  config.Claude.APIKeyFile,
		Env:   "ANTHROPIC_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	return claude.NewGenerator(logger, claude.Options{
		APIKey:       apiKey,
		Model:        config.Claude.Model,
		MaxTokens:    config.Claude.MaxTokens,
		MaxLogLength: config.MaxLogLength,
	})
}

func newFetcher(logger *zap.Logger, config FetchConfig) *joblisting.Client {
	opts := joblisting.Options{
		Timeout:        config.Timeout,
		UserAgent:      config.UserAgent,
		BrowserMinText: config.BrowserMinText,
	}

	if config.BrowserFallback {
		opts.Renderer = joblisting.NewBrowserRenderer(logger, config.BrowserTimeout, config.UserAgent)
	}

	return joblisting.New(logger, opts)
}

func newAdvisor(ctx context.Context, logger *zap.Logger, config *Config) *advisor.Advisor {
	generator := newGenerator(ctx, logger, config.AI)
	fetcher := newFetcher(logger, config.Fetch)

	logger.Info("advisor configured",
		zap.String("provider", config.AI.Provider),
		zap.String("model", generator.Model()),
		zap.Bool("browser_fallback", config.Fetch.BrowserFallback),
	)

	return advisor.New(logger, generator, fetcher, advisor.Options{
		Timeout:        config.AI.Timeout,
		FollowUp:       config.Chat.FollowUp,
		MaxUploadBytes: config.Server.MaxUploadBytes,
		MaxLogLength:   config.AI.MaxLogLength,
	})
}
