package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cyclone1070/buildforme/internal/config"
	"github.com/Cyclone1070/buildforme/internal/provider/gemini"
	"github.com/Cyclone1070/buildforme/internal/provider/openai"
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("missing API key")

// New builds the provider named by cfg.Kind.
func New(ctx context.Context, cfg config.ProviderConfig, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s or %s", ErrMissingAPIKey, cfg.APIKeyEnv, config.APIKeyOverrideEnv)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Kind {
	case "together", "openai":
		return openai.New(openai.Options{
			APIKey:  apiKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
			Label:   cfg.Kind,
		}), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.New(client, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
