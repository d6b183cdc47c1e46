// Package provider is the generation client: chat completion against a
// hosted model, either as one response or as a stream of text deltas.
package provider

import (
	"context"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
)

// Provider represents the interface to the Language Model. Failures wrap
// models.ErrUpstreamUnavailable; nothing is retried.
type Provider interface {
	// Generate returns the full assistant turn.
	Generate(ctx context.Context, req *models.GenerateRequest) (string, error)
	// GenerateStream calls onDelta with each text fragment as it arrives and
	// returns the concatenated turn.
	GenerateStream(ctx context.Context, req *models.GenerateRequest, onDelta func(string)) (string, error)
	// Name identifies the provider and model for logs.
	Name() string
}
