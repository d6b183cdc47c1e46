// Package gemini implements the provider over the Google Gemini API.
package gemini

import (
	"context"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client    GeminiClient
	modelName string
}

// New creates a new GeminiProvider with the specified client and model.
func New(client GeminiClient, modelName string) *GeminiProvider {
	return &GeminiProvider{
		client:    client,
		modelName: modelName,
	}
}

// Name returns the provider and model.
func (p *GeminiProvider) Name() string {
	return "gemini/" + p.modelName
}

// Generate sends a request to the Gemini API and returns the response.
func (p *GeminiProvider) Generate(ctx context.Context, req *models.GenerateRequest) (string, error) {
	contents, system := toGeminiContents(req)

	resp, err := p.client.GenerateContent(ctx, p.modelName, contents, toGeminiConfig(req, system))
	if err != nil {
		return "", mapGeminiError(err)
	}

	text := responseText(resp)
	if text == "" {
		return "", models.NewEmptyResponseError(p.modelName)
	}
	return text, nil
}

// GenerateStream streams the response, calling onDelta per text fragment.
func (p *GeminiProvider) GenerateStream(ctx context.Context, req *models.GenerateRequest, onDelta func(string)) (string, error) {
	contents, system := toGeminiContents(req)

	var sb strings.Builder
	for resp, err := range p.client.GenerateContentStream(ctx, p.modelName, contents, toGeminiConfig(req, system)) {
		if err != nil {
			return sb.String(), mapGeminiError(err)
		}
		delta := responseText(resp)
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	if sb.Len() == 0 {
		return "", models.NewEmptyResponseError(p.modelName)
	}
	return sb.String(), nil
}
