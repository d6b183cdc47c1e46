// Package openai implements the provider over the OpenAI Chat Completions
// API, which also serves OpenAI-compatible hosts such as Together.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configures a Provider.
type Options struct {
	APIKey  string
	BaseURL string // empty uses the OpenAI default
	Model   string
	Timeout time.Duration
	// Label names the provider in logs, e.g. "together".
	Label string
}

// Provider implements provider.Provider with openai-go.
type Provider struct {
	client openai.Client
	model  string
	label  string
}

// New creates a Provider. The client never retries; a failed call is
// reported to the caller as is.
func New(opts Options) *Provider {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	label := opts.Label
	if label == "" {
		label = "openai"
	}
	return &Provider{
		client: openai.NewClient(reqOpts...),
		model:  opts.Model,
		label:  label,
	}
}

// Name returns the provider label and model.
func (p *Provider) Name() string {
	return p.label + "/" + p.model
}

// Generate sends the conversation and returns the assistant turn.
func (p *Provider) Generate(ctx context.Context, req *models.GenerateRequest) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", models.NewEmptyResponseError(p.model)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams the assistant turn, calling onDelta per fragment.
func (p *Provider) GenerateStream(ctx context.Context, req *models.GenerateRequest, onDelta func(string)) (string, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return sb.String(), mapError(err)
	}
	if sb.Len() == 0 {
		return "", models.NewEmptyResponseError(p.model)
	}
	return sb.String(), nil
}

func (p *Provider) params(req *models.GenerateRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toMessages(req.Conversation()),
	}
	if req.MaxTokens > 0 {
		// Compatible hosts understand max_tokens, not max_completion_tokens.
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func toMessages(msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return models.NewStatusError(apiErr.StatusCode, msg, err)
	}
	return models.NewNetworkError(err)
}
