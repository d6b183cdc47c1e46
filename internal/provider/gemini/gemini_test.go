package gemini

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGenerate_HappyPath(t *testing.T) {
	var gotModel string
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig
	mockClient := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, config
			return textResponse("react"), nil
		},
	}

	p := New(mockClient, "gemini-mock")
	got, err := p.Generate(context.Background(), &models.GenerateRequest{
		System: "classify",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "todo app"},
			{Role: models.RoleAssistant, Content: "sure"},
			{Role: models.RoleSystem, Content: "be terse"},
			{Role: models.RoleUser, Content: "go"},
		},
		MaxTokens: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, "react", got)
	assert.Equal(t, "gemini-mock", gotModel)

	require.Len(t, gotContents, 3)
	assert.Equal(t, genai.RoleUser, gotContents[0].Role)
	assert.Equal(t, genai.RoleModel, gotContents[1].Role)
	assert.Equal(t, "go", gotContents[2].Parts[0].Text)

	require.NotNil(t, gotConfig.SystemInstruction)
	assert.Equal(t, "classify\n\nbe terse", gotConfig.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(200), gotConfig.MaxOutputTokens)
	assert.Len(t, gotConfig.SafetySettings, 4)
}

func TestGenerate_NoSystemInstruction(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			assert.Nil(t, config.SystemInstruction)
			return textResponse("hi"), nil
		},
	}
	_, err := New(mockClient, "m").Generate(context.Background(), &models.GenerateRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
}

func TestGenerate_EmptyResponse(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}
	_, err := New(mockClient, "m").Generate(context.Background(), &models.GenerateRequest{})
	assert.ErrorIs(t, err, models.ErrEmptyResponse)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestGenerate_APIErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code models.ErrorCode
	}{
		{"auth value", genai.APIError{Code: 403, Message: "denied"}, models.ErrorCodeAuth},
		{"rate limit pointer", &genai.APIError{Code: 429, Message: "slow down"}, models.ErrorCodeRateLimit},
		{"unavailable", genai.APIError{Code: 503, Status: "UNAVAILABLE"}, models.ErrorCodeUnavailable},
		{"invalid", genai.APIError{Code: 400, Message: "bad"}, models.ErrorCodeInvalidRequest},
		{"network", errors.New("dial tcp: refused"), models.ErrorCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &MockGeminiClient{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return nil, tt.err
				},
			}
			_, err := New(mockClient, "m").Generate(context.Background(), &models.GenerateRequest{})
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
			assert.Equal(t, tt.code, models.CodeOf(err))
		})
	}
}

func TestGenerateStream(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				for _, chunk := range []string{"<boltArtifact>", "", "</boltArtifact>"} {
					if !yield(textResponse(chunk), nil) {
						return
					}
				}
			}
		},
	}

	var deltas []string
	got, err := New(mockClient, "m").GenerateStream(context.Background(), &models.GenerateRequest{}, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, "<boltArtifact></boltArtifact>", got)
	assert.Equal(t, []string{"<boltArtifact>", "</boltArtifact>"}, deltas)
}

func TestGenerateStream_ErrorMidway(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				if !yield(textResponse("partial"), nil) {
					return
				}
				yield(nil, genai.APIError{Code: 500, Message: "internal"})
			}
		},
	}

	got, err := New(mockClient, "m").GenerateStream(context.Background(), &models.GenerateRequest{}, nil)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Equal(t, "partial", got)
}

func TestResponseText_SkipsThoughts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "answer"},
			}},
		}},
	}
	assert.Equal(t, "answer", responseText(resp))
	assert.Equal(t, "", responseText(nil))
}
