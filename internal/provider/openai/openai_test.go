package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{APIKey: "test-key", BaseURL: server.URL, Model: "test-model", Label: "together"})
}

func TestGenerate_RequestTranslation(t *testing.T) {
	var body map[string]any
	var auth string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "react"}}]
		}`))
	})

	got, err := p.Generate(context.Background(), &models.GenerateRequest{
		System: "Return either 'node' or 'react'",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "build me a todo app"},
			{Role: models.RoleAssistant, Content: "ok"},
			{Role: models.RoleUser, Content: "go"},
		},
		MaxTokens: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, "react", got)
	assert.Equal(t, "Bearer test-key", auth)

	assert.Equal(t, "test-model", body["model"])
	assert.EqualValues(t, 200, body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   models.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, models.ErrorCodeAuth},
		{"rate limited", http.StatusTooManyRequests, models.ErrorCodeRateLimit},
		{"bad request", http.StatusBadRequest, models.ErrorCodeInvalidRequest},
		{"server error", http.StatusInternalServerError, models.ErrorCodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, `{"error": {"message": "nope", "type": "error"}}`)
			})

			_, err := p.Generate(context.Background(), &models.GenerateRequest{
				Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
			assert.Equal(t, tt.code, models.CodeOf(err))
			assert.Equal(t, 1, calls, "requests must not be retried")
		})
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "created": 1, "model": "test-model", "choices": []}`))
	})

	_, err := p.Generate(context.Background(), &models.GenerateRequest{})
	assert.ErrorIs(t, err, models.ErrEmptyResponse)
}

func TestGenerateStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"<boltArtifact", " id=\"a\">", "</boltArtifact>"} {
			chunk := map[string]any{
				"id": "c", "object": "chat.completion.chunk", "created": 1, "model": "test-model",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": delta}}},
			}
			raw, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", raw)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	got, err := p.GenerateStream(context.Background(), &models.GenerateRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, `<boltArtifact id="a"></boltArtifact>`, got)
	assert.Len(t, deltas, 3)
}

func TestName(t *testing.T) {
	p := New(Options{Model: "m"})
	assert.Equal(t, "openai/m", p.Name())
}
