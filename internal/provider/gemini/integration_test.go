//go:build integration

package gemini

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/stretchr/testify/require"
)

func TestGeminiProvider_Classify(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	client, err := NewClient(context.Background(), apiKey)
	require.NoError(t, err)

	p := New(client, "gemini-2.0-flash")
	got, err := p.Generate(context.Background(), &models.GenerateRequest{
		System:    "Return either 'node' or 'react' based on what you think this project should be. Do not return anything extra.",
		Messages:  []models.Message{{Role: models.RoleUser, Content: "build me a todo app"}},
		MaxTokens: 200,
	})
	require.NoError(t, err)
	require.Contains(t, []string{"node", "react"}, strings.ToLower(strings.TrimSpace(got)))
}
