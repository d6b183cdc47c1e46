// Package testhelpers provides shared utilities for integration testing
package testhelpers

import (
	"context"
	"strings"
	"sync"

	"github.com/Cyclone1070/buildforme/internal/provider/models"
)

// MockResponse is one queued provider answer. Chunks, when set, are streamed
// in order by GenerateStream; otherwise Text is sent as a single delta.
type MockResponse struct {
	Text   string
	Chunks []string
	Err    error
	// Gate, when set, blocks the response until it is closed or the request
	// context is done.
	Gate chan struct{}
}

// MockProvider is a controllable mock for the generation provider
type MockProvider struct {
	mu            sync.Mutex
	responses     []MockResponse
	responseIndex int
	requests      []*models.GenerateRequest
	modelName     string

	// OnGenerateCalled is a callback for observing Generate and
	// GenerateStream calls
	OnGenerateCalled func(*models.GenerateRequest)
}

// NewMockProvider creates a new mock provider with default settings
func NewMockProvider() *MockProvider {
	return &MockProvider{modelName: "mock-model"}
}

// WithTextResponse adds a text response to the queue
func (m *MockProvider) WithTextResponse(text string) *MockProvider {
	return m.WithResponse(MockResponse{Text: text})
}

// WithStreamResponse adds a response streamed as the given chunks
func (m *MockProvider) WithStreamResponse(chunks ...string) *MockProvider {
	return m.WithResponse(MockResponse{Chunks: chunks})
}

// WithError adds a failing response to the queue
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.WithResponse(MockResponse{Err: err})
}

// WithResponse adds an arbitrary response to the queue
func (m *MockProvider) WithResponse(r MockResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// Requests returns the requests received so far.
func (m *MockProvider) Requests() []*models.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.GenerateRequest(nil), m.requests...)
}

func (m *MockProvider) next(req *models.GenerateRequest) MockResponse {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	cb := m.OnGenerateCalled
	var resp MockResponse
	if m.responseIndex < len(m.responses) {
		resp = m.responses[m.responseIndex]
		m.responseIndex++
	} else {
		// Return a default text response if we run out
		resp = MockResponse{Text: "Done"}
	}
	m.mu.Unlock()

	if cb != nil {
		cb(req)
	}
	return resp
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Generate implements the Provider interface
func (m *MockProvider) Generate(ctx context.Context, req *models.GenerateRequest) (string, error) {
	resp := m.next(req)
	if err := wait(ctx, resp.Gate); err != nil {
		return "", err
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	if resp.Chunks != nil {
		return strings.Join(resp.Chunks, ""), nil
	}
	return resp.Text, nil
}

// GenerateStream implements the Provider interface
func (m *MockProvider) GenerateStream(ctx context.Context, req *models.GenerateRequest, onDelta func(string)) (string, error) {
	resp := m.next(req)
	chunks := resp.Chunks
	if chunks == nil && resp.Text != "" {
		chunks = []string{resp.Text}
	}

	var b strings.Builder
	for i, c := range chunks {
		// The gate holds back everything after the first chunk so tests can
		// observe a stream in flight.
		if i == 1 {
			if err := wait(ctx, resp.Gate); err != nil {
				return b.String(), err
			}
		}
		if err := ctx.Err(); err != nil {
			return b.String(), err
		}
		b.WriteString(c)
		onDelta(c)
	}
	if len(chunks) <= 1 {
		if err := wait(ctx, resp.Gate); err != nil {
			return b.String(), err
		}
	}
	if resp.Err != nil {
		return b.String(), resp.Err
	}
	return b.String(), nil
}

// Name implements the Provider interface
func (m *MockProvider) Name() string {
	return "mock/" + m.modelName
}
