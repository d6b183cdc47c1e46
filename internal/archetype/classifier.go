package archetype

import (
	"context"
	"errors"
	"time"

	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/Cyclone1070/buildforme/internal/metrics"
	"github.com/Cyclone1070/buildforme/internal/provider"
	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"go.uber.org/zap"
)

const classifyPrompt = "Return either 'node' or 'react' based on what you think this project should be. Do not return anything extra."

// Classifier asks the model which archetype fits a prompt.
type Classifier struct {
	provider  provider.Provider
	maxTokens int
	log       *zap.Logger
}

// NewClassifier creates a Classifier. maxTokens caps the answer length.
func NewClassifier(p provider.Provider, maxTokens int, logger *zap.Logger) *Classifier {
	return &Classifier{provider: p, maxTokens: maxTokens, log: logging.OrNop(logger)}
}

// Classify returns the archetype for prompt. An empty answer is treated as
// unrecognized; any other provider failure is returned as is.
func (c *Classifier) Classify(ctx context.Context, prompt string) (Archetype, error) {
	start := time.Now()
	answer, err := c.provider.Generate(ctx, &models.GenerateRequest{
		System:    classifyPrompt,
		Messages:  []models.Message{{Role: models.RoleUser, Content: prompt}},
		MaxTokens: c.maxTokens,
	})
	metrics.RecordGeneration("classify", time.Since(start), err)
	if err != nil {
		if errors.Is(err, models.ErrEmptyResponse) {
			return "", ErrUnrecognized
		}
		return "", err
	}

	a, err := Parse(answer)
	if err != nil {
		c.log.Warn("unrecognized classification", zap.String("answer", truncate(answer, 64)))
		return "", err
	}
	c.log.Debug("classified prompt", zap.String("archetype", a.String()), zap.String("provider", c.provider.Name()))
	return a, nil
}
