package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMConfig selects the OpenAI-compatible endpoint used for generation.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// LLMGenerator generates answers through a langchaingo chat model.
type LLMGenerator struct {
	model       llms.Model
	temperature float64
}

// NewLLMGenerator builds a generator on the OpenAI-compatible client.
func NewLLMGenerator(cfg LLMConfig) (*LLMGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assistant API key is not configured")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return NewLLMGeneratorWithModel(model, cfg.Temperature), nil
}

// NewLLMGeneratorWithModel wraps an existing model.
func NewLLMGeneratorWithModel(model llms.Model, temperature float64) *LLMGenerator {
	return &LLMGenerator{model: model, temperature: temperature}
}

func (g *LLMGenerator) Generate(ctx context.Context, systemPrompt, question string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(question)},
		},
	}

	resp, err := g.model.GenerateContent(ctx, messages, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("llm response has no choices")
	}
	return resp.Choices[0].Content, nil
}
