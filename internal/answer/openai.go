package answer

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/pkg/utils"
)

// OpenAISynthesizer synthesizes answers through the OpenAI chat-completion
// API. Calls are bounded by a timeout and a fixed retry budget; exhausting
// the budget surfaces models.ErrSynthesisUnavailable.
type OpenAISynthesizer struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxAttempts int
}

// SynthesizerOptions configures an OpenAISynthesizer.
type SynthesizerOptions struct {
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// NewOpenAISynthesizer creates a synthesizer for the given API key and options.
func NewOpenAISynthesizer(apiKey string, opts SynthesizerOptions) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("synthesis: API key is empty")
	}
	if opts.Model == "" {
		opts.Model = "gpt-4.1-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &OpenAISynthesizer{
		client:      openai.NewClient(apiKey),
		model:       opts.Model,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
	}, nil
}

// Synthesize builds the grounded prompt and returns the model's answer text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, query string, resolved []*models.ResolvedDocument) (string, error) {
	userPrompt := BuildUserPrompt(query, resolved)

	var resp openai.ChatCompletionResponse
	err := utils.Retry(ctx, s.maxAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		var callErr error
		resp, callErr = s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSynthesisUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrSynthesisUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
