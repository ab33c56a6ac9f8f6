package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"echopilot/core"
)

const defaultTemperature = 0.6

// ChatGenerator implements core.Generator using the OpenAI streaming
// chat completion API.
type ChatGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *core.Logger
}

func NewChatGenerator(apiKey, model string, logger *core.Logger) (*ChatGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: OpenAI API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: defaultTemperature,
		logger:      logger.With(map[string]interface{}{"component": "llm"}),
	}, nil
}

// Stream runs one streaming completion and forwards each content delta
// to out. The stream is finite and not restartable; transport failures
// surface as the returned error, possibly after some deltas were sent.
func (g *ChatGenerator) Stream(ctx context.Context, systemRole, prompt string, out chan<- string) error {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRole},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("llm: create completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("llm: stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			select {
			case out <- delta:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
