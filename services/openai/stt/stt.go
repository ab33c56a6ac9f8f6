package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"echopilot/core"
)

// WhisperTranscriber implements core.Transcriber against the OpenAI
// audio transcription API.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	logger *core.Logger
}

func NewWhisperTranscriber(apiKey, model string, logger *core.Logger) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stt: OpenAI API key is required")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger.With(map[string]interface{}{"component": "stt"}),
	}, nil
}

// Transcribe uploads the recorded WAV container and returns the
// transcription text. An empty result means no speech was detected.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: wavPath,
	})
	if err != nil {
		return "", fmt.Errorf("stt: transcription request: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
