package config

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"echopilot/core"
)

// Validation ranges for the audio segmentation settings.
const (
	MinPhraseTimeoutSeconds float64 = 0.01
	MaxPhraseTimeoutSeconds float64 = 50
	MinBufferChunks                 = 0
	MaxBufferChunks                 = 10
)

const (
	defaultPhraseTimeoutSeconds = 5.2
	defaultBufferChunks         = 1
	defaultMinQuestionLength    = 4
	defaultTranscriptionModel   = "whisper-1"
	defaultCompletionModel      = "gpt-4o-mini"
	defaultListenAddr           = ":8710"
)

// Config carries every tunable the pipeline consumes. It is built once
// at startup and passed to each component at construction; nothing in
// the pipeline reads ambient global state.
type Config struct {
	// PhraseTimeoutSeconds is the rolling threshold after which a
	// non-empty transcription starts a new phrase. Range [0.01, 50].
	PhraseTimeoutSeconds float64 `json:"phrase_timeout_seconds"`
	// BufferChunks is the pre-roll ring capacity: how many trailing raw
	// chunks are carried across a phrase boundary. Range [0, 10].
	BufferChunks int `json:"buffer_chunks"`
	// RecordOnlyMode keeps transcription and storage running but
	// suppresses response generation triggers.
	RecordOnlyMode bool `json:"record_only_mode"`
	// SystemRole is the opaque system prompt handed to the generator.
	SystemRole string `json:"system_role"`
	// MinQuestionLength is the minimum trimmed phrase length that
	// triggers generation; shorter phrases are treated as noise.
	MinQuestionLength int `json:"min_question_length"`
	// TranscriptionModel and CompletionModel select the OpenAI models.
	TranscriptionModel string `json:"transcription_model"`
	CompletionModel    string `json:"completion_model"`
	// ExportLegacyShift reproduces the historical export behavior where
	// each Speaker entry adopts the previous entry's response id. Off by
	// default; the direct association is the corrected behavior.
	ExportLegacyShift bool `json:"export_legacy_shift"`
	// ListenAddr is the bind address for the websocket ingest/feed server.
	ListenAddr string `json:"listen_addr"`

	// Mic and Tap describe the two capture sources.
	Mic core.SourceFormat `json:"mic"`
	Tap core.SourceFormat `json:"tap"`
}

// Default returns a Config pre-filled with the pipeline defaults.
func Default() Config {
	return Config{
		PhraseTimeoutSeconds: defaultPhraseTimeoutSeconds,
		BufferChunks:         defaultBufferChunks,
		MinQuestionLength:    defaultMinQuestionLength,
		TranscriptionModel:   defaultTranscriptionModel,
		CompletionModel:      defaultCompletionModel,
		ListenAddr:           defaultListenAddr,
		Mic: core.SourceFormat{
			SampleRate:  16000,
			SampleWidth: 2,
			Channels:    1,
			Encoding:    core.PCM,
		},
		Tap: core.SourceFormat{
			SampleRate:  8000,
			SampleWidth: 2,
			Channels:    1,
			Encoding:    core.ULAW,
		},
	}
}

// Validate checks range constraints and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.PhraseTimeoutSeconds == 0 {
		c.PhraseTimeoutSeconds = defaultPhraseTimeoutSeconds
	}
	if c.PhraseTimeoutSeconds < MinPhraseTimeoutSeconds || c.PhraseTimeoutSeconds > MaxPhraseTimeoutSeconds {
		return fmt.Errorf("config: phrase_timeout_seconds %.2f outside [%g, %g]",
			c.PhraseTimeoutSeconds, MinPhraseTimeoutSeconds, MaxPhraseTimeoutSeconds)
	}
	if c.BufferChunks < MinBufferChunks || c.BufferChunks > MaxBufferChunks {
		return fmt.Errorf("config: buffer_chunks %d outside [%d, %d]",
			c.BufferChunks, MinBufferChunks, MaxBufferChunks)
	}
	if c.MinQuestionLength <= 0 {
		c.MinQuestionLength = defaultMinQuestionLength
	}
	if c.TranscriptionModel == "" {
		c.TranscriptionModel = defaultTranscriptionModel
	}
	if c.CompletionModel == "" {
		c.CompletionModel = defaultCompletionModel
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	for _, sf := range []struct {
		name   string
		format core.SourceFormat
	}{{"mic", c.Mic}, {"tap", c.Tap}} {
		if sf.format.SampleRate <= 0 {
			return fmt.Errorf("config: %s sample rate must be positive", sf.name)
		}
		if sf.format.Channels < 1 || sf.format.Channels > 2 {
			return fmt.Errorf("config: %s channels must be 1 or 2", sf.name)
		}
	}
	return nil
}

// FromJSON parses a JSON blob into a Config and validates it.
func FromJSON(data []byte) (Config, error) {
	cfg := Default()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile reads and parses a Config from a JSON file.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("config: read %q: %w", path, err)
	}
	return FromJSON(data)
}

// Format returns the capture format configured for the given source.
func (c *Config) Format(source core.Source) core.SourceFormat {
	if source == core.SourceSpeaker {
		return c.Tap
	}
	return c.Mic
}
