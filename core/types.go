package core

import (
	"context"
	"time"
)

// Source identifies one of the two audio origins feeding the pipeline.
type Source string

const (
	SourceYou     Source = "You"     // Local microphone.
	SourceSpeaker Source = "Speaker" // Remote party / system audio.
)

// Valid reports whether s is one of the two known sources.
func (s Source) Valid() bool {
	return s == SourceYou || s == SourceSpeaker
}

// Role returns the lower-cased tag used in combined transcript records
// and exported documents.
func (s Source) Role() string {
	switch s {
	case SourceYou:
		return "you"
	case SourceSpeaker:
		return "speaker"
	default:
		return string(s)
	}
}

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little-endian pulse-code modulation.
	ULAW                            // µ-law encoding.
	ALAW                            // A-law encoding.
)

// SourceFormat describes the fixed audio parameters of one capture source.
// Owned by the source, set once at startup.
type SourceFormat struct {
	SampleRate  int                 `json:"sample_rate"`  // Samples per second.
	SampleWidth int                 `json:"sample_width"` // Bytes per sample after PCM decode.
	Channels    int                 `json:"channels"`     // Channel count.
	Encoding    AudioEncodingFormat `json:"encoding"`     // Wire encoding of incoming chunks.
}

// CaptureChunk is one raw audio chunk as pushed by a capture producer.
type CaptureChunk struct {
	Source Source
	Data   []byte
	Time   time.Time
}

// Transcriber converts a recorded audio container into text. An empty
// string means no speech was detected; it is not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Generator produces an incremental stream of completion text deltas for
// the given system role and prompt. Deltas are sent to out as they
// arrive; the channel is not closed by the implementation. A non-nil
// error indicates a transport failure, possibly mid-stream.
type Generator interface {
	Stream(ctx context.Context, systemRole, prompt string, out chan<- string) error
}
