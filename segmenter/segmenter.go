package segmenter

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"echopilot/capture"
	"echopilot/config"
	"echopilot/core"
	"echopilot/transcript"
	"echopilot/utils/audio"
)

// placeholderArtifacts are transcriptions the speech model emits for
// silence or breath noise; they carry no signal and are dropped.
var placeholderArtifacts = map[string]struct{}{
	"you": {},
}

// Segmenter drains the shared capture queue strictly in arrival order,
// folds each chunk into the matching AudioBuffer, transcribes the
// accumulated phrase audio, and decides phrase-boundary crossings.
//
// Boundary detection is lazy: the phrase timeout is evaluated only when
// a non-empty transcription arrives, against the previous phrase's
// start time. Silence alone never forces a reset.
type Segmenter struct {
	queue   *capture.Queue
	store   *transcript.Store
	stt     core.Transcriber
	timeout time.Duration

	mu         sync.Mutex
	buffers    map[core.Source]*AudioBuffer
	generation uint64 // bumped by ClearContext; stale results are dropped

	logger *core.Logger
}

func New(cfg config.Config, queue *capture.Queue, store *transcript.Store, stt core.Transcriber, logger *core.Logger) *Segmenter {
	return &Segmenter{
		queue:   queue,
		store:   store,
		stt:     stt,
		timeout: time.Duration(cfg.PhraseTimeoutSeconds * float64(time.Second)),
		buffers: map[core.Source]*AudioBuffer{
			core.SourceYou:     NewAudioBuffer(cfg.Mic, cfg.BufferChunks),
			core.SourceSpeaker: NewAudioBuffer(cfg.Tap, cfg.BufferChunks),
		},
		logger: logger.With(map[string]interface{}{"component": "segmenter"}),
	}
}

// Run consumes the queue until ctx is done. Transcription is serialized
// across both sources: a slow call on one source delays queued chunks
// of the other.
func (s *Segmenter) Run(ctx context.Context) {
	for {
		chunk, ok := s.queue.Pop(ctx)
		if !ok {
			return
		}
		s.process(ctx, chunk)
	}
}

func (s *Segmenter) process(ctx context.Context, chunk core.CaptureChunk) {
	buf, ok := s.buffers[chunk.Source]
	if !ok {
		s.logger.Warn("dropping chunk from unknown source", "source", string(chunk.Source))
		return
	}

	s.mu.Lock()
	buf.Append(chunk.Data, chunk.Time)
	sample := buf.Accumulated()
	generation := s.generation
	s.mu.Unlock()

	text, err := s.transcribeSample(ctx, sample, buf.format)
	if err != nil {
		// Transcription failures are local: log and treat as silence.
		s.logger.Error("transcription failed", "source", string(chunk.Source), "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if _, artifact := placeholderArtifacts[strings.ToLower(text)]; artifact {
		return
	}

	s.mu.Lock()
	if generation != s.generation {
		// Context was cleared while the transcription call was in flight.
		s.mu.Unlock()
		s.logger.Debug("discarding stale transcription after context clear")
		return
	}
	if start := buf.PhraseStart(); !start.IsZero() && chunk.Time.Sub(start) > s.timeout {
		buf.newPhrase = true
	}
	isNew := buf.IsNewPhrase()
	s.mu.Unlock()

	responseID := s.store.RecordPhrase(chunk.Source, text, chunk.Time, isNew)

	if isNew {
		s.mu.Lock()
		if generation == s.generation {
			buf.Reset(chunk.Time)
		}
		s.mu.Unlock()
	}
	if responseID != "" {
		s.logger.Info("new speaker phrase", "response_id", responseID, "text", text)
	}
}

// transcribeSample writes the sample to a transient WAV container and
// runs the transcription capability against it. The file is removed on
// both success and failure paths.
func (s *Segmenter) transcribeSample(ctx context.Context, sample []byte, format core.SourceFormat) (string, error) {
	if len(sample) == 0 {
		return "", nil
	}
	f, err := os.CreateTemp("", "echopilot-*.wav")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := audio.WriteWavFile(path, sample, format); err != nil {
		return "", err
	}
	return s.stt.Transcribe(ctx, path)
}

// ClearContext atomically drops all queued chunks, empties the
// transcript store, and resets every AudioBuffer. An item already taken
// by the consumer is discarded when its result lands; the reset is
// guaranteed only for subsequent iterations.
func (s *Segmenter) ClearContext() {
	dropped := s.queue.Drain()
	s.mu.Lock()
	s.generation++
	for _, buf := range s.buffers {
		buf.Clear()
	}
	s.mu.Unlock()
	s.store.Clear()
	s.logger.Info("context cleared", "dropped_chunks", dropped)
}

// Buffer exposes the AudioBuffer for one source. Intended for
// inspection; mutation belongs to the consumer loop.
func (s *Segmenter) Buffer(source core.Source) *AudioBuffer {
	return s.buffers[source]
}
