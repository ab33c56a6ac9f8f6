package segmenter

import (
	"time"

	"echopilot/core"
)

// preRollRing is a bounded ring of the most recent raw chunks, retained
// across a phrase boundary so the start of the next phrase is not
// clipped. A zero capacity disables pre-roll entirely.
type preRollRing struct {
	chunks [][]byte
	head   int
	size   int
}

func newPreRollRing(capacity int) *preRollRing {
	return &preRollRing{chunks: make([][]byte, capacity)}
}

// Push stores a chunk, overwriting the oldest once full.
func (r *preRollRing) Push(chunk []byte) {
	if len(r.chunks) == 0 {
		return
	}
	r.chunks[r.head] = chunk
	r.head = (r.head + 1) % len(r.chunks)
	if r.size < len(r.chunks) {
		r.size++
	}
}

// Len returns the number of retained chunks.
func (r *preRollRing) Len() int {
	return r.size
}

// Concat joins the retained chunks oldest-first into one byte slice.
func (r *preRollRing) Concat() []byte {
	if r.size == 0 {
		return nil
	}
	start := (r.head - r.size + len(r.chunks)) % len(r.chunks)
	var total int
	for i := 0; i < r.size; i++ {
		total += len(r.chunks[(start+i)%len(r.chunks)])
	}
	out := make([]byte, 0, total)
	for i := 0; i < r.size; i++ {
		out = append(out, r.chunks[(start+i)%len(r.chunks)]...)
	}
	return out
}

// Reset drops all retained chunks.
func (r *preRollRing) Reset() {
	for i := range r.chunks {
		r.chunks[i] = nil
	}
	r.head = 0
	r.size = 0
}

// AudioBuffer accumulates raw audio for the current in-progress phrase
// of one source. Created once at startup and reset, never destroyed,
// whenever a phrase boundary is crossed or the context is cleared.
type AudioBuffer struct {
	format       core.SourceFormat
	accumulated  []byte
	preRoll      *preRollRing
	phraseStart  time.Time // zero while idle
	lastActivity time.Time
	newPhrase    bool // next emission inserts a new record
}

func NewAudioBuffer(format core.SourceFormat, preRollChunks int) *AudioBuffer {
	return &AudioBuffer{
		format:    format,
		preRoll:   newPreRollRing(preRollChunks),
		newPhrase: true,
	}
}

// Append folds one raw chunk into the current phrase.
func (b *AudioBuffer) Append(data []byte, timestamp time.Time) {
	b.preRoll.Push(data)
	if b.phraseStart.IsZero() {
		b.phraseStart = timestamp
	}
	b.accumulated = append(b.accumulated, data...)
	b.lastActivity = timestamp
}

// Accumulated returns a copy of the bytes of the current phrase.
func (b *AudioBuffer) Accumulated() []byte {
	out := make([]byte, len(b.accumulated))
	copy(out, b.accumulated)
	return out
}

// Reset starts the next phrase at timestamp, seeding it with the
// pre-roll chunks so the phrase head is preserved.
func (b *AudioBuffer) Reset(timestamp time.Time) {
	b.phraseStart = timestamp
	b.accumulated = b.preRoll.Concat()
	b.preRoll.Reset()
	b.newPhrase = false
}

// Clear returns the buffer to its initial idle state.
func (b *AudioBuffer) Clear() {
	b.accumulated = nil
	b.preRoll.Reset()
	b.phraseStart = time.Time{}
	b.lastActivity = time.Time{}
	b.newPhrase = true
}

// PhraseStart returns the timestamp of the first byte of the current
// phrase; zero while idle.
func (b *AudioBuffer) PhraseStart() time.Time { return b.phraseStart }

// LastActivity returns the timestamp of the most recent chunk.
func (b *AudioBuffer) LastActivity() time.Time { return b.lastActivity }

// PreRollLen returns how many pre-roll chunks are currently retained.
func (b *AudioBuffer) PreRollLen() int { return b.preRoll.Len() }

// IsNewPhrase reports whether the next emission starts a new record.
func (b *AudioBuffer) IsNewPhrase() bool { return b.newPhrase }
