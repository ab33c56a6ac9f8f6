package responder

import (
	"context"
	"strings"
	"sync"

	"echopilot/config"
	"echopilot/core"
	"echopilot/transcript"
)

// Responder is the single active generation loop. It waits on the
// transcript-changed signal, resolves the newest unanswered Speaker
// phrase, and streams the generated answer back into the Registry.
//
// Generation is strictly serialized: wakeups arriving while a phrase is
// being processed are coalesced, and phrases that complete during that
// window are skipped rather than queued; only the most recent
// unresolved one is picked up on the next wake.
type Responder struct {
	registry  *Registry
	store     *transcript.Store
	generator core.Generator

	systemRole        string
	minQuestionLength int

	mu              sync.Mutex
	processing      bool
	lastProcessedID string

	logger *core.Logger
}

func NewResponder(cfg config.Config, registry *Registry, store *transcript.Store, generator core.Generator, logger *core.Logger) *Responder {
	return &Responder{
		registry:          registry,
		store:             store,
		generator:         generator,
		systemRole:        cfg.SystemRole,
		minQuestionLength: cfg.MinQuestionLength,
		logger:            logger.With(map[string]interface{}{"component": "responder"}),
	}
}

// Run drives the processing loop until ctx is done.
func (r *Responder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.store.Changed():
			r.wake(ctx)
		}
	}
}

// LastProcessedID returns the id of the most recently handled phrase.
func (r *Responder) LastProcessedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastProcessedID
}

// wake inspects the newest Speaker record and enters Processing when it
// carries a response id that has not been handled yet. The boolean
// guard, not a queue, enforces one generation at a time.
func (r *Responder) wake(ctx context.Context) {
	latest, ok := r.store.LatestSpeaker()
	if !ok || latest.ResponseID == "" {
		return
	}

	r.mu.Lock()
	if latest.ResponseID == r.lastProcessedID || r.processing {
		r.mu.Unlock()
		return
	}
	r.processing = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.lastProcessedID = latest.ResponseID
		r.processing = false
		r.mu.Unlock()
	}()

	// Surface progress immediately, before the first delta arrives.
	r.registry.Update(latest.ResponseID, thinkingPlaceholder, false, false)

	// One turn of memory: the previous exchange, but only once its
	// answer was actually completed.
	var previousQuestion, previousAnswer string
	r.mu.Lock()
	lastID := r.lastProcessedID
	r.mu.Unlock()
	if prev, ok := r.registry.Get(lastID); ok && prev.IsComplete {
		previousQuestion = prev.QuestionText
		previousAnswer = prev.Answer()
	}

	r.generate(ctx, latest.ResponseID, latest.Text, previousQuestion, previousAnswer)
}

func (r *Responder) generate(ctx context.Context, responseID, question, previousQuestion, previousAnswer string) {
	if len(strings.TrimSpace(question)) < r.minQuestionLength {
		// Noise, not an error. The phrase keeps its placeholder answer.
		r.logger.Debug("skipping generation for short phrase", "response_id", responseID, "length", len(strings.TrimSpace(question)))
		return
	}

	prompt := BuildPrompt(previousQuestion, question, previousAnswer)

	out := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- r.generator.Stream(ctx, r.systemRole, prompt, out)
	}()

	var accumulated strings.Builder
	for {
		select {
		case delta := <-out:
			accumulated.WriteString(delta)
			r.registry.Update(responseID, extractStreamingPayload(accumulated.String()), false, false)
		case err := <-done:
			// Drain deltas that raced with stream completion.
			for {
				select {
				case delta := <-out:
					accumulated.WriteString(delta)
					continue
				default:
				}
				break
			}
			if err != nil {
				// Generation failures are recoverable: the error text
				// becomes the final answer, visible to the user.
				r.logger.Error("generation failed", "response_id", responseID, "error", err)
				r.registry.Update(responseID, err.Error(), true, false)
				return
			}
			final := extractFinalPayload(accumulated.String())
			r.registry.Update(responseID, final, true, false)
			r.logger.Info("response complete", "response_id", responseID, "length", len(final))
			return
		}
	}
}
