package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"echopilot/core"
)

// Record is one finalized or still-growing phrase from a single source.
// ResponseID is empty for every "You" record and for Speaker records
// that continued an existing phrase.
type Record struct {
	Text       string
	Time       time.Time
	ResponseID string
}

// CombinedRecord is the source-tagged view of a Record held in the
// merged chronological list.
type CombinedRecord struct {
	Record
	Source core.Source
}

// ResponseCreator allocates a response record for a new Speaker phrase
// and returns its id. Implemented by responder.Registry.
type ResponseCreator interface {
	Create(questionTime time.Time, questionText string) string
}

// Store is the dual-keyed transcript repository: a newest-first list per
// source plus a combined source-tagged list, kept in sync on every
// mutation. A coalescing changed-signal fires when a new Speaker phrase
// obtains a response id, unless record-only mode is on.
type Store struct {
	mu         sync.Mutex
	bySource   map[core.Source][]Record
	combined   []CombinedRecord
	responses  ResponseCreator
	recordOnly bool
	changed    chan struct{} // single-slot
	logger     *core.Logger
}

func NewStore(responses ResponseCreator, recordOnly bool, logger *core.Logger) *Store {
	return &Store{
		bySource: map[core.Source][]Record{
			core.SourceYou:     nil,
			core.SourceSpeaker: nil,
		},
		responses:  responses,
		recordOnly: recordOnly,
		changed:    make(chan struct{}, 1),
		logger:     logger.With(map[string]interface{}{"component": "transcript"}),
	}
}

// Changed exposes the transcript-changed signal. Multiple notifications
// between reads collapse to a single wake.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

// RecordPhrase stores a transcription result. When isNewPhrase is set
// (or the per-source list is still empty) a new record is inserted at
// the front of both lists; otherwise the front record for that source
// is overwritten in place, preserving its response id. Returns the
// response id created for a new Speaker phrase, or "".
func (s *Store) RecordPhrase(source core.Source, text string, timestamp time.Time, isNewPhrase bool) string {
	var responseID string
	if source == core.SourceSpeaker && isNewPhrase && s.responses != nil {
		// Created outside the store lock: the registry has its own.
		responseID = s.responses.Create(timestamp, text)
	}

	s.mu.Lock()
	record := Record{Text: text, Time: timestamp, ResponseID: responseID}

	if isNewPhrase || len(s.bySource[source]) == 0 {
		s.bySource[source] = append([]Record{record}, s.bySource[source]...)
		s.combined = append([]CombinedRecord{{Record: record, Source: source}}, s.combined...)
	} else {
		// Continuation: overwrite the front record, keep its response id.
		record.ResponseID = s.bySource[source][0].ResponseID
		s.bySource[source][0] = record
		updated := false
		for i := range s.combined {
			if s.combined[i].Source == source {
				s.combined[i] = CombinedRecord{Record: record, Source: source}
				updated = true
				break
			}
		}
		if !updated {
			s.combined = append([]CombinedRecord{{Record: record, Source: source}}, s.combined...)
		}
	}
	s.mu.Unlock()

	if responseID != "" && !s.recordOnly {
		select {
		case s.changed <- struct{}{}:
		default:
		}
		s.logger.Debug("transcript changed", "response_id", responseID)
	}
	return responseID
}

// Records returns a copy of the newest-first list for one source.
func (s *Store) Records(source core.Source) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.bySource[source]))
	copy(out, s.bySource[source])
	return out
}

// Combined returns a copy of the merged newest-first list.
func (s *Store) Combined() []CombinedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CombinedRecord, len(s.combined))
	copy(out, s.combined)
	return out
}

// LatestSpeaker returns the front Speaker record, if any.
func (s *Store) LatestSpeaker() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.bySource[core.SourceSpeaker]
	if len(records) == 0 {
		return Record{}, false
	}
	return records[0], true
}

// Text renders the combined list as display text, newest first.
func (s *Store) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, rec := range s.combined {
		fmt.Fprintf(&b, "%s: [%s]\n\n", rec.Source, rec.Text)
	}
	return b.String()
}

// Clear empties both per-source lists and the combined list.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for source := range s.bySource {
		s.bySource[source] = nil
	}
	s.combined = nil
}
