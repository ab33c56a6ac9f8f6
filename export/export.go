package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"echopilot/core"
	"echopilot/responder"
	"echopilot/transcript"
)

const documentVersion = "2.0"

// Message is one entry of the exported conversation. Response is
// inlined when the response id resolves in the registry.
type Message struct {
	Role       string              `json:"role"`
	Text       string              `json:"text"`
	Timestamp  time.Time           `json:"timestamp"`
	ResponseID *string             `json:"response_id"`
	Index      int                 `json:"index"`
	Response   *responder.Response `json:"response,omitempty"`
}

type Metadata struct {
	ExportTime    time.Time `json:"export_time"`
	Version       string    `json:"version"`
	TotalMessages int       `json:"total_messages"`
	Order         string    `json:"order"`
	Timezone      string    `json:"timezone"`
}

type Conversation struct {
	Messages []Message `json:"messages"`
}

// Document is the serializable snapshot of transcript plus responses.
type Document struct {
	Metadata     Metadata     `json:"metadata"`
	Conversation Conversation `json:"conversation"`
}

// Exporter snapshots the transcript store and response registry into a
// chronologically ordered document.
type Exporter struct {
	store    *transcript.Store
	registry *responder.Registry
	// legacyShift reproduces the historical export where each Speaker
	// entry adopts the previous (newer) entry's response id and the
	// newest entry exports none. Kept for bit-compatible exports; the
	// default associates each answer with the phrase that triggered it.
	legacyShift bool
	logger      *core.Logger
	now         func() time.Time
}

func NewExporter(store *transcript.Store, registry *responder.Registry, legacyShift bool, logger *core.Logger) *Exporter {
	return &Exporter{
		store:       store,
		registry:    registry,
		legacyShift: legacyShift,
		logger:      logger.With(map[string]interface{}{"component": "export"}),
		now:         time.Now,
	}
}

// BuildDocument assembles the export document. Messages are ordered
// oldest-first unless reverseChronological is set.
func (e *Exporter) BuildDocument(reverseChronological bool) Document {
	combined := e.store.Combined()

	var speakerMessages, otherMessages []transcript.CombinedRecord
	for _, msg := range combined {
		if msg.Source == core.SourceSpeaker {
			speakerMessages = append(speakerMessages, msg)
		} else {
			otherMessages = append(otherMessages, msg)
		}
	}

	if e.legacyShift && len(speakerMessages) > 0 {
		// Newest-first shift: drop the newest entry's id, every other
		// entry takes the id of the entry just newer than it.
		shifted := make([]transcript.CombinedRecord, len(speakerMessages))
		copy(shifted, speakerMessages)
		shifted[0].ResponseID = ""
		for i := 1; i < len(shifted); i++ {
			shifted[i].ResponseID = speakerMessages[i-1].ResponseID
		}
		speakerMessages = shifted
	}

	all := make([]transcript.CombinedRecord, 0, len(combined))
	all = append(all, speakerMessages...)
	all = append(all, otherMessages...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time.Before(all[j].Time)
	})
	if reverseChronological {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}

	responses := make(map[string]responder.Response)
	for _, resp := range e.registry.Snapshot() {
		responses[resp.ID] = resp
	}

	order := "oldest_first"
	if reverseChronological {
		order = "newest_first"
	}

	doc := Document{
		Metadata: Metadata{
			ExportTime:    e.now(),
			Version:       documentVersion,
			TotalMessages: len(all),
			Order:         order,
			Timezone:      time.Local.String(),
		},
	}
	doc.Conversation.Messages = make([]Message, 0, len(all))
	for idx, rec := range all {
		msg := Message{
			Role:      rec.Source.Role(),
			Text:      rec.Text,
			Timestamp: rec.Time,
			Index:     idx,
		}
		if rec.ResponseID != "" {
			id := rec.ResponseID
			msg.ResponseID = &id
			if resp, ok := responses[id]; ok {
				msg.Response = &resp
			}
		}
		doc.Conversation.Messages = append(doc.Conversation.Messages, msg)
	}
	return doc
}

// SaveConversation writes the structured document to path as JSON. A
// .json suffix is enforced and the write is atomic: the document lands
// in a temporary file, is verified non-empty, then renamed into place.
func (e *Exporter) SaveConversation(path string, reverseChronological bool) error {
	doc := e.BuildDocument(reverseChronological)
	if len(doc.Conversation.Messages) == 0 {
		return fmt.Errorf("export: no conversation data to export")
	}
	if err := e.writeJSON(path, doc); err != nil {
		return err
	}
	e.logger.Info("conversation exported", "path", path, "messages", doc.Metadata.TotalMessages)
	return nil
}

// SaveResponses writes the flat newest-first response dump to path.
func (e *Exporter) SaveResponses(path string) error {
	responses := e.registry.Snapshot()
	if len(responses) == 0 {
		return fmt.Errorf("export: no responses to export")
	}
	if err := e.writeJSON(path, responses); err != nil {
		return err
	}
	e.logger.Info("responses exported", "path", path, "count", len(responses))
	return nil
}

func (e *Exporter) writeJSON(path string, v interface{}) error {
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*.json")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close %q: %w", tmpPath, err)
	}

	info, err := os.Stat(tmpPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("export: file was created but is empty: %q", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("export: rename into place: %w", err)
	}
	return nil
}
