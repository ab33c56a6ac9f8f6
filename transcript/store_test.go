package transcript

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"echopilot/core"
)

type fakeCreator struct {
	created int
}

func (f *fakeCreator) Create(questionTime time.Time, questionText string) string {
	f.created++
	return fmt.Sprintf("resp-%d", f.created)
}

func signalled(s *Store) bool {
	select {
	case <-s.Changed():
		return true
	default:
		return false
	}
}

func TestRecordPhraseInsertAndUpdate(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())
	t0 := time.Now()

	id := s.RecordPhrase(core.SourceSpeaker, "hello", t0, true)
	require.Equal(t, "resp-1", id)

	// Continuation overwrites in place and keeps the id.
	id2 := s.RecordPhrase(core.SourceSpeaker, "hello there", t0.Add(time.Second), false)
	require.Empty(t, id2)

	records := s.Records(core.SourceSpeaker)
	require.Len(t, records, 1)
	require.Equal(t, "hello there", records[0].Text)
	require.Equal(t, "resp-1", records[0].ResponseID)

	combined := s.Combined()
	require.Len(t, combined, 1)
	require.Equal(t, "hello there", combined[0].Text)
	require.Equal(t, "resp-1", combined[0].ResponseID)
}

func TestRecordPhraseEmptyListInsertsWithoutResponse(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())

	// Not a new phrase, but the list is empty: insert, no response id.
	id := s.RecordPhrase(core.SourceSpeaker, "hello", time.Now(), false)
	require.Empty(t, id)
	require.Equal(t, 0, creator.created)
	require.Len(t, s.Records(core.SourceSpeaker), 1)
}

func TestCombinedListStaysInSyncAcrossSources(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())
	t0 := time.Now()

	s.RecordPhrase(core.SourceSpeaker, "question", t0, true)
	s.RecordPhrase(core.SourceYou, "my reply", t0.Add(time.Second), true)
	// Speaker continuation must update the speaker entry even though a
	// You record now sits at the combined front.
	s.RecordPhrase(core.SourceSpeaker, "question extended", t0.Add(2*time.Second), false)

	combined := s.Combined()
	require.Len(t, combined, 2)
	require.Equal(t, core.SourceYou, combined[0].Source)
	require.Equal(t, "my reply", combined[0].Text)
	require.Equal(t, core.SourceSpeaker, combined[1].Source)
	require.Equal(t, "question extended", combined[1].Text)
	require.Equal(t, "resp-1", combined[1].ResponseID)
}

func TestChangedSignal(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())

	s.RecordPhrase(core.SourceYou, "hello", time.Now(), true)
	require.False(t, signalled(s), "You phrases must not trigger generation")

	s.RecordPhrase(core.SourceSpeaker, "a question", time.Now(), true)
	require.True(t, signalled(s))

	// Continuations do not re-signal.
	s.RecordPhrase(core.SourceSpeaker, "a question more", time.Now(), false)
	require.False(t, signalled(s))
}

func TestChangedSignalCoalesces(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())

	s.RecordPhrase(core.SourceSpeaker, "first", time.Now(), true)
	s.RecordPhrase(core.SourceSpeaker, "second", time.Now(), true)

	require.True(t, signalled(s))
	require.False(t, signalled(s), "multiple signals before a wake collapse to one")
}

func TestRecordOnlyModeSuppressesSignal(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, true, core.GetLogger())

	id := s.RecordPhrase(core.SourceSpeaker, "a question", time.Now(), true)
	require.NotEmpty(t, id, "storage still proceeds in record-only mode")
	require.False(t, signalled(s))
}

func TestLatestSpeaker(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())

	_, ok := s.LatestSpeaker()
	require.False(t, ok)

	s.RecordPhrase(core.SourceSpeaker, "first", time.Now(), true)
	s.RecordPhrase(core.SourceSpeaker, "second", time.Now(), true)
	latest, ok := s.LatestSpeaker()
	require.True(t, ok)
	require.Equal(t, "second", latest.Text)
}

func TestClear(t *testing.T) {
	creator := &fakeCreator{}
	s := NewStore(creator, false, core.GetLogger())
	s.RecordPhrase(core.SourceSpeaker, "one", time.Now(), true)
	s.RecordPhrase(core.SourceYou, "two", time.Now(), true)

	s.Clear()
	require.Empty(t, s.Records(core.SourceSpeaker))
	require.Empty(t, s.Records(core.SourceYou))
	require.Empty(t, s.Combined())
	require.Empty(t, s.Text())
}
