package responder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	r := NewRegistry()
	t0 := time.Now()

	id := r.Create(t0, "what is your name?")
	require.NotEmpty(t, id)

	resp, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, id, resp.ID)
	require.Equal(t, "what is your name?", resp.QuestionText)
	require.Equal(t, t0, resp.QuestionTime)
	require.Nil(t, resp.ResponseTime)
	require.Nil(t, resp.ResponseText)
	require.False(t, resp.IsComplete)
}

func TestUpdateUnknownIDReturnsFalse(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.Update("no-such-id", "text", true, false))
	require.Empty(t, r.Snapshot())
}

func TestUpdateReplaceAndIncremental(t *testing.T) {
	r := NewRegistry()
	id := r.Create(time.Now(), "q")

	require.True(t, r.Update(id, "a", false, true))
	require.True(t, r.Update(id, "b", false, true))
	resp, _ := r.Get(id)
	require.Equal(t, "ab", resp.Answer())

	require.True(t, r.Update(id, "replaced", true, false))
	resp, _ = r.Get(id)
	require.Equal(t, "replaced", resp.Answer())
	require.True(t, resp.IsComplete)
}

func TestUpdateStampsResponseTimeOnce(t *testing.T) {
	r := NewRegistry()
	fixed := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	id := r.Create(time.Now(), "q")
	r.Update(id, "first", false, false)

	r.now = func() time.Time { return fixed.Add(time.Hour) }
	r.Update(id, "second", true, false)

	resp, _ := r.Get(id)
	require.NotNil(t, resp.ResponseTime)
	require.Equal(t, fixed, *resp.ResponseTime)
}

func TestCompleteSignal(t *testing.T) {
	r := NewRegistry()
	id := r.Create(time.Now(), "q")

	r.Update(id, "partial", false, false)
	require.False(t, r.WaitForComplete(10*time.Millisecond))

	r.Update(id, "done", true, false)
	require.True(t, r.WaitForComplete(10*time.Millisecond))
}

func TestGetLatestAndSnapshotOrder(t *testing.T) {
	r := NewRegistry()
	t0 := time.Now()
	r.Create(t0, "older")
	id2 := r.Create(t0.Add(time.Minute), "newer")

	latest, ok := r.GetLatest()
	require.True(t, ok)
	require.Equal(t, id2, latest.ID)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "newer", snap[0].QuestionText)
	require.Equal(t, "older", snap[1].QuestionText)
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	id := r.Create(time.Now(), "q")
	r.Update(id, "answer", false, false)

	resp, _ := r.Get(id)
	*resp.ResponseText = "tampered"

	fresh, _ := r.Get(id)
	require.Equal(t, "answer", fresh.Answer())
}

func TestClearDiscardsEverything(t *testing.T) {
	r := NewRegistry()
	id := r.Create(time.Now(), "q")
	r.Clear()

	_, ok := r.Get(id)
	require.False(t, ok)
	_, ok = r.GetLatest()
	require.False(t, ok)
	require.Empty(t, r.Snapshot())
}
