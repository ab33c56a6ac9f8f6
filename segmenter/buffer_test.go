package segmenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"echopilot/core"
)

var testFormat = core.SourceFormat{SampleRate: 16000, SampleWidth: 2, Channels: 1, Encoding: core.PCM}

func TestPreRollRingBounded(t *testing.T) {
	buf := NewAudioBuffer(testFormat, 3)
	base := time.Now()
	for i := 0; i < 10; i++ {
		buf.Append([]byte{byte(i)}, base.Add(time.Duration(i)*time.Millisecond))
		require.LessOrEqual(t, buf.PreRollLen(), 3)
	}
	require.Equal(t, 3, buf.PreRollLen())
}

func TestPreRollRingZeroCapacity(t *testing.T) {
	buf := NewAudioBuffer(testFormat, 0)
	buf.Append([]byte{1, 2}, time.Now())
	require.Equal(t, 0, buf.PreRollLen())

	buf.Reset(time.Now())
	require.Empty(t, buf.Accumulated())
}

func TestAudioBufferAppendTracksPhrase(t *testing.T) {
	buf := NewAudioBuffer(testFormat, 2)
	require.True(t, buf.IsNewPhrase())
	require.True(t, buf.PhraseStart().IsZero())

	t0 := time.Now()
	buf.Append([]byte{1}, t0)
	buf.Append([]byte{2}, t0.Add(time.Second))

	require.Equal(t, t0, buf.PhraseStart())
	require.Equal(t, t0.Add(time.Second), buf.LastActivity())
	require.Equal(t, []byte{1, 2}, buf.Accumulated())
}

func TestAudioBufferResetSeedsFromPreRoll(t *testing.T) {
	buf := NewAudioBuffer(testFormat, 2)
	t0 := time.Now()
	buf.Append([]byte{1}, t0)
	buf.Append([]byte{2}, t0)
	buf.Append([]byte{3}, t0)

	t1 := t0.Add(6 * time.Second)
	buf.Reset(t1)

	// The two most recent chunks survive the boundary.
	require.Equal(t, []byte{2, 3}, buf.Accumulated())
	require.Equal(t, t1, buf.PhraseStart())
	require.False(t, buf.IsNewPhrase())
	require.Equal(t, 0, buf.PreRollLen())
}

func TestAudioBufferClear(t *testing.T) {
	buf := NewAudioBuffer(testFormat, 2)
	buf.Append([]byte{1}, time.Now())
	buf.Reset(time.Now())
	buf.Clear()

	require.Empty(t, buf.Accumulated())
	require.True(t, buf.PhraseStart().IsZero())
	require.True(t, buf.LastActivity().IsZero())
	require.True(t, buf.IsNewPhrase())
	require.Equal(t, 0, buf.PreRollLen())
}

func TestPreRollRingConcatOrder(t *testing.T) {
	r := newPreRollRing(3)
	for i := 1; i <= 5; i++ {
		r.Push([]byte{byte(i)})
	}
	require.Equal(t, []byte{3, 4, 5}, r.Concat())
}
