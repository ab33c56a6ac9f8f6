package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"echopilot/core"
)

func TestPCMBytesToWavBytesHeader(t *testing.T) {
	pcm := make([]byte, 320) // 10 ms of 16 kHz mono
	wav, err := PCMBytesToWavBytes(pcm, 1, 16000)
	require.NoError(t, err)

	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, "fmt ", string(wav[12:16]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "channels")
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]), "sample rate")
	require.Equal(t, "data", string(wav[36:40]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	require.Len(t, wav, 44+len(pcm))
}

func TestPCMBytesToWavBytesRejectsBadInput(t *testing.T) {
	_, err := PCMBytesToWavBytes(nil, 1, 16000)
	require.Error(t, err)

	_, err = PCMBytesToWavBytes([]byte{0, 0, 0}, 1, 16000)
	require.Error(t, err)

	_, err = PCMBytesToWavBytes(make([]byte, 4), 3, 16000)
	require.Error(t, err)

	_, err = PCMBytesToWavBytes(make([]byte, 4), 1, 0)
	require.Error(t, err)
}

func TestDecodeToPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	out, err := DecodeToPCM(pcm, core.PCM)
	require.NoError(t, err)
	require.Equal(t, pcm, out)

	// G.711 expands each 8-bit frame to one 16-bit sample.
	ulaw := []byte{0x7f, 0x00, 0xff, 0x80}
	out, err = DecodeToPCM(ulaw, core.ULAW)
	require.NoError(t, err)
	require.Len(t, out, len(ulaw)*2)

	out, err = DecodeToPCM(ulaw, core.ALAW)
	require.NoError(t, err)
	require.Len(t, out, len(ulaw)*2)

	_, err = DecodeToPCM(pcm, core.AudioEncodingFormat(99))
	require.Error(t, err)
}

func TestWriteWavFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrase.wav")
	format := core.SourceFormat{SampleRate: 8000, SampleWidth: 2, Channels: 1, Encoding: core.ULAW}

	err := WriteWavFile(path, []byte{0x7f, 0x00, 0xff, 0x80}, format)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Len(t, data, 44+8)
}

func TestGetPCMDurationSeconds(t *testing.T) {
	pcm := make([]byte, 32000) // one second of 16 kHz mono
	dur, err := GetPCMDurationSeconds(pcm, 1, 16000)
	require.NoError(t, err)
	require.InDelta(t, 1.0, dur, 1e-9)

	_, err = GetPCMDurationSeconds(nil, 1, 16000)
	require.Error(t, err)
}
