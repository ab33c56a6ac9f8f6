package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"echopilot/core"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 5.2, cfg.PhraseTimeoutSeconds)
	require.Equal(t, 1, cfg.BufferChunks)
	require.Equal(t, core.PCM, cfg.Mic.Encoding)
	require.Equal(t, core.ULAW, cfg.Tap.Encoding)
}

func TestValidateRanges(t *testing.T) {
	cfg := Default()
	cfg.PhraseTimeoutSeconds = 51
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.PhraseTimeoutSeconds = 0.005
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.BufferChunks = 11
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.BufferChunks = -1
	require.Error(t, cfg.Validate())
}

func TestValidateErrorRendersBounds(t *testing.T) {
	cfg := Default()
	cfg.PhraseTimeoutSeconds = 51
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "[0.01, 50]")
	require.NotContains(t, err.Error(), "%!")

	cfg = Default()
	cfg.BufferChunks = 11
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "[0, 10]")
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.PhraseTimeoutSeconds = 0
	cfg.TranscriptionModel = ""
	cfg.CompletionModel = ""
	cfg.ListenAddr = ""
	require.NoError(t, cfg.Validate())
	require.Equal(t, 5.2, cfg.PhraseTimeoutSeconds)
	require.Equal(t, "whisper-1", cfg.TranscriptionModel)
	require.Equal(t, "gpt-4o-mini", cfg.CompletionModel)
	require.Equal(t, ":8710", cfg.ListenAddr)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"phrase_timeout_seconds": 3.5, "buffer_chunks": 2, "record_only_mode": true}`))
	require.NoError(t, err)
	require.Equal(t, 3.5, cfg.PhraseTimeoutSeconds)
	require.Equal(t, 2, cfg.BufferChunks)
	require.True(t, cfg.RecordOnlyMode)
	// Untouched fields keep their defaults.
	require.Equal(t, "whisper-1", cfg.TranscriptionModel)

	_, err = FromJSON([]byte(`{"phrase_timeout_seconds": 100}`))
	require.Error(t, err)

	_, err = FromJSON([]byte(`not json`))
	require.Error(t, err)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_addr": ":9000"}`), 0o644))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddr)

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestFormatBySource(t *testing.T) {
	cfg := Default()
	require.Equal(t, cfg.Tap, cfg.Format(core.SourceSpeaker))
	require.Equal(t, cfg.Mic, cfg.Format(core.SourceYou))
}
