package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/zaf/g711"

	"echopilot/core"
)

// Pool for WAV header buffers (44 bytes plus slack).
var wavHeaderPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64))
	},
}

// DecodeToPCM converts a raw capture chunk to 16-bit little-endian PCM
// according to the source's wire encoding. PCM input passes through
// untouched; µ-law and A-law frames are expanded via ITU-T G.711.
func DecodeToPCM(data []byte, encoding core.AudioEncodingFormat) ([]byte, error) {
	switch encoding {
	case core.PCM:
		return data, nil
	case core.ULAW:
		return g711.DecodeUlaw(data), nil
	case core.ALAW:
		return g711.DecodeAlaw(data), nil
	default:
		return nil, fmt.Errorf("audio: unsupported encoding %d", encoding)
	}
}

// ValidatePCMData validates a PCM byte array for basic integrity.
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if len(pcm)%2 != 0 {
		return errors.New("PCM data must have even length (16-bit samples)")
	}
	if numChannels <= 0 {
		return errors.New("invalid number of channels")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// PCMBytesToWavBytes wraps PCM samples in a RIFF/WAVE container.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return nil, err
	}
	if numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	buf := wavHeaderPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		wavHeaderPool.Put(buf)
	}()

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)
	fileSize := 36 + dataSize

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	result := make([]byte, buf.Len()+len(pcm))
	copy(result, buf.Bytes())
	copy(result[buf.Len():], pcm)

	return result, nil
}

// WriteWavFile decodes the accumulated sample for a source and writes it
// to path as a WAV container. The caller owns the file's lifetime.
func WriteWavFile(path string, data []byte, format core.SourceFormat) error {
	pcm, err := DecodeToPCM(data, format.Encoding)
	if err != nil {
		return err
	}
	wav, err := PCMBytesToWavBytes(pcm, format.Channels, format.SampleRate)
	if err != nil {
		return err
	}
	return os.WriteFile(path, wav, 0o644)
}

// GetPCMDurationSeconds returns the play time of a PCM sample.
func GetPCMDurationSeconds(pcm []byte, numChannels, sampleRate int) (float64, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return 0, err
	}
	if sampleRate <= 0 {
		return 0, errors.New("sample rate must be positive")
	}
	totalSamples := len(pcm) / (2 * numChannels)
	return float64(totalSamples) / float64(sampleRate), nil
}
