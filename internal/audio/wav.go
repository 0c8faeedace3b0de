// Package audio captures, loads and plays audio blobs for practice attempts.
package audio

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVMediaType is the media type of assembled recordings.
const WAVMediaType = "audio/wav"

// memBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to patch the header.
type memBuffer struct {
	buf []byte
	pos int64
}

func (m *memBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = m.pos + offset
	case io.SeekEnd:
		pos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position")
	}
	m.pos = pos
	return pos, nil
}

// EncodeWAV assembles little-endian signed 16-bit PCM chunks into one WAV file.
// A trailing odd byte (half a sample) is dropped.
func EncodeWAV(chunks [][]byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid format: %d Hz, %d channels", sampleRate, channels)
	}

	var pcm bytes.Buffer
	for _, chunk := range chunks {
		pcm.Write(chunk)
	}

	raw := pcm.Bytes()
	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}

	out := &memBuffer{}
	enc := wav.NewEncoder(out, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("writing wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing wav: %w", err)
	}

	return out.buf, nil
}
