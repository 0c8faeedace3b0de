package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/f3rmion/parler/internal/parler"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, byte(uint16(s)), byte(uint16(s)>>8))
	}
	return out
}

func TestEncodeWAV(t *testing.T) {
	all := pcm(0, 1000, -1000, 32767, -32768, 5)
	// Split in the middle of a sample to mimic arbitrary chunk boundaries.
	chunks := [][]byte{all[:3], all[3:7], all[7:]}

	data, err := EncodeWAV(chunks, 16000, 1)
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 16000, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
	assert.Equal(t, []int{0, 1000, -1000, 32767, -32768, 5}, buf.Data)
}

func TestEncodeWAV_DropsHalfSample(t *testing.T) {
	data, err := EncodeWAV([][]byte{append(pcm(7, 8), 0x01)}, 8000, 1)
	require.NoError(t, err)

	buf, err := wav.NewDecoder(bytes.NewReader(data)).FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, buf.Data)
}

func TestEncodeWAV_InvalidFormat(t *testing.T) {
	_, err := EncodeWAV(nil, 0, 1)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	wavData, err := EncodeWAV([][]byte{pcm(1, 2, 3, 4)}, 16000, 1)
	require.NoError(t, err)
	wavPath := filepath.Join(dir, "take.wav")
	require.NoError(t, os.WriteFile(wavPath, wavData, 0644))

	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("bonjour tout le monde\n"), 0644))

	emptyPath := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0644))

	a, err := LoadFile(wavPath)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", a.MediaType)
	assert.Equal(t, "take.wav", a.Name)
	assert.Equal(t, wavData, a.Data)

	_, err = LoadFile(textPath)
	assert.True(t, errors.Is(err, ErrNotAudio))

	_, err = LoadFile(emptyPath)
	assert.True(t, errors.Is(err, ErrNotAudio))

	_, err = LoadFile(filepath.Join(dir, "missing.wav"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseProbe(t *testing.T) {
	out := `{
		"streams": [
			{"codec_type": "video", "codec_name": "vp8"},
			{"codec_type": "audio", "codec_name": "opus", "sample_rate": "48000", "channels": 1}
		],
		"format": {"duration": "3.240000", "format_name": "matroska,webm"}
	}`

	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, "opus", info.Codec)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 3240*time.Millisecond, info.Duration)
	assert.Equal(t, "3.2s opus 48000Hz", info.String())

	_, err = parseProbe(`{"streams":[],"format":{}}`)
	assert.Error(t, err)

	_, err = parseProbe(`not json`)
	assert.Error(t, err)
}

// hasPair reports whether args contains flag immediately followed by value.
func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestCaptureArgs(t *testing.T) {
	args := captureArgs(RecorderConfig{
		InputFormat: "pulse",
		Device:      "default",
		SampleRate:  16000,
		Channels:    1,
	})

	assert.True(t, hasPair(args, "-f", "pulse"), args)
	assert.True(t, hasPair(args, "-i", "default"), args)
	assert.True(t, hasPair(args, "-f", "s16le"), args)
	assert.True(t, hasPair(args, "-ar", "16000"), args)
	assert.True(t, hasPair(args, "-ac", "1"), args)
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Contains(t, args, "-nostdin")

	input := indexOf(args, "-i")
	for _, global := range []string{"-hide_banner", "-loglevel", "-nostdin"} {
		i := indexOf(args, global)
		assert.True(t, i >= 0 && i < input, "%s must precede the input: %v", global, args)
	}
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

func TestFFmpegRecorder_StartStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the capture command")
	}

	script := filepath.Join(t.TempDir(), "fake-ffmpeg")
	body := "#!/bin/sh\nprintf '\\001\\000\\002\\000'\ntrap 'exit 0' INT\nwhile true; do sleep 0.05; done\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	rec := NewFFmpegRecorder(RecorderConfig{FFmpegPath: script, SampleRate: 8000, Channels: 1}, zerolog.Nop())
	require.NoError(t, rec.Start(context.Background()))
	assert.Error(t, rec.Start(context.Background()), "second start must fail")

	time.Sleep(200 * time.Millisecond)

	a, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, WAVMediaType, a.MediaType)

	buf, err := wav.NewDecoder(bytes.NewReader(a.Data)).FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, buf.Data)

	_, err = rec.Stop()
	assert.Error(t, err, "stop without start must fail")
}

func TestFFmpegRecorder_NothingCaptured(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the capture command")
	}

	script := filepath.Join(t.TempDir(), "fake-ffmpeg")
	body := "#!/bin/sh\necho 'pulse: no such device' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	rec := NewFFmpegRecorder(RecorderConfig{FFmpegPath: script}, zerolog.Nop())
	require.NoError(t, rec.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)

	_, err := rec.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNothingCaptured))
	assert.Contains(t, err.Error(), "no such device")
}

func TestPlayer_Resolve(t *testing.T) {
	p := NewPlayer("")
	p.lookPath = func(string) (string, error) { return "", errors.New("missing") }
	assert.False(t, p.Available())

	err := p.Play(context.Background(), &parler.Audio{Data: []byte{1}, MediaType: "audio/wav"})
	assert.True(t, errors.Is(err, ErrNoPlayer))

	p.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	got, err := p.resolve()
	require.NoError(t, err)
	assert.Equal(t, candidates(runtime.GOOS)[0], got)

	override := NewPlayer("mpv --no-video")
	got, err = override.resolve()
	require.NoError(t, err)
	assert.Equal(t, []string{"mpv", "--no-video"}, got)
}

func TestPlayer_Play(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	out := filepath.Join(t.TempDir(), "played")
	script := filepath.Join(t.TempDir(), "player")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncp \"$1\" "+out+"\n"), 0755))

	p := NewPlayer(script)
	require.NoError(t, p.Play(context.Background(), &parler.Audio{Data: []byte("RIFF"), MediaType: "audio/wav"}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)

	assert.Error(t, p.Play(context.Background(), nil))
}
