package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/f3rmion/parler/internal/parler"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// stopGrace is how long ffmpeg gets to flush after an interrupt before it is killed.
const stopGrace = 3 * time.Second

// ErrNothingCaptured is returned by Stop when the capture produced no samples.
var ErrNothingCaptured = errors.New("no audio captured")

// RecorderConfig configures microphone capture.
type RecorderConfig struct {
	FFmpegPath  string
	InputFormat string // ffmpeg -f for the input device
	Device      string
	SampleRate  int
	Channels    int
}

// FFmpegRecorder captures raw PCM from an input device through ffmpeg and
// assembles the chunks into one WAV blob when stopped.
type FFmpegRecorder struct {
	cfg RecorderConfig
	log zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	sink   *chunkSink
	stderr *tailBuffer
	done   chan error
}

// NewFFmpegRecorder creates a recorder. Zero values fall back to 16 kHz mono from the default device.
func NewFFmpegRecorder(cfg RecorderConfig, log zerolog.Logger) *FFmpegRecorder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	return &FFmpegRecorder{cfg: cfg, log: log}
}

// captureArgs builds the ffmpeg command line that streams s16le PCM to stdout.
func captureArgs(cfg RecorderConfig) []string {
	in := ffmpeg.KwArgs{}
	if cfg.InputFormat != "" {
		in["f"] = cfg.InputFormat
	}

	args := ffmpeg.Input(cfg.Device, in).
		Output("pipe:1", ffmpeg.KwArgs{
			"f":      "s16le",
			"acodec": "pcm_s16le",
			"ac":     cfg.Channels,
			"ar":     cfg.SampleRate,
		}).
		GetArgs()

	// ffmpeg ignores options placed after the last output.
	global := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	return append(global, args...)
}

// Start launches ffmpeg. The capture runs until Stop is called or ctx is cancelled.
func (r *FFmpegRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recorder already running")
	}

	args := captureArgs(r.cfg)
	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, args...)
	sink := &chunkSink{}
	stderr := &tailBuffer{limit: 2048}
	cmd.Stdout = sink
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", r.cfg.FFmpegPath, err)
	}
	r.log.Debug().Strs("args", args).Int("pid", cmd.Process.Pid).Msg("capture started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	r.cmd, r.sink, r.stderr, r.done = cmd, sink, stderr, done
	return nil
}

// Stop ends the capture and returns the recording as a WAV blob.
func (r *FFmpegRecorder) Stop() (*parler.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return nil, fmt.Errorf("recorder not running")
	}
	cmd, sink, stderr, done := r.cmd, r.sink, r.stderr, r.done
	r.cmd, r.sink, r.stderr, r.done = nil, nil, nil, nil

	interrupt(cmd)

	var waitErr error
	select {
	case waitErr = <-done:
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		waitErr = <-done
	}

	chunks := sink.Chunks()
	r.log.Debug().Int("chunks", len(chunks)).AnErr("wait", waitErr).Msg("capture stopped")

	if len(chunks) == 0 {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrNothingCaptured, msg)
		}
		return nil, ErrNothingCaptured
	}

	data, err := EncodeWAV(chunks, r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		return nil, err
	}

	return &parler.Audio{Data: data, MediaType: WAVMediaType, Name: "recording.wav"}, nil
}

// interrupt asks ffmpeg to finish writing; Windows has no SIGINT for child processes.
func interrupt(cmd *exec.Cmd) {
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
		return
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
}

// chunkSink keeps every Write as a separate chunk, like a streaming recorder's data events.
type chunkSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *chunkSink) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
	return len(p), nil
}

// Chunks returns the chunks written so far.
func (s *chunkSink) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
