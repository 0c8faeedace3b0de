package practice

import (
	"context"
	"fmt"
	"strings"

	"github.com/f3rmion/parler/internal/parler"
	"github.com/rs/zerolog"
)

// Mode selects where the attempt audio comes from.
type Mode int

const (
	ModeCapture Mode = iota
	ModeUpload
)

func (m Mode) String() string {
	if m == ModeUpload {
		return "upload"
	}
	return "capture"
}

// RecorderState is the capture lifecycle state.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderStopped
)

func (s RecorderState) String() string {
	switch s {
	case RecorderRecording:
		return "recording"
	case RecorderStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Recorder captures audio from an input device.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (*parler.Audio, error)
}

// Session owns everything staged for one practice session: the target text,
// the input mode, the recorder, the attempt audio and the results board.
// It is not safe for concurrent use.
type Session struct {
	text     string
	mode     Mode
	rec      Recorder
	recState RecorderState

	attempt         *parler.Audio
	playback        *parler.Audio
	playbackVisible bool

	submitting bool
	board      Board

	log zerolog.Logger
}

// NewSession creates a session in capture mode. rec may be nil when capture is unavailable.
func NewSession(rec Recorder) *Session {
	return &Session{rec: rec}
}

// SetLogger sets the logger for recorder diagnostics. The default discards everything.
func (s *Session) SetLogger(log zerolog.Logger) {
	s.log = log
}

func (s *Session) Text() string                 { return s.text }
func (s *Session) Mode() Mode                   { return s.mode }
func (s *Session) RecorderState() RecorderState { return s.recState }
func (s *Session) Attempt() *parler.Audio       { return s.attempt }
func (s *Session) PlaybackAudio() *parler.Audio { return s.playback }
func (s *Session) PlaybackVisible() bool        { return s.playbackVisible }
func (s *Session) Submitting() bool             { return s.submitting }
func (s *Session) Board() *Board                { return &s.board }

// SetText updates the target phrase and resets the board.
func (s *Session) SetText(text string) error {
	if s.submitting {
		return ErrBusy
	}
	s.text = text
	s.board.Reset()
	return nil
}

// SetMode switches the input source. Any staged audio is discarded, playback
// is hidden and an active recording is abandoned.
func (s *Session) SetMode(m Mode) error {
	if s.submitting {
		return ErrBusy
	}
	if m == s.mode {
		return nil
	}
	if s.recState == RecorderRecording && s.rec != nil {
		if _, err := s.rec.Stop(); err != nil {
			s.log.Warn().Err(err).Str("mode", m.String()).Msg("stopping abandoned recording")
		}
	}
	s.recState = RecorderIdle
	s.mode = m
	s.clearAudio()
	s.board.Reset()
	return nil
}

// StartRecording begins a capture. Allowed from Idle and Stopped.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.mode != ModeCapture {
		return fmt.Errorf("%w: recording needs capture mode", ErrWrongMode)
	}
	if s.submitting {
		return ErrBusy
	}
	if s.recState == RecorderRecording {
		return fmt.Errorf("%w: already recording", ErrRecorderState)
	}
	if s.rec == nil {
		return fmt.Errorf("%w: no recorder configured", ErrRecorderState)
	}

	s.board.Reset()
	s.clearAudio()
	if err := s.rec.Start(ctx); err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}
	s.recState = RecorderRecording
	return nil
}

// StopRecording ends the capture and stages the result as the attempt.
func (s *Session) StopRecording() error {
	if s.recState != RecorderRecording {
		return fmt.Errorf("%w: not recording", ErrRecorderState)
	}

	a, err := s.rec.Stop()
	if err != nil {
		s.recState = RecorderIdle
		return fmt.Errorf("stopping recorder: %w", err)
	}
	s.recState = RecorderStopped
	s.attempt = a
	s.playback = a
	s.playbackVisible = a.Len() > 0
	return nil
}

// SetUpload stages an uploaded file as the attempt. nil clears it.
func (s *Session) SetUpload(a *parler.Audio) error {
	if s.mode != ModeUpload {
		return fmt.Errorf("%w: uploads need upload mode", ErrWrongMode)
	}
	if s.submitting {
		return ErrBusy
	}
	if a.Len() == 0 {
		s.clearAudio()
		return nil
	}
	s.attempt = a
	s.playback = a
	s.playbackVisible = true
	return nil
}

// TogglePlayback shows or hides the playback control when there is audio to play.
func (s *Session) TogglePlayback() {
	if s.playback.Len() == 0 {
		s.playbackVisible = false
		return
	}
	s.playbackVisible = !s.playbackVisible
}

// CanSubmit reports whether the submit affordance is enabled.
func (s *Session) CanSubmit() bool {
	return strings.TrimSpace(s.text) != "" &&
		s.attempt.Len() > 0 &&
		!s.submitting &&
		s.recState != RecorderRecording
}

// Begin validates the staged attempt and marks the session as submitting.
// A rejected attempt is shown on the board.
func (s *Session) Begin() (parler.Attempt, error) {
	if s.submitting {
		return parler.Attempt{}, ErrBusy
	}
	if s.recState == RecorderRecording {
		return parler.Attempt{}, fmt.Errorf("%w: stop recording first", ErrRecorderState)
	}

	s.board.Reset()
	var err error
	switch {
	case s.attempt.Len() == 0:
		err = &MissingAudioError{Mode: s.mode}
	case strings.TrimSpace(s.text) == "":
		err = ErrEmptyText
	}
	if err != nil {
		s.board.Apply(FailedEvent{Err: err})
		return parler.Attempt{}, err
	}

	s.submitting = true
	return parler.Attempt{Text: strings.TrimSpace(s.text), Audio: s.attempt}, nil
}

// Finish ends a submission started with Begin. On success the attempt audio
// is cleared so the next submission needs a new capture or upload.
func (s *Session) Finish(err error) {
	s.submitting = false
	if err == nil {
		s.attempt = nil
	}
}

// Submit runs the whole submission synchronously, applying events to the board.
// observe, if set, sees every event after the board does.
func (s *Session) Submit(ctx context.Context, wf *Workflow, observe func(Event)) error {
	a, err := s.Begin()
	if err != nil {
		return err
	}

	err = wf.Run(ctx, a, func(e Event) {
		s.board.Apply(e)
		if observe != nil {
			observe(e)
		}
	})
	s.Finish(err)
	return err
}

func (s *Session) clearAudio() {
	s.attempt = nil
	s.playback = nil
	s.playbackVisible = false
}
