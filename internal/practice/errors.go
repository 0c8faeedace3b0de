package practice

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAudio matches *MissingAudioError.
	ErrMissingAudio = errors.New("no audio to submit")
	// ErrEmptyText is returned when submitting without target text.
	ErrEmptyText = errors.New("no text to practice")
	// ErrRemoteCall matches every *RemoteCallError.
	ErrRemoteCall = errors.New("remote call failed")
	// ErrBusy is returned when a submission is already running.
	ErrBusy = errors.New("submission in progress")
	// ErrRecorderState is returned for an illegal recorder transition.
	ErrRecorderState = errors.New("invalid recorder state")
	// ErrWrongMode is returned when an input source is used outside its mode.
	ErrWrongMode = errors.New("wrong input mode")
)

// MissingAudioError is returned when a submission is attempted with no attempt audio.
// No network call is made.
type MissingAudioError struct {
	Mode Mode
}

func (e *MissingAudioError) Error() string {
	if e.Mode == ModeUpload {
		return "no audio to submit: choose a file first"
	}
	return "no audio to submit: record an attempt first"
}

// Is lets errors.Is(err, ErrMissingAudio) match.
func (e *MissingAudioError) Is(target error) bool { return target == ErrMissingAudio }

// RemoteCallError reports which workflow step failed.
type RemoteCallError struct {
	Step Step
	Err  error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRemoteCall) match.
func (e *RemoteCallError) Is(target error) bool { return target == ErrRemoteCall }
