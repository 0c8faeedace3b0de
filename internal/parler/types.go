// Package parler provides the core types shared by the pronunciation-practice client.
package parler

import (
	"path/filepath"
	"strings"
)

// Audio is a binary audio blob tagged with its media type.
type Audio struct {
	Data      []byte // Raw container bytes (wav, webm, mp3, ...)
	MediaType string // e.g. "audio/wav"
	Name      string // Original file name, if any
}

// Len returns the size of the blob in bytes. A nil Audio has length 0.
func (a *Audio) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// FileName returns the name to use when the blob is sent as a form file.
func (a *Audio) FileName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return filepath.Base(a.Name)
	}
	return "recording" + ExtensionFor(a.MediaType)
}

// ExtensionFor maps an audio media type to a file extension (with leading dot).
func ExtensionFor(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return ".wav"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg", "audio/opus", "video/ogg":
		return ".ogg"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/mp4", "audio/x-m4a", "audio/aac":
		return ".m4a"
	default:
		return ".bin"
	}
}

// Attempt is the user's (text, audio) pair staged for submission.
type Attempt struct {
	Text  string
	Audio *Audio
}

// ScoreResult is returned by the scoring endpoint.
type ScoreResult struct {
	Text       string  `json:"text,omitempty"`
	Score      float64 `json:"score"`
	CorrectIPA string  `json:"correct_ipa"`
	AttemptIPA string  `json:"attempt_ipa"`
}

// FeedbackRequest carries the inputs of the feedback endpoint.
type FeedbackRequest struct {
	Text       string
	CorrectIPA string
	AttemptIPA string
	Score      float64
}

// FeedbackResult is returned by the feedback endpoint.
type FeedbackResult struct {
	Feedback string `json:"feedback"`
}

// IPAResult is the IPA transcription of a single word.
type IPAResult struct {
	Word string `json:"word"`
	IPA  string `json:"ipa"`
}

// IPAScore compares a typed IPA attempt with the reference transcription.
type IPAScore struct {
	Word       string  `json:"word"`
	CorrectIPA string  `json:"correct_ipa"`
	Attempt    string  `json:"your_attempt"`
	Score      float64 `json:"score"`
}

// PhonemesResult is the phoneme string recognized from an audio file.
type PhonemesResult struct {
	Phonemes string `json:"phonemes"`
}
