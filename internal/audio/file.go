package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/f3rmion/parler/internal/parler"
	"github.com/gabriel-vasile/mimetype"
)

// ErrNotAudio is returned when a file's content is not a recognized audio container.
var ErrNotAudio = errors.New("not an audio file")

// Extensions lists the file extensions offered when picking an upload.
var Extensions = []string{".wav", ".webm", ".mp3", ".ogg", ".opus", ".flac", ".m4a"}

// containers that mimetype reports under a non-audio top-level type but that carry audio.
var audioContainers = map[string]bool{
	"video/webm":      true,
	"video/ogg":       true,
	"application/ogg": true,
	"video/mp4":       true,
}

// LoadFile reads an audio file verbatim and tags it with its sniffed media type.
func LoadFile(path string) (*parler.Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w (empty file)", filepath.Base(path), ErrNotAudio)
	}

	mediaType, ok := detect(data)
	if !ok {
		return nil, fmt.Errorf("%s: %w (%s)", filepath.Base(path), ErrNotAudio, mediaType)
	}

	return &parler.Audio{
		Data:      data,
		MediaType: mediaType,
		Name:      filepath.Base(path),
	}, nil
}

// detect returns the media type of data and whether it is audio.
func detect(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || audioContainers[s] {
			return mt.String(), true
		}
	}
	return mt.String(), false
}
