package audio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Info describes an audio file as reported by ffprobe.
type Info struct {
	Duration   time.Duration
	Codec      string
	SampleRate int
	Channels   int
	Format     string
}

// String renders a short summary such as "3.2s opus 48000Hz".
func (i Info) String() string {
	s := fmt.Sprintf("%.1fs", i.Duration.Seconds())
	if i.Codec != "" {
		s += " " + i.Codec
	}
	if i.SampleRate > 0 {
		s += fmt.Sprintf(" %dHz", i.SampleRate)
	}
	return s
}

// Probe inspects a media file with ffprobe. It needs ffprobe on PATH.
func Probe(path string) (Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("probing %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out string) (Info, error) {
	var result struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
		Format struct {
			Duration   string `json:"duration"`
			FormatName string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return Info{}, fmt.Errorf("parsing probe output: %w", err)
	}

	var info Info
	info.Format = result.Format.FormatName
	if secs, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range result.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Codec = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		return info, nil
	}

	return info, fmt.Errorf("no audio stream found")
}
