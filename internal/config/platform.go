package config

import "runtime"

// defaultInputFormat returns the ffmpeg input device format for the current OS.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func defaultDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return ":0" // First audio device, no video
	case "windows":
		return "audio=Microphone"
	default:
		return "default"
	}
}
