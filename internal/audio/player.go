package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/f3rmion/parler/internal/parler"
)

// ErrNoPlayer is returned when no audio player command is available.
var ErrNoPlayer = errors.New("no audio player found (install ffplay, or set player.command)")

// Player plays audio blobs through an external command.
type Player struct {
	command  []string
	lookPath func(string) (string, error)
}

// NewPlayer creates a player. An empty command autodetects one per platform.
func NewPlayer(command string) *Player {
	return &Player{
		command:  strings.Fields(command),
		lookPath: exec.LookPath,
	}
}

// candidates returns the player commands to try, in order, for goos.
func candidates(goos string) [][]string {
	ffplay := []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}

	switch goos {
	case "darwin":
		return [][]string{{"afplay"}, ffplay}
	case "linux":
		return [][]string{ffplay, {"paplay"}, {"aplay", "-q"}}
	case "windows":
		return [][]string{ffplay}
	default:
		return [][]string{ffplay}
	}
}

// resolve picks the command used for playback.
func (p *Player) resolve() ([]string, error) {
	if len(p.command) > 0 {
		return p.command, nil
	}
	for _, c := range candidates(runtime.GOOS) {
		if _, err := p.lookPath(c[0]); err == nil {
			return c, nil
		}
	}
	return nil, ErrNoPlayer
}

// Available checks if playback is possible.
func (p *Player) Available() bool {
	_, err := p.resolve()
	return err == nil
}

// Play writes a to a temporary file and plays it, blocking until playback ends.
func (p *Player) Play(ctx context.Context, a *parler.Audio) error {
	if a.Len() == 0 {
		return fmt.Errorf("nothing to play")
	}

	command, err := p.resolve()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "parler-*"+parler.ExtensionFor(a.MediaType))
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	args := append(append([]string(nil), command[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, command[0], args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", command[0], err)
	}
	return nil
}
