// Package clipboard copies text to the system clipboard through the platform's copy command.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnavailable is returned when no copy command is installed.
var ErrUnavailable = errors.New("no clipboard command found (install wl-clipboard, xclip or xsel)")

var lookPath = exec.LookPath

// commands returns the copy commands to try, in order, for goos.
func commands(goos string) [][]string {
	switch goos {
	case "darwin":
		return [][]string{{"pbcopy"}}
	case "windows":
		return [][]string{{"clip"}}
	default:
		return [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	}
}

func resolve() ([]string, error) {
	for _, c := range commands(runtime.GOOS) {
		if _, err := lookPath(c[0]); err == nil {
			return c, nil
		}
	}
	return nil, ErrUnavailable
}

// Write copies text to the system clipboard.
func Write(ctx context.Context, text string) error {
	c, err := resolve()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, c[0], c[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s: %w: %s", c[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Available checks if clipboard functionality is available.
func Available() bool {
	_, err := resolve()
	return err == nil
}
