package cmd

import (
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i", "ui"},
	Short:   "Launch interactive TUI",
	Long: `Launch the interactive terminal UI for pronunciation practice.

Views:
  Practice  Type a phrase, record or upload an attempt, submit
  Phrases   Pick a phrase from an Anki deck
  Open      Browse for a deck or an audio file
  Settings  Show the effective configuration

Controls (Practice):
  Enter   Submit
  Ctrl+R  Start / stop recording
  Ctrl+T  Switch between recording and upload
  Tab     Sidebar
  Ctrl+C  Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
	interactiveCmd.Flags().String("deck", "", "Anki deck (.apkg) to open at startup")
}
