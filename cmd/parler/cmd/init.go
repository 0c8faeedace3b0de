package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/f3rmion/parler/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize parler configuration",
	Long: `Initialize parler configuration in your config directory.

This writes config.yaml with the built-in defaults:
  - server    (backend base URL, endpoint paths, request timeout)
  - recorder  (ffmpeg input format and device for this platform)
  - player    (playback command; empty = autodetect)
  - deck      (Anki deck to open at startup and its phrase field)
  - log       (level and rotated log file)

Edit the file afterwards to point parler at your backend.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	configDir := getConfigDir()
	path := filepath.Join(configDir, config.FileName)

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", path)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing parler configuration in %s\n\n", configDir)

	cfg := config.Default()
	if err := config.Save(path, &cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "  Created %s\n", config.FileName)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration initialized!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Set server.base_url in %s (currently %s)\n", path, cfg.Server.BaseURL)
	fmt.Fprintf(out, "  2. Run 'parler ipa bonjour' to check the backend is reachable\n")
	fmt.Fprintf(out, "  3. Run 'parler' to start practicing\n")

	return nil
}
