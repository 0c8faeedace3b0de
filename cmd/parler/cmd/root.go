// Package cmd contains all CLI commands for parler.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/f3rmion/parler/internal/api"
	"github.com/f3rmion/parler/internal/audio"
	"github.com/f3rmion/parler/internal/clipboard"
	"github.com/f3rmion/parler/internal/config"
	"github.com/f3rmion/parler/internal/deck"
	"github.com/f3rmion/parler/internal/logging"
	"github.com/f3rmion/parler/internal/practice"
	"github.com/f3rmion/parler/internal/tui"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parler",
	Short: "French pronunciation practice",
	Long: `parler is a pronunciation-practice client for French.

Type a phrase, record yourself (or upload a recording) and submit it.
The backend scores the attempt against the phrase, synthesizes a reference
pronunciation and explains the differences:

  1. Score     → score, correct IPA, your IPA
  2. Reference → synthesized audio to compare with your own
  3. Feedback  → written advice on what to fix

Running 'parler' without arguments launches the interactive TUI.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config directory (default is $HOME/.config/parler)")
	rootCmd.PersistentFlags().String("server", "", "backend base URL (overrides server.base_url)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout (overrides server.timeout)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.Flags().String("deck", "", "Anki deck (.apkg) to open at startup")

	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads .env and ENV variables if set.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.Set("config_dir", cfgFile)
	} else {
		configDir, err := config.GetConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding config directory:", err)
			os.Exit(1)
		}
		viper.Set("config_dir", configDir)
	}

	viper.SetEnvPrefix("PARLER")
	viper.AutomaticEnv()
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	return viper.GetString("config_dir")
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig(configDir string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(configDir, config.FileName))
	if err != nil {
		return nil, err
	}

	if server := strings.TrimSpace(viper.GetString("server")); server != "" {
		cfg.Server.BaseURL = strings.TrimRight(server, "/")
	}
	if viper.IsSet("timeout") {
		timeout, err := config.ParseDuration(viper.GetString("timeout"))
		if err != nil {
			return nil, fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Server.Timeout = config.Duration(timeout)
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.Log.Level = level
	}
	if viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// env bundles what every command needs once flags are parsed.
type env struct {
	configDir string
	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
}

// setup loads configuration and opens the log. Console logging is only
// enabled for plain commands, never under the TUI.
func setup(console bool) (*env, error) {
	configDir := getConfigDir()
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}

	log, closer := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.LogPath(configDir),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    console && viper.GetBool("verbose"),
	})

	return &env{
		configDir: configDir,
		cfg:       cfg,
		log:       log,
		logCloser: closer,
	}, nil
}

func (e *env) Close() {
	e.logCloser.Close()
}

// client creates the backend client from the effective config.
func (e *env) client() (*api.Client, error) {
	s := e.cfg.Server
	return api.NewClient(api.Config{
		BaseURL: s.BaseURL,
		Timeout: s.Timeout.ToDuration(),
		Paths: api.Paths{
			Score:      s.Paths.Score,
			Synthesize: s.Paths.Synthesize,
			Feedback:   s.Paths.Feedback,
			IPA:        s.Paths.IPA,
			IPAScore:   s.Paths.IPAScore,
			Phonemes:   s.Paths.Phonemes,
		},
	}, e.log)
}

func (e *env) recorder() *audio.FFmpegRecorder {
	c := e.cfg.Recorder
	return audio.NewFFmpegRecorder(audio.RecorderConfig{
		FFmpegPath:  c.FFmpegPath,
		InputFormat: c.InputFormat,
		Device:      c.Device,
		SampleRate:  c.SampleRate,
		Channels:    c.Channels,
	}, e.log)
}

// session creates a practice session recording through ffmpeg.
func (e *env) session() *practice.Session {
	s := practice.NewSession(e.recorder())
	s.SetLogger(e.log)
	return s
}

// runTUI launches the interactive TUI.
func runTUI(cmd *cobra.Command, args []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	client, err := rt.client()
	if err != nil {
		return err
	}

	deckPath, _ := cmd.Flags().GetString("deck")
	if deckPath == "" {
		deckPath = rt.cfg.Deck.Path
	}
	startDir, err := os.Getwd()
	if err != nil {
		startDir = rt.configDir
	}

	rt.log.Info().
		Str("server", rt.cfg.Server.BaseURL).
		Str("deck", deckPath).
		Msg("starting tui")

	return tui.Run(tui.Deps{
		Ctx:        cmd.Context(),
		Config:     rt.cfg,
		ConfigPath: filepath.Join(rt.configDir, config.FileName),
		Session:    rt.session(),
		Workflow:   practice.NewWorkflow(client, rt.log),
		Player:     audio.NewPlayer(rt.cfg.Player.Command),
		Copy:       clipboard.Write,
		OpenDeck:   deck.Open,
		DeckPath:   deckPath,
		StartDir:   startDir,
		Log:        rt.log,
	})
}
