package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/f3rmion/parler/internal/config"
)

var settingsTabs = []string{"Server", "Recorder", "Playback", "Logging"}

// SettingsModel shows the effective configuration.
type SettingsModel struct {
	config     *config.Config
	configPath string

	tab int

	width  int
	height int
}

// NewSettingsModel creates a new settings model.
func NewSettingsModel(cfg *config.Config, configPath string) SettingsModel {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return SettingsModel{
		config:     cfg,
		configPath: configPath,
	}
}

// SetSize updates the view dimensions.
func (m *SettingsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages.
func (m SettingsModel) Update(msg tea.Msg) (SettingsModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "right", "l":
			m.tab = (m.tab + 1) % len(settingsTabs)
		case "left", "h":
			m.tab = (m.tab + len(settingsTabs) - 1) % len(settingsTabs)
		}
	}
	return m, nil
}

// View renders the settings view.
func (m SettingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Configuration"))
	b.WriteString("\n")
	b.WriteString(fpPathStyle.Render("Config: " + m.configPath))
	b.WriteString("\n\n")

	b.WriteString(tabs(settingsTabs, m.tab))
	b.WriteString("\n")
	b.WriteString(divider(m.width))
	b.WriteString("\n\n")

	for _, row := range m.rows() {
		b.WriteString(labelStyle.Width(16).Render(row[0]))
		b.WriteString(valueStyle.Render(row[1]))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("←/→: switch tabs • edit the file and restart to apply changes"))
	return b.String()
}

func (m SettingsModel) rows() [][2]string {
	c := m.config
	orNone := func(s string) string {
		if s == "" {
			return "(auto)"
		}
		return s
	}

	switch m.tab {
	case 0:
		timeout := c.Server.Timeout.ToDuration().String()
		if c.Server.Timeout == 0 {
			timeout = "none"
		}
		p := c.Server.Paths
		return [][2]string{
			{"Base URL", c.Server.BaseURL},
			{"Timeout", timeout},
			{"Score", p.Score},
			{"Synthesize", p.Synthesize},
			{"Feedback", p.Feedback},
			{"IPA", p.IPA},
			{"IPA score", p.IPAScore},
			{"Phonemes", p.Phonemes},
		}
	case 1:
		r := c.Recorder
		return [][2]string{
			{"ffmpeg", r.FFmpegPath},
			{"Input format", r.InputFormat},
			{"Device", r.Device},
			{"Sample rate", fmt.Sprintf("%d Hz", r.SampleRate)},
			{"Channels", fmt.Sprint(r.Channels)},
		}
	case 2:
		return [][2]string{
			{"Player", orNone(c.Player.Command)},
			{"Deck", orNone(c.Deck.Path)},
			{"Deck field", orNone(c.Deck.Field)},
		}
	default:
		return [][2]string{
			{"Level", c.Log.Level},
			{"File", orNone(c.Log.File)},
			{"Max size", fmt.Sprintf("%d MB", c.Log.MaxSizeMB)},
			{"Backups", fmt.Sprint(c.Log.MaxBackups)},
		}
	}
}
