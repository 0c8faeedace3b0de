package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/f3rmion/parler/internal/config"
	"github.com/f3rmion/parler/internal/deck"
	"github.com/f3rmion/parler/internal/practice"
	"github.com/f3rmion/parler/internal/tui/views"
	"github.com/rs/zerolog"
)

// ViewType represents the current active view
type ViewType int

const (
	ViewPractice ViewType = iota
	ViewPhrases
	ViewOpen
	ViewSettings
)

// MenuItem represents a sidebar menu entry
type MenuItem struct {
	Label    string
	View     ViewType
	Shortcut string
}

// DeckLoadedMsg is sent when an Anki deck has been opened.
type DeckLoadedMsg struct {
	Deck *deck.Deck
	Path string
	Err  error
}

// Deps holds everything the app needs. Ctx, Session and OpenDeck default when nil.
type Deps struct {
	Ctx        context.Context
	Config     *config.Config
	ConfigPath string
	Session    *practice.Session
	Workflow   *practice.Workflow
	Player     views.Player
	Copy       func(ctx context.Context, text string) error
	OpenDeck   func(path string) (*deck.Deck, error)
	DeckPath   string // Opened at startup when set
	StartDir   string // Initial file picker directory
	Log        zerolog.Logger
}

// AppModel is the root TUI model.
type AppModel struct {
	deps Deps

	// Layout state
	width        int
	height       int
	sidebarWidth int
	ready        bool

	// Navigation
	currentView   ViewType
	returnView    ViewType
	menuItems     []MenuItem
	selectedMenu  int
	sidebarActive bool

	// Sub-models (views)
	practiceView   views.PracticeModel
	phrasesView    views.PhrasesModel
	filePickerView views.FilePickerModel
	settingsView   views.SettingsModel

	deck *deck.Deck

	showHelp bool
}

// NewApp creates the TUI application.
func NewApp(deps Deps) AppModel {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Config == nil {
		def := config.Default()
		deps.Config = &def
	}
	if deps.Session == nil {
		deps.Session = practice.NewSession(nil)
	}
	if deps.OpenDeck == nil {
		deps.OpenDeck = deck.Open
	}

	menuItems := []MenuItem{
		{Label: "Practice", View: ViewPractice, Shortcut: "1"},
		{Label: "Phrases", View: ViewPhrases, Shortcut: "2"},
		{Label: "Open Deck", View: ViewOpen, Shortcut: "3"},
		{Label: "Settings", View: ViewSettings, Shortcut: "4"},
	}

	return AppModel{
		deps:         deps,
		sidebarWidth: 18,
		currentView:  ViewPractice,
		menuItems:    menuItems,

		practiceView: views.NewPracticeModel(views.PracticeDeps{
			Ctx:      deps.Ctx,
			Session:  deps.Session,
			Workflow: deps.Workflow,
			Player:   deps.Player,
			Copy:     deps.Copy,
		}),
		phrasesView:    views.NewPhrasesModel(deps.Config.Deck.Field),
		filePickerView: views.NewFilePickerModel(deps.StartDir),
		settingsView:   views.NewSettingsModel(deps.Config, deps.ConfigPath),
	}
}

// Init initializes the model
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.deps.DeckPath != "" {
		cmds = append(cmds, m.loadDeck(m.deps.DeckPath))
	}
	return tea.Batch(cmds...)
}

// CurrentView returns the active view.
func (m AppModel) CurrentView() ViewType { return m.currentView }

// Deck returns the opened deck, if any.
func (m AppModel) Deck() *deck.Deck { return m.deck }

// Close releases the opened deck and stops an active recording.
func (m AppModel) Close() {
	m.practiceView.Shutdown()
	if m.deck != nil {
		m.deck.Close()
	}
}

func (m *AppModel) switchTo(v ViewType) {
	if v == ViewOpen && m.currentView != ViewOpen {
		m.returnView = m.currentView
	}
	m.currentView = v
	m.sidebarActive = false
	for i, item := range m.menuItems {
		if item.View == v {
			m.selectedMenu = i
			break
		}
	}
}

// capturesText reports whether the active view consumes plain keys.
func (m AppModel) capturesText() bool {
	if m.sidebarActive {
		return false
	}
	switch m.currentView {
	case ViewPractice:
		return true
	case ViewPhrases:
		return m.phrasesView.Searching()
	}
	return false
}

// Update handles messages
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.sidebarActive = !m.sidebarActive
			return m, nil
		case "esc":
			if m.currentView == ViewPhrases && m.phrasesView.Searching() {
				break
			}
			if m.currentView == ViewOpen && !m.sidebarActive {
				m.switchTo(m.returnView)
				return m, nil
			}
			if m.sidebarActive {
				return m, tea.Quit
			}
			m.sidebarActive = true
			return m, nil
		}

		if !m.capturesText() {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "?":
				m.showHelp = true
				return m, nil
			case "1", "2", "3", "4":
				m.activate(m.menuItems[int(msg.String()[0]-'1')].View)
				return m, nil
			}
		}

		if m.sidebarActive {
			switch msg.String() {
			case "j", "down":
				if m.selectedMenu < len(m.menuItems)-1 {
					m.selectedMenu++
				}
			case "k", "up":
				if m.selectedMenu > 0 {
					m.selectedMenu--
				}
			case "enter", "l", "right":
				m.activate(m.menuItems[m.selectedMenu].View)
			}
			return m, nil
		}

		var cmd tea.Cmd
		m, cmd = m.updateCurrent(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		contentWidth := m.width - m.sidebarWidth - 4
		contentHeight := m.height - 2

		m.practiceView.SetSize(contentWidth, contentHeight)
		m.phrasesView.SetSize(contentWidth, contentHeight)
		m.filePickerView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		return m, nil

	case views.OpenFileMsg:
		m.filePickerView.SetPurpose(msg.Purpose)
		m.switchTo(ViewOpen)
		return m, nil

	case views.FileSelectedMsg:
		if msg.Purpose == views.PurposeAudio {
			m.switchTo(ViewPractice)
			cmd := m.practiceView.LoadUpload(msg.Path)
			return m, cmd
		}
		return m, m.loadDeck(msg.Path)

	case DeckLoadedMsg:
		if msg.Err != nil {
			m.deps.Log.Error().Err(msg.Err).Str("path", msg.Path).Msg("opening deck")
			m.phrasesView.SetError(fmt.Errorf("opening %s: %w", msg.Path, msg.Err))
			m.switchTo(ViewPhrases)
			return m, nil
		}
		if m.deck != nil {
			m.deck.Close()
		}
		m.deck = msg.Deck
		m.phrasesView.SetDeck(msg.Deck)
		m.deps.Log.Info().Str("path", msg.Path).Int("phrases", m.phrasesView.Len()).Msg("deck opened")
		m.switchTo(ViewPhrases)
		return m, nil

	case views.PhraseSelectedMsg:
		m.practiceView.SetText(msg.Text)
		m.switchTo(ViewPractice)
		return m, nil
	}

	// Asynchronous results of the practice view arrive whatever view is shown.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.practiceView, cmd = m.practiceView.Update(msg)
	cmds = append(cmds, cmd)
	if m.currentView != ViewPractice {
		m, cmd = m.updateCurrent(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// activate switches to v from the menu or a shortcut.
func (m *AppModel) activate(v ViewType) {
	if v == ViewOpen {
		m.filePickerView.SetPurpose(views.PurposeDeck)
	}
	m.switchTo(v)
}

func (m AppModel) updateCurrent(msg tea.Msg) (AppModel, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewPractice:
		m.practiceView, cmd = m.practiceView.Update(msg)
	case ViewPhrases:
		m.phrasesView, cmd = m.phrasesView.Update(msg)
	case ViewOpen:
		m.filePickerView, cmd = m.filePickerView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	}
	return m, cmd
}

// View renders the UI
func (m AppModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var content string
	switch m.currentView {
	case ViewPractice:
		content = m.practiceView.View()
	case ViewPhrases:
		content = m.phrasesView.View()
	case ViewOpen:
		content = m.filePickerView.View()
	case ViewSettings:
		content = m.settingsView.View()
	}

	mainContent := ContentStyle.
		Width(m.width - m.sidebarWidth - 4).
		Height(m.height - 2).
		Render(content)

	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), mainContent)
}

// renderSidebar renders the sidebar navigation
func (m AppModel) renderSidebar() string {
	items := []string{SidebarTitleStyle.Render("  parler  "), ""}

	for i, item := range m.menuItems {
		label := item.Shortcut + ". " + item.Label

		style := SidebarItemStyle
		if i == m.selectedMenu {
			if m.sidebarActive {
				style = SidebarItemActiveStyle
			} else {
				style = SidebarItemStyle.Bold(true).Foreground(ColorSecondary)
			}
		}
		items = append(items, style.Render(label))
	}

	usedHeight := len(items) + 4
	for i := 0; i < m.height-usedHeight-2; i++ {
		items = append(items, "")
	}

	help := "tab Menu  ^c Quit"
	if !m.capturesText() {
		help = "? Help  q Quit"
	}
	items = append(items, SidebarHelpStyle.Render(help))

	return SidebarStyle.
		Width(m.sidebarWidth).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, items...))
}

// loadDeck opens a deck asynchronously
func (m AppModel) loadDeck(path string) tea.Cmd {
	open := m.deps.OpenDeck
	return func() tea.Msg {
		d, err := open(path)
		return DeckLoadedMsg{Deck: d, Path: path, Err: err}
	}
}

// renderHelp renders the help overlay
func (m AppModel) renderHelp() string {
	var b strings.Builder
	b.WriteString(HelpTitleStyle.Render("parler - French pronunciation practice"))
	b.WriteString("\n")

	section := func(title string, rows ...[2]string) {
		b.WriteString(HelpSectionStyle.Render(title))
		b.WriteString("\n")
		for _, r := range rows {
			b.WriteString(HelpKeyStyle.Render(r[0]))
			b.WriteString(HelpDescStyle.Render(r[1]))
			b.WriteString("\n")
		}
	}

	section("Global Keys",
		[2]string{"1-4", "Switch views"},
		[2]string{"tab", "Toggle sidebar focus"},
		[2]string{"?", "Show this help"},
		[2]string{"q / ctrl+c", "Quit"},
	)
	section("Practice",
		[2]string{"enter", "Submit the attempt"},
		[2]string{"ctrl+r", "Start/stop recording"},
		[2]string{"ctrl+t", "Switch capture/upload"},
		[2]string{"ctrl+o", "Choose an audio file"},
		[2]string{"ctrl+p", "Play your attempt"},
		[2]string{"ctrl+f", "Play the reference"},
		[2]string{"ctrl+v", "Show/hide playback"},
		[2]string{"ctrl+y", "Copy feedback"},
	)
	section("Phrases",
		[2]string{"enter", "Practice the phrase"},
		[2]string{"/", "Filter"},
	)
	section("File Picker",
		[2]string{"enter", "Select file/enter dir"},
		[2]string{"backspace", "Go to parent dir"},
		[2]string{"~", "Go to home dir"},
	)

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Render("Press any key to close"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, HelpBoxStyle.Render(b.String()))
}

// Run starts the TUI and blocks until it exits.
func Run(deps Deps) error {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}

	p := tea.NewProgram(
		NewApp(deps),
		tea.WithAltScreen(),
		tea.WithContext(deps.Ctx),
	)

	final, err := p.Run()
	if app, ok := final.(AppModel); ok {
		app.Close()
	}
	if err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
