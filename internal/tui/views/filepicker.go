package views

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/f3rmion/parler/internal/audio"
)

// Purpose says what a picked file will be used for.
type Purpose int

const (
	PurposeDeck Purpose = iota
	PurposeAudio
)

// FileSelectedMsg is sent when a file is selected
type FileSelectedMsg struct {
	Path    string
	Purpose Purpose
}

// OpenFileMsg asks the app to show the file picker for purpose.
type OpenFileMsg struct {
	Purpose Purpose
}

// File picker styles
var (
	fpPathStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true).
			MarginBottom(1)

	fpDirStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	fpFileStyle = lipgloss.NewStyle().
			Foreground(colorText)
)

// FileEntry represents a file or directory
type FileEntry struct {
	Name  string
	IsDir bool
	Path  string
}

// FilePickerModel is the file picker view model.
type FilePickerModel struct {
	purpose    Purpose
	currentDir string
	entries    []FileEntry
	selected   int
	offset     int

	err error

	width  int
	height int
}

// NewFilePickerModel creates a file picker rooted at startDir, or the working directory.
func NewFilePickerModel(startDir string) FilePickerModel {
	if startDir == "" {
		startDir, _ = os.Getwd()
	}
	if startDir == "" {
		startDir, _ = os.UserHomeDir()
	}
	if startDir == "" {
		startDir = "/"
	}

	m := FilePickerModel{currentDir: startDir}
	m.loadDir()
	return m
}

// SetPurpose switches between deck and audio files and reloads the listing.
func (m *FilePickerModel) SetPurpose(p Purpose) {
	m.purpose = p
	m.loadDir()
}

// Purpose returns what the picker is selecting.
func (m FilePickerModel) Purpose() Purpose { return m.purpose }

// Dir returns the directory being listed.
func (m FilePickerModel) Dir() string { return m.currentDir }

// SetSize updates the view dimensions.
func (m *FilePickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m FilePickerModel) extensions() []string {
	if m.purpose == PurposeAudio {
		return audio.Extensions
	}
	return []string{".apkg"}
}

// loadDir loads the entries from the current directory
func (m *FilePickerModel) loadDir() {
	m.entries = nil
	m.selected = 0
	m.offset = 0
	m.err = nil

	entries, err := os.ReadDir(m.currentDir)
	if err != nil {
		m.err = err
		return
	}

	if parent := filepath.Dir(m.currentDir); parent != m.currentDir {
		m.entries = append(m.entries, FileEntry{Name: "..", IsDir: true, Path: parent})
	}

	var dirs, files []FileEntry
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		fe := FileEntry{
			Name:  entry.Name(),
			IsDir: entry.IsDir(),
			Path:  filepath.Join(m.currentDir, entry.Name()),
		}

		if entry.IsDir() {
			dirs = append(dirs, fe)
		} else if m.matchesExtension(entry.Name()) {
			files = append(files, fe)
		}
	}

	byName := func(s []FileEntry) {
		sort.Slice(s, func(i, j int) bool {
			return strings.ToLower(s[i].Name) < strings.ToLower(s[j].Name)
		})
	}
	byName(dirs)
	byName(files)

	m.entries = append(m.entries, dirs...)
	m.entries = append(m.entries, files...)
}

func (m *FilePickerModel) matchesExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range m.extensions() {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Update handles messages.
func (m FilePickerModel) Update(msg tea.Msg) (FilePickerModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "j", "down":
		if m.selected < len(m.entries)-1 {
			m.selected++
			m.adjustScroll()
		}
	case "k", "up":
		if m.selected > 0 {
			m.selected--
			m.adjustScroll()
		}
	case "enter", "l", "right":
		if m.selected >= len(m.entries) {
			return m, nil
		}
		entry := m.entries[m.selected]
		if entry.IsDir {
			m.currentDir = entry.Path
			m.loadDir()
			return m, nil
		}
		purpose := m.purpose
		return m, func() tea.Msg {
			return FileSelectedMsg{Path: entry.Path, Purpose: purpose}
		}
	case "backspace", "h":
		if parent := filepath.Dir(m.currentDir); parent != m.currentDir {
			m.currentDir = parent
			m.loadDir()
		}
	case "~":
		if home, _ := os.UserHomeDir(); home != "" {
			m.currentDir = home
			m.loadDir()
		}
	case "g":
		m.selected = 0
		m.offset = 0
	case "G":
		m.selected = max(len(m.entries)-1, 0)
		m.adjustScroll()
	case "ctrl+d":
		m.selected = min(m.selected+m.visibleHeight()/2, max(len(m.entries)-1, 0))
		m.adjustScroll()
	case "ctrl+u":
		m.selected = max(m.selected-m.visibleHeight()/2, 0)
		m.adjustScroll()
	}

	return m, nil
}

func (m *FilePickerModel) visibleHeight() int {
	return max(m.height-8, 5)
}

func (m *FilePickerModel) adjustScroll() {
	h := m.visibleHeight()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+h {
		m.offset = m.selected - h + 1
	}
}

// View renders the file picker.
func (m FilePickerModel) View() string {
	var b strings.Builder

	title := "Open Anki Deck (.apkg)"
	empty := "(no .apkg files found)"
	if m.purpose == PurposeAudio {
		title = "Upload Audio Attempt"
		empty = "(no audio files found)"
	}

	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(fpPathStyle.Render(m.currentDir))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(divider(m.width))
	b.WriteString("\n")

	if len(m.entries) == 0 {
		b.WriteString(helpStyle.Render("  " + empty))
		b.WriteString("\n")
	}

	end := min(m.offset+m.visibleHeight(), len(m.entries))
	for i := m.offset; i < end; i++ {
		entry := m.entries[i]

		icon := "[FILE] "
		style := fpFileStyle
		if entry.IsDir {
			icon = "[DIR]  "
			style = fpDirStyle
		}

		prefix := "  "
		if i == m.selected {
			prefix = "> "
			style = selectedStyle
		}

		b.WriteString(prefix)
		b.WriteString(style.Render(icon + entry.Name))
		b.WriteString("\n")
	}

	if len(m.entries) > m.visibleHeight() {
		b.WriteString(helpStyle.Render(strings.Repeat(" ", 50) + "↕ scroll"))
		b.WriteString("\n")
	}

	b.WriteString(divider(m.width))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: select • backspace: parent • ~: home • esc: cancel"))

	return b.String()
}
