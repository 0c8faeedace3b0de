package views

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/f3rmion/parler/internal/deck"
)

// PhraseSelectedMsg is sent when a phrase is chosen for practice.
type PhraseSelectedMsg struct {
	Text string
}

// PhrasesModel lists the phrases of an opened deck.
type PhrasesModel struct {
	name    string
	field   string
	all     []deck.Phrase
	visible []deck.Phrase
	err     error

	selected int
	offset   int

	search    textinput.Model
	searching bool

	width  int
	height int
}

// NewPhrasesModel creates an empty phrase list. field selects the note field holding phrases.
func NewPhrasesModel(field string) PhrasesModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.CharLimit = 80

	return PhrasesModel{field: field, search: ti}
}

// SetDeck loads phrases from d. A nil deck clears the list.
func (m *PhrasesModel) SetDeck(d *deck.Deck) {
	m.all, m.visible, m.err = nil, nil, nil
	m.selected, m.offset = 0, 0
	m.name = ""
	if d == nil {
		return
	}

	m.name = filepath.Base(d.Path())
	if len(d.Names) > 0 {
		m.name = strings.Join(d.Names, ", ")
	}
	m.all, m.err = d.Phrases(m.field)
	m.applyFilter()
}

// SetError clears the list and shows err.
func (m *PhrasesModel) SetError(err error) {
	m.SetDeck(nil)
	m.err = err
}

// Len returns the number of phrases shown.
func (m PhrasesModel) Len() int { return len(m.visible) }

// Searching reports whether the filter input has focus.
func (m PhrasesModel) Searching() bool { return m.searching }

// SetSize updates the view dimensions.
func (m *PhrasesModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.search.Width = max(width-8, 10)
}

func (m *PhrasesModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.search.Value()))
	if q == "" {
		m.visible = m.all
	} else {
		m.visible = nil
		for _, p := range m.all {
			if strings.Contains(strings.ToLower(p.Text), q) {
				m.visible = append(m.visible, p)
			}
		}
	}
	m.selected = min(m.selected, max(len(m.visible)-1, 0))
	m.adjustScroll()
}

// Update handles messages.
func (m PhrasesModel) Update(msg tea.Msg) (PhrasesModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.searching {
		switch key.String() {
		case "enter", "esc":
			m.searching = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case "j", "down":
		if m.selected < len(m.visible)-1 {
			m.selected++
			m.adjustScroll()
		}
	case "k", "up":
		if m.selected > 0 {
			m.selected--
			m.adjustScroll()
		}
	case "g":
		m.selected, m.offset = 0, 0
	case "G":
		m.selected = max(len(m.visible)-1, 0)
		m.adjustScroll()
	case "enter":
		if m.selected < len(m.visible) {
			text := m.visible[m.selected].Text
			return m, func() tea.Msg { return PhraseSelectedMsg{Text: text} }
		}
	}
	return m, nil
}

func (m *PhrasesModel) visibleHeight() int {
	return max(m.height-9, 5)
}

func (m *PhrasesModel) adjustScroll() {
	h := m.visibleHeight()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+h {
		m.offset = m.selected - h + 1
	}
}

// View renders the phrase list.
func (m PhrasesModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Phrases"))
	b.WriteString("\n")

	if m.name == "" {
		if m.err != nil {
			b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
			b.WriteString("\n")
		}
		b.WriteString(mutedStyle.Render("No deck loaded. Open an Anki deck (.apkg) first."))
		return b.String()
	}

	b.WriteString(fpPathStyle.Render(fmt.Sprintf("%s • %d of %d phrases", m.name, len(m.visible), len(m.all))))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	b.WriteString(divider(m.width))
	b.WriteString("\n")

	end := min(m.offset+m.visibleHeight(), len(m.visible))
	for i := m.offset; i < end; i++ {
		p := m.visible[i]
		if i == m.selected {
			b.WriteString("> ")
			b.WriteString(selectedStyle.Render(p.Text))
		} else {
			b.WriteString("  ")
			b.WriteString(valueStyle.Render(p.Text))
		}
		if len(p.Tags) > 0 {
			b.WriteString(mutedStyle.Render("  " + strings.Join(p.Tags, " ")))
		}
		b.WriteString("\n")
	}

	b.WriteString(divider(m.width))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: practice • /: filter • j/k: move"))
	return b.String()
}
