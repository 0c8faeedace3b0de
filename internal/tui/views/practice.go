package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/f3rmion/parler/internal/api"
	"github.com/f3rmion/parler/internal/audio"
	"github.com/f3rmion/parler/internal/parler"
	"github.com/f3rmion/parler/internal/practice"
	"github.com/f3rmion/parler/internal/tui/bigscore"
	"github.com/mattn/go-runewidth"
)

// Practice view styles
var (
	practiceInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent).
				Padding(0, 1)

	practiceScoreStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	practiceRecordingStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				Blink(true)

	practiceDiffStyle = lipgloss.NewStyle().
				Foreground(colorPrimary)

	practiceFeedbackStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorSecondary).
				Foreground(colorText).
				Padding(0, 1)
)

// Player plays audio blobs.
type Player interface {
	Play(ctx context.Context, a *parler.Audio) error
}

// PracticeDeps wires the practice view to the session and its collaborators.
// Player, Copy and Load may be nil.
type PracticeDeps struct {
	Ctx      context.Context
	Session  *practice.Session
	Workflow *practice.Workflow
	Player   Player
	Copy     func(ctx context.Context, text string) error
	Load     func(path string) (*parler.Audio, string, error)
}

// Messages for the practice view
type workflowEventMsg struct {
	event practice.Event
	ch    <-chan practice.Event
}

type uploadLoadedMsg struct {
	audio *parler.Audio
	info  string
	err   error
}

type playbackDoneMsg struct {
	err error
}

type copiedMsg struct {
	err error
}

type clearStatusMsg struct {
	seq int
}

// PracticeModel is the main practice view: target text, input source,
// submission and results.
type PracticeModel struct {
	deps    PracticeDeps
	session *practice.Session

	input   textinput.Model
	spinner spinner.Model

	uploadInfo string
	playing    bool

	status    string
	statusErr bool
	statusSeq int

	width  int
	height int
}

// NewPracticeModel creates the practice view.
func NewPracticeModel(deps PracticeDeps) PracticeModel {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Load == nil {
		deps.Load = loadUpload
	}
	if deps.Session == nil {
		deps.Session = practice.NewSession(nil)
	}

	ti := textinput.New()
	ti.Placeholder = "Type a French phrase, e.g. Je voudrais un croissant"
	ti.CharLimit = 280
	ti.Width = 50
	ti.SetValue(deps.Session.Text())
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	return PracticeModel{
		deps:    deps,
		session: deps.Session,
		input:   ti,
		spinner: sp,
	}
}

// loadUpload reads a file and describes it. Probing is best-effort.
func loadUpload(path string) (*parler.Audio, string, error) {
	a, err := audio.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	info := fmt.Sprintf("%s, %s", a.MediaType, humanBytes(a.Len()))
	if pi, err := audio.Probe(path); err == nil {
		info = pi.String() + ", " + humanBytes(a.Len())
	}
	return a, info, nil
}

// SetSize updates the view dimensions.
func (m *PracticeModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(min(width-10, 80), 20)
}

// Session returns the session driven by the view.
func (m PracticeModel) Session() *practice.Session { return m.session }

// SetText replaces the target phrase, e.g. with one picked from a deck.
func (m *PracticeModel) SetText(text string) {
	if err := m.session.SetText(text); err != nil {
		*m, _ = m.withStatus(err.Error(), true)
		return
	}
	m.input.SetValue(text)
	m.input.CursorEnd()
}

// LoadUpload stages the file at path as the attempt, switching to upload mode.
func (m *PracticeModel) LoadUpload(path string) tea.Cmd {
	if m.session.Mode() != practice.ModeUpload {
		if err := m.session.SetMode(practice.ModeUpload); err != nil {
			*m, _ = m.withStatus(err.Error(), true)
			return nil
		}
	}
	load := m.deps.Load
	return func() tea.Msg {
		a, info, err := load(path)
		return uploadLoadedMsg{audio: a, info: info, err: err}
	}
}

// Shutdown stops an active recording.
func (m *PracticeModel) Shutdown() {
	if m.session.RecorderState() == practice.RecorderRecording {
		_ = m.session.StopRecording()
	}
}

// withStatus shows a transient status line.
func (m PracticeModel) withStatus(s string, isErr bool) (PracticeModel, tea.Cmd) {
	m.status = s
	m.statusErr = isErr
	m.statusSeq++
	seq := m.statusSeq
	return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

// Update handles messages.
func (m PracticeModel) Update(msg tea.Msg) (PracticeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case workflowEventMsg:
		m.session.Board().Apply(msg.event)
		switch e := msg.event.(type) {
		case practice.DoneEvent:
			m.session.Finish(nil)
			return m, nil
		case practice.FailedEvent:
			m.session.Finish(e.Err)
			return m, nil
		}
		return m, waitForEvent(msg.ch)

	case uploadLoadedMsg:
		if msg.err != nil {
			_ = m.session.SetUpload(nil)
			m.uploadInfo = ""
			return m.withStatus(msg.err.Error(), true)
		}
		if err := m.session.SetUpload(msg.audio); err != nil {
			return m.withStatus(err.Error(), true)
		}
		m.uploadInfo = msg.info
		return m, nil

	case playbackDoneMsg:
		m.playing = false
		if msg.err != nil {
			return m.withStatus(msg.err.Error(), true)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			return m.withStatus(msg.err.Error(), true)
		}
		return m.withStatus("Feedback copied to clipboard", false)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.session.Submitting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m PracticeModel) handleKey(msg tea.KeyMsg) (PracticeModel, tea.Cmd) {
	// The submit affordance stays disabled while a run is active.
	if m.session.Submitting() {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		return m.submit()

	case "ctrl+r":
		return m.toggleRecording()

	case "ctrl+t":
		next := practice.ModeUpload
		if m.session.Mode() == practice.ModeUpload {
			next = practice.ModeCapture
		}
		if err := m.session.SetMode(next); err != nil {
			return m.withStatus(err.Error(), true)
		}
		m.uploadInfo = ""
		return m, nil

	case "ctrl+o":
		return m, func() tea.Msg { return OpenFileMsg{Purpose: PurposeAudio} }

	case "ctrl+x":
		if m.session.Mode() == practice.ModeUpload {
			_ = m.session.SetUpload(nil)
			m.uploadInfo = ""
		}
		return m, nil

	case "ctrl+v":
		m.session.TogglePlayback()
		return m, nil

	case "ctrl+p":
		if !m.session.PlaybackVisible() {
			return m, nil
		}
		return m.play(m.session.PlaybackAudio())

	case "ctrl+f":
		if c := m.session.Board().Comparison(); c != nil {
			return m.play(c.Reference)
		}
		return m, nil

	case "ctrl+y":
		fb, ok := m.session.Board().Feedback()
		if !ok || m.deps.Copy == nil {
			return m, nil
		}
		ctx, copyFn := m.deps.Ctx, m.deps.Copy
		return m, func() tea.Msg { return copiedMsg{err: copyFn(ctx, fb)} }
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		if err := m.session.SetText(after); err != nil {
			m.input.SetValue(before)
		}
	}
	return m, cmd
}

func (m PracticeModel) submit() (PracticeModel, tea.Cmd) {
	if m.deps.Workflow == nil {
		return m.withStatus("no backend configured", true)
	}

	// Begin shows missing audio or text on the board.
	attempt, err := m.session.Begin()
	if err != nil {
		if errors.Is(err, practice.ErrRecorderState) {
			return m.withStatus("Stop recording before submitting", true)
		}
		return m, nil
	}

	ch := make(chan practice.Event, 8)
	ctx := api.WithRequestID(m.deps.Ctx, api.NewRequestID())
	wf := m.deps.Workflow
	run := func() tea.Msg {
		defer close(ch)
		_ = wf.Run(ctx, attempt, func(e practice.Event) { ch <- e })
		return nil
	}

	return m, tea.Batch(run, waitForEvent(ch), m.spinner.Tick)
}

// waitForEvent delivers the next workflow event to the update loop.
func waitForEvent(ch <-chan practice.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return workflowEventMsg{event: e, ch: ch}
	}
}

func (m PracticeModel) toggleRecording() (PracticeModel, tea.Cmd) {
	if m.session.Mode() != practice.ModeCapture {
		return m.withStatus("Switch to capture mode (ctrl+t) to record", true)
	}

	if m.session.RecorderState() == practice.RecorderRecording {
		if err := m.session.StopRecording(); err != nil {
			return m.withStatus(err.Error(), true)
		}
		return m, nil
	}

	if err := m.session.StartRecording(m.deps.Ctx); err != nil {
		return m.withStatus(err.Error(), true)
	}
	return m, nil
}

func (m PracticeModel) play(a *parler.Audio) (PracticeModel, tea.Cmd) {
	if a.Len() == 0 || m.playing {
		return m, nil
	}
	if m.deps.Player == nil {
		return m.withStatus(audio.ErrNoPlayer.Error(), true)
	}

	m.playing = true
	ctx, player := m.deps.Ctx, m.deps.Player
	return m, func() tea.Msg {
		return playbackDoneMsg{err: player.Play(ctx, a)}
	}
}

// View renders the practice view.
func (m PracticeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Practice"))
	b.WriteString("\n")

	active := 0
	if m.session.Mode() == practice.ModeUpload {
		active = 1
	}
	b.WriteString(tabs([]string{"● Capture", "↑ Upload"}, active))
	b.WriteString(mutedStyle.Render("  ctrl+t switch"))
	b.WriteString("\n")

	b.WriteString(practiceInputStyle.Render(m.input.View()))
	b.WriteString("\n")

	b.WriteString(m.renderSource())
	b.WriteString("\n")

	if m.session.PlaybackVisible() {
		a := m.session.PlaybackAudio()
		line := fmt.Sprintf("▶ %s (%s)  ctrl+p play", a.FileName(), humanBytes(a.Len()))
		if m.playing {
			line = "♪ playing…"
		}
		b.WriteString(valueStyle.Render(line))
		b.WriteString("\n")
	}

	if m.session.CanSubmit() {
		b.WriteString(successStyle.Render("enter: submit"))
	} else {
		b.WriteString(mutedStyle.Render("enter: submit (needs a phrase and an attempt)"))
	}
	b.WriteString("\n")

	b.WriteString(divider(m.width))
	b.WriteString("\n")
	b.WriteString(m.renderBoard())

	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(successStyle.Render(m.status))
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+r record • ctrl+o open file • ctrl+v playback • ctrl+f reference • ctrl+y copy"))

	return b.String()
}

func (m PracticeModel) renderSource() string {
	if m.session.Mode() == practice.ModeUpload {
		a := m.session.Attempt()
		if a == nil {
			return mutedStyle.Render("No file chosen. ctrl+o to pick one.")
		}
		line := labelStyle.Render("File ") + valueStyle.Render(a.FileName())
		if m.uploadInfo != "" {
			line += mutedStyle.Render("  " + m.uploadInfo)
		}
		return line
	}

	switch m.session.RecorderState() {
	case practice.RecorderRecording:
		return practiceRecordingStyle.Render("● Recording… ctrl+r to stop")
	case practice.RecorderStopped:
		if a := m.session.Attempt(); a != nil {
			return valueStyle.Render(fmt.Sprintf("Captured %s. ctrl+r to record again.", humanBytes(a.Len())))
		}
		return mutedStyle.Render("Submitted. ctrl+r to record a new attempt.")
	default:
		return mutedStyle.Render("ctrl+r to start recording")
	}
}

func (m PracticeModel) renderBoard() string {
	board := m.session.Board()
	if !board.Visible() {
		return ""
	}

	var b strings.Builder
	if board.Busy() {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(loadingStyle.Render(phaseLabel(board.Phase)))
		b.WriteString("\n")
	}

	for _, s := range board.Sections() {
		switch s {
		case practice.SectionScore:
			score, _ := board.Score()
			if m.width >= 40 {
				if art := bigscore.Render(api.FormatScore(score.Score), 4); art != "" {
					b.WriteString(practiceScoreStyle.Render(art))
					b.WriteString("\n")
				}
			}
			b.WriteString(practiceScoreStyle.Render(board.ScoreLine()))
			b.WriteString("\n")
		case practice.SectionIPA:
			for _, line := range alignIPA(board.CorrectIPA(), board.AttemptIPA()) {
				b.WriteString(line)
				b.WriteString("\n")
			}
		case practice.SectionComparison:
			c := board.Comparison()
			b.WriteString(labelStyle.Render("Your attempt "))
			b.WriteString(valueStyle.Render(fmt.Sprintf("▶ %s", humanBytes(c.User.Len()))))
			b.WriteString("   ")
			b.WriteString(labelStyle.Render("Reference "))
			b.WriteString(valueStyle.Render(fmt.Sprintf("▶ %s", humanBytes(c.Reference.Len()))))
			b.WriteString(mutedStyle.Render("  ctrl+f"))
			b.WriteString("\n")
		case practice.SectionFeedback:
			fb, _ := board.Feedback()
			b.WriteString(practiceFeedbackStyle.Width(max(min(m.width-6, 90), 20)).Render(fb))
			b.WriteString("\n")
		}
	}

	if board.Errored {
		b.WriteString(errorStyle.Render(board.ErrorMessage))
		b.WriteString("\n")
	}

	return b.String()
}

func phaseLabel(p practice.Phase) string {
	switch p {
	case practice.PhaseScoring:
		return "Scoring your attempt…"
	case practice.PhaseSynthesizing:
		return "Synthesizing reference audio…"
	case practice.PhaseRequestingFeedback:
		return "Asking for feedback…"
	default:
		return ""
	}
}

// alignIPA renders the reference and attempt transcriptions in aligned
// columns with a marker line under the attempt's differing symbols.
func alignIPA(correct, attempt string) []string {
	const labelWidth = 10

	want := []rune(correct)
	got := []rune(attempt)

	var marks strings.Builder
	for i, r := range got {
		w := runewidth.RuneWidth(r)
		if i < len(want) && want[i] == r {
			marks.WriteString(strings.Repeat(" ", w))
		} else {
			marks.WriteString(strings.Repeat("^", w))
		}
	}
	// Symbols missing from the attempt.
	if extra := len(want) - len(got); extra > 0 {
		marks.WriteString(strings.Repeat("^", runewidth.StringWidth(string(want[len(got):]))))
	}

	lines := []string{
		labelStyle.Render(runewidth.FillRight("Correct", labelWidth)) + valueStyle.Render(correct),
		labelStyle.Render(runewidth.FillRight("Yours", labelWidth)) + valueStyle.Render(attempt),
	}
	if m := strings.TrimRight(marks.String(), " "); m != "" {
		lines = append(lines, strings.Repeat(" ", labelWidth)+practiceDiffStyle.Render(m))
	}
	return lines
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
