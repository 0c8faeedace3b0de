package practice

import (
	"errors"

	"github.com/f3rmion/parler/internal/api"
	"github.com/f3rmion/parler/internal/parler"
)

// Messages shown when a submission fails.
const (
	GenericErrorMessage = "Invalid server response."
	MissingAudioMessage = "No audio to submit."
	EmptyTextMessage    = "Enter a phrase to practice."
)

// Section is a block of the results board.
type Section int

const (
	SectionScore Section = iota
	SectionIPA
	SectionComparison
	SectionFeedback
)

func (s Section) String() string {
	switch s {
	case SectionScore:
		return "score"
	case SectionIPA:
		return "ipa"
	case SectionComparison:
		return "comparison"
	case SectionFeedback:
		return "feedback"
	default:
		return "unknown"
	}
}

// Comparison pairs the user's attempt with the synthesized reference.
type Comparison struct {
	User      *parler.Audio
	Reference *parler.Audio
}

// Board is the presentation state of the latest submission.
type Board struct {
	Phase        Phase
	Errored      bool
	ErrorMessage string

	visible    bool
	score      *parler.ScoreResult
	comparison *Comparison
	feedback   *string
}

// Reset hides the board and drops every result.
func (b *Board) Reset() {
	*b = Board{}
}

// Apply folds one workflow event into the board.
func (b *Board) Apply(e Event) {
	switch e := e.(type) {
	case PhaseEvent:
		b.visible = true
		b.Phase = e.Phase
	case ScoreEvent:
		b.visible = true
		r := e.Result
		b.score = &r
	case ComparisonEvent:
		b.visible = true
		b.comparison = &Comparison{User: e.User, Reference: e.Reference}
	case FeedbackEvent:
		b.visible = true
		f := e.Result.Feedback
		b.feedback = &f
	case FailedEvent:
		b.visible = true
		b.Phase = PhaseIdle
		b.Errored = true
		b.ErrorMessage = failureMessage(e.Err)
	case DoneEvent:
		b.Phase = PhaseIdle
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingAudio):
		return MissingAudioMessage
	case errors.Is(err, ErrEmptyText):
		return EmptyTextMessage
	default:
		return GenericErrorMessage
	}
}

// Visible reports whether the board has anything to show.
func (b *Board) Visible() bool { return b.visible }

// Busy reports whether a remote step is in flight.
func (b *Board) Busy() bool { return b.Phase != PhaseIdle }

// ScoreLine returns the rendered score, e.g. "Score: 85", or "" before scoring.
func (b *Board) ScoreLine() string {
	if b.score == nil {
		return ""
	}
	return "Score: " + api.FormatScore(b.score.Score)
}

// Score returns the raw score result, if any.
func (b *Board) Score() (parler.ScoreResult, bool) {
	if b.score == nil {
		return parler.ScoreResult{}, false
	}
	return *b.score, true
}

func (b *Board) CorrectIPA() string {
	if b.score == nil {
		return ""
	}
	return b.score.CorrectIPA
}

func (b *Board) AttemptIPA() string {
	if b.score == nil {
		return ""
	}
	return b.score.AttemptIPA
}

// Comparison returns the audio pair, or nil before synthesis completed.
func (b *Board) Comparison() *Comparison { return b.comparison }

// Feedback returns the feedback text and whether it arrived.
func (b *Board) Feedback() (string, bool) {
	if b.feedback == nil {
		return "", false
	}
	return *b.feedback, true
}

// Sections lists the populated sections in render order.
func (b *Board) Sections() []Section {
	var out []Section
	if b.score != nil {
		out = append(out, SectionScore, SectionIPA)
	}
	if b.comparison != nil {
		out = append(out, SectionComparison)
	}
	if b.feedback != nil {
		out = append(out, SectionFeedback)
	}
	return out
}
