package practice

import "github.com/f3rmion/parler/internal/parler"

// Phase is where a submission currently is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScoring
	PhaseSynthesizing
	PhaseRequestingFeedback
)

func (p Phase) String() string {
	switch p {
	case PhaseScoring:
		return "scoring"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseRequestingFeedback:
		return "requesting feedback"
	default:
		return "idle"
	}
}

// Step identifies one of the three remote calls.
type Step int

const (
	StepScore Step = iota + 1
	StepSynthesize
	StepFeedback
)

func (s Step) String() string {
	switch s {
	case StepScore:
		return "score"
	case StepSynthesize:
		return "synthesize"
	case StepFeedback:
		return "feedback"
	default:
		return "unknown step"
	}
}

// phase returns the phase during which s runs.
func (s Step) phase() Phase {
	switch s {
	case StepScore:
		return PhaseScoring
	case StepSynthesize:
		return PhaseSynthesizing
	case StepFeedback:
		return PhaseRequestingFeedback
	default:
		return PhaseIdle
	}
}

// Event is a presentation update emitted by the workflow.
type Event interface {
	event()
}

// PhaseEvent is emitted before each remote call.
type PhaseEvent struct {
	Phase Phase
}

// ScoreEvent carries the scoring result.
type ScoreEvent struct {
	Result parler.ScoreResult
}

// ComparisonEvent carries the user's audio and the synthesized reference.
type ComparisonEvent struct {
	User      *parler.Audio
	Reference *parler.Audio
}

// FeedbackEvent carries the feedback text.
type FeedbackEvent struct {
	Result parler.FeedbackResult
}

// FailedEvent ends a run that failed. Err is a *MissingAudioError or *RemoteCallError.
type FailedEvent struct {
	Err error
}

// DoneEvent ends a successful run.
type DoneEvent struct{}

func (PhaseEvent) event()      {}
func (ScoreEvent) event()      {}
func (ComparisonEvent) event() {}
func (FeedbackEvent) event()   {}
func (FailedEvent) event()     {}
func (DoneEvent) event()       {}
