// Package practice implements the submission workflow and the session that
// stages practice attempts.
package practice

import (
	"context"
	"errors"

	"github.com/f3rmion/parler/internal/api"
	"github.com/f3rmion/parler/internal/parler"
	"github.com/rs/zerolog"
)

// Service is the backend used by the workflow. *api.Client implements it.
type Service interface {
	Score(ctx context.Context, text string, audio *parler.Audio) (parler.ScoreResult, error)
	Synthesize(ctx context.Context, text string) (*parler.Audio, error)
	Feedback(ctx context.Context, req parler.FeedbackRequest) (parler.FeedbackResult, error)
}

// Workflow runs score, synthesize and feedback in strict sequence.
type Workflow struct {
	svc Service
	log zerolog.Logger
}

// NewWorkflow creates a workflow over svc.
func NewWorkflow(svc Service, log zerolog.Logger) *Workflow {
	return &Workflow{svc: svc, log: log}
}

// Run submits the attempt. Each result is emitted as soon as its step completes,
// and exactly one terminal event (DoneEvent or FailedEvent) is always emitted.
// A failed step stops the run; results already emitted stay valid.
func (w *Workflow) Run(ctx context.Context, a parler.Attempt, emit func(Event)) error {
	if emit == nil {
		emit = func(Event) {}
	}

	if a.Audio.Len() == 0 {
		err := &MissingAudioError{}
		emit(FailedEvent{Err: err})
		return err
	}
	if a.Text == "" {
		emit(FailedEvent{Err: ErrEmptyText})
		return ErrEmptyText
	}

	id := api.RequestIDFrom(ctx)
	if id == "" {
		id = api.NewRequestID()
		ctx = api.WithRequestID(ctx, id)
	}
	log := w.log.With().Str("request_id", id).Logger()

	fail := func(step Step, err error) error {
		rerr := &RemoteCallError{Step: step, Err: err}
		log.Error().Err(err).Str("step", step.String()).Msg("submission failed")
		emit(FailedEvent{Err: rerr})
		return rerr
	}

	emit(PhaseEvent{Phase: StepScore.phase()})
	score, err := w.svc.Score(ctx, a.Text, a.Audio)
	if err != nil {
		return fail(StepScore, err)
	}
	log.Info().Float64("score", score.Score).Msg("scored")
	emit(ScoreEvent{Result: score})

	emit(PhaseEvent{Phase: StepSynthesize.phase()})
	ref, err := w.svc.Synthesize(ctx, a.Text)
	if err == nil && ref.Len() == 0 {
		err = errors.New("empty reference audio")
	}
	if err != nil {
		return fail(StepSynthesize, err)
	}
	emit(ComparisonEvent{User: a.Audio, Reference: ref})

	emit(PhaseEvent{Phase: StepFeedback.phase()})
	fb, err := w.svc.Feedback(ctx, parler.FeedbackRequest{
		Text:       a.Text,
		CorrectIPA: score.CorrectIPA,
		AttemptIPA: score.AttemptIPA,
		Score:      score.Score,
	})
	if err != nil {
		return fail(StepFeedback, err)
	}
	emit(FeedbackEvent{Result: fb})

	log.Info().Msg("submission complete")
	emit(DoneEvent{})
	return nil
}
