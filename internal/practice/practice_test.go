package practice

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/f3rmion/parler/internal/api"
	"github.com/f3rmion/parler/internal/parler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	calls []string
	ids   []string

	score    parler.ScoreResult
	scoreErr error
	ttsErr   error
	fbErr    error

	lastFeedback parler.FeedbackRequest
}

func newFakeService() *fakeService {
	return &fakeService{
		score: parler.ScoreResult{Score: 85, CorrectIPA: "/kæt/", AttemptIPA: "/kat/"},
	}
}

func (f *fakeService) Score(ctx context.Context, text string, a *parler.Audio) (parler.ScoreResult, error) {
	f.calls = append(f.calls, "score")
	f.ids = append(f.ids, api.RequestIDFrom(ctx))
	return f.score, f.scoreErr
}

func (f *fakeService) Synthesize(ctx context.Context, text string) (*parler.Audio, error) {
	f.calls = append(f.calls, "synthesize")
	f.ids = append(f.ids, api.RequestIDFrom(ctx))
	if f.ttsErr != nil {
		return nil, f.ttsErr
	}
	return &parler.Audio{Data: []byte("ref"), MediaType: "audio/mpeg"}, nil
}

func (f *fakeService) Feedback(ctx context.Context, req parler.FeedbackRequest) (parler.FeedbackResult, error) {
	f.calls = append(f.calls, "feedback")
	f.ids = append(f.ids, api.RequestIDFrom(ctx))
	f.lastFeedback = req
	if f.fbErr != nil {
		return parler.FeedbackResult{}, f.fbErr
	}
	return parler.FeedbackResult{Feedback: "Round the vowel."}, nil
}

type fakeRecorder struct {
	started  int
	stopped  int
	startErr error
	stopErr  error
	audio    *parler.Audio
}

func (r *fakeRecorder) Start(context.Context) error {
	r.started++
	return r.startErr
}

func (r *fakeRecorder) Stop() (*parler.Audio, error) {
	r.stopped++
	if r.stopErr != nil {
		return nil, r.stopErr
	}
	return r.audio, nil
}

func clip() *parler.Audio {
	return &parler.Audio{Data: []byte("RIFF....WAVE"), MediaType: "audio/wav"}
}

func recordedSession(t *testing.T) (*Session, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{audio: clip()}
	s := NewSession(rec)
	require.NoError(t, s.SetText("le chat"))
	require.NoError(t, s.StartRecording(context.Background()))
	require.NoError(t, s.StopRecording())
	return s, rec
}

func TestWorkflow_Success(t *testing.T) {
	svc := newFakeService()
	wf := NewWorkflow(svc, zerolog.Nop())

	var events []Event
	err := wf.Run(context.Background(), parler.Attempt{Text: "chat", Audio: clip()}, func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"score", "synthesize", "feedback"}, svc.calls)
	require.Len(t, events, 7)
	assert.Equal(t, PhaseEvent{Phase: PhaseScoring}, events[0])
	assert.IsType(t, ScoreEvent{}, events[1])
	assert.Equal(t, PhaseEvent{Phase: PhaseSynthesizing}, events[2])
	assert.IsType(t, ComparisonEvent{}, events[3])
	assert.Equal(t, PhaseEvent{Phase: PhaseRequestingFeedback}, events[4])
	assert.IsType(t, FeedbackEvent{}, events[5])
	assert.Equal(t, DoneEvent{}, events[6])

	assert.Equal(t, parler.FeedbackRequest{
		Text:       "chat",
		CorrectIPA: "/kæt/",
		AttemptIPA: "/kat/",
		Score:      85,
	}, svc.lastFeedback)

	// One request id shared by the three calls.
	require.Len(t, svc.ids, 3)
	assert.NotEmpty(t, svc.ids[0])
	assert.Equal(t, svc.ids[0], svc.ids[1])
	assert.Equal(t, svc.ids[0], svc.ids[2])
}

func TestWorkflow_KeepsCallerRequestID(t *testing.T) {
	svc := newFakeService()
	ctx := api.WithRequestID(context.Background(), "req-1")

	require.NoError(t, NewWorkflow(svc, zerolog.Nop()).Run(ctx, parler.Attempt{Text: "chat", Audio: clip()}, nil))
	assert.Equal(t, []string{"req-1", "req-1", "req-1"}, svc.ids)
}

func TestWorkflow_MissingAudio(t *testing.T) {
	svc := newFakeService()
	var events []Event

	err := NewWorkflow(svc, zerolog.Nop()).Run(context.Background(), parler.Attempt{Text: "chat"}, func(e Event) {
		events = append(events, e)
	})

	var missing *MissingAudioError
	assert.True(t, errors.As(err, &missing))
	assert.True(t, errors.Is(err, ErrMissingAudio))
	assert.Empty(t, svc.calls)
	require.Len(t, events, 1)
	assert.IsType(t, FailedEvent{}, events[0])
}

func TestWorkflow_EmptyText(t *testing.T) {
	svc := newFakeService()
	err := NewWorkflow(svc, zerolog.Nop()).Run(context.Background(), parler.Attempt{Audio: clip()}, nil)
	assert.True(t, errors.Is(err, ErrEmptyText))
	assert.Empty(t, svc.calls)
}

func TestWorkflow_StepFailures(t *testing.T) {
	boom := &api.StatusError{Endpoint: "/x", Code: 500, Message: "boom"}

	tests := []struct {
		name      string
		configure func(*fakeService)
		step      Step
		calls     []string
	}{
		{
			name:      "score fails",
			configure: func(f *fakeService) { f.scoreErr = boom },
			step:      StepScore,
			calls:     []string{"score"},
		},
		{
			name:      "synthesis fails",
			configure: func(f *fakeService) { f.ttsErr = boom },
			step:      StepSynthesize,
			calls:     []string{"score", "synthesize"},
		},
		{
			name:      "feedback fails",
			configure: func(f *fakeService) { f.fbErr = boom },
			step:      StepFeedback,
			calls:     []string{"score", "synthesize", "feedback"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			tt.configure(svc)

			var last Event
			err := NewWorkflow(svc, zerolog.Nop()).Run(context.Background(), parler.Attempt{Text: "chat", Audio: clip()}, func(e Event) {
				last = e
			})

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRemoteCall))

			var rerr *RemoteCallError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.step, rerr.Step)

			var status *api.StatusError
			assert.True(t, errors.As(err, &status))

			assert.Equal(t, tt.calls, svc.calls)
			assert.IsType(t, FailedEvent{}, last)
		})
	}
}

func TestWorkflow_EmptyReference(t *testing.T) {
	svc := &emptyTTS{fakeService: newFakeService()}
	err := NewWorkflow(svc, zerolog.Nop()).Run(context.Background(), parler.Attempt{Text: "chat", Audio: clip()}, nil)

	var rerr *RemoteCallError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, StepSynthesize, rerr.Step)
}

func TestWorkflow_IncompleteScoreStopsRun(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"error":"model not loaded"}`} {
		t.Run(body, func(t *testing.T) {
			var mu sync.Mutex
			var paths []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				paths = append(paths, r.URL.Path)
				mu.Unlock()
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			t.Cleanup(srv.Close)

			client, err := api.NewClient(api.Config{BaseURL: srv.URL}, zerolog.Nop())
			require.NoError(t, err)

			var board Board
			err = NewWorkflow(client, zerolog.Nop()).Run(context.Background(), parler.Attempt{Text: "chat", Audio: clip()}, board.Apply)

			var rerr *RemoteCallError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, StepScore, rerr.Step)
			assert.ErrorIs(t, err, api.ErrMissingField)

			_, scored := board.Score()
			assert.False(t, scored, "no score is shown for an incomplete response")
			assert.Equal(t, GenericErrorMessage, board.ErrorMessage)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []string{"/audio-score"}, paths, "synthesis and feedback are never requested")
		})
	}
}

type emptyTTS struct{ *fakeService }

func (e *emptyTTS) Synthesize(ctx context.Context, text string) (*parler.Audio, error) {
	e.calls = append(e.calls, "synthesize")
	return &parler.Audio{MediaType: "audio/mpeg"}, nil
}

func TestSession_SubmitEnabled(t *testing.T) {
	s := NewSession(&fakeRecorder{audio: clip()})
	require.NoError(t, s.SetMode(ModeUpload))
	assert.False(t, s.CanSubmit(), "no text, no audio")

	require.NoError(t, s.SetUpload(clip()))
	assert.False(t, s.CanSubmit(), "empty text disables submit regardless of audio")

	require.NoError(t, s.SetText("   "))
	assert.False(t, s.CanSubmit(), "blank text counts as empty")

	require.NoError(t, s.SetText("bonjour"))
	assert.True(t, s.CanSubmit())

	require.NoError(t, s.SetMode(ModeCapture))
	assert.False(t, s.CanSubmit(), "switching mode removes the audio")
}

func TestSession_SuccessfulSubmit(t *testing.T) {
	s, _ := recordedSession(t)
	svc := newFakeService()
	wf := NewWorkflow(svc, zerolog.Nop())

	var seen int
	require.NoError(t, s.Submit(context.Background(), wf, func(Event) { seen++ }))
	assert.Equal(t, 7, seen)

	b := s.Board()
	assert.True(t, b.Visible())
	assert.False(t, b.Errored)
	assert.False(t, b.Busy())
	assert.Equal(t, "Score: 85", b.ScoreLine())
	assert.Equal(t, "/kæt/", b.CorrectIPA())
	assert.Equal(t, "/kat/", b.AttemptIPA())

	cmp := b.Comparison()
	require.NotNil(t, cmp)
	assert.NotNil(t, cmp.User)
	assert.NotNil(t, cmp.Reference)

	fb, ok := b.Feedback()
	assert.True(t, ok)
	assert.Equal(t, "Round the vowel.", fb)

	assert.Equal(t, []Section{SectionScore, SectionIPA, SectionComparison, SectionFeedback}, b.Sections())

	// The attempt is consumed; playback of the last take stays.
	assert.Nil(t, s.Attempt())
	assert.NotNil(t, s.PlaybackAudio())
	assert.False(t, s.Submitting())
	assert.False(t, s.CanSubmit())
}

func TestSession_ResubmitAfterSuccess(t *testing.T) {
	s, _ := recordedSession(t)
	svc := newFakeService()
	wf := NewWorkflow(svc, zerolog.Nop())

	require.NoError(t, s.Submit(context.Background(), wf, nil))
	svc.calls = nil

	err := s.Submit(context.Background(), wf, nil)
	assert.True(t, errors.Is(err, ErrMissingAudio))
	assert.Empty(t, svc.calls, "no network action")
	assert.True(t, s.Board().Errored)
	assert.Equal(t, MissingAudioMessage, s.Board().ErrorMessage)
}

func TestSession_ScoreFailure(t *testing.T) {
	s, _ := recordedSession(t)
	svc := newFakeService()
	svc.scoreErr = &api.DecodeError{Endpoint: "/audio-score", Err: errors.New("bad json")}

	err := s.Submit(context.Background(), NewWorkflow(svc, zerolog.Nop()), nil)
	require.Error(t, err)

	assert.Equal(t, []string{"score"}, svc.calls)
	b := s.Board()
	assert.True(t, b.Errored)
	assert.Equal(t, GenericErrorMessage, b.ErrorMessage)
	assert.Empty(t, b.Sections())
	assert.False(t, s.Submitting())

	// The attempt survives a failure.
	assert.NotNil(t, s.Attempt())
	assert.True(t, s.CanSubmit())
}

func TestSession_LateFailureKeepsScore(t *testing.T) {
	for _, step := range []Step{StepSynthesize, StepFeedback} {
		t.Run(step.String(), func(t *testing.T) {
			s, _ := recordedSession(t)
			svc := newFakeService()
			if step == StepSynthesize {
				svc.ttsErr = errors.New("connection reset")
			} else {
				svc.fbErr = errors.New("connection reset")
			}

			require.Error(t, s.Submit(context.Background(), NewWorkflow(svc, zerolog.Nop()), nil))

			b := s.Board()
			assert.True(t, b.Errored)
			assert.Equal(t, GenericErrorMessage, b.ErrorMessage)
			assert.Equal(t, "Score: 85", b.ScoreLine())
			assert.Equal(t, "/kæt/", b.CorrectIPA())
			assert.Equal(t, "/kat/", b.AttemptIPA())
			_, hasFeedback := b.Feedback()
			assert.False(t, hasFeedback)
			assert.False(t, s.Submitting())
		})
	}
}

func TestSession_ModeSwitchDiscardsAudio(t *testing.T) {
	s, _ := recordedSession(t)
	require.NotNil(t, s.Attempt())
	require.True(t, s.PlaybackVisible())

	require.NoError(t, s.SetMode(ModeUpload))
	assert.Nil(t, s.Attempt())
	assert.Nil(t, s.PlaybackAudio())
	assert.False(t, s.PlaybackVisible())
	assert.Equal(t, RecorderIdle, s.RecorderState())

	require.NoError(t, s.SetUpload(clip()))
	assert.True(t, s.PlaybackVisible())

	require.NoError(t, s.SetMode(ModeCapture))
	assert.Nil(t, s.Attempt())
	assert.False(t, s.PlaybackVisible())
}

func TestSession_ModeSwitchStopsRecording(t *testing.T) {
	rec := &fakeRecorder{audio: clip()}
	s := NewSession(rec)
	require.NoError(t, s.StartRecording(context.Background()))

	require.NoError(t, s.SetMode(ModeUpload))
	assert.Equal(t, 1, rec.stopped)
	assert.Equal(t, RecorderIdle, s.RecorderState())
	assert.Nil(t, s.Attempt())
}

func TestSession_ModeSwitchLogsStopFailure(t *testing.T) {
	var logs bytes.Buffer
	rec := &fakeRecorder{stopErr: errors.New("ffmpeg did not exit")}
	s := NewSession(rec)
	s.SetLogger(zerolog.New(&logs))

	require.NoError(t, s.StartRecording(context.Background()))
	require.NoError(t, s.SetMode(ModeUpload))

	assert.Equal(t, 1, rec.stopped)
	assert.Equal(t, RecorderIdle, s.RecorderState())
	assert.Contains(t, logs.String(), "ffmpeg did not exit")
	assert.Contains(t, logs.String(), "stopping abandoned recording")
}

func TestSession_RecorderStateMachine(t *testing.T) {
	rec := &fakeRecorder{audio: clip()}
	s := NewSession(rec)
	ctx := context.Background()

	assert.Equal(t, RecorderIdle, s.RecorderState())
	assert.True(t, errors.Is(s.StopRecording(), ErrRecorderState), "stop from idle")

	require.NoError(t, s.StartRecording(ctx))
	assert.Equal(t, RecorderRecording, s.RecorderState())
	assert.True(t, errors.Is(s.StartRecording(ctx), ErrRecorderState), "start while recording")

	require.NoError(t, s.SetText("chat"))
	assert.False(t, s.CanSubmit(), "cannot submit while recording")

	require.NoError(t, s.StopRecording())
	assert.Equal(t, RecorderStopped, s.RecorderState())
	assert.True(t, s.CanSubmit())

	// Re-recording from Stopped discards the previous take.
	require.NoError(t, s.StartRecording(ctx))
	assert.Nil(t, s.Attempt())
	assert.False(t, s.PlaybackVisible())
	assert.Equal(t, 2, rec.started)
}

func TestSession_RecorderErrors(t *testing.T) {
	ctx := context.Background()

	rec := &fakeRecorder{startErr: errors.New("no device")}
	s := NewSession(rec)
	require.Error(t, s.StartRecording(ctx))
	assert.Equal(t, RecorderIdle, s.RecorderState())

	rec = &fakeRecorder{stopErr: errors.New("nothing captured")}
	s = NewSession(rec)
	require.NoError(t, s.StartRecording(ctx))
	require.Error(t, s.StopRecording())
	assert.Equal(t, RecorderIdle, s.RecorderState())
	assert.Nil(t, s.Attempt())

	s = NewSession(nil)
	assert.True(t, errors.Is(s.StartRecording(ctx), ErrRecorderState))

	s = NewSession(&fakeRecorder{})
	require.NoError(t, s.SetMode(ModeUpload))
	assert.True(t, errors.Is(s.StartRecording(ctx), ErrWrongMode))
	require.NoError(t, s.SetMode(ModeCapture))
	assert.True(t, errors.Is(s.SetUpload(clip()), ErrWrongMode))
}

func TestSession_BeginFinish(t *testing.T) {
	s, _ := recordedSession(t)

	a, err := s.Begin()
	require.NoError(t, err)
	assert.Equal(t, "le chat", a.Text)
	assert.True(t, s.Submitting())
	assert.False(t, s.CanSubmit())

	_, err = s.Begin()
	assert.True(t, errors.Is(err, ErrBusy))
	assert.True(t, errors.Is(s.SetText("x"), ErrBusy))
	assert.True(t, errors.Is(s.SetMode(ModeUpload), ErrBusy))

	s.Finish(errors.New("failed"))
	assert.False(t, s.Submitting())
	assert.NotNil(t, s.Attempt())

	_, err = s.Begin()
	require.NoError(t, err)
	s.Finish(nil)
	assert.Nil(t, s.Attempt())
}

func TestSession_EmptyTextRejected(t *testing.T) {
	s := NewSession(nil)
	require.NoError(t, s.SetMode(ModeUpload))
	require.NoError(t, s.SetUpload(clip()))

	_, err := s.Begin()
	assert.True(t, errors.Is(err, ErrEmptyText))
	assert.Equal(t, EmptyTextMessage, s.Board().ErrorMessage)
	assert.False(t, s.Submitting())
}

func TestSession_SetTextResetsBoard(t *testing.T) {
	s, _ := recordedSession(t)
	require.NoError(t, s.Submit(context.Background(), NewWorkflow(newFakeService(), zerolog.Nop()), nil))
	require.True(t, s.Board().Visible())

	require.NoError(t, s.SetText("le chien"))
	assert.False(t, s.Board().Visible())
	assert.Empty(t, s.Board().Sections())
}

func TestSession_TogglePlayback(t *testing.T) {
	s := NewSession(nil)
	s.TogglePlayback()
	assert.False(t, s.PlaybackVisible(), "nothing to play")

	require.NoError(t, s.SetMode(ModeUpload))
	require.NoError(t, s.SetUpload(clip()))
	s.TogglePlayback()
	assert.False(t, s.PlaybackVisible())
	s.TogglePlayback()
	assert.True(t, s.PlaybackVisible())

	require.NoError(t, s.SetUpload(nil))
	assert.False(t, s.PlaybackVisible())
	assert.Nil(t, s.Attempt())
}

func TestBoard_ScoreFormatting(t *testing.T) {
	var b Board
	assert.Equal(t, "", b.ScoreLine())

	b.Apply(ScoreEvent{Result: parler.ScoreResult{Score: 72.5}})
	assert.Equal(t, "Score: 72.5", b.ScoreLine())
	assert.Equal(t, []Section{SectionScore, SectionIPA}, b.Sections())

	b.Reset()
	assert.False(t, b.Visible())
	assert.Nil(t, b.Comparison())
}

func TestBoard_Phases(t *testing.T) {
	var b Board
	b.Apply(PhaseEvent{Phase: PhaseScoring})
	assert.True(t, b.Busy())
	assert.Equal(t, "scoring", b.Phase.String())

	b.Apply(FailedEvent{Err: &RemoteCallError{Step: StepScore, Err: errors.New("x")}})
	assert.False(t, b.Busy())
	assert.True(t, b.Errored)
}
