package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/f3rmion/parler/internal/parler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: timeout}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "}, zerolog.Nop())
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	wav := []byte("RIFF....WAVEfmt ")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audio-score", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "chat", r.FormValue("text"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, wav, data)
		assert.Equal(t, "recording.wav", hdr.Filename)
		assert.Equal(t, "audio/wav", hdr.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"chat","score":85,"correct_ipa":"/kæt/","attempt_ipa":"/kat/"}`))
	}), 0)

	res, err := c.Score(context.Background(), "chat", &parler.Audio{Data: wav, MediaType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, parler.ScoreResult{Text: "chat", Score: 85, CorrectIPA: "/kæt/", AttemptIPA: "/kat/"}, res)
}

func TestScore_NoAudio(t *testing.T) {
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), 0)

	_, err := c.Score(context.Background(), "chat", nil)
	assert.Error(t, err)
	assert.False(t, called)
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr func(t *testing.T, err error)
	}{
		{name: "server error with detail",
			status: http.StatusInternalServerError,
			body:   `{"detail":"phonemizer crashed"}`,
			wantErr: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, 500, se.Code)
				assert.Equal(t, "/audio-score", se.Endpoint)
				assert.Equal(t, "phonemizer crashed", se.Message)
			},
		},
		{name: "validation error",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail":[{"loc":["body","file"],"msg":"field required"}]}`,
			wantErr: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Contains(t, se.Message, "field required")
			},
		},
		{name: "malformed json",
			status: http.StatusOK,
			body:   `<html>oops</html>`,
			wantErr: func(t *testing.T, err error) {
				var de *DecodeError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, "/audio-score", de.Endpoint)
			},
		},
		{name: "empty object",
			status: http.StatusOK,
			body:   `{}`,
			wantErr: func(t *testing.T, err error) {
				var de *DecodeError
				require.True(t, errors.As(err, &de))
				assert.ErrorIs(t, err, ErrMissingField)
				assert.Contains(t, err.Error(), "attempt_ipa, correct_ipa, score")
			},
		},
		{name: "null body",
			status: http.StatusOK,
			body:   `null`,
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingField)
			},
		},
		{name: "error object with 200",
			status: http.StatusOK,
			body:   `{"error":"model not loaded"}`,
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingField)
			},
		},
		{name: "score without transcriptions",
			status: http.StatusOK,
			body:   `{"score":85}`,
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingField)
				assert.Equal(t, "decoding /audio-score response: missing field: attempt_ipa, correct_ipa", err.Error())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), 0)

			_, err := c.Score(context.Background(), "chat", &parler.Audio{Data: []byte{1, 2}, MediaType: "audio/wav"})
			require.Error(t, err)
			tt.wantErr(t, err)
		})
	}
}

func TestSynthesize(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bonjour", r.FormValue("text"))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFdataWAVE"))
	}), 0)

	a, err := c.Synthesize(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", a.MediaType)
	assert.Equal(t, "reference.wav", a.Name)
	assert.Equal(t, []byte("RIFFdataWAVE"), a.Data)
}

func TestSynthesize_EmptyBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
	}), 0)

	_, err := c.Synthesize(context.Background(), "bonjour")
	assert.Error(t, err)
}

func TestFeedback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/llm-feedback", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "chat", r.FormValue("text"))
		assert.Equal(t, "/kæt/", r.FormValue("correct_ipa"))
		assert.Equal(t, "/kat/", r.FormValue("attempt_ipa"))
		assert.Equal(t, "85", r.FormValue("score"))
		_, _ = w.Write([]byte(`{"feedback":"Open the vowel more."}`))
	}), 0)

	res, err := c.Feedback(context.Background(), parler.FeedbackRequest{
		Text: "chat", CorrectIPA: "/kæt/", AttemptIPA: "/kat/", Score: 85,
	})
	require.NoError(t, err)
	assert.Equal(t, "Open the vowel more.", res.Feedback)
}

func TestScore_ZeroIsValid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"score":0,"correct_ipa":"","attempt_ipa":""}`))
	}), 0)

	res, err := c.Score(context.Background(), "chat", &parler.Audio{Data: []byte{1}, MediaType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
}

func TestFeedback_MissingField(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"detail":"quota"}`} {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}), 0)

			_, err := c.Feedback(context.Background(), parler.FeedbackRequest{Text: "chat", Score: 85})
			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, "/llm-feedback", de.Endpoint)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestIPAAndScoreIPA(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/ipa":
			assert.Equal(t, "merci", r.URL.Query().Get("word"))
			_, _ = w.Write([]byte(`{"word":"merci","ipa":"mɛʁsi"}`))
		case "/score":
			assert.Equal(t, "mɛsi", r.URL.Query().Get("attempt"))
			_, _ = w.Write([]byte(`{"word":"merci","correct_ipa":"mɛʁsi","your_attempt":"mɛsi","score":0.8}`))
		default:
			http.NotFound(w, r)
		}
	}), 0)

	ipa, err := c.IPA(context.Background(), "merci")
	require.NoError(t, err)
	assert.Equal(t, "mɛʁsi", ipa.IPA)

	sc, err := c.ScoreIPA(context.Background(), "merci", "mɛsi")
	require.NoError(t, err)
	assert.Equal(t, 0.8, sc.Score)
	assert.Equal(t, "mɛsi", sc.Attempt)
}

func TestPhonemes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio-phonemes", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "take1.webm", hdr.Filename)
		_, _ = w.Write([]byte(`{"phonemes":"bɔ̃ʒuʁ"}`))
	}), 0)

	res, err := c.Phonemes(context.Background(), &parler.Audio{Data: []byte{1}, MediaType: "audio/webm", Name: "/tmp/take1.webm"})
	require.NoError(t, err)
	assert.Equal(t, "bɔ̃ʒuʁ", res.Phonemes)
}

func TestRequestIDPropagates(t *testing.T) {
	var got []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(RequestIDHeader))
		_, _ = w.Write([]byte(`{"word":"a","ipa":"a"}`))
	}), 0)

	id := NewRequestID()
	ctx := WithRequestID(context.Background(), id)
	_, err := c.IPA(ctx, "a")
	require.NoError(t, err)
	_, err = c.IPA(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, []string{id, id}, got)
	assert.Len(t, id, 26)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 20*time.Millisecond)
	defer close(release)

	_, err := c.Feedback(context.Background(), parler.FeedbackRequest{Text: "chat"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "85", FormatScore(85))
	assert.Equal(t, "0.85", FormatScore(0.85))
	assert.Equal(t, "1", FormatScore(1))
}
