// Package api is the HTTP client for the pronunciation-practice backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/f3rmion/parler/internal/parler"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the submission id on every request.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 512

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Score      string
	Synthesize string
	Feedback   string
	IPA        string
	IPAScore   string
	Phonemes   string
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Paths   Paths
	Timeout time.Duration // Per request; 0 disables
}

// Client talks to the practice backend.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a backend client. Empty paths fall back to the backend defaults.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing server base URL")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing server base URL: %w", err)
	}

	p := &cfg.Paths
	if p.Score == "" {
		p.Score = "/audio-score"
	}
	if p.Synthesize == "" {
		p.Synthesize = "/tts"
	}
	if p.Feedback == "" {
		p.Feedback = "/llm-feedback"
	}
	if p.IPA == "" {
		p.IPA = "/ipa"
	}
	if p.IPAScore == "" {
		p.IPAScore = "/score"
	}
	if p.Phonemes == "" {
		p.Phonemes = "/audio-phonemes"
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  log,
	}, nil
}

// Score sends the attempt audio with its target text to the scoring endpoint.
func (c *Client) Score(ctx context.Context, text string, audio *parler.Audio) (parler.ScoreResult, error) {
	if audio.Len() == 0 {
		return parler.ScoreResult{}, fmt.Errorf("scoring: no audio")
	}

	form := newForm()
	form.field("text", text)
	form.file("file", audio)

	var body struct {
		Text       string   `json:"text"`
		Score      *float64 `json:"score"`
		CorrectIPA *string  `json:"correct_ipa"`
		AttemptIPA *string  `json:"attempt_ipa"`
	}
	if err := c.postJSON(ctx, c.cfg.Paths.Score, form, &body); err != nil {
		return parler.ScoreResult{}, err
	}
	if err := requireFields(c.cfg.Paths.Score, map[string]bool{
		"score":       body.Score != nil,
		"correct_ipa": body.CorrectIPA != nil,
		"attempt_ipa": body.AttemptIPA != nil,
	}); err != nil {
		return parler.ScoreResult{}, err
	}

	return parler.ScoreResult{
		Text:       body.Text,
		Score:      *body.Score,
		CorrectIPA: *body.CorrectIPA,
		AttemptIPA: *body.AttemptIPA,
	}, nil
}

// Synthesize asks the backend for a reference pronunciation of text.
func (c *Client) Synthesize(ctx context.Context, text string) (*parler.Audio, error) {
	form := newForm()
	form.field("text", text)

	resp, err := c.post(ctx, c.cfg.Paths.Synthesize, form)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", c.cfg.Paths.Synthesize, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty audio response", c.cfg.Paths.Synthesize)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || strings.HasPrefix(mediaType, "application/octet-stream") {
		mediaType = mimetype.Detect(data).String()
	}

	return &parler.Audio{
		Data:      data,
		MediaType: mediaType,
		Name:      "reference" + parler.ExtensionFor(mediaType),
	}, nil
}

// Feedback requests a written explanation of the difference between the transcriptions.
func (c *Client) Feedback(ctx context.Context, req parler.FeedbackRequest) (parler.FeedbackResult, error) {
	form := newForm()
	form.field("text", req.Text)
	form.field("correct_ipa", req.CorrectIPA)
	form.field("attempt_ipa", req.AttemptIPA)
	form.field("score", FormatScore(req.Score))

	var body struct {
		Feedback *string `json:"feedback"`
	}
	if err := c.postJSON(ctx, c.cfg.Paths.Feedback, form, &body); err != nil {
		return parler.FeedbackResult{}, err
	}
	if err := requireFields(c.cfg.Paths.Feedback, map[string]bool{"feedback": body.Feedback != nil}); err != nil {
		return parler.FeedbackResult{}, err
	}
	return parler.FeedbackResult{Feedback: *body.Feedback}, nil
}

// IPA returns the reference IPA transcription of word.
func (c *Client) IPA(ctx context.Context, word string) (parler.IPAResult, error) {
	var res parler.IPAResult
	q := url.Values{"word": {word}}
	if err := c.getJSON(ctx, c.cfg.Paths.IPA, q, &res); err != nil {
		return parler.IPAResult{}, err
	}
	return res, nil
}

// ScoreIPA compares a typed IPA attempt with the reference transcription of word.
func (c *Client) ScoreIPA(ctx context.Context, word, attempt string) (parler.IPAScore, error) {
	var res parler.IPAScore
	q := url.Values{"word": {word}, "attempt": {attempt}}
	if err := c.getJSON(ctx, c.cfg.Paths.IPAScore, q, &res); err != nil {
		return parler.IPAScore{}, err
	}
	return res, nil
}

// Phonemes recognizes the phonemes spoken in audio.
func (c *Client) Phonemes(ctx context.Context, audio *parler.Audio) (parler.PhonemesResult, error) {
	var res parler.PhonemesResult
	if audio.Len() == 0 {
		return res, fmt.Errorf("phonemes: no audio")
	}

	form := newForm()
	form.file("file", audio)

	if err := c.postJSON(ctx, c.cfg.Paths.Phonemes, form, &res); err != nil {
		return parler.PhonemesResult{}, err
	}
	return res, nil
}

// FormatScore renders a score the way the backend and the UI expect it: the
// shortest decimal representation, so 85 becomes "85" and 0.5 becomes "0.5".
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func (c *Client) postJSON(ctx context.Context, path string, form *formBody, out interface{}) error {
	resp, err := c.post(ctx, path, form)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return decodeJSON(path, resp, out)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, path)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return decodeJSON(path, resp, out)
}

func (c *Client) post(ctx context.Context, path string, form *formBody) (*http.Response, error) {
	body, contentType, err := form.finish()
	if err != nil {
		return nil, fmt.Errorf("encoding form: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "*/*")

	resp, err := c.do(req, path)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// do sends req and turns non-2xx statuses into *StatusError.
func (c *Client) do(req *http.Request, path string) (*http.Response, error) {
	if id := RequestIDFrom(req.Context()); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("endpoint", path).Msg("request failed")
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}

	c.log.Debug().
		Str("endpoint", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer closeBody(resp)
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Endpoint: path, Code: resp.StatusCode, Message: errorMessage(data)}
	}
	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func decodeJSON(path string, resp *http.Response, out interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Endpoint: path, Err: err}
	}
	return nil
}

// requireFields returns a *DecodeError naming the fields a 2xx body left out.
// A JSON null body decodes to no fields at all.
func requireFields(path string, present map[string]bool) error {
	var missing []string
	for name, ok := range present {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &DecodeError{Endpoint: path, Err: fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))}
}

// errorMessage extracts a readable message from an error body. FastAPI style
// {"detail": ...} bodies are unwrapped; anything else is returned trimmed.
func errorMessage(data []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &parsed) == nil && len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			return s
		}
		return string(parsed.Detail)
	}
	return strings.TrimSpace(string(data))
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
	_ = resp.Body.Close()
}

// cancelBody releases the per-request timeout once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// formBody accumulates a multipart/form-data request body.
type formBody struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *formBody {
	f := &formBody{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *formBody) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *formBody) file(name string, audio *parler.Audio) {
	if f.err != nil {
		return
	}

	mediaType := audio.MediaType
	if mediaType == "" {
		mediaType = mimetype.Detect(audio.Data).String()
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, audio.FileName()))
	h.Set("Content-Type", mediaType)

	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(audio.Data)
}

func (f *formBody) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return &f.buf, f.w.FormDataContentType(), nil
}
