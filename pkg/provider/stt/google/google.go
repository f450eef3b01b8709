// Package google provides an STT provider backed by the Google Cloud
// Speech-to-Text REST API (speech:recognize). Authentication uses an API key.
//
// The request carries the hint as the primary language and the rest of the
// supported set as alternativeLanguageCodes, so the service picks the
// language and reports it back on the result.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://speech.googleapis.com/v1p1beta1"
	defaultModel    = "latest_long"
	defaultLanguage = "en-US"
	defaultTimeout  = 30 * time.Second

	// The API rejects more than this many alternative language codes.
	maxAlternativeLanguages = 3
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Google Provider.
type Option func(*Provider)

// WithModel sets the recognition model (e.g. "latest_long", "latest_short").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithPunctuation toggles automatic punctuation. Enabled by default.
func WithPunctuation(enabled bool) Option {
	return func(p *Provider) { p.punctuation = enabled }
}

// Provider implements stt.Provider using the Speech-to-Text REST API.
type Provider struct {
	apiKey      string
	baseURL     string
	model       string
	punctuation bool
	client      *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		punctuation: true,
		client:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type recognitionConfig struct {
	Encoding                   string   `json:"encoding"`
	SampleRateHertz            int      `json:"sampleRateHertz,omitempty"`
	LanguageCode               string   `json:"languageCode"`
	AlternativeLanguageCodes   []string `json:"alternativeLanguageCodes,omitempty"`
	EnableAutomaticPunctuation bool     `json:"enableAutomaticPunctuation"`
	Model                      string   `json:"model,omitempty"`
	UseEnhanced                bool     `json:"useEnhanced,omitempty"`
	MaxAlternatives            int      `json:"maxAlternatives,omitempty"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Recognize sends req to speech:recognize. Empty audio returns an empty
// result without a network call.
func (p *Provider) Recognize(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return &stt.Result{}, nil
	}
	if req.SampleRate <= 0 {
		return nil, fmt.Errorf("google stt: sample rate must be positive, got %d", req.SampleRate)
	}

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("google stt: marshal request: %w", err)
	}

	endpoint := p.baseURL + "/speech:recognize?key=" + url.QueryEscape(p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("google stt: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google stt: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google stt: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			return nil, fmt.Errorf("google stt: %s (%d): %s", ae.Error.Status, resp.StatusCode, ae.Error.Message)
		}
		return nil, fmt.Errorf("google stt: unexpected status %d", resp.StatusCode)
	}

	var rr recognizeResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, fmt.Errorf("google stt: decode response: %w", err)
	}
	return toResult(rr), nil
}

func (p *Provider) buildRequest(req stt.Request) recognizeRequest {
	primary := req.LanguageHint
	if primary == "" {
		primary = defaultLanguage
	}
	var alts []string
	for _, l := range req.AlternativeLanguages {
		if strings.EqualFold(l, primary) || len(alts) == maxAlternativeLanguages {
			continue
		}
		alts = append(alts, l)
	}

	encoding := string(req.Encoding)
	if req.Encoding == stt.EncodingWAV {
		// The WAV header is parsed server side; LINEAR16 covers both.
		encoding = string(stt.EncodingLinear16)
	}

	var rr recognizeRequest
	rr.Config = recognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            req.SampleRate,
		LanguageCode:               primary,
		AlternativeLanguageCodes:   alts,
		EnableAutomaticPunctuation: p.punctuation,
		Model:                      p.model,
		UseEnhanced:                p.model != "",
		MaxAlternatives:            3,
	}
	rr.Audio.Content = base64.StdEncoding.EncodeToString(req.Audio)
	return rr
}

// toResult takes the alternatives of the first result segment. Later
// segments (long utterances are split) contribute their top alternative,
// appended to every candidate so each stays a complete transcription.
func toResult(rr recognizeResponse) *stt.Result {
	res := &stt.Result{}
	if len(rr.Results) == 0 {
		return res
	}
	first := rr.Results[0]
	res.Language = first.LanguageCode

	var tail []string
	for _, seg := range rr.Results[1:] {
		if len(seg.Alternatives) > 0 {
			if t := strings.TrimSpace(seg.Alternatives[0].Transcript); t != "" {
				tail = append(tail, t)
			}
		}
	}
	suffix := strings.Join(tail, " ")

	for _, a := range first.Alternatives {
		text := strings.TrimSpace(a.Transcript)
		if suffix != "" {
			text = strings.TrimSpace(text + " " + suffix)
		}
		res.Alternatives = append(res.Alternatives, stt.Alternative{Text: text, Confidence: a.Confidence})
	}
	return res
}
