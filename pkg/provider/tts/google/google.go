// Package google provides a TTS provider backed by the Google Cloud
// Text-to-Speech REST API (text:synthesize). Authentication uses an API key.
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

	"github.com/MrWong99/drivewise/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://texttospeech.googleapis.com/v1"
	defaultTimeout = 20 * time.Second
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements tts.Provider using Google Cloud Text-to-Speech.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

// Synthesize calls text:synthesize and decodes the base64 audioContent.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	enc := req.Encoding
	if enc == "" {
		enc = tts.EncodingMP3
	}
	// LINEAR16 responses from this API carry a WAV header.
	if enc == tts.EncodingLinear16 {
		enc = tts.EncodingWAV
	}
	apiEnc := string(enc)
	if enc == tts.EncodingWAV {
		apiEnc = string(tts.EncodingLinear16)
	}

	var sr synthesizeRequest
	sr.Input.Text = req.Text
	sr.Voice.LanguageCode = req.LanguageCode
	sr.Voice.Name = req.Voice
	sr.AudioConfig.AudioEncoding = apiEnc
	sr.AudioConfig.SpeakingRate = req.SpeakingRate

	body, err := json.Marshal(sr)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: marshal request: %w", err)
	}

	endpoint := p.baseURL + "/text:synthesize?key=" + url.QueryEscape(p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return tts.Audio{}, fmt.Errorf("google tts: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: decode response: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("google tts: decode audio content: %w", err)
	}
	if len(data) == 0 {
		return tts.Audio{}, errors.New("google tts: empty audio content")
	}
	return tts.Audio{Data: data, Encoding: enc}, nil
}
