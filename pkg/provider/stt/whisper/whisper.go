// Package whisper provides local whisper.cpp-backed STT providers.
//
// Provider talks to a running whisper-server binary (POST /inference with a
// WAV upload). NativeProvider links whisper.cpp through its CGO bindings and
// runs inference in-process. Both are batch engines: one call transcribes one
// complete utterance.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("small"))
//	res, err := p.Recognize(ctx, stt.Request{Audio: wav, Encoding: stt.EncodingWAV})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/drivewise/pkg/audio"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

const defaultTimeout = 60 * time.Second

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with; this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a local whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Provider that sends inference requests to serverURL
// (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Recognize uploads the utterance as WAV. LINEAR16 input is wrapped in a WAV
// header first. The language hint is reduced to its base ISO 639-1 code,
// which is what whisper expects; without a hint the server auto-detects.
func (p *Provider) Recognize(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return &stt.Result{}, nil
	}

	wav := req.Audio
	if req.Encoding != stt.EncodingWAV {
		if req.SampleRate <= 0 {
			return nil, fmt.Errorf("whisper: sample rate required for %s audio", req.Encoding)
		}
		wav = audio.EncodeWAV(audio.Clip{PCM: req.Audio, SampleRate: req.SampleRate, Channels: 1})
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}

	lang := baseLanguage(req.LanguageHint)
	if lang == "" {
		lang = "auto"
	}
	fields := map[string]string{
		"language":        lang,
		"response_format": "verbose_json",
		"model":           p.model,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text             string `json:"text"`
		Language         string `json:"language"`
		DetectedLanguage string `json:"detected_language"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	res := &stt.Result{Language: result.DetectedLanguage}
	if res.Language == "" {
		res.Language = result.Language
	}
	if text := strings.TrimSpace(result.Text); text != "" {
		res.Alternatives = []stt.Alternative{{Text: text}}
	}
	return res, nil
}

// baseLanguage returns the lower-cased primary subtag of a BCP-47 tag
// ("ms-MY" → "ms").
func baseLanguage(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(strings.TrimSpace(base))
}
