// Package openaiwhisper provides an STT provider backed by the OpenAI audio
// transcription endpoint (whisper-1 and successors).
package openaiwhisper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/drivewise/pkg/audio"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

const defaultModel = "whisper-1"

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI transcription API.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel overrides the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openaiwhisper: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Recognize uploads the utterance as audio.wav. The hint is reduced to its
// ISO 639-1 base code. The endpoint does not report a language for the
// plain JSON format, so Result.Language stays empty.
func (p *Provider) Recognize(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return &stt.Result{}, nil
	}

	wav := req.Audio
	if req.Encoding != stt.EncodingWAV {
		if req.SampleRate <= 0 {
			return nil, fmt.Errorf("openaiwhisper: sample rate required for %s audio", req.Encoding)
		}
		wav = audio.EncodeWAV(audio.Clip{PCM: req.Audio, SampleRate: req.SampleRate, Channels: 1})
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if base, _, _ := strings.Cut(req.LanguageHint, "-"); base != "" {
		params.Language = oai.String(strings.ToLower(base))
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openaiwhisper: transcribe: %w", err)
	}

	res := &stt.Result{}
	if text := strings.TrimSpace(resp.Text); text != "" {
		res.Alternatives = []stt.Alternative{{Text: text}}
	}
	return res, nil
}
