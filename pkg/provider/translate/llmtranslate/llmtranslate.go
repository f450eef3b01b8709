// Package llmtranslate implements translate.Provider on top of a generative
// language model. It is a drop-in fallback for the cloud translator: quality
// is lower and latency higher, but it needs no extra credentials.
package llmtranslate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/drivewise/pkg/provider/llm"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

const translatePrompt = `You are a translation engine for an in-car voice assistant.
Translate the user's message %s into the language with code %q.
Keep place names, street names and numbers unchanged.
Respond with the translation only, no quotes, no explanations.`

const detectPrompt = `Identify the language of the user's message.
Respond with a JSON object only: {"language": "<ISO 639-1 code or und>", "confidence": <number between 0 and 1>}`

var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithTemperature overrides the sampling temperature. Default 0.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = t }
}

// Provider translates by prompting an llm.Provider.
type Provider struct {
	llm         llm.Provider
	temperature float64
}

// New creates a Provider backed by model.
func New(model llm.Provider, opts ...Option) (*Provider, error) {
	if model == nil {
		return nil, errors.New("llmtranslate: llm provider must not be nil")
	}
	p := &Provider{llm: model}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	if req.Text == "" {
		return &translate.Result{DetectedSource: req.Source}, nil
	}
	if req.Target == "" {
		return nil, errors.New("llmtranslate: target language is required")
	}

	from := "from the language it is written in"
	if req.Source != "" {
		from = fmt.Sprintf("from the language with code %q", req.Source)
	}
	creq := llm.UserPrompt(fmt.Sprintf(translatePrompt, from, req.Target), req.Text)
	creq.Temperature = p.temperature

	resp, err := p.llm.Complete(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("llmtranslate: translate: %w", err)
	}
	out := strings.Trim(llm.StripMarkdown(resp.Content), "\"")
	if out == "" {
		return nil, errors.New("llmtranslate: model returned empty translation")
	}
	return &translate.Result{Text: out, DetectedSource: req.Source}, nil
}

// Detect implements translate.Provider.
func (p *Provider) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	if strings.TrimSpace(text) == "" {
		return &translate.Detection{Language: "und"}, nil
	}
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: detectPrompt,
		Messages:     llm.UserPrompt("", text).Messages,
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("llmtranslate: detect: %w", err)
	}

	obj, ok := llm.FirstObject(llm.StripMarkdown(resp.Content))
	if !ok {
		return &translate.Detection{Language: "und"}, nil
	}
	var d struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(obj), &d); err != nil || d.Language == "" {
		return &translate.Detection{Language: "und"}, nil
	}
	return &translate.Detection{
		Language:   strings.ToLower(d.Language),
		Confidence: min(max(d.Confidence, 0), 1),
	}, nil
}
