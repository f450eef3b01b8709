// Package mock provides a test double for the translate.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

var _ translate.Provider = (*Provider)(nil)

// Provider is a mock implementation of translate.Provider.
//
// With no TranslateFunc set, Translate returns Prefix + text (Prefix defaults
// to "[target] "), which makes translated strings easy to recognise in tests.
type Provider struct {
	mu sync.Mutex

	TranslateFunc func(ctx context.Context, req translate.Request) (*translate.Result, error)
	TranslateErr  error

	// Detection is returned by Detect. Nil yields "und" with zero confidence.
	Detection *translate.Detection
	DetectErr error

	TranslateCalls []translate.Request
	DetectCalls    []string
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	p.mu.Lock()
	p.TranslateCalls = append(p.TranslateCalls, req)
	fn, err := p.TranslateFunc, p.TranslateErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if req.Text == "" {
		return &translate.Result{}, nil
	}
	return &translate.Result{Text: "[" + req.Target + "] " + req.Text, DetectedSource: req.Source}, nil
}

// Detect implements translate.Provider.
func (p *Provider) Detect(_ context.Context, text string) (*translate.Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetectCalls = append(p.DetectCalls, text)
	if p.DetectErr != nil {
		return nil, p.DetectErr
	}
	if p.Detection == nil {
		return &translate.Detection{Language: "und"}, nil
	}
	d := *p.Detection
	return &d, nil
}

// TranslateCount returns the number of Translate calls.
func (p *Provider) TranslateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranslateCalls)
}

// DetectCount returns the number of Detect calls.
func (p *Provider) DetectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.DetectCalls)
}
