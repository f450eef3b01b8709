// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: &stt.Result{
//	    Alternatives: []stt.Alternative{{Text: "hello", Confidence: 0.9}},
//	    Language:     "en-US",
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Provider.Recognize.
type RecognizeCall struct {
	Ctx context.Context
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Recognize when Err is nil.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// RecognizeFunc, if set, overrides Result and Err.
	RecognizeFunc func(ctx context.Context, req stt.Request) (*stt.Result, error)

	// RecognizeCalls records every call to Recognize.
	RecognizeCalls []RecognizeCall
}

// Recognize records the call and returns the configured response.
func (p *Provider) Recognize(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, Req: req})
	fn, res, err := p.RecognizeFunc, p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &stt.Result{}, nil
	}
	return res, nil
}

// CallCount returns the number of Recognize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.RecognizeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecognizeCalls = nil
}

// Text returns a Result holding a single alternative.
func Text(text, language string) *stt.Result {
	if text == "" {
		return &stt.Result{Language: language}
	}
	return &stt.Result{Alternatives: []stt.Alternative{{Text: text, Confidence: 0.9}}, Language: language}
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
