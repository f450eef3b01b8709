package resilience

import (
	"context"

	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] with failover, typically
// from a cloud translator to an LLM-backed one.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional translator.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate implements translate.Provider.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(p translate.Provider) (*translate.Result, error) {
		return p.Translate(ctx, req)
	})
}

// Detect implements translate.Provider.
func (f *TranslateFallback) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	return ExecuteWithResult(ctx, f.group, func(p translate.Provider) (*translate.Detection, error) {
		return p.Detect(ctx, text)
	})
}
