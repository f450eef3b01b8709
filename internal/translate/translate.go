// Package translate implements the bidirectional translation stage that sits
// around the fixed-language intent classifier, plus the confidence-gated
// language detection used by the transcription fallback path.
//
// Every method degrades instead of failing: on provider trouble the input is
// returned unchanged together with a recoverable [pipeline.Error].
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/drivewise/internal/langutil"
	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

// DefaultDetectThreshold is the confidence a detection must exceed.
const DefaultDetectThreshold = 0.5

// ErrUnavailable is the cause attached when no provider is configured but a
// translation was required.
var ErrUnavailable = errors.New("no translation provider configured")

// ErrEmptyTranslation is the cause attached when the provider returned no
// text for non-empty input.
var ErrEmptyTranslation = errors.New("translation returned empty text")

// Option is a functional option for configuring a [Translator].
type Option func(*Translator)

// WithDetectThreshold overrides [DefaultDetectThreshold].
func WithDetectThreshold(th float64) Option {
	return func(t *Translator) { t.threshold = th }
}

// Translator converts text between a driver's locale and the internal
// processing language. A nil provider is allowed: translations that are
// needed then degrade to the untranslated text.
type Translator struct {
	provider  translate.Provider
	internal  string
	threshold float64
}

// New returns a [Translator] for the given internal base language ("en").
func New(provider translate.Provider, internal string, opts ...Option) *Translator {
	t := &Translator{
		provider:  provider,
		internal:  langutil.Base(internal),
		threshold: DefaultDetectThreshold,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Internal returns the internal base language code.
func (t *Translator) Internal() string { return t.internal }

// ToInternal translates text spoken in source into the internal language.
// It returns the text to classify and the base code of the source language
// (the provider's detection when source was empty). When source already
// shares the internal base language the call is a no-op.
func (t *Translator) ToInternal(ctx context.Context, text, source string) (string, string, error) {
	resolved := langutil.Base(source)
	if text == "" {
		return "", resolved, nil
	}
	if resolved == t.internal {
		return text, resolved, nil
	}
	if t.provider == nil {
		return text, resolved, pipeline.Degraded(pipeline.StageTranslate, ErrUnavailable)
	}

	res, err := t.provider.Translate(ctx, translate.Request{
		Text:   text,
		Target: t.internal,
		Source: langutil.TranslatorCode(source),
	})
	if err != nil {
		return text, resolved, pipeline.Degraded(pipeline.StageTranslate, fmt.Errorf("translate: to %s: %w", t.internal, err))
	}
	if strings.TrimSpace(res.Text) == "" {
		return text, resolved, pipeline.Degraded(pipeline.StageTranslate, ErrEmptyTranslation)
	}
	if resolved == "" && !langutil.IsUndetermined(res.DetectedSource) {
		resolved = langutil.Base(res.DetectedSource)
	}
	return res.Text, resolved, nil
}

// FromInternal translates text from the internal language into target.
// When target shares the internal base language the call is a no-op.
func (t *Translator) FromInternal(ctx context.Context, text, target string) (string, error) {
	if text == "" {
		return "", nil
	}
	if target == "" || langutil.Base(target) == t.internal {
		return text, nil
	}
	if t.provider == nil {
		return text, pipeline.Degraded(pipeline.StageTranslate, ErrUnavailable)
	}

	res, err := t.provider.Translate(ctx, translate.Request{
		Text:   text,
		Target: langutil.TranslatorCode(target),
		Source: t.internal,
	})
	if err != nil {
		return text, pipeline.Degraded(pipeline.StageTranslate, fmt.Errorf("translate: to %s: %w", target, err))
	}
	if strings.TrimSpace(res.Text) == "" {
		return text, pipeline.Degraded(pipeline.StageTranslate, ErrEmptyTranslation)
	}
	return res.Text, nil
}

// Detect returns the locale of text, or "" when detection is unavailable,
// undetermined, or not more confident than the configured threshold. A
// non-nil error is always recoverable and is returned only for provider
// failures.
func (t *Translator) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" || t.provider == nil {
		return "", nil
	}
	d, err := t.provider.Detect(ctx, text)
	if err != nil {
		return "", pipeline.Degraded(pipeline.StageTranslate, fmt.Errorf("translate: detect: %w", err))
	}
	if d == nil || langutil.IsUndetermined(d.Language) || d.Confidence <= t.threshold {
		return "", nil
	}
	return langutil.FromISO(d.Language), nil
}
