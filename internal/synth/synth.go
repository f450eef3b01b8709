// Package synth implements the speech synthesis stage: it picks a voice for
// the reply language and renders the final reply text to audio.
//
// Unlike refinement and translation, a synthesis failure is fatal to the
// turn. There is no meaningful spoken reply without audio.
package synth

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
)

// Voices is the language to voice table used by a [Synthesizer].
type Voices struct {
	// Table maps a language code to a provider voice name. Lookups are
	// case-insensitive.
	Table map[string]string

	// Default is used for languages missing from Table.
	Default string

	SpeakingRate float64
	Encoding     tts.Encoding
}

// Voice returns the voice for lang, or the default voice.
func (v Voices) Voice(lang string) string {
	if name, ok := v.Table[lang]; ok {
		return name
	}
	for k, name := range v.Table {
		if strings.EqualFold(k, lang) {
			return name
		}
	}
	return v.Default
}

// Option is a functional option for configuring a [Synthesizer].
type Option func(*Synthesizer)

// WithMetrics records stage latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

// Synthesizer renders reply text to audio. It is safe for concurrent use;
// the voice table may be swapped at runtime with [Synthesizer.SetVoices].
type Synthesizer struct {
	provider tts.Provider
	voices   atomic.Pointer[Voices]
	metrics  *observe.Metrics
}

// New returns a [Synthesizer] using provider and voices.
func New(provider tts.Provider, voices Voices, opts ...Option) *Synthesizer {
	s := &Synthesizer{provider: provider}
	s.SetVoices(voices)
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetVoices replaces the voice table for subsequent calls.
func (s *Synthesizer) SetVoices(v Voices) {
	table := make(map[string]string, len(v.Table))
	for k, name := range v.Table {
		table[k] = name
	}
	v.Table = table
	s.voices.Store(&v)
}

// Voices returns a snapshot of the current voice table.
func (s *Synthesizer) Voices() Voices { return *s.voices.Load() }

// Synthesize renders text spoken in lang. Blank text returns empty audio
// without calling the provider. A provider failure is a fatal
// [pipeline.Error] wrapping [pipeline.ErrSynthesisFailed].
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{}, nil
	}
	v := s.voices.Load()
	req := tts.Request{
		Text:         text,
		LanguageCode: lang,
		Voice:        v.Voice(lang),
		SpeakingRate: v.SpeakingRate,
		Encoding:     v.Encoding,
	}

	ctx, span := observe.StartSpan(ctx, "synth.synthesize")
	defer span.End()
	start := time.Now()
	audio, err := s.provider.Synthesize(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordStage(ctx, string(pipeline.StageSynthesize), start)
	}
	if err != nil {
		span.RecordError(err)
		observe.Logger(ctx).Error("synth: provider failed", "lang", lang, "voice", req.Voice, "err", err)
		return tts.Audio{}, pipeline.Fatal(pipeline.StageSynthesize, pipeline.KindUpstream,
			fmt.Errorf("%w: %w", pipeline.ErrSynthesisFailed, err))
	}
	if len(audio.Data) == 0 {
		return tts.Audio{}, pipeline.Fatal(pipeline.StageSynthesize, pipeline.KindUpstream,
			fmt.Errorf("%w: provider returned no audio", pipeline.ErrSynthesisFailed))
	}
	if audio.Encoding == "" {
		audio.Encoding = req.Encoding
	}
	return audio, nil
}
