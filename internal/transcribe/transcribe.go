// Package transcribe turns an uploaded utterance into text and a language.
//
// A [Transcriber] decodes the upload into canonical 16 kHz mono PCM,
// optionally reduces cabin noise, and calls the primary recognizer with the
// language hint plus every supported locale as alternatives. When the primary
// result is empty, carries no language, or the call failed, a secondary
// recognizer gets the same audio re-encoded as WAV; the language of its
// transcript comes from the hint or, failing that, from an explicit
// language-detection call.
//
// The decision flow is an explicit state machine:
//
//	primary ──ok──────────────────────────────► done
//	   │ ambiguous or failed
//	   ▼
//	secondary ──empty/failed──► done (primary result)
//	   │ text
//	   ▼
//	language ──hint or detection──────────────► done
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/drivewise/internal/langutil"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/pkg/audio"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
)

// Source names the recognizer whose transcript was kept.
type Source string

const (
	SourceNone      Source = ""
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// Input is one utterance to transcribe.
type Input struct {
	// Audio is a WAV file or raw 16-bit little-endian PCM.
	Audio []byte

	// SampleRate and Channels describe raw PCM. Ignored for WAV uploads.
	SampleRate int
	Channels   int

	// LanguageHint is the client's BCP-47 guess, possibly empty.
	LanguageHint string
}

// Result is the outcome of [Transcriber.Transcribe]. An empty Transcript with
// an empty Language means no speech was recognised.
type Result struct {
	Transcript string

	// Language is the detected BCP-47 locale, or "" when undetermined.
	Language string

	Source Source

	// Degraded lists recoverable problems met on the way (noise reduction,
	// secondary recognizer, detection).
	Degraded []error
}

// Detector identifies the language of a transcript. It returns "" when the
// language is undetermined or not confidently detected.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithSecondary enables the fallback recognizer and the detector used to
// label its transcript. detector may be nil.
func WithSecondary(p stt.Provider, detector Detector) Option {
	return func(t *Transcriber) {
		t.secondary = p
		t.detector = detector
	}
}

// WithSupportedLanguages sets the locales offered to the primary recognizer.
func WithSupportedLanguages(langs ...string) Option {
	return func(t *Transcriber) { t.supported = langs }
}

// WithDefaultLanguage sets the primary language used when the hint is
// missing or unsupported.
func WithDefaultLanguage(lang string) Option {
	return func(t *Transcriber) { t.defaultLang = lang }
}

// WithNoiseReduction enables spectral noise reduction with params.
func WithNoiseReduction(params audio.NoiseParams) Option {
	return func(t *Transcriber) { t.noise = &params }
}

// WithCPUWorkers bounds how many clips are denoised or re-encoded at once.
func WithCPUWorkers(n int) Option {
	return func(t *Transcriber) {
		if n > 0 {
			t.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithCallTimeout bounds each recognizer call.
func WithCallTimeout(d time.Duration) Option {
	return func(t *Transcriber) { t.callTimeout = d }
}

// WithMetrics records secondary recognizer invocations on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Transcriber) { t.metrics = m }
}

// Transcriber runs the transcription stage. It is safe for concurrent use.
type Transcriber struct {
	primary     stt.Provider
	secondary   stt.Provider
	detector    Detector
	supported   []string
	defaultLang string
	noise       *audio.NoiseParams
	sem         *semaphore.Weighted
	callTimeout time.Duration
	metrics     *observe.Metrics
}

// New returns a [Transcriber] around the primary recognizer.
func New(primary stt.Provider, opts ...Option) *Transcriber {
	t := &Transcriber{
		primary:     primary,
		defaultLang: "en-US",
		sem:         semaphore.NewWeighted(4),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type state int

const (
	statePrimary state = iota
	stateSecondary
	stateLanguage
	stateDone
)

// run carries the data threaded through the state machine.
type run struct {
	in   Input
	clip audio.Clip

	primaryText string
	primaryLang string
	primaryErr  error

	secondaryText string

	res Result
}

// Transcribe converts in.Audio into text. Zero-length audio returns an empty
// result without contacting any recognizer. Undecodable audio is a fatal
// [pipeline.ErrAudioDecode]; a primary failure is fatal only when the
// secondary recognizer cannot produce a transcript either.
func (t *Transcriber) Transcribe(ctx context.Context, in Input) (*Result, error) {
	if len(in.Audio) == 0 {
		return &Result{}, nil
	}

	clip, err := audio.Decode(in.Audio, in.SampleRate, in.Channels)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.StageDecode, pipeline.KindInvalidInput,
			fmt.Errorf("%w: %w", pipeline.ErrAudioDecode, err))
	}
	if clip.Empty() {
		return &Result{}, nil
	}

	r := &run{in: in}
	if err := t.offload(ctx, func() { clip = audio.Canonicalize(clip) }); err != nil {
		return nil, pipeline.Fatal(pipeline.StageDecode, pipeline.KindInternal, err)
	}
	r.clip = t.denoise(ctx, clip, r)

	for st := statePrimary; st != stateDone; {
		switch st {
		case statePrimary:
			st = t.runPrimary(ctx, r)
		case stateSecondary:
			st = t.runSecondary(ctx, r)
		case stateLanguage:
			st = t.runLanguage(ctx, r)
		}
	}

	if r.res.Transcript == "" && r.primaryErr != nil {
		return nil, pipeline.Fatal(pipeline.StageTranscribe, pipeline.KindUpstream,
			errors.Join(append([]error{r.primaryErr}, r.res.Degraded...)...))
	}
	return &r.res, nil
}

// runPrimary calls the primary recognizer and decides whether the fallback
// path is needed.
func (t *Transcriber) runPrimary(ctx context.Context, r *run) state {
	primaryLang, alternatives := t.languages(r.in.LanguageHint)
	res, err := t.recognize(ctx, t.primary, stt.Request{
		Audio:                r.clip.PCM,
		SampleRate:           r.clip.SampleRate,
		Encoding:             stt.EncodingLinear16,
		LanguageHint:         primaryLang,
		AlternativeLanguages: alternatives,
	})
	if err != nil {
		r.primaryErr = fmt.Errorf("transcribe: primary: %w", err)
		observe.Logger(ctx).Warn("transcribe: primary recognizer failed", "err", err)
	} else {
		r.primaryText = strings.TrimSpace(res.Best().Text)
		if !langutil.IsUndetermined(res.Language) {
			r.primaryLang = langutil.Normalize(res.Language)
		}
	}

	r.res = Result{Transcript: r.primaryText, Language: r.primaryLang, Degraded: r.res.Degraded}
	if r.primaryText != "" {
		r.res.Source = SourcePrimary
	}

	ambiguous := r.primaryErr != nil || r.primaryText == "" || r.primaryLang == ""
	if ambiguous && t.secondary != nil {
		return stateSecondary
	}
	return stateDone
}

// runSecondary re-encodes the clip as WAV and asks the fallback recognizer.
// An empty or failed answer keeps the primary result.
func (t *Transcriber) runSecondary(ctx context.Context, r *run) state {
	if t.metrics != nil {
		t.metrics.STTFallbacks.Add(ctx, 1)
	}
	observe.Logger(ctx).Info("transcribe: using secondary recognizer",
		"primary_text_empty", r.primaryText == "",
		"primary_lang", r.primaryLang,
	)

	var wav []byte
	if err := t.offload(ctx, func() { wav = audio.EncodeWAV(r.clip) }); err != nil {
		r.res.Degraded = append(r.res.Degraded, pipeline.Degraded(pipeline.StageTranscribe, err))
		return stateDone
	}

	res, err := t.recognize(ctx, t.secondary, stt.Request{
		Audio:        wav,
		SampleRate:   r.clip.SampleRate,
		Encoding:     stt.EncodingWAV,
		LanguageHint: langutil.Base(r.in.LanguageHint),
	})
	if err != nil {
		r.res.Degraded = append(r.res.Degraded,
			pipeline.Degraded(pipeline.StageTranscribe, fmt.Errorf("transcribe: secondary: %w", err)))
		observe.Logger(ctx).Warn("transcribe: secondary recognizer failed", "err", err)
		return stateDone
	}

	r.secondaryText = strings.TrimSpace(res.Best().Text)
	if r.secondaryText == "" {
		observe.Logger(ctx).Info("transcribe: secondary recognizer heard nothing; keeping primary result")
		return stateDone
	}
	return stateLanguage
}

// runLanguage labels the secondary transcript: the hint wins, then explicit
// detection. Below-threshold detection leaves the language undetermined.
func (t *Transcriber) runLanguage(ctx context.Context, r *run) state {
	r.res.Transcript = r.secondaryText
	r.res.Source = SourceSecondary
	r.res.Language = ""

	if hint := strings.TrimSpace(r.in.LanguageHint); hint != "" {
		r.res.Language = langutil.Normalize(hint)
		return stateDone
	}
	if t.detector == nil {
		return stateDone
	}

	lang, err := t.detector.Detect(ctx, r.secondaryText)
	if err != nil {
		r.res.Degraded = append(r.res.Degraded, err)
		observe.Logger(ctx).Warn("transcribe: language detection failed", "err", err)
	}
	r.res.Language = lang
	return stateDone
}

// languages picks the primary recognition language and the alternatives: the
// hint when it is supported, otherwise the default, with every other
// supported locale as an alternative.
func (t *Transcriber) languages(hint string) (string, []string) {
	primary := t.defaultLang
	if hint != "" && langutil.Contains(t.supported, hint) {
		primary = hint
	}
	alts := make([]string, 0, len(t.supported))
	for _, l := range t.supported {
		if !strings.EqualFold(l, primary) {
			alts = append(alts, l)
		}
	}
	return primary, alts
}

// denoise applies noise reduction when enabled. Failures keep the input clip
// and are recorded on r.
func (t *Transcriber) denoise(ctx context.Context, clip audio.Clip, r *run) audio.Clip {
	if t.noise == nil {
		return clip
	}
	var (
		out  audio.Clip
		rerr error
	)
	if err := t.offload(ctx, func() { out, rerr = audio.ReduceNoise(clip, *t.noise) }); err != nil {
		rerr = err
	}
	if rerr != nil {
		r.res.Degraded = append(r.res.Degraded, pipeline.Degraded(pipeline.StageDenoise, rerr))
		observe.Logger(ctx).Warn("transcribe: noise reduction skipped", "err", rerr)
		return clip
	}
	return out
}

func (t *Transcriber) recognize(ctx context.Context, p stt.Provider, req stt.Request) (*stt.Result, error) {
	if t.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.callTimeout)
		defer cancel()
	}
	return p.Recognize(ctx, req)
}

// offload runs CPU-bound fn once a worker slot is free.
func (t *Transcriber) offload(ctx context.Context, fn func()) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("transcribe: wait for worker: %w", err)
	}
	defer t.sem.Release(1)
	fn()
	return nil
}
