// Package conversation runs one driver interaction turn end to end.
//
// The [Orchestrator] sequences the stages (transcribe, refine, translate in,
// classify, dispatch, translate out, synthesize) and records the finished
// turn in the session history. Recoverable stage errors are collected on the
// reply and the turn continues; fatal ones abort the turn and are returned as
// a typed [pipeline.Error] for the transport to map.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/drivewise/internal/dispatch"
	"github.com/MrWong99/drivewise/internal/history"
	"github.com/MrWong99/drivewise/internal/langutil"
	"github.com/MrWong99/drivewise/internal/nlu"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/internal/pipeline"
	"github.com/MrWong99/drivewise/internal/transcribe"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
	"github.com/MrWong99/drivewise/pkg/types"
)

// Fixed replies used outside of dispatch.
const (
	ReplyNoSpeech      = "Sorry, I didn't catch that. Could you please repeat?"
	ReplyNotUnderstood = "Sorry, I wasn't able to understand or process that request."
	ReplyInternalError = "Sorry, I encountered an internal error trying to process your request."
)

// ── Stage contracts ─────────────────────────────────────────────────────────

// Transcriber turns audio into text. [*transcribe.Transcriber] satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, in transcribe.Input) (*transcribe.Result, error)
}

// Refiner cleans a transcript. [*refine.Refiner] satisfies it.
type Refiner interface {
	Refine(ctx context.Context, text, lang string) (string, error)
}

// Translator moves text in and out of the internal language.
// [*translate.Translator] satisfies it.
type Translator interface {
	ToInternal(ctx context.Context, text, source string) (string, string, error)
	FromInternal(ctx context.Context, text, target string) (string, error)
}

// Classifier extracts the intent. [*nlu.Classifier] satisfies it.
type Classifier interface {
	Classify(ctx context.Context, query string, history []types.ChatMessage, tc nlu.Context) (*nlu.Result, error)
}

// Dispatcher acts on the intent. [*dispatch.Dispatcher] satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, req dispatch.Request) dispatch.Outcome
}

// Synthesizer renders the reply. [*synth.Synthesizer] satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (tts.Audio, error)
}

// ── Turn types ──────────────────────────────────────────────────────────────

// Turn is one driver utterance with its situational context.
type Turn struct {
	SessionID string

	Audio      []byte
	SampleRate int
	Channels   int

	// LanguageHint is the client's BCP-47 guess, possibly empty.
	LanguageHint string

	Location *types.Location
	Order    *types.OrderContext
}

// Reply is the outcome of a completed turn.
type Reply struct {
	// Transcript is the original recognized text, before refinement and
	// translation. Empty for a no-speech turn.
	Transcript string

	// Language is the detected language of the utterance, or "".
	Language string

	// Text is the final reply in the driver's language.
	Text  string
	Audio tts.Audio

	Action *dispatch.ActionResult

	// Degraded lists the recoverable stage failures of this turn.
	Degraded []error
}

// Config wires the stages. Transcriber, Classifier, Dispatcher, Synthesizer
// and History are required.
type Config struct {
	Transcriber Transcriber
	Refiner     Refiner
	Translator  Translator
	Classifier  Classifier
	Dispatcher  Dispatcher
	Synthesizer Synthesizer
	History     history.Store

	// DefaultLanguage is the effective language when neither detection nor
	// the client hint yields one.
	DefaultLanguage string

	// RefineEnabled turns the refinement stage on.
	RefineEnabled bool
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics records turn and stage metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now for the classifier timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs turns. It is safe for concurrent use; turns of the same
// session are serialised.
type Orchestrator struct {
	cfg     Config
	refine  atomic.Bool
	metrics *observe.Metrics
	now     func() time.Time
	locks   *keyedMutex
}

// New validates cfg and returns an [Orchestrator].
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	var errs []error
	if cfg.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if cfg.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if cfg.Dispatcher == nil {
		errs = append(errs, errors.New("dispatcher is required"))
	}
	if cfg.Synthesizer == nil {
		errs = append(errs, errors.New("synthesizer is required"))
	}
	if cfg.History == nil {
		errs = append(errs, errors.New("history store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-US"
	}

	o := &Orchestrator{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
		now:     time.Now,
		locks:   newKeyedMutex(),
	}
	o.refine.Store(cfg.RefineEnabled)
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// SetRefineEnabled toggles the refinement stage for subsequent turns.
func (o *Orchestrator) SetRefineEnabled(on bool) { o.refine.Store(on) }

// History returns the stored history of sessionID.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	return o.cfg.History.GetOrCreate(ctx, sessionID)
}

// ClearHistory deletes the stored history of sessionID. It waits for an
// in-flight turn of the same session to finish.
func (o *Orchestrator) ClearHistory(ctx context.Context, sessionID string) error {
	unlock, err := o.locks.Lock(ctx, sessionID)
	if err != nil {
		return pipeline.Fatal(pipeline.StageHistory, pipeline.KindInternal, err)
	}
	defer unlock()
	return o.cfg.History.Clear(ctx, sessionID)
}

// Process runs one turn. A nil error means the reply carries text and audio
// (possibly degraded). A non-nil error is a fatal [*pipeline.Error].
func (o *Orchestrator) Process(ctx context.Context, turn Turn) (reply *Reply, err error) {
	ctx = observe.WithSessionID(ctx, turn.SessionID)
	ctx, span := observe.StartSpan(ctx, "conversation.turn",
		trace.WithAttributes(attribute.String("session.id", turn.SessionID)))
	defer span.End()
	log := observe.Logger(ctx)

	start := time.Now()
	o.metrics.TurnsActive.Add(ctx, 1)
	defer o.metrics.TurnsActive.Add(ctx, -1)

	outcome := observe.OutcomeFailed
	defer func() {
		if r := recover(); r != nil {
			log.Error("conversation: turn panicked", "panic", r)
			reply, err = nil, pipeline.Fatal(pipeline.StageDispatch, pipeline.KindInternal, fmt.Errorf("panic: %v", r))
			outcome = observe.OutcomeFailed
		}
		if err != nil {
			span.RecordError(err)
			log.Error("conversation: turn failed", "stage", pipeline.StageOf(err), "kind", pipeline.KindOf(err), "err", err)
		}
		o.metrics.RecordTurn(ctx, outcome, start)
	}()

	unlock, lerr := o.locks.Lock(ctx, turn.SessionID)
	if lerr != nil {
		return nil, pipeline.Fatal(pipeline.StageHistory, pipeline.KindInternal, fmt.Errorf("wait for session: %w", lerr))
	}
	defer unlock()

	t := &turnState{o: o, turn: turn, reply: &Reply{}}

	// 1. Transcribe.
	tr, err := o.cfg.Transcriber.Transcribe(ctx, transcribe.Input{
		Audio:        turn.Audio,
		SampleRate:   turn.SampleRate,
		Channels:     turn.Channels,
		LanguageHint: turn.LanguageHint,
	})
	if err != nil {
		return nil, asFatal(pipeline.StageTranscribe, err)
	}
	for _, d := range tr.Degraded {
		t.degrade(ctx, d)
	}
	t.reply.Transcript = tr.Transcript
	t.reply.Language = tr.Language

	// 2. Resolve the effective language.
	lang := o.effectiveLanguage(ctx, tr.Language, turn.LanguageHint)

	if tr.Transcript == "" {
		log.Info("conversation: no speech recognised", "lang", lang)
		if err := t.speak(ctx, ReplyNoSpeech, lang); err != nil {
			return nil, err
		}
		outcome = observe.OutcomeNoSpeech
		return t.reply, nil
	}

	// 3. Refine.
	text := tr.Transcript
	if o.refine.Load() && o.cfg.Refiner != nil {
		text = t.stage(ctx, pipeline.StageRefine, func(ctx context.Context) (string, error) {
			return o.cfg.Refiner.Refine(ctx, tr.Transcript, lang)
		}, tr.Transcript)
	}

	// 4. Translate inbound.
	query := text
	if o.cfg.Translator != nil {
		query = t.stage(ctx, pipeline.StageTranslate, func(ctx context.Context) (string, error) {
			q, _, err := o.cfg.Translator.ToInternal(ctx, text, lang)
			return q, err
		}, text)
	}

	// 5. Classify.
	past, herr := o.cfg.History.GetOrCreate(ctx, turn.SessionID)
	if herr != nil {
		t.degrade(ctx, pipeline.Degraded(pipeline.StageHistory, herr))
		past = nil
	}
	classStart := time.Now()
	res, err := o.cfg.Classifier.Classify(ctx, query, past, nlu.Context{
		Location:         turn.Location,
		Order:            turn.Order,
		Timestamp:        o.now().UTC(),
		OriginalLanguage: lang,
	})
	o.metrics.RecordStage(ctx, string(pipeline.StageClassify), classStart)
	if err != nil {
		return nil, asFatal(pipeline.StageClassify, withCause(pipeline.ErrClassifierUnavailable, err))
	}
	log.Info("conversation: classified", "intent", res.Intent, "entities", len(res.Entities))

	// 6. Dispatch.
	dispStart := time.Now()
	out := o.cfg.Dispatcher.Handle(ctx, dispatch.Request{
		SessionID: turn.SessionID,
		NLU:       res,
		Location:  turn.Location,
		Order:     turn.Order,
	})
	o.metrics.RecordStage(ctx, string(pipeline.StageDispatch), dispStart)
	t.reply.Action = out.Action

	// 7. Translate outbound.
	final := out.Reply
	if o.cfg.Translator != nil {
		final = t.stage(ctx, pipeline.StageTranslate, func(ctx context.Context) (string, error) {
			return o.cfg.Translator.FromInternal(ctx, out.Reply, lang)
		}, out.Reply)
	}

	// 8. Synthesize.
	if err := t.speak(ctx, final, lang); err != nil {
		return nil, err
	}

	// 9. Record history with what the driver said and heard.
	if err := o.cfg.History.Append(ctx, turn.SessionID, tr.Transcript, final); err != nil {
		t.degrade(ctx, pipeline.Degraded(pipeline.StageHistory, err))
	}

	outcome = observe.OutcomeCompleted
	log.Info("conversation: turn completed",
		"lang", lang,
		"intent", res.Intent,
		"degraded", len(t.reply.Degraded),
		"duration", time.Since(start),
	)
	return t.reply, nil
}

// effectiveLanguage picks detected, then hint, then the configured default.
func (o *Orchestrator) effectiveLanguage(ctx context.Context, detected, hint string) string {
	if detected != "" {
		return detected
	}
	if h := langutil.Normalize(hint); !langutil.IsUndetermined(h) {
		return h
	}
	observe.Logger(ctx).Info("conversation: language unknown; using default", "default", o.cfg.DefaultLanguage)
	return o.cfg.DefaultLanguage
}

// turnState accumulates the reply of one turn.
type turnState struct {
	o     *Orchestrator
	turn  Turn
	reply *Reply
}

// stage runs a best-effort text stage. A recoverable error is recorded and
// the stage's returned text is used; an untyped error falls back to def.
func (t *turnState) stage(ctx context.Context, name pipeline.Stage, fn func(context.Context) (string, error), def string) string {
	start := time.Now()
	out, err := fn(ctx)
	t.o.metrics.RecordStage(ctx, string(name), start)
	if err == nil {
		return out
	}
	if !pipeline.IsRecoverable(err) {
		err = pipeline.Degraded(name, err)
		out = def
	}
	t.degrade(ctx, err)
	if out == "" {
		return def
	}
	return out
}

func (t *turnState) degrade(ctx context.Context, err error) {
	stage := pipeline.StageOf(err)
	observe.Logger(ctx).Warn("conversation: stage degraded", "stage", stage, "err", err)
	t.o.metrics.RecordDegraded(ctx, string(stage))
	t.reply.Degraded = append(t.reply.Degraded, err)
}

func (t *turnState) speak(ctx context.Context, text, lang string) error {
	audio, err := t.o.cfg.Synthesizer.Synthesize(ctx, text, lang)
	if err != nil {
		return asFatal(pipeline.StageSynthesize, withCause(pipeline.ErrSynthesisFailed, err))
	}
	t.reply.Text = text
	t.reply.Audio = audio
	return nil
}

// asFatal keeps a typed stage error as is and classifies anything else as an
// upstream failure of stage.
func asFatal(stage pipeline.Stage, err error) error {
	var se *pipeline.Error
	if errors.As(err, &se) && !se.Recoverable {
		return err
	}
	return pipeline.Fatal(stage, pipeline.KindUpstream, err)
}

func withCause(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
