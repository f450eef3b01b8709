// Package app wires all drivewise subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order. Reload applies hot-reloadable config changes.
//
// For testing, inject doubles via functional options (WithHistoryStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/drivewise/internal/config"
	"github.com/MrWong99/drivewise/internal/conversation"
	"github.com/MrWong99/drivewise/internal/dispatch"
	"github.com/MrWong99/drivewise/internal/health"
	"github.com/MrWong99/drivewise/internal/history"
	"github.com/MrWong99/drivewise/internal/navigation"
	"github.com/MrWong99/drivewise/internal/nlu"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/internal/refine"
	"github.com/MrWong99/drivewise/internal/synth"
	"github.com/MrWong99/drivewise/internal/transcribe"
	"github.com/MrWong99/drivewise/internal/translate"
	"github.com/MrWong99/drivewise/internal/transport/httpapi"
	"github.com/MrWong99/drivewise/pkg/audio"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	logLevel       *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	history    history.Store
	synth      *synth.Synthesizer
	nav        *navigation.Service
	dispatcher *dispatch.Dispatcher
	orch       *conversation.Orchestrator
	handler    http.Handler
	httpServer *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a history store instead of opening one from config.
// The caller keeps ownership; Shutdown does not close it.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithMetrics records on m and serves handler on /metrics. handler may be nil.
func WithMetrics(m *observe.Metrics, handler http.Handler) Option {
	return func(a *App) {
		a.metrics = m
		a.metricsHandler = handler
	}
}

// WithLogLevel lets Reload change the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.checkProviders(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		a.runClosers(context.Background())
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	a.initTransport()
	return a, nil
}

func (a *App) checkProviders() error {
	p := a.providers
	var errs []error
	if p.STT == nil {
		errs = append(errs, errors.New("an stt provider is required"))
	}
	if p.LLM == nil {
		errs = append(errs, errors.New("an llm provider is required"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("a tts provider is required"))
	}
	if p.Maps == nil {
		errs = append(errs, errors.New("a maps provider is required"))
	}
	return errors.Join(errs...)
}

// initHistory opens the configured history store unless one was injected.
func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}
	h := a.cfg.History
	store, err := history.Open(ctx, history.Options{
		Driver:    history.Driver(h.Driver),
		DSN:       h.DSN,
		MaxPairs:  a.cfg.Pipeline.HistoryMaxPairs,
		TTL:       h.TTL,
		KeyPrefix: h.KeyPrefix,
	})
	if err != nil {
		return err
	}
	a.history = store
	a.closers = append(a.closers, store.Close)
	slog.Info("history store opened", "driver", h.Driver)
	return nil
}

// initPipeline builds the stages and the orchestrator.
func (a *App) initPipeline() error {
	p := a.cfg.Pipeline
	ps := a.providers

	var translator *translate.Translator
	if ps.Translate != nil {
		translator = translate.New(ps.Translate, p.InternalLanguage,
			translate.WithDetectThreshold(p.DetectConfidenceThreshold))
	} else {
		slog.Warn("no translate provider configured, replies stay in the internal language")
	}

	topts := []transcribe.Option{
		transcribe.WithSupportedLanguages(p.SupportedLanguages...),
		transcribe.WithDefaultLanguage(p.DefaultLanguage),
		transcribe.WithCallTimeout(p.StageTimeout),
		transcribe.WithCPUWorkers(p.CPUWorkers),
		transcribe.WithMetrics(a.metrics),
	}
	if p.NoiseReduction.Enabled {
		topts = append(topts, transcribe.WithNoiseReduction(noiseParams(p.NoiseReduction)))
	}
	if ps.STTSecondary != nil && config.Enabled(p.SecondarySTTEnabled, true) {
		var det transcribe.Detector
		if translator != nil {
			det = translator
		}
		topts = append(topts, transcribe.WithSecondary(ps.STTSecondary, det))
	}

	a.synth = synth.New(ps.TTS, voicesFrom(a.cfg.Voices), synth.WithMetrics(a.metrics))
	a.nav = navigation.New(ps.Maps, navOptions(a.cfg.Dispatch)...)
	a.dispatcher = a.newDispatcher()

	cc := conversation.Config{
		Transcriber:     transcribe.New(ps.STT, topts...),
		Refiner:         refine.New(ps.LLM),
		Classifier:      nlu.New(ps.LLM, nlu.WithMaxHistoryPairs(p.HistoryMaxPairs)),
		Dispatcher:      a.dispatcher,
		Synthesizer:     a.synth,
		History:         a.history,
		DefaultLanguage: p.DefaultLanguage,
		RefineEnabled:   config.Enabled(p.RefineEnabled, true),
	}
	if translator != nil {
		cc.Translator = translator
	}

	orch, err := conversation.New(cc, conversation.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.orch = orch
	return nil
}

// newDispatcher builds the dispatcher around the navigation service.
func (a *App) newDispatcher() *dispatch.Dispatcher {
	var dopts []dispatch.Option
	if a.providers.SMS != nil {
		dopts = append(dopts, dispatch.WithMessenger(a.providers.SMS))
	}
	return dispatch.New(a.nav, dopts...)
}

// navOptions translates the dispatch section into navigation settings.
func navOptions(dc config.DispatchConfig) []navigation.Option {
	nopts := []navigation.Option{
		navigation.WithRerouteThreshold(dc.RerouteThreshold),
		navigation.WithComplexPlaceTypes(dc.ComplexPlaceTypes),
		navigation.WithBaselineTTL(dc.RouteBaselineTTL),
	}
	if dc.Flood.Enabled {
		spots := make([]navigation.Hotspot, 0, len(dc.Flood.Hotspots))
		for _, h := range dc.Flood.Hotspots {
			spots = append(spots, navigation.Hotspot{Name: h.Name, Message: h.Message})
		}
		nopts = append(nopts, navigation.WithFloodHotspots(spots, dc.Flood.MatchThreshold))
	}
	return nopts
}

// initTransport builds the health checks and the HTTP handler.
func (a *App) initTransport() {
	ps := a.providers
	checks := health.New(
		health.PingChecker("history", a.history),
		health.ConfiguredChecker("providers", map[string]bool{
			"llm":       ps.LLM != nil,
			"stt":       ps.STT != nil,
			"tts":       ps.TTS != nil,
			"maps":      ps.Maps != nil,
			"translate": ps.Translate != nil,
		}),
	)

	opts := []httpapi.Option{
		httpapi.WithSpeaker(a.synth),
		httpapi.WithMaxAudioBytes(a.cfg.Server.MaxAudioBytes),
		httpapi.WithHealth(checks),
		httpapi.WithMetrics(a.metrics, a.metricsHandler),
	}
	if ps.Translate != nil {
		opts = append(opts, httpapi.WithTranslator(ps.Translate))
	}
	a.handler = httpapi.New(a.orch, opts...).Handler()
}

// Handler returns the application's HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Orchestrator returns the turn orchestrator.
func (a *App) Orchestrator() *conversation.Orchestrator { return a.orch }

// Run serves HTTP on the configured address and blocks until ctx is
// cancelled or the listener fails. On cancellation Run returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	s := a.cfg.Server
	a.httpServer = &http.Server{
		Addr:         s.ListenAddr,
		Handler:      a.handler,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.TLS != nil {
			err = a.httpServer.ListenAndServeTLS(s.TLS.CertFile, s.TLS.KeyFile)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("http server listening", "addr", s.ListenAddr, "tls", s.TLS != nil)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the HTTP server and tears down all subsystems. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if a.httpServer != nil {
			if err := a.httpServer.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}
		shutdownErr = a.runClosers(ctx)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers(ctx context.Context) error {
	for i, closer := range a.closers {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
			return ctx.Err()
		default:
		}
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	return nil
}

// Reload applies the hot-reloadable differences between old and new.
// Everything else is logged as requiring a restart. It is meant as the
// callback of a [config.Watcher].
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VoicesChanged {
		a.synth.SetVoices(voicesFrom(new.Voices))
		slog.Info("voice table reloaded", "voices", len(new.Voices.Table))
	}
	if d.DispatchChanged {
		a.nav.Reconfigure(navOptions(new.Dispatch)...)
		slog.Info("dispatch settings reloaded", "flood_enabled", a.nav.FloodEnabled())
	}
	if d.RefineChanged {
		a.orch.SetRefineEnabled(d.RefineEnabled)
		slog.Info("refinement toggled", "enabled", d.RefineEnabled)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

func voicesFrom(vc config.VoicesConfig) synth.Voices {
	return synth.Voices{
		Table:        vc.Table,
		Default:      vc.DefaultVoice,
		SpeakingRate: vc.SpeakingRate,
		Encoding:     tts.Encoding(vc.Encoding),
	}
}

// noiseParams overlays the configured values on the defaults.
func noiseParams(nc config.NoiseReductionConfig) audio.NoiseParams {
	p := audio.DefaultNoiseParams
	if nc.PropDecrease > 0 {
		p.PropDecrease = nc.PropDecrease
	}
	if nc.ThresholdDB != 0 {
		p.ThresholdDB = nc.ThresholdDB
	}
	if nc.FrameSize > 0 {
		p.FrameSize = nc.FrameSize
	}
	if nc.HopSize > 0 {
		p.HopSize = nc.HopSize
	}
	if nc.SmoothingMs > 0 {
		p.SmoothingMs = nc.SmoothingMs
	}
	if nc.Passes > 0 {
		p.Passes = nc.Passes
	}
	return p
}

// SlogLevel maps a configured log level to its slog level. Unknown values
// map to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
