package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/drivewise/internal/config"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/internal/resilience"
	"github.com/MrWong99/drivewise/pkg/provider/llm"
	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/provider/sms"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM          llm.Provider
	STT          stt.Provider
	STTSecondary stt.Provider
	TTS          tts.Provider
	Translate    translate.Provider
	Maps         maps.Provider
	SMS          sms.Provider
}

// BuildProviders instantiates every provider named in cfg using reg. A slot
// that lists fallbacks is wrapped in a circuit-broken fallback group. m may
// be nil.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	fcfg := resilience.FallbackConfig{}
	if m != nil {
		fcfg.OnFailure = func(provider string, err error) {
			m.RecordProviderError(context.Background(), provider, "fallback")
		}
	}

	ps := &Providers{}
	var err error
	pc := cfg.Providers

	if ps.LLM, err = build("llm", pc.LLM, reg.CreateLLM, func(p llm.Provider, name string, fbs []named[llm.Provider]) llm.Provider {
		g := resilience.NewLLMFallback(p, name, fcfg)
		for _, f := range fbs {
			g.AddFallback(f.name, f.p)
		}
		return g
	}); err != nil {
		return nil, err
	}

	wrapSTT := func(p stt.Provider, name string, fbs []named[stt.Provider]) stt.Provider {
		g := resilience.NewSTTFallback(p, name, fcfg)
		for _, f := range fbs {
			g.AddFallback(f.name, f.p)
		}
		return g
	}
	if ps.STT, err = build("stt", pc.STT, reg.CreateSTT, wrapSTT); err != nil {
		return nil, err
	}
	if ps.STTSecondary, err = build("stt_fallback", pc.STTFallback, reg.CreateSTT, wrapSTT); err != nil {
		return nil, err
	}

	if ps.TTS, err = build("tts", pc.TTS, reg.CreateTTS, func(p tts.Provider, name string, fbs []named[tts.Provider]) tts.Provider {
		g := resilience.NewTTSFallback(p, name, fcfg)
		for _, f := range fbs {
			g.AddFallback(f.name, f.p)
		}
		return g
	}); err != nil {
		return nil, err
	}

	if ps.Translate, err = build("translate", pc.Translate, func(e config.ProviderEntry) (translate.Provider, error) {
		// The llm translator rides on the configured LLM.
		if e.Name == "llm" && ps.LLM != nil {
			e.Options = withProvider(e.Options, ps.LLM)
		}
		return reg.CreateTranslate(e)
	}, func(p translate.Provider, name string, fbs []named[translate.Provider]) translate.Provider {
		g := resilience.NewTranslateFallback(p, name, fcfg)
		for _, f := range fbs {
			g.AddFallback(f.name, f.p)
		}
		return g
	}); err != nil {
		return nil, err
	}

	if ps.Maps, err = build("maps", pc.Maps, reg.CreateMaps, func(p maps.Provider, name string, fbs []named[maps.Provider]) maps.Provider {
		g := resilience.NewMapsFallback(p, name, fcfg)
		for _, f := range fbs {
			g.AddFallback(f.name, f.p)
		}
		return g
	}); err != nil {
		return nil, err
	}

	// SMS has no fallback wrapper: a message must not be sent twice.
	if ps.SMS, err = build("sms", pc.SMS, reg.CreateSMS, nil); err != nil {
		return nil, err
	}

	return ps, nil
}

// LLMOptionKey is the [config.ProviderEntry.Options] key under which
// BuildProviders passes the built LLM to translate factories.
const LLMOptionKey = "_llm"

func withProvider(opts map[string]any, p llm.Provider) map[string]any {
	out := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		out[k] = v
	}
	out[LLMOptionKey] = p
	return out
}

type named[T any] struct {
	name string
	p    T
}

// build creates the primary of one slot plus its fallbacks. An unregistered
// name is skipped with a debug log, matching how unimplemented providers
// are treated at startup.
func build[T any](
	kind string,
	entry config.ProviderEntry,
	create func(config.ProviderEntry) (T, error),
	wrap func(primary T, name string, fallbacks []named[T]) T,
) (T, error) {
	var zero T
	if !entry.Configured() {
		return zero, nil
	}
	p, err := create(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Debug("provider not yet implemented, skipping", "kind", kind, "name", entry.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("app: create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name)

	if len(entry.Fallbacks) == 0 || wrap == nil {
		return p, nil
	}
	var fbs []named[T]
	for _, fe := range entry.Fallbacks {
		fp, err := create(fe)
		if err != nil {
			return zero, fmt.Errorf("app: create %s fallback %q: %w", kind, fe.Name, err)
		}
		fbs = append(fbs, named[T]{name: fe.Name, p: fp})
		slog.Info("fallback provider created", "kind", kind, "name", fe.Name)
	}
	return wrap(p, entry.Name, fbs), nil
}
