// Command drivewise is the main entry point for the drivewise voice driving
// assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/drivewise/internal/app"
	"github.com/MrWong99/drivewise/internal/config"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/pkg/provider/llm"
	"github.com/MrWong99/drivewise/pkg/provider/llm/anyllm"
	llmopenai "github.com/MrWong99/drivewise/pkg/provider/llm/openai"
	"github.com/MrWong99/drivewise/pkg/provider/maps"
	mapsgoogle "github.com/MrWong99/drivewise/pkg/provider/maps/google"
	"github.com/MrWong99/drivewise/pkg/provider/sms"
	"github.com/MrWong99/drivewise/pkg/provider/sms/twilio"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
	"github.com/MrWong99/drivewise/pkg/provider/stt/deepgram"
	sttgoogle "github.com/MrWong99/drivewise/pkg/provider/stt/google"
	"github.com/MrWong99/drivewise/pkg/provider/stt/openaiwhisper"
	"github.com/MrWong99/drivewise/pkg/provider/stt/whisper"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	translategoogle "github.com/MrWong99/drivewise/pkg/provider/translate/google"
	"github.com/MrWong99/drivewise/pkg/provider/translate/llmtranslate"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
	"github.com/MrWong99/drivewise/pkg/provider/tts/coqui"
	"github.com/MrWong99/drivewise/pkg/provider/tts/elevenlabs"
	ttsgoogle "github.com/MrWong99/drivewise/pkg/provider/tts/google"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	watch := flag.Bool("watch", true, "reload hot-reloadable settings when the config file changes")
	flag.Parse()

	// ── Environment ────────────────────────────────────────────────────────────
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "drivewise: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "drivewise: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "drivewise: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	slog.Info("drivewise starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to init telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := app.BuildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	appOpts := []app.Option{app.WithLogLevel(level)}
	if config.Enabled(cfg.Observability.MetricsEnabled, true) {
		appOpts = append(appOpts, app.WithMetrics(metrics, observe.MetricsHandler()))
	} else {
		appOpts = append(appOpts, app.WithMetrics(metrics, nil))
	}

	application, err := app.New(ctx, cfg, providers, appOpts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, application.Reload)
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	code := 0
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		code = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile all share
	// the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai goes through the official SDK for JSON mode support.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization", ""); org != "" {
			opts = append(opts, llmopenai.WithOrganization(org))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("google", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttgoogle.Option
		if entry.Model != "" {
			opts = append(opts, sttgoogle.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttgoogle.WithBaseURL(entry.BaseURL))
		}
		opts = append(opts, sttgoogle.WithPunctuation(entry.OptionBool("punctuation", true)))
		return sttgoogle.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path", "")
		}
		return whisper.NewNative(modelPath)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []openaiwhisper.Option
		if entry.Model != "" {
			opts = append(opts, openaiwhisper.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openaiwhisper.WithBaseURL(entry.BaseURL))
		}
		return openaiwhisper.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsgoogle.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsgoogle.WithBaseURL(entry.BaseURL))
		}
		return ttsgoogle.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptionString("output_format", ""); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if voice := entry.OptionString("default_voice", ""); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if mode := entry.OptionString("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if speaker := entry.OptionString("default_speaker", ""); speaker != "" {
			opts = append(opts, coqui.WithDefaultSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Translate ─────────────────────────────────────────────────────────────

	reg.RegisterTranslate("google", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []translategoogle.Option
		if entry.BaseURL != "" {
			opts = append(opts, translategoogle.WithBaseURL(entry.BaseURL))
		}
		return translategoogle.New(entry.APIKey, opts...)
	})

	// llm translates with the configured LLM, handed over by app.BuildProviders.
	reg.RegisterTranslate("llm", func(entry config.ProviderEntry) (translate.Provider, error) {
		model, ok := entry.Options[app.LLMOptionKey].(llm.Provider)
		if !ok {
			return nil, errors.New("the llm translator needs providers.llm to be configured")
		}
		return llmtranslate.New(model)
	})

	// ── Maps ──────────────────────────────────────────────────────────────────

	reg.RegisterMaps("google", func(entry config.ProviderEntry) (maps.Provider, error) {
		var opts []mapsgoogle.Option
		if region := entry.OptionString("region", ""); region != "" {
			opts = append(opts, mapsgoogle.WithRegion(region))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, mapsgoogle.WithLanguage(lang))
		}
		return mapsgoogle.New(entry.APIKey, opts...)
	})

	// ── SMS ───────────────────────────────────────────────────────────────────

	// twilio: api_key is the auth token; account_sid and from are options.
	reg.RegisterSMS("twilio", func(entry config.ProviderEntry) (sms.Provider, error) {
		var opts []twilio.Option
		if entry.BaseURL != "" {
			opts = append(opts, twilio.WithBaseURL(entry.BaseURL))
		}
		return twilio.New(entry.OptionString("account_sid", ""), entry.APIKey, entry.OptionString("from", ""), opts...)
	})

	for _, kind := range []string{"llm", "stt", "tts", "translate", "maps", "sms"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        drivewise startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	p := cfg.Providers
	printProvider("LLM", p.LLM.Name, p.LLM.Model)
	printProvider("STT", p.STT.Name, p.STT.Model)
	printProvider("STT fallback", p.STTFallback.Name, p.STTFallback.Model)
	printProvider("TTS", p.TTS.Name, p.TTS.Model)
	printProvider("Translate", p.Translate.Name, "")
	printProvider("Maps", p.Maps.Name, "")
	printProvider("SMS", p.SMS.Name, "")
	fmt.Printf("║  History         : %-19s ║\n", historyDriver(cfg))
	fmt.Printf("║  Languages       : %-19d ║\n", len(cfg.Pipeline.SupportedLanguages))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func historyDriver(cfg *config.Config) string {
	if cfg.History.Driver == "" {
		return string(config.HistoryMemory)
	}
	return string(cfg.History.Driver)
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
