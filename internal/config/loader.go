package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":       {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":       {"google", "deepgram", "whisper", "whisper-native", "openai"},
	"tts":       {"google", "elevenlabs", "coqui"},
	"translate": {"google", "llm"},
	"maps":      {"google"},
	"sms":       {"twilio"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// against the process environment, applies defaults, and validates the result.
// An empty document yields a default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_audio_bytes %d must not be negative", cfg.Server.MaxAudioBytes))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Provider name validation: warn for unknown provider names.
	p := cfg.Providers
	validateProviderEntry("llm", p.LLM)
	validateProviderEntry("stt", p.STT)
	validateProviderEntry("stt", p.STTFallback)
	validateProviderEntry("tts", p.TTS)
	validateProviderEntry("translate", p.Translate)
	validateProviderEntry("maps", p.Maps)
	validateProviderEntry("sms", p.SMS)

	// Required collaborators
	if !p.STT.Configured() {
		errs = append(errs, errors.New("providers.stt is required"))
	}
	if !p.LLM.Configured() {
		errs = append(errs, errors.New("providers.llm is required; it backs intent classification"))
	}
	if !p.TTS.Configured() {
		errs = append(errs, errors.New("providers.tts is required"))
	}
	if p.Translate.Name == "llm" && !p.LLM.Configured() {
		errs = append(errs, errors.New(`providers.translate "llm" requires providers.llm`))
	}

	// Optional collaborators
	if !p.Translate.Configured() {
		slog.Warn("providers.translate is empty; non-English turns will reach the classifier untranslated")
	}
	if !p.Maps.Configured() {
		slog.Warn("providers.maps is empty; routing, reroute and gate checks will answer with an apology")
	}
	if !p.SMS.Configured() {
		slog.Warn("providers.sms is empty; outgoing messages will not be delivered")
	}

	// Pipeline
	pl := cfg.Pipeline
	if t := pl.DetectConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("pipeline.detect_confidence_threshold %.2f is out of range [0, 1]", t))
	}
	if pl.HistoryMaxPairs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_max_pairs %d must not be negative", pl.HistoryMaxPairs))
	}
	if pl.CPUWorkers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.cpu_workers %d must not be negative", pl.CPUWorkers))
	}
	if strings.Contains(pl.InternalLanguage, "-") {
		errs = append(errs, fmt.Errorf("pipeline.internal_language %q must be a base language code such as \"en\"", pl.InternalLanguage))
	}
	nr := pl.NoiseReduction
	if nr.PropDecrease < 0 || nr.PropDecrease > 1 {
		errs = append(errs, fmt.Errorf("pipeline.noise_reduction.prop_decrease %.2f is out of range [0, 1]", nr.PropDecrease))
	}
	if nr.ThresholdDB > 0 {
		errs = append(errs, fmt.Errorf("pipeline.noise_reduction.threshold_db %.1f must be negative", nr.ThresholdDB))
	}
	if nr.FrameSize != 0 && nr.FrameSize&(nr.FrameSize-1) != 0 {
		errs = append(errs, fmt.Errorf("pipeline.noise_reduction.frame_size %d must be a power of two", nr.FrameSize))
	}
	if nr.HopSize < 0 || (nr.FrameSize > 0 && nr.HopSize > nr.FrameSize) {
		errs = append(errs, fmt.Errorf("pipeline.noise_reduction.hop_size %d must be between 0 and frame_size", nr.HopSize))
	}

	// Voices
	if r := cfg.Voices.SpeakingRate; r != 0 && (r < 0.25 || r > 4.0) {
		errs = append(errs, fmt.Errorf("voices.speaking_rate %.2f is out of range [0.25, 4.0]", r))
	}
	switch strings.ToUpper(cfg.Voices.Encoding) {
	case "", "MP3", "OGG_OPUS", "LINEAR16", "WAV":
	default:
		errs = append(errs, fmt.Errorf("voices.encoding %q is invalid; valid values: MP3, OGG_OPUS, LINEAR16, WAV", cfg.Voices.Encoding))
	}

	// Dispatch
	if cfg.Dispatch.RerouteThreshold < 0 {
		errs = append(errs, errors.New("dispatch.reroute_threshold must not be negative"))
	}
	fl := cfg.Dispatch.Flood
	if fl.MatchThreshold < 0 || fl.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("dispatch.flood.match_threshold %.2f is out of range [0, 1]", fl.MatchThreshold))
	}
	for i, h := range fl.Hotspots {
		if h.Name == "" {
			errs = append(errs, fmt.Errorf("dispatch.flood.hotspots[%d].name is required", i))
		}
	}
	if fl.Enabled && len(fl.Hotspots) == 0 {
		slog.Warn("dispatch.flood is enabled but no hotspots are configured; flood checks will always report no alerts")
	}

	// History
	h := cfg.History
	if h.Driver != "" && !h.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("history.driver %q is invalid; valid values: memory, redis, postgres, sqlite", h.Driver))
	}
	if h.Driver != "" && h.Driver != HistoryMemory && h.DSN == "" {
		errs = append(errs, fmt.Errorf("history.dsn is required for driver %q", h.Driver))
	}
	if h.TTL < 0 {
		errs = append(errs, errors.New("history.ttl must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderEntry logs a warning if the entry or any of its fallbacks
// names a provider not found in [ValidProviderNames] for the given kind.
func validateProviderEntry(kind string, e ProviderEntry) {
	validateProviderName(kind, e.Name)
	for _, fb := range e.Fallbacks {
		validateProviderName(kind, fb.Name)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// parseBytes is used by the watcher to load an already-read file.
func parseBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}
