// Package config provides the configuration schema, loader, and provider registry
// for the drivewise voice assistant.
package config

import (
	"strings"
	"time"
)

// LogLevel controls log verbosity for the drivewise server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// HistoryDriver selects the backing store for session history.
type HistoryDriver string

const (
	HistoryMemory   HistoryDriver = "memory"
	HistoryRedis    HistoryDriver = "redis"
	HistoryPostgres HistoryDriver = "postgres"
	HistorySQLite   HistoryDriver = "sqlite"
)

// IsValid reports whether d is a recognised history driver.
func (d HistoryDriver) IsValid() bool {
	switch d {
	case HistoryMemory, HistoryRedis, HistoryPostgres, HistorySQLite:
		return true
	}
	return false
}

// Config is the root configuration structure for drivewise.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Voices        VoicesConfig        `yaml:"voices"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	History       HistoryConfig       `yaml:"history"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds network and logging settings for the drivewise server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// MaxAudioBytes caps the size of an uploaded utterance.
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// collaborator. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM         ProviderEntry `yaml:"llm"`
	STT         ProviderEntry `yaml:"stt"`
	STTFallback ProviderEntry `yaml:"stt_fallback"`
	TTS         ProviderEntry `yaml:"tts"`
	Translate   ProviderEntry `yaml:"translate"`
	Maps        ProviderEntry `yaml:"maps"`
	SMS         ProviderEntry `yaml:"sms"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "google", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gemini-2.0-flash", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its circuit
	// breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// Configured reports whether a provider name was set.
func (e ProviderEntry) Configured() bool { return e.Name != "" }

// OptionString returns Options[key] as a string, or def when absent or not a string.
func (e ProviderEntry) OptionString(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// OptionBool returns Options[key] as a bool, or def when absent.
func (e ProviderEntry) OptionBool(key string, def bool) bool {
	if v, ok := e.Options[key].(bool); ok {
		return v
	}
	return def
}

// PipelineConfig tunes the conversation stages.
type PipelineConfig struct {
	// InternalLanguage is the base language the intent classifier works in.
	InternalLanguage string `yaml:"internal_language"`

	// DefaultLanguage is the effective language when every detection signal fails.
	DefaultLanguage string `yaml:"default_language"`

	// SupportedLanguages are offered to the primary recognizer as alternatives.
	SupportedLanguages []string `yaml:"supported_languages"`

	RefineEnabled       *bool `yaml:"refine_enabled"`
	SecondarySTTEnabled *bool `yaml:"secondary_stt_enabled"`

	NoiseReduction NoiseReductionConfig `yaml:"noise_reduction"`

	// DetectConfidenceThreshold is the minimum confidence an explicit
	// language detection needs to be trusted.
	DetectConfidenceThreshold float64 `yaml:"detect_confidence_threshold"`

	// HistoryMaxPairs bounds the user/assistant pairs kept per session.
	HistoryMaxPairs int `yaml:"history_max_pairs"`

	// StageTimeout bounds every external call made by a stage.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// CPUWorkers bounds concurrent CPU-heavy work (noise reduction, re-encoding).
	CPUWorkers int `yaml:"cpu_workers"`
}

// NoiseReductionConfig mirrors audio.NoiseParams plus an on/off switch.
type NoiseReductionConfig struct {
	Enabled      bool    `yaml:"enabled"`
	PropDecrease float64 `yaml:"prop_decrease"`
	ThresholdDB  float64 `yaml:"threshold_db"`
	FrameSize    int     `yaml:"frame_size"`
	HopSize      int     `yaml:"hop_size"`
	SmoothingMs  int     `yaml:"smoothing_ms"`
	Passes       int     `yaml:"passes"`
}

// VoicesConfig maps languages to synthesizer voices.
type VoicesConfig struct {
	// Table maps a language code to a voice name. Keys are matched
	// case-insensitively.
	Table map[string]string `yaml:"table"`

	DefaultVoice string  `yaml:"default_voice"`
	SpeakingRate float64 `yaml:"speaking_rate"`

	// Encoding is the output audio encoding (MP3, OGG_OPUS, LINEAR16, WAV).
	Encoding string `yaml:"encoding"`
}

// DispatchConfig holds the tunable heuristics of the domain actions.
type DispatchConfig struct {
	// RerouteThreshold is how much faster an alternative route must be before
	// it is suggested.
	RerouteThreshold time.Duration `yaml:"reroute_threshold"`

	// ComplexPlaceTypes are place types that mark a pickup point as having
	// several gates or entrances. Empty keeps
	// navigation.DefaultComplexPlaceTypes.
	ComplexPlaceTypes []string `yaml:"complex_place_types"`

	// RouteBaselineTTL bounds how long a computed route is remembered as the
	// current route of a session.
	RouteBaselineTTL time.Duration `yaml:"route_baseline_ttl"`

	Flood FloodConfig `yaml:"flood"`
}

// FloodConfig configures the flood hotspot lookup.
type FloodConfig struct {
	Enabled bool `yaml:"enabled"`

	// Hotspots are known flood-prone places matched against the driver's
	// reverse-geocoded address.
	Hotspots []FloodHotspot `yaml:"hotspots"`

	// MatchThreshold is the minimum Jaro-Winkler similarity (0–1) for a fuzzy
	// hotspot match.
	MatchThreshold float64 `yaml:"match_threshold"`
}

// FloodHotspot is one known flood-prone area.
type FloodHotspot struct {
	Name    string `yaml:"name"`
	Message string `yaml:"message"`
}

// HistoryConfig selects the session history store.
type HistoryConfig struct {
	Driver HistoryDriver `yaml:"driver"`

	// DSN is the connection string for redis, postgres, or sqlite drivers.
	DSN string `yaml:"dsn"`

	// TTL expires idle sessions in stores that support it. Zero keeps them
	// for the process lifetime.
	TTL time.Duration `yaml:"ttl"`

	// KeyPrefix namespaces keys in shared stores.
	KeyPrefix string `yaml:"key_prefix"`
}

// ObservabilityConfig toggles telemetry exporters.
type ObservabilityConfig struct {
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled *bool  `yaml:"metrics_enabled"`
}

// Enabled reports whether a tri-state flag is on, treating nil as def.
func Enabled(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Voice returns the voice configured for lang, matching case-insensitively.
func (v VoicesConfig) Voice(lang string) (string, bool) {
	if name, ok := v.Table[lang]; ok {
		return name, true
	}
	for k, name := range v.Table {
		if strings.EqualFold(k, lang) {
			return name, true
		}
	}
	return "", false
}
