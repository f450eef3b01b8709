package config_test

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/drivewise/internal/config"
	"github.com/MrWong99/drivewise/pkg/provider/llm"
	llmmock "github.com/MrWong99/drivewise/pkg/provider/llm/mock"
	"github.com/MrWong99/drivewise/pkg/provider/maps"
	mapsmock "github.com/MrWong99/drivewise/pkg/provider/maps/mock"
	"github.com/MrWong99/drivewise/pkg/provider/sms"
	smsmock "github.com/MrWong99/drivewise/pkg/provider/sms/mock"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
	sttmock "github.com/MrWong99/drivewise/pkg/provider/stt/mock"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	translatemock "github.com/MrWong99/drivewise/pkg/provider/translate/mock"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
	ttsmock "github.com/MrWong99/drivewise/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: info
  read_timeout: 10s

providers:
  llm:
    name: gemini
    api_key: g-test
    model: gemini-2.0-flash
    fallbacks:
      - name: openai
        api_key: sk-test
  stt:
    name: google
    api_key: g-test
  stt_fallback:
    name: whisper
    base_url: http://localhost:9000
  tts:
    name: google
    api_key: g-test
  translate:
    name: google
    api_key: g-test
  maps:
    name: google
    api_key: g-test
    options:
      region: MY
  sms:
    name: twilio
    api_key: tw-token
    options:
      account_sid: AC123
      from: "+6000000"

pipeline:
  internal_language: en
  default_language: ms-MY
  refine_enabled: false
  noise_reduction:
    enabled: true
    prop_decrease: 0.8

voices:
  table:
    ms-MY: ms-MY-Wavenet-A
  default_voice: en-US-Standard-C

dispatch:
  reroute_threshold: 3m
  flood:
    enabled: true
    hotspots:
      - name: Jalan Tun Razak
        message: Jalan Tun Razak is flooded near the underpass.

history:
  driver: sqlite
  dsn: file:history.db
  ttl: 24h
`

// minimalYAML names the three required providers only.
const minimalYAML = `
providers:
  llm:
    name: gemini
  stt:
    name: google
  tts:
    name: google
`

func mustLoad(t *testing.T, y string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(y))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cfg
}

func expectError(t *testing.T, y, contains string) {
	t.Helper()
	_, err := config.LoadFromReader(strings.NewReader(y))
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", contains)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Errorf("error %q does not contain %q", err, contains)
	}
}

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg := mustLoad(t, sampleYAML)

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("server.read_timeout: got %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Providers.LLM.Name != "gemini" {
		t.Errorf("providers.llm.name: got %q, want gemini", cfg.Providers.LLM.Name)
	}
	if len(cfg.Providers.LLM.Fallbacks) != 1 || cfg.Providers.LLM.Fallbacks[0].Name != "openai" {
		t.Errorf("providers.llm.fallbacks: got %+v", cfg.Providers.LLM.Fallbacks)
	}
	if got := cfg.Providers.SMS.OptionString("account_sid", ""); got != "AC123" {
		t.Errorf("sms account_sid option: got %q", got)
	}
	if config.Enabled(cfg.Pipeline.RefineEnabled, true) {
		t.Error("pipeline.refine_enabled: got true, want false")
	}
	if !cfg.Pipeline.NoiseReduction.Enabled || cfg.Pipeline.NoiseReduction.PropDecrease != 0.8 {
		t.Errorf("noise_reduction: got %+v", cfg.Pipeline.NoiseReduction)
	}
	if cfg.Dispatch.RerouteThreshold != 3*time.Minute {
		t.Errorf("dispatch.reroute_threshold: got %v, want 3m", cfg.Dispatch.RerouteThreshold)
	}
	if len(cfg.Dispatch.Flood.Hotspots) != 1 {
		t.Fatalf("flood hotspots: got %d, want 1", len(cfg.Dispatch.Flood.Hotspots))
	}
	if cfg.History.Driver != config.HistorySQLite || cfg.History.TTL != 24*time.Hour {
		t.Errorf("history: got %+v", cfg.History)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	cfg := mustLoad(t, minimalYAML)

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Pipeline.InternalLanguage != "en" || cfg.Pipeline.DefaultLanguage != "en-US" {
		t.Errorf("languages = %q/%q", cfg.Pipeline.InternalLanguage, cfg.Pipeline.DefaultLanguage)
	}
	if cfg.Pipeline.DetectConfidenceThreshold != 0.5 {
		t.Errorf("detect threshold = %v, want 0.5", cfg.Pipeline.DetectConfidenceThreshold)
	}
	if cfg.Pipeline.HistoryMaxPairs != 10 {
		t.Errorf("history_max_pairs = %d, want 10", cfg.Pipeline.HistoryMaxPairs)
	}
	if !slices.Contains(cfg.Pipeline.SupportedLanguages, "ms-MY") {
		t.Errorf("supported languages missing ms-MY: %v", cfg.Pipeline.SupportedLanguages)
	}
	if cfg.Dispatch.RerouteThreshold != 5*time.Minute {
		t.Errorf("reroute threshold = %v, want 5m", cfg.Dispatch.RerouteThreshold)
	}
	if len(cfg.Dispatch.ComplexPlaceTypes) != 0 {
		t.Errorf("complex place types = %v, want empty so navigation keeps its taxonomy", cfg.Dispatch.ComplexPlaceTypes)
	}
	if cfg.History.Driver != config.HistoryMemory {
		t.Errorf("history driver = %q, want memory", cfg.History.Driver)
	}
	if v, ok := cfg.Voices.Voice("TH-th"); !ok || v != "th-TH-Standard-A" {
		t.Errorf("voice for TH-th = %q, %v", v, ok)
	}
	if !config.Enabled(cfg.Pipeline.RefineEnabled, true) {
		t.Error("refine should default to enabled")
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("DRIVEWISE_TEST_GOOGLE_KEY", "secret-from-env")
	cfg := mustLoad(t, `
providers:
  llm:
    name: gemini
  stt:
    name: google
    api_key: ${DRIVEWISE_TEST_GOOGLE_KEY}
  tts:
    name: google
`)
	if cfg.Providers.STT.APIKey != "secret-from-env" {
		t.Errorf("api_key = %q, want secret-from-env", cfg.Providers.STT.APIKey)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	expectError(t, minimalYAML+"\nvehicles: []\n", "vehicles")
}

func TestLoadFromReader_EmptyNeedsProviders(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"providers.stt", "providers.llm", "providers.tts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		extra    string
		contains string
	}{
		{"invalid log level", "server:\n  log_level: verbose\n", "server.log_level"},
		{"threshold out of range", "pipeline:\n  detect_confidence_threshold: 1.5\n", "detect_confidence_threshold"},
		{"internal language with region", "pipeline:\n  internal_language: en-US\n", "internal_language"},
		{"frame size not power of two", "pipeline:\n  noise_reduction:\n    frame_size: 1000\n", "frame_size"},
		{"positive threshold db", "pipeline:\n  noise_reduction:\n    threshold_db: 3\n", "threshold_db"},
		{"speaking rate", "voices:\n  speaking_rate: 9\n", "speaking_rate"},
		{"encoding", "voices:\n  encoding: FLAC\n", "voices.encoding"},
		{"hotspot name", "dispatch:\n  flood:\n    hotspots:\n      - message: wet\n", "hotspots[0].name"},
		{"history driver", "history:\n  driver: mongo\n", "history.driver"},
		{"history dsn", "history:\n  driver: redis\n", "history.dsn"},
		{"tls incomplete", "server:\n  tls:\n    cert_file: a.pem\n", "server.tls"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, minimalYAML+tc.extra, tc.contains)
		})
	}
}

func TestValidate_LLMTranslatorNeedsLLM(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.STT.Name = "google"
	cfg.Providers.TTS.Name = "google"
	cfg.Providers.Translate.Name = "llm"
	config.ApplyDefaults(cfg)
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), `providers.translate "llm"`) {
		t.Fatalf("expected llm translator error, got %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(minimalYAML + `
server:
  log_level: nope
history:
  driver: mongo
`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "log_level") || !strings.Contains(err.Error(), "history.driver") {
		t.Errorf("expected both errors joined, got %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	for _, kind := range []string{"llm", "stt", "tts", "translate", "maps", "sms"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}

	checks := map[string]error{}
	_, checks["llm"] = reg.CreateLLM(entry)
	_, checks["stt"] = reg.CreateSTT(entry)
	_, checks["tts"] = reg.CreateTTS(entry)
	_, checks["translate"] = reg.CreateTranslate(entry)
	_, checks["maps"] = reg.CreateMaps(entry)
	_, checks["sms"] = reg.CreateSMS(entry)

	for kind, err := range checks {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: expected ErrProviderNotRegistered, got %v", kind, err)
		}
		if err != nil && !strings.Contains(err.Error(), kind+`/"nope"`) {
			t.Errorf("%s: error %q does not name the kind", kind, err)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterLLM("m", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterSTT("m", func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	reg.RegisterTTS("m", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	reg.RegisterTranslate("m", func(config.ProviderEntry) (translate.Provider, error) { return &translatemock.Provider{}, nil })
	reg.RegisterMaps("m", func(config.ProviderEntry) (maps.Provider, error) { return &mapsmock.Provider{}, nil })
	reg.RegisterSMS("m", func(config.ProviderEntry) (sms.Provider, error) { return &smsmock.Provider{}, nil })

	entry := config.ProviderEntry{Name: "m"}
	if p, err := reg.CreateLLM(entry); err != nil || p == nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if p, err := reg.CreateSTT(entry); err != nil || p == nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if p, err := reg.CreateTTS(entry); err != nil || p == nil {
		t.Errorf("CreateTTS: %v", err)
	}
	if p, err := reg.CreateTranslate(entry); err != nil || p == nil {
		t.Errorf("CreateTranslate: %v", err)
	}
	if p, err := reg.CreateMaps(entry); err != nil || p == nil {
		t.Errorf("CreateMaps: %v", err)
	}
	if p, err := reg.CreateSMS(entry); err != nil || p == nil {
		t.Errorf("CreateSMS: %v", err)
	}
	if got := reg.Names("stt"); !slices.Equal(got, []string{"m"}) {
		t.Errorf("Names(stt) = %v", got)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	want := errors.New("bad key")
	reg.RegisterTTS("broken", func(config.ProviderEntry) (tts.Provider, error) { return nil, want })

	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "broken"}); !errors.Is(err, want) {
		t.Errorf("expected factory error, got %v", err)
	}
}
