package config

import "time"

// Default values applied by [ApplyDefaults] to unset fields.
const (
	DefaultListenAddr                = ":8080"
	DefaultInternalLanguage          = "en"
	DefaultLanguage                  = "en-US"
	DefaultDetectConfidenceThreshold = 0.5
	DefaultHistoryMaxPairs           = 10
	DefaultStageTimeout              = 15 * time.Second
	DefaultVoice                     = "en-US-Standard-C"
	DefaultEncoding                  = "MP3"
	DefaultRerouteThreshold          = 5 * time.Minute
	DefaultRouteBaselineTTL          = 2 * time.Hour
	DefaultFloodMatchThreshold       = 0.88
	DefaultMaxAudioBytes             = 10 << 20
	DefaultKeyPrefix                 = "drivewise:history:"
)

// DefaultSupportedLanguages are the locales offered to the primary recognizer
// when none are configured.
var DefaultSupportedLanguages = []string{
	"en-SG", "en-PH", "ms-MY", "id-ID", "fil-PH", "th-TH",
	"vi-VN", "km-KH", "my-MM", "cmn-Hans-CN", "cmn-CN", "ta-IN",
}

// DefaultVoiceTable maps the supported locales to Google standard voices.
var DefaultVoiceTable = map[string]string{
	"en-us":       "en-US-Standard-C",
	"en-sg":       "en-US-Standard-B",
	"en-ph":       "en-PH-Standard-A",
	"ms-my":       "ms-MY-Standard-A",
	"id-id":       "id-ID-Standard-A",
	"fil-ph":      "fil-PH-Standard-A",
	"th-th":       "th-TH-Standard-A",
	"vi-vn":       "vi-VN-Standard-D",
	"km-kh":       "km-KH-Standard-A",
	"my-mm":       "my-MM-Standard-A",
	"cmn-cn":      "cmn-CN-Standard-A",
	"cmn-hans-cn": "cmn-Hans-CN-Standard-A",
	"ta-in":       "ta-IN-Standard-A",
}

// ApplyDefaults fills every unset field of cfg with its default value.
// Explicitly set values are never overwritten.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 60 * time.Second
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 120 * time.Second
	}
	if s.MaxAudioBytes == 0 {
		s.MaxAudioBytes = DefaultMaxAudioBytes
	}

	p := &cfg.Pipeline
	if p.InternalLanguage == "" {
		p.InternalLanguage = DefaultInternalLanguage
	}
	if p.DefaultLanguage == "" {
		p.DefaultLanguage = DefaultLanguage
	}
	if len(p.SupportedLanguages) == 0 {
		p.SupportedLanguages = append([]string(nil), DefaultSupportedLanguages...)
	}
	if p.DetectConfidenceThreshold == 0 {
		p.DetectConfidenceThreshold = DefaultDetectConfidenceThreshold
	}
	if p.HistoryMaxPairs == 0 {
		p.HistoryMaxPairs = DefaultHistoryMaxPairs
	}
	if p.StageTimeout == 0 {
		p.StageTimeout = DefaultStageTimeout
	}
	if p.CPUWorkers == 0 {
		p.CPUWorkers = 4
	}

	v := &cfg.Voices
	if len(v.Table) == 0 {
		v.Table = make(map[string]string, len(DefaultVoiceTable))
		for k, name := range DefaultVoiceTable {
			v.Table[k] = name
		}
	}
	if v.DefaultVoice == "" {
		v.DefaultVoice = DefaultVoice
	}
	if v.SpeakingRate == 0 {
		v.SpeakingRate = 1.0
	}
	if v.Encoding == "" {
		v.Encoding = DefaultEncoding
	}

	d := &cfg.Dispatch
	if d.RerouteThreshold == 0 {
		d.RerouteThreshold = DefaultRerouteThreshold
	}
	if d.RouteBaselineTTL == 0 {
		d.RouteBaselineTTL = DefaultRouteBaselineTTL
	}
	if d.Flood.MatchThreshold == 0 {
		d.Flood.MatchThreshold = DefaultFloodMatchThreshold
	}

	h := &cfg.History
	if h.Driver == "" {
		h.Driver = HistoryMemory
	}
	if h.KeyPrefix == "" {
		h.KeyPrefix = DefaultKeyPrefix
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "drivewise"
	}
}
