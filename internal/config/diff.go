package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoicesChanged is true when the voice table, default voice, speaking
	// rate, or output encoding changed.
	VoicesChanged bool

	// DispatchChanged is true when reroute threshold, place taxonomy, or flood
	// hotspots changed.
	DispatchChanged bool

	// RefineChanged is true when pipeline.refine_enabled flipped. The new
	// value is in RefineEnabled.
	RefineChanged bool
	RefineEnabled bool

	// RestartRequired lists top-level sections that changed but cannot be
	// applied without a restart.
	RestartRequired []string
}

// Empty reports whether nothing tracked changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VoicesChanged && !d.DispatchChanged && !d.RefineChanged && len(d.RestartRequired) == 0
}

// Sections names every changed part of the config: the hot-reloadable ones
// first, then those in RestartRequired.
func (d ConfigDiff) Sections() []string {
	var out []string
	if d.LogLevelChanged {
		out = append(out, "server.log_level")
	}
	if d.VoicesChanged {
		out = append(out, "voices")
	}
	if d.DispatchChanged {
		out = append(out, "dispatch")
	}
	if d.RefineChanged {
		out = append(out, "pipeline.refine_enabled")
	}
	return append(out, d.RestartRequired...)
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	ov, nv := old.Voices, new.Voices
	if !maps.Equal(ov.Table, nv.Table) || ov.DefaultVoice != nv.DefaultVoice ||
		ov.SpeakingRate != nv.SpeakingRate || ov.Encoding != nv.Encoding {
		d.VoicesChanged = true
	}

	od, nd := old.Dispatch, new.Dispatch
	if od.RerouteThreshold != nd.RerouteThreshold ||
		od.RouteBaselineTTL != nd.RouteBaselineTTL ||
		!slices.Equal(od.ComplexPlaceTypes, nd.ComplexPlaceTypes) ||
		od.Flood.Enabled != nd.Flood.Enabled ||
		od.Flood.MatchThreshold != nd.Flood.MatchThreshold ||
		!slices.Equal(od.Flood.Hotspots, nd.Flood.Hotspots) {
		d.DispatchChanged = true
	}

	if on := Enabled(new.Pipeline.RefineEnabled, true); on != Enabled(old.Pipeline.RefineEnabled, true) {
		d.RefineChanged = true
		d.RefineEnabled = on
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.History != new.History {
		d.RestartRequired = append(d.RestartRequired, "history")
	}
	if !pipelineEqual(old.Pipeline, new.Pipeline) {
		d.RestartRequired = append(d.RestartRequired, "pipeline")
	}

	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	pairs := [][2]ProviderEntry{
		{a.LLM, b.LLM}, {a.STT, b.STT}, {a.STTFallback, b.STTFallback},
		{a.TTS, b.TTS}, {a.Translate, b.Translate}, {a.Maps, b.Maps}, {a.SMS, b.SMS},
	}
	for _, p := range pairs {
		if !entryEqual(p[0], p[1]) {
			return false
		}
	}
	return true
}

// entryEqual compares the identifying fields of two entries. Options maps
// are compared by key set only since their values may be nested maps.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if !slices.Equal(slices.Sorted(maps.Keys(a.Options)), slices.Sorted(maps.Keys(b.Options))) {
		return false
	}
	return slices.EqualFunc(a.Fallbacks, b.Fallbacks, entryEqual)
}

func pipelineEqual(a, b PipelineConfig) bool {
	return a.InternalLanguage == b.InternalLanguage &&
		a.DefaultLanguage == b.DefaultLanguage &&
		slices.Equal(a.SupportedLanguages, b.SupportedLanguages) &&
		Enabled(a.SecondarySTTEnabled, true) == Enabled(b.SecondarySTTEnabled, true) &&
		a.NoiseReduction == b.NoiseReduction &&
		a.DetectConfidenceThreshold == b.DetectConfidenceThreshold &&
		a.HistoryMaxPairs == b.HistoryMaxPairs &&
		a.StageTimeout == b.StageTimeout &&
		a.CPUWorkers == b.CPUWorkers
}
