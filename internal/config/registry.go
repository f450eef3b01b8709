package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/drivewise/pkg/provider/llm"
	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/provider/sms"
	"github.com/MrWong99/drivewise/pkg/provider/stt"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	llm       map[string]func(ProviderEntry) (llm.Provider, error)
	stt       map[string]func(ProviderEntry) (stt.Provider, error)
	tts       map[string]func(ProviderEntry) (tts.Provider, error)
	translate map[string]func(ProviderEntry) (translate.Provider, error)
	maps      map[string]func(ProviderEntry) (maps.Provider, error)
	sms       map[string]func(ProviderEntry) (sms.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:       make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:       make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:       make(map[string]func(ProviderEntry) (tts.Provider, error)),
		translate: make(map[string]func(ProviderEntry) (translate.Provider, error)),
		maps:      make(map[string]func(ProviderEntry) (maps.Provider, error)),
		sms:       make(map[string]func(ProviderEntry) (sms.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	register(r, r.llm, name, factory)
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	register(r, r.stt, name, factory)
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	register(r, r.tts, name, factory)
}

// RegisterTranslate registers a translation provider factory under name.
func (r *Registry) RegisterTranslate(name string, factory func(ProviderEntry) (translate.Provider, error)) {
	register(r, r.translate, name, factory)
}

// RegisterMaps registers a maps provider factory under name.
func (r *Registry) RegisterMaps(name string, factory func(ProviderEntry) (maps.Provider, error)) {
	register(r, r.maps, name, factory)
}

// RegisterSMS registers an SMS provider factory under name.
func (r *Registry) RegisterSMS(name string, factory func(ProviderEntry) (sms.Provider, error)) {
	register(r, r.sms, name, factory)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// CreateTranslate instantiates a translation provider using the factory registered under entry.Name.
func (r *Registry) CreateTranslate(entry ProviderEntry) (translate.Provider, error) {
	return create(r, r.translate, "translate", entry)
}

// CreateMaps instantiates a maps provider using the factory registered under entry.Name.
func (r *Registry) CreateMaps(entry ProviderEntry) (maps.Provider, error) {
	return create(r, r.maps, "maps", entry)
}

// CreateSMS instantiates an SMS provider using the factory registered under entry.Name.
func (r *Registry) CreateSMS(entry ProviderEntry) (sms.Provider, error) {
	return create(r, r.sms, "sms", entry)
}

// Names returns the sorted provider names registered for kind. Unknown kinds
// yield nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "llm":
		names = keys(r.llm)
	case "stt":
		names = keys(r.stt)
	case "tts":
		names = keys(r.tts)
	case "translate":
		names = keys(r.translate)
	case "maps":
		names = keys(r.maps)
	case "sms":
		names = keys(r.sms)
	}
	sort.Strings(names)
	return names
}

func register[T any](r *Registry, m map[string]func(ProviderEntry) (T, error), name string, factory func(ProviderEntry) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[name] = factory
}

func create[T any](r *Registry, m map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := m[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
