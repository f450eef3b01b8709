// Package httpapi is the HTTP and WebSocket surface of drivewise.
//
// Routes:
//
//	POST   /v1/turns                 multipart audio turn, JSON reply
//	GET    /v1/turns/ws              WebSocket: JSON header + binary audio per turn
//	GET    /v1/sessions/{id}/history stored chat history
//	DELETE /v1/sessions/{id}/history clear chat history
//	POST   /v1/synthesize            text to speech helper
//	POST   /v1/translate             text translation helper
//	GET    /healthz, /readyz, /metrics
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/drivewise/internal/conversation"
	"github.com/MrWong99/drivewise/internal/health"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/pkg/provider/translate"
	"github.com/MrWong99/drivewise/pkg/provider/tts"
	"github.com/MrWong99/drivewise/pkg/types"
)

const (
	defaultMaxAudioBytes = 10 << 20
	defaultTurnTimeout   = 60 * time.Second
)

// Turns runs turns and exposes their history. [*conversation.Orchestrator]
// satisfies it.
type Turns interface {
	Process(ctx context.Context, turn conversation.Turn) (*conversation.Reply, error)
	History(ctx context.Context, sessionID string) ([]types.ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Speaker renders text. [*synth.Synthesizer] satisfies it.
type Speaker interface {
	Synthesize(ctx context.Context, text, lang string) (tts.Audio, error)
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithSpeaker enables POST /v1/synthesize.
func WithSpeaker(s Speaker) Option {
	return func(srv *Server) { srv.speaker = s }
}

// WithTranslator enables POST /v1/translate.
func WithTranslator(t translate.Provider) Option {
	return func(srv *Server) { srv.translator = t }
}

// WithMaxAudioBytes caps uploaded utterances. Default: 10 MiB.
func WithMaxAudioBytes(n int64) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.maxAudio = n
		}
	}
}

// WithTurnTimeout bounds one turn. Default: 60 s.
func WithTurnTimeout(d time.Duration) Option {
	return func(srv *Server) {
		if d > 0 {
			srv.turnTimeout = d
		}
	}
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(srv *Server) { srv.health = h }
}

// WithMetrics instruments every request and mounts handler on /metrics.
func WithMetrics(m *observe.Metrics, handler http.Handler) Option {
	return func(srv *Server) {
		srv.metrics = m
		srv.metricsHandler = handler
	}
}

// WithAllowedOrigins sets the WebSocket origin patterns. Default: same
// origin only.
func WithAllowedOrigins(patterns ...string) Option {
	return func(srv *Server) { srv.origins = patterns }
}

// Server holds the HTTP handlers.
type Server struct {
	turns          Turns
	speaker        Speaker
	translator     translate.Provider
	maxAudio       int64
	turnTimeout    time.Duration
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	origins        []string
}

// New returns a [Server] serving turns.
func New(turns Turns, opts ...Option) *Server {
	s := &Server{
		turns:       turns,
		maxAudio:    defaultMaxAudioBytes,
		turnTimeout: defaultTurnTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed [http.Handler].
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.handleTurn)
		r.Get("/turns/ws", s.handleTurnStream)
		r.Get("/sessions/{id}/history", s.handleGetHistory)
		r.Delete("/sessions/{id}/history", s.handleClearHistory)
		if s.speaker != nil {
			r.Post("/synthesize", s.handleSynthesize)
		}
		if s.translator != nil {
			r.Post("/translate", s.handleTranslate)
		}
	})
	return r
}
