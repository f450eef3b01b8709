// Package navigation is the domain collaborator behind the driving intents:
// route computation, reroute comparison against a per-session baseline,
// pickup complexity checks, and flood hotspot lookups.
//
// Lookups that find nothing surface as [ErrNoRoute] or plain "not complex"
// answers; transport failures are wrapped in [*Error] so callers can tell
// them apart with errors.As.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/types"
)

const (
	defaultRerouteThreshold = 5 * time.Minute
	defaultBaselineTTL      = 2 * time.Hour
)

// ErrNoRoute is returned when the maps backend finds no route.
var ErrNoRoute = errors.New("navigation: no route found")

// ErrInvalidDestination is returned when a destination names no place at
// all, e.g. an empty "place_id:" reference.
var ErrInvalidDestination = errors.New("navigation: invalid destination")

// Error wraps a failed maps lookup.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("navigation: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Option is a functional option for configuring a [Service].
type Option func(*settings)

// WithRerouteThreshold sets how much faster an alternative must be before
// it is suggested. Default: 5 minutes.
func WithRerouteThreshold(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.rerouteThreshold = d
		}
	}
}

// WithComplexPlaceTypes replaces the place-type taxonomy used by
// [Service.IsPickupComplex]. An empty list keeps [DefaultComplexPlaceTypes].
func WithComplexPlaceTypes(placeTypes []string) Option {
	return func(s *settings) {
		if len(placeTypes) == 0 {
			return
		}
		s.complexTypes = make(map[string]struct{}, len(placeTypes))
		for _, t := range placeTypes {
			s.complexTypes[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
	}
}

// WithBaselineTTL bounds how long a computed route stays the session's
// current route. Default: 2 hours.
func WithBaselineTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.baselineTTL = d
		}
	}
}

// WithFloodHotspots enables the flood lookup against hotspots.
func WithFloodHotspots(hotspots []Hotspot, threshold float64) Option {
	return func(s *settings) { s.hotspots = NewHotspotMatcher(hotspots, threshold) }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Service answers navigation questions for the dispatcher. It is safe for
// concurrent use.
type Service struct {
	maps maps.Provider
	cfg  atomic.Pointer[settings]

	mu        sync.Mutex
	baselines map[string]baseline
}

// settings are the tunables of a [Service]. A snapshot is never mutated
// once stored.
type settings struct {
	rerouteThreshold time.Duration
	complexTypes     map[string]struct{}
	baselineTTL      time.Duration
	hotspots         *HotspotMatcher
	now              func() time.Time
}

func newSettings(opts []Option) *settings {
	st := &settings{
		rerouteThreshold: defaultRerouteThreshold,
		baselineTTL:      defaultBaselineTTL,
		now:              time.Now,
	}
	WithComplexPlaceTypes(DefaultComplexPlaceTypes)(st)
	for _, o := range opts {
		o(st)
	}
	return st
}

type baseline struct {
	route       types.RouteInfo
	destination string
	expires     time.Time
}

// DefaultComplexPlaceTypes are the place types treated as multi-entrance.
var DefaultComplexPlaceTypes = []string{
	"airport", "amusement_park", "bus_station", "hospital", "library",
	"light_rail_station", "shopping_mall", "stadium", "subway_station",
	"tourist_attraction", "train_station", "transit_station", "university",
	"zoo", "department_store", "parking", "convention_center", "port",
}

// New returns a [Service] backed by provider.
func New(provider maps.Provider, opts ...Option) *Service {
	s := &Service{
		maps:      provider,
		baselines: make(map[string]baseline),
	}
	s.cfg.Store(newSettings(opts))
	return s
}

// Reconfigure replaces every setting with the defaults overlaid by opts.
// Remembered session routes are kept.
func (s *Service) Reconfigure(opts ...Option) {
	s.cfg.Store(newSettings(opts))
}

// FloodEnabled reports whether hotspots are configured.
func (s *Service) FloodEnabled() bool { return s.cfg.Load().floodEnabled() }

func (st *settings) floodEnabled() bool { return st.hotspots != nil && st.hotspots.Len() > 0 }

// Route computes a driving route from origin to destination and remembers
// it as sessionID's current route. destination may be "lat,lng",
// "place_id:<id>" or an address.
func (s *Service) Route(ctx context.Context, sessionID string, origin types.Location, destination string) (*types.RouteInfo, error) {
	route, err := s.compute(ctx, origin, destination)
	if err != nil {
		return nil, err
	}
	s.remember(sessionID, destination, route)
	return route, nil
}

// CheckReroute recomputes the route to destination and returns it when it
// beats the session's current route by more than the reroute threshold.
// Without a current route for the same destination, the fresh route becomes
// the baseline and nil is returned.
func (s *Service) CheckReroute(ctx context.Context, sessionID string, origin types.Location, destination string) (*types.RouteInfo, error) {
	fresh, err := s.compute(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	current, ok := s.baseline(sessionID, destination)
	if !ok || current.DurationSeconds <= 0 {
		observe.Logger(ctx).Info("navigation: no baseline route; storing fresh route", "destination", destination)
		s.remember(sessionID, destination, fresh)
		return nil, nil
	}

	threshold := s.cfg.Load().rerouteThreshold
	saved := time.Duration(current.DurationSeconds-fresh.DurationSeconds) * time.Second
	observe.Logger(ctx).Info("navigation: reroute comparison",
		"current_s", current.DurationSeconds,
		"fresh_s", fresh.DurationSeconds,
		"threshold", threshold,
	)
	if fresh.DurationSeconds <= 0 || saved <= threshold {
		return nil, nil
	}
	s.remember(sessionID, destination, fresh)
	return fresh, nil
}

// IsPickupComplex reports whether the pickup point is a place type with
// several gates or entrances. Place details are consulted first, then the
// geocoded address. Missing data yields false; an error is returned only
// when every attempted lookup failed in transport.
func (s *Service) IsPickupComplex(ctx context.Context, placeID, address string) (bool, error) {
	if placeID == "" && address == "" {
		return false, nil
	}
	log := observe.Logger(ctx)

	var errs []error
	var placeTypes []string
	if placeID != "" {
		p, err := s.maps.PlaceDetails(ctx, placeID)
		switch {
		case err == nil:
			placeTypes = p.Types
		case errors.Is(err, maps.ErrNotFound):
			log.Warn("navigation: pickup place not found", "place_id", placeID)
		default:
			errs = append(errs, err)
			log.Warn("navigation: place details failed", "place_id", placeID, "err", err)
		}
	}
	if len(placeTypes) == 0 && address != "" {
		p, err := s.maps.Geocode(ctx, address)
		switch {
		case err == nil:
			placeTypes = p.Types
		case errors.Is(err, maps.ErrNotFound):
			log.Warn("navigation: pickup address not found", "address", address)
		default:
			errs = append(errs, err)
			log.Warn("navigation: geocode failed", "address", address, "err", err)
		}
	}

	if len(placeTypes) == 0 && len(errs) > 0 {
		return false, &Error{Op: "pickup lookup", Err: errors.Join(errs...)}
	}
	complexTypes := s.cfg.Load().complexTypes
	for _, t := range placeTypes {
		if _, ok := complexTypes[strings.ToLower(t)]; ok {
			log.Info("navigation: pickup is complex", "type", t)
			return true, nil
		}
	}
	return false, nil
}

// FloodWarnings returns flood warnings near loc and along the session's
// current route. The reverse geocode of loc and the current route's
// advisories are gathered concurrently. A failed reverse geocode is an error
// only when nothing else produced a warning.
func (s *Service) FloodWarnings(ctx context.Context, sessionID string, loc types.Location) ([]types.RouteWarning, error) {
	st := s.cfg.Load()
	if !st.floodEnabled() {
		return nil, nil
	}

	var (
		here      string
		routeWarn []types.RouteWarning
		routeEnd  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.maps.ReverseGeocode(gctx, loc)
		if errors.Is(err, maps.ErrNotFound) {
			return nil
		}
		if err != nil {
			return &Error{Op: "reverse geocode", Err: err}
		}
		here = p.FormattedAddress
		return nil
	})
	g.Go(func() error {
		if r, _, ok := s.currentRoute(sessionID); ok {
			routeWarn = r.Warnings
			routeEnd = r.EndAddress
		}
		return nil
	})
	err := g.Wait()

	var out []types.RouteWarning
	seen := make(map[string]bool)
	add := func(w types.RouteWarning) {
		key := strings.ToLower(w.Message)
		if w.Message == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, w)
	}
	for _, w := range routeWarn {
		if isFloodWarning(w) {
			add(w)
		}
	}
	for _, addr := range []string{here, routeEnd} {
		for _, h := range st.hotspots.Match(addr) {
			add(types.RouteWarning{Severity: "FLOOD", Message: h.warning(addr)})
		}
	}

	if err != nil && len(out) == 0 {
		return nil, err
	}
	if err != nil {
		observe.Logger(ctx).Warn("navigation: flood lookup partially failed", "err", err)
	}
	return out, nil
}

func isFloodWarning(w types.RouteWarning) bool {
	m := strings.ToLower(w.Message + " " + w.Severity)
	return strings.Contains(m, "flood")
}

// Forget drops the session's remembered route.
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.baselines, sessionID)
	s.mu.Unlock()
}

func (s *Service) compute(ctx context.Context, origin types.Location, destination string) (*types.RouteInfo, error) {
	dest := maps.ParseWaypoint(destination)
	if dest.IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}
	route, err := s.maps.ComputeRoute(ctx, maps.RouteRequest{Origin: maps.At(origin), Destination: dest})
	if errors.Is(err, maps.ErrNotFound) {
		return nil, fmt.Errorf("%w to %s", ErrNoRoute, destination)
	}
	if err != nil {
		return nil, &Error{Op: "compute route", Err: err}
	}
	return route, nil
}

func (s *Service) remember(sessionID, destination string, route *types.RouteInfo) {
	if sessionID == "" || route == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.cfg.Load()
	now := st.now()
	for id, b := range s.baselines {
		if now.After(b.expires) {
			delete(s.baselines, id)
		}
	}
	s.baselines[sessionID] = baseline{route: *route, destination: destination, expires: now.Add(st.baselineTTL)}
}

func (s *Service) baseline(sessionID, destination string) (types.RouteInfo, bool) {
	r, dest, ok := s.currentRoute(sessionID)
	if !ok || !strings.EqualFold(dest, destination) {
		return types.RouteInfo{}, false
	}
	return r, true
}

func (s *Service) currentRoute(sessionID string) (types.RouteInfo, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.baselines[sessionID]
	if !ok || s.cfg.Load().now().After(b.expires) {
		return types.RouteInfo{}, "", false
	}
	return b.route, b.destination, true
}
