// Package mock provides a test double for the maps.Provider interface.
//
// Lookups are answered from the maps configured on the Provider; a missing
// key yields maps.ErrNotFound. Err fields take precedence over lookups.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/types"
)

var _ maps.Provider = (*Provider)(nil)

// Provider is a mock implementation of maps.Provider.
type Provider struct {
	mu sync.Mutex

	// Route is returned by ComputeRoute when RouteFunc is nil. Nil means
	// ErrNotFound.
	Route     *types.RouteInfo
	RouteFunc func(ctx context.Context, req maps.RouteRequest) (*types.RouteInfo, error)
	RouteErr  error

	// Places keyed by address (Geocode) or place ID (PlaceDetails).
	Addresses map[string]*types.PlaceInfo
	Places    map[string]*types.PlaceInfo

	// Reverse is returned by ReverseGeocode.
	Reverse *types.PlaceInfo

	LookupErr error

	RouteCalls   []maps.RouteRequest
	GeocodeCalls []string
	DetailCalls  []string
	ReverseCalls []types.Location
}

// ComputeRoute implements maps.Provider.
func (p *Provider) ComputeRoute(ctx context.Context, req maps.RouteRequest) (*types.RouteInfo, error) {
	p.mu.Lock()
	p.RouteCalls = append(p.RouteCalls, req)
	fn, route, err := p.RouteFunc, p.Route, p.RouteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, maps.ErrNotFound
	}
	r := *route
	return &r, nil
}

// Geocode implements maps.Provider.
func (p *Provider) Geocode(_ context.Context, address string) (*types.PlaceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GeocodeCalls = append(p.GeocodeCalls, address)
	return lookup(p.LookupErr, p.Addresses, address)
}

// ReverseGeocode implements maps.Provider.
func (p *Provider) ReverseGeocode(_ context.Context, loc types.Location) (*types.PlaceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReverseCalls = append(p.ReverseCalls, loc)
	if p.LookupErr != nil {
		return nil, p.LookupErr
	}
	if p.Reverse == nil {
		return nil, maps.ErrNotFound
	}
	r := *p.Reverse
	return &r, nil
}

// PlaceDetails implements maps.Provider.
func (p *Provider) PlaceDetails(_ context.Context, placeID string) (*types.PlaceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetailCalls = append(p.DetailCalls, placeID)
	return lookup(p.LookupErr, p.Places, placeID)
}

// RouteCount returns the number of ComputeRoute calls.
func (p *Provider) RouteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.RouteCalls)
}

func lookup(err error, m map[string]*types.PlaceInfo, key string) (*types.PlaceInfo, error) {
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil, maps.ErrNotFound
	}
	out := *v
	return &out, nil
}
