package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/types"
)

// MapsFallback implements [maps.Provider] with failover. A "not found" answer
// is a valid result, so [maps.ErrNotFound] neither trips the breaker nor moves
// on to the next provider.
type MapsFallback struct {
	group *FallbackGroup[maps.Provider]
}

var _ maps.Provider = (*MapsFallback)(nil)

// NewMapsFallback creates a [MapsFallback] with primary as the preferred backend.
func NewMapsFallback(primary maps.Provider, primaryName string, cfg FallbackConfig) *MapsFallback {
	return &MapsFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional maps provider.
func (f *MapsFallback) AddFallback(name string, provider maps.Provider) {
	f.group.AddFallback(name, provider)
}

// mapsCall executes fn with failover. The first provider that reports
// ErrNotFound ends the search and that error is returned.
func mapsCall[R any](ctx context.Context, f *MapsFallback, fn func(maps.Provider) (R, error)) (R, error) {
	var notFound bool
	res, err := ExecuteWithResult(ctx, f.group, func(p maps.Provider) (R, error) {
		r, err := fn(p)
		if errors.Is(err, maps.ErrNotFound) {
			notFound = true
			return r, nil
		}
		return r, err
	})
	if err == nil && notFound {
		var zero R
		return zero, maps.ErrNotFound
	}
	return res, err
}

// ComputeRoute implements maps.Provider.
func (f *MapsFallback) ComputeRoute(ctx context.Context, req maps.RouteRequest) (*types.RouteInfo, error) {
	return mapsCall(ctx, f, func(p maps.Provider) (*types.RouteInfo, error) { return p.ComputeRoute(ctx, req) })
}

// Geocode implements maps.Provider.
func (f *MapsFallback) Geocode(ctx context.Context, address string) (*types.PlaceInfo, error) {
	return mapsCall(ctx, f, func(p maps.Provider) (*types.PlaceInfo, error) { return p.Geocode(ctx, address) })
}

// ReverseGeocode implements maps.Provider.
func (f *MapsFallback) ReverseGeocode(ctx context.Context, loc types.Location) (*types.PlaceInfo, error) {
	return mapsCall(ctx, f, func(p maps.Provider) (*types.PlaceInfo, error) { return p.ReverseGeocode(ctx, loc) })
}

// PlaceDetails implements maps.Provider.
func (f *MapsFallback) PlaceDetails(ctx context.Context, placeID string) (*types.PlaceInfo, error) {
	return mapsCall(ctx, f, func(p maps.Provider) (*types.PlaceInfo, error) { return p.PlaceDetails(ctx, placeID) })
}
