// Package maps defines the Provider interface for routing, geocoding and
// place lookups.
//
// Lookups that find nothing return ErrNotFound rather than a nil result so
// callers can tell "no such place" from a transport failure with errors.Is.
package maps

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrWong99/drivewise/pkg/types"
)

// ErrNotFound is returned when a route, address or place has no result.
var ErrNotFound = errors.New("maps: not found")

// placeIDPrefix marks a free-text waypoint that carries a place ID.
const placeIDPrefix = "place_id:"

// Waypoint is a route endpoint. Exactly one field should be set; Location
// takes precedence over PlaceID, which takes precedence over Address.
type Waypoint struct {
	Location *types.Location
	PlaceID  string
	Address  string
}

// At returns a coordinate waypoint.
func At(loc types.Location) Waypoint { return Waypoint{Location: &loc} }

// ParseWaypoint interprets s as "lat,lng", "place_id:<id>" or a free-text
// address, in that order.
func ParseWaypoint(s string) Waypoint {
	s = strings.TrimSpace(s)
	if id, ok := strings.CutPrefix(s, placeIDPrefix); ok {
		return Waypoint{PlaceID: strings.TrimSpace(id)}
	}
	if lat, lng, ok := strings.Cut(s, ","); ok {
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err1 == nil && err2 == nil && la >= -90 && la <= 90 && ln >= -180 && ln <= 180 {
			return At(types.Location{Lat: la, Lng: ln})
		}
	}
	return Waypoint{Address: s}
}

// IsZero reports whether no field is set.
func (w Waypoint) IsZero() bool {
	return w.Location == nil && w.PlaceID == "" && w.Address == ""
}

// String renders the waypoint for logs.
func (w Waypoint) String() string {
	switch {
	case w.Location != nil:
		return w.Location.String()
	case w.PlaceID != "":
		return placeIDPrefix + w.PlaceID
	default:
		return w.Address
	}
}

// RouteRequest describes a route computation.
type RouteRequest struct {
	Origin      Waypoint
	Destination Waypoint

	// TravelMode is "DRIVE" (default), "TWO_WHEELER", "WALK" or "BICYCLE".
	TravelMode string
}

// Provider is the abstraction over a maps backend. Implementations must be
// safe for concurrent use.
type Provider interface {
	// ComputeRoute returns the primary route, or ErrNotFound.
	ComputeRoute(ctx context.Context, req RouteRequest) (*types.RouteInfo, error)

	// Geocode resolves a free-text address, or returns ErrNotFound.
	Geocode(ctx context.Context, address string) (*types.PlaceInfo, error)

	// ReverseGeocode resolves a coordinate to its most specific address.
	ReverseGeocode(ctx context.Context, loc types.Location) (*types.PlaceInfo, error)

	// PlaceDetails looks up a place ID. The result always carries Types.
	PlaceDetails(ctx context.Context, placeID string) (*types.PlaceInfo, error)
}
