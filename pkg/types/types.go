// Package types defines the value types shared across drivewise packages.
//
// These types are the lingua franca between providers, pipeline stages, the
// history store and the transport layer. Each package defines its own domain
// types; only cross-cutting data structures live here to avoid import cycles.
package types

import "fmt"

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders the location as "lat,lng", the form most map APIs accept
// as a free-text origin.
func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lng)
}

// OrderContext describes the active trip, if any. Every field is optional.
type OrderContext struct {
	OrderID                     string `json:"order_id,omitempty"`
	PassengerDestinationAddress string `json:"passenger_destination_address,omitempty"`
	PassengerDestinationPlaceID string `json:"passenger_destination_place_id,omitempty"`
	PassengerPickupAddress      string `json:"passenger_pickup_address,omitempty"`
	PassengerPickupPlaceID      string `json:"passenger_pickup_place_id,omitempty"`
	PassengerPhoneNumber        string `json:"passenger_phone_number,omitempty"`
}

// Destination returns the best available destination reference: the place
// ID when present (prefixed for map APIs), otherwise the address.
func (o *OrderContext) Destination() string {
	if o == nil {
		return ""
	}
	if o.PassengerDestinationPlaceID != "" {
		return "place_id:" + o.PassengerDestinationPlaceID
	}
	return o.PassengerDestinationAddress
}

// RouteWarning is an advisory attached to a computed route.
type RouteWarning struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// RouteInfo is the summary of one computed route.
type RouteInfo struct {
	// DurationSeconds is the traffic-aware travel time.
	DurationSeconds int `json:"duration"`

	DistanceMeters int            `json:"distance_meters"`
	Polyline       string         `json:"polyline,omitempty"`
	Warnings       []RouteWarning `json:"warnings,omitempty"`

	// DurationText and DistanceText are provider-localised renderings such as
	// "20 mins" and "12.4 km". Either may be empty.
	DurationText string `json:"duration_text,omitempty"`
	DistanceText string `json:"distance_text,omitempty"`

	StartAddress string `json:"start_address,omitempty"`
	EndAddress   string `json:"end_address,omitempty"`

	// Summary names the main road(s), e.g. "PIE".
	Summary string `json:"summary,omitempty"`
}

// PlaceInfo is the result of a geocode, reverse-geocode or place lookup.
type PlaceInfo struct {
	PlaceID          string   `json:"place_id,omitempty"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Name             string   `json:"name,omitempty"`
	Location         Location `json:"location"`
	Types            []string `json:"types,omitempty"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one finalised utterance in a session history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
